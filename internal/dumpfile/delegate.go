package dumpfile

import (
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Delegate is the mirror delegate capability set from spec §9: the
// emission logic drives one of these, oblivious to whether the bytes end
// up in a dumpfile, are loaded live into a repository, or are written to
// stdout for piping into another tool.
type Delegate interface {
	StartCommit(revnum int, props map[string]string) error
	EndCommit() error
	InitializeProject(name string) error
	InitializeLOD(name string) error
	Mkdir(path string) error
	AddPath(path string, content []byte) error
	ChangePath(path string, content []byte) error
	DeleteLOD(name string) error
	DeletePath(path string) error
	CopyLOD(src, dest string, srcRev int) error
	CopyPath(srcPath, destPath string, srcRev int) error
	Finish() error
}

// dumpfileDelegate writes a self-contained SVN dumpfile v2 stream. It
// backs both the Dumpfile and Stdout delegate kinds; the only difference
// between them is which io.Writer NewDumpfileDelegate is given.
type dumpfileDelegate struct {
	w          *Writer
	curRevnum  int
	curProps   map[string]string
}

// NewDumpfileDelegate creates the Dumpfile/Stdout delegate kind, writing a
// complete dumpfile (format header + UUID) to dest.
func NewDumpfileDelegate(dest io.Writer, uuid string) (Delegate, error) {
	w := NewWriter(dest)
	if err := w.WriteFormatHeader(); err != nil {
		return nil, err
	}
	if err := w.WriteUUID(uuid); err != nil {
		return nil, err
	}
	return &dumpfileDelegate{w: w}, nil
}

// NewStdoutDelegate is the Stdout delegate kind: identical wire format,
// targeting os.Stdout so the stream can be piped directly into
// `svnadmin load`.
func NewStdoutDelegate(uuid string) (Delegate, error) {
	return NewDumpfileDelegate(os.Stdout, uuid)
}

func (d *dumpfileDelegate) StartCommit(revnum int, props map[string]string) error {
	d.curRevnum = revnum
	d.curProps = props
	return d.w.StartRevision(revnum, props)
}

func (d *dumpfileDelegate) EndCommit() error { return nil }

func (d *dumpfileDelegate) InitializeProject(name string) error {
	return d.w.WriteNode(Node{Path: name, Kind: KindDir, Action: ActionAdd})
}

func (d *dumpfileDelegate) InitializeLOD(name string) error {
	return d.w.WriteNode(Node{Path: name, Kind: KindDir, Action: ActionAdd})
}

func (d *dumpfileDelegate) Mkdir(path string) error {
	return d.w.WriteNode(Node{Path: path, Kind: KindDir, Action: ActionAdd})
}

func (d *dumpfileDelegate) AddPath(path string, content []byte) error {
	return d.w.WriteNode(Node{Path: path, Kind: KindFile, Action: ActionAdd, Content: content})
}

func (d *dumpfileDelegate) ChangePath(path string, content []byte) error {
	return d.w.WriteNode(Node{Path: path, Kind: KindFile, Action: ActionChange, Content: content})
}

func (d *dumpfileDelegate) DeleteLOD(name string) error {
	return d.w.WriteNode(Node{Path: name, Action: ActionDelete})
}

func (d *dumpfileDelegate) DeletePath(path string) error {
	return d.w.WriteNode(Node{Path: path, Action: ActionDelete})
}

func (d *dumpfileDelegate) CopyLOD(src, dest string, srcRev int) error {
	return d.w.WriteNode(Node{Path: dest, Kind: KindDir, Action: ActionAdd, CopyFromPath: src, CopyFromRev: srcRev})
}

func (d *dumpfileDelegate) CopyPath(srcPath, destPath string, srcRev int) error {
	return d.w.WriteNode(Node{Path: destPath, Action: ActionAdd, CopyFromPath: srcPath, CopyFromRev: srcRev})
}

func (d *dumpfileDelegate) Finish() error { return nil }

// repositoryDelegate is the Repository delegate kind: it builds the same
// dumpfile stream in memory but pipes it into `svnadmin load` against a
// live repository instead of writing a standalone file, so the caller can
// convert straight into a working repository without a separate load
// step.
type repositoryDelegate struct {
	inner      Delegate
	pipeWriter *io.PipeWriter
	done       chan error
}

// NewRepositoryDelegate creates the Repository delegate kind, streaming
// into `svnadmin load repoPath`.
func NewRepositoryDelegate(repoPath, uuid string) (Delegate, error) {
	pr, pw := io.Pipe()
	cmd := exec.Command("svnadmin", "load", repoPath)
	cmd.Stdin = pr
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	inner, err := NewDumpfileDelegate(pw, uuid)
	if err != nil {
		pw.Close()
		return nil, err
	}

	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, fmt.Errorf("dumpfile: starting svnadmin load: %w", err)
	}
	go func() {
		done <- cmd.Wait()
	}()

	return &repositoryDelegate{inner: inner, pipeWriter: pw, done: done}, nil
}

func (d *repositoryDelegate) StartCommit(revnum int, props map[string]string) error {
	return d.inner.StartCommit(revnum, props)
}
func (d *repositoryDelegate) EndCommit() error                    { return d.inner.EndCommit() }
func (d *repositoryDelegate) InitializeProject(name string) error { return d.inner.InitializeProject(name) }
func (d *repositoryDelegate) InitializeLOD(name string) error     { return d.inner.InitializeLOD(name) }
func (d *repositoryDelegate) Mkdir(path string) error              { return d.inner.Mkdir(path) }
func (d *repositoryDelegate) AddPath(path string, content []byte) error {
	return d.inner.AddPath(path, content)
}
func (d *repositoryDelegate) ChangePath(path string, content []byte) error {
	return d.inner.ChangePath(path, content)
}
func (d *repositoryDelegate) DeleteLOD(name string) error { return d.inner.DeleteLOD(name) }
func (d *repositoryDelegate) DeletePath(path string) error { return d.inner.DeletePath(path) }
func (d *repositoryDelegate) CopyLOD(src, dest string, srcRev int) error {
	return d.inner.CopyLOD(src, dest, srcRev)
}
func (d *repositoryDelegate) CopyPath(srcPath, destPath string, srcRev int) error {
	return d.inner.CopyPath(srcPath, destPath, srcRev)
}

// Finish closes the pipe into svnadmin load and waits for it to exit.
func (d *repositoryDelegate) Finish() error {
	if err := d.inner.Finish(); err != nil {
		return err
	}
	if err := d.pipeWriter.Close(); err != nil {
		return err
	}
	return <-d.done
}
