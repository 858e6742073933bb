package passes

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulyc/cvs2svn/internal/config"
	"github.com/paulyc/cvs2svn/internal/delta"
	"github.com/paulyc/cvs2svn/internal/meta"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	return l
}

// fakeStore is a minimal delta.DeltaStoreWithTrees over an in-memory map,
// for tests that only need Emit to check out a handful of revisions.
type fakeStore struct {
	data  map[meta.RevisionID][]byte
	trees map[meta.FileID]*delta.FileTree
}

func (s *fakeStore) Load(id meta.RevisionID) ([]byte, bool, error) {
	return s.data[id], true, nil
}
func (s *fakeStore) TreeFor(fileID meta.FileID) *delta.FileTree {
	return s.trees[fileID]
}

// recordingDelegate implements dumpfile.Delegate, recording every call it
// receives instead of writing a real dumpfile, for assertions about what
// Emit drives.
type recordingDelegate struct {
	commits    []int
	adds       []string
	changes    []string
	deletes    []string
	copies     []string
	mkdirs     []string
	lodInits   []string
	finished   bool
	commitLogs []string
}

func (d *recordingDelegate) StartCommit(revnum int, props map[string]string) error {
	d.commits = append(d.commits, revnum)
	d.commitLogs = append(d.commitLogs, props["svn:log"])
	return nil
}
func (d *recordingDelegate) EndCommit() error                    { return nil }
func (d *recordingDelegate) InitializeProject(name string) error { return nil }
func (d *recordingDelegate) InitializeLOD(name string) error {
	d.lodInits = append(d.lodInits, name)
	return nil
}
func (d *recordingDelegate) Mkdir(path string) error {
	d.mkdirs = append(d.mkdirs, path)
	return nil
}
func (d *recordingDelegate) AddPath(path string, content []byte) error {
	d.adds = append(d.adds, path)
	return nil
}
func (d *recordingDelegate) ChangePath(path string, content []byte) error {
	d.changes = append(d.changes, path)
	return nil
}
func (d *recordingDelegate) DeleteLOD(name string) error { return nil }
func (d *recordingDelegate) DeletePath(path string) error {
	d.deletes = append(d.deletes, path)
	return nil
}
func (d *recordingDelegate) CopyLOD(src, dest string, srcRev int) error { return nil }
func (d *recordingDelegate) CopyPath(srcPath, destPath string, srcRev int) error {
	d.copies = append(d.copies, srcPath+" -> "+destPath)
	return nil
}
func (d *recordingDelegate) Finish() error {
	d.finished = true
	return nil
}

func TestEmitSingleTrunkAdd(t *testing.T) {
	fileID := meta.FileID(1)
	revID := meta.RevisionID(1)

	files := []*meta.CVSFile{{ID: fileID, Path: "README"}}
	revisions := []*meta.CVSRevision{
		{ID: revID, FileID: fileID, Number: "1.1", LOD: meta.TrunkLOD, Op: meta.OpAdd, Timestamp: 1000, Predecessor: meta.NoRevision, Successor: meta.NoRevision},
	}

	graph, err := FormChangesets(testLogger(), revisions, nil, 300)
	require.NoError(t, err)
	entries, err := SchedulePass(graph)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	store := &fakeStore{
		data:  map[meta.RevisionID][]byte{revID: []byte("hello\n")},
		trees: map[meta.FileID]*delta.FileTree{fileID: delta.BuildFileTree([][]meta.RevisionID{{revID}}, func(meta.RevisionID) meta.RevisionID { return meta.NoRevision })},
	}
	engine := delta.NewEngine(store)

	metadata := map[meta.RevisionID]meta.MetadataRecord{
		revID: {Author: "alice", Log: "initial import"},
	}

	cfg, err := config.Unmarshal(nil)
	require.NoError(t, err)

	delegate := &recordingDelegate{}
	err = Emit(delegate, cfg, files, revisions, nil, graph, entries, engine, metadata, nil)
	require.NoError(t, err)

	assert.True(t, delegate.finished)
	// revision 1 is the synthetic trunk/branches/tags init commit.
	assert.Equal(t, []int{1, 2}, delegate.commits)
	assert.Contains(t, delegate.mkdirs, cfg.TrunkPath)
	assert.Equal(t, []string{cfg.TrunkPath + "/README"}, delegate.adds)
	assert.Equal(t, "initial import", delegate.commitLogs[1])
}

// TestEmitDefaultBranchSync exercises spec §8 boundary scenario 4: a file
// whose RCS default branch carries vendor revisions 1.1.1.1 and 1.1.1.2.
// Each must land as a primary commit on the vendor branch immediately
// followed by a post-commit revision mirroring it onto trunk.
func TestEmitDefaultBranchSync(t *testing.T) {
	fileID := meta.FileID(1)
	vendorBranch := meta.SymbolID(1)
	rev1 := meta.RevisionID(1)
	rev2 := meta.RevisionID(2)

	files := []*meta.CVSFile{{ID: fileID, Path: "module/file.c", DefaultBranch: vendorBranch}}
	symbols := []*meta.Symbol{{ID: vendorBranch, Name: "VENDOR", Kind: meta.KindBranch}}
	revisions := []*meta.CVSRevision{
		{ID: rev1, FileID: fileID, Number: "1.1.1.1", LOD: vendorBranch, Op: meta.OpAdd, Timestamp: 1000, Predecessor: meta.NoRevision, Successor: rev2},
		{ID: rev2, FileID: fileID, Number: "1.1.1.2", LOD: vendorBranch, Op: meta.OpChange, Timestamp: 2000, Predecessor: rev1, Successor: meta.NoRevision},
	}

	// Neither revision roots vendorBranch (no BranchRoots/TagRoots set), so
	// changeset formation is given no symbols: a KindSymbol changeset would
	// otherwise still be created for vendorBranch (one per entry in the
	// symbols list, regardless of roots) and schedule ahead of these two
	// revision changesets, which is not what this test is exercising.
	graph, err := FormChangesets(testLogger(), revisions, nil, 300)
	require.NoError(t, err)
	entries, err := SchedulePass(graph)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	store := &fakeStore{
		data: map[meta.RevisionID][]byte{rev1: []byte("v1\n"), rev2: []byte("v2\n")},
		trees: map[meta.FileID]*delta.FileTree{
			fileID: delta.BuildFileTree([][]meta.RevisionID{{rev1, rev2}}, func(r meta.RevisionID) meta.RevisionID {
				if r == rev2 {
					return rev1
				}
				return meta.NoRevision
			}),
		},
	}
	engine := delta.NewEngine(store)

	metadata := map[meta.RevisionID]meta.MetadataRecord{
		rev1: {Author: "vendor", Log: "Import v1"},
		rev2: {Author: "vendor", Log: "Import v2"},
	}

	cfg, err := config.Unmarshal(nil)
	require.NoError(t, err)

	delegate := &recordingDelegate{}
	err = Emit(delegate, cfg, files, revisions, symbols, graph, entries, engine, metadata, nil)
	require.NoError(t, err)

	// init(1), vendor-add(2), post-commit(3), vendor-change(4), post-commit(5).
	assert.Equal(t, []int{1, 2, 3, 4, 5}, delegate.commits)
	assert.Equal(t, []string{cfg.TrunkPath + "/module/file.c"}, delegate.deletes)
	assert.Len(t, delegate.copies, 2)
}
