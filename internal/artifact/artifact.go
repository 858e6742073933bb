// Package artifact implements the artifact manager from spec.md §5: every
// pass declares the artifacts it produces and requires; the manager refuses
// to start a pass whose inputs are missing, and deletes an artifact once
// its last consuming pass has finished (unless --keep is set).
package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Name identifies one on-disk artifact within the scratch directory.
type Name string

// Artifacts named in spec.md §6's persisted-state layout.
const (
	RevisionRecords   Name = "revision-records"
	ResyncHints       Name = "resync-hints"
	SortedRecords     Name = "sorted-records"
	MetadataDB        Name = "metadata-db"
	CVSFileDB         Name = "cvs-file-db"
	CVSRevisionStore  Name = "cvs-revision-store"
	SymbolDB          Name = "symbol-db"
	DefaultBranchDB   Name = "default-branch-db"
	LastSymbolSource  Name = "last-symbol-source"
	ChangesetStore    Name = "changeset-store"
	ItemToChangeset   Name = "item-to-changeset"
	DependencyGraph   Name = "dependency-graph"
	SVNCommitDB       Name = "svn-commit-db"
	CVSRevToSVNRev    Name = "cvs-rev-to-svn-rev"
	RCSDeltas         Name = "rcs-deltas"
	RCSTrees          Name = "rcs-trees"
	CheckoutCache     Name = "checkout-cache"
	SymbolOpenClose   Name = "symbol-openings-closings"
	SymbolOffsetsDB   Name = "symbol-offsets-db"
	NodeStore         Name = "node-store"
	NodeIndex         Name = "node-index"
	Dumpfile          Name = "dumpfile"
)

// Declaration is one pass's contract with the artifact manager.
type Declaration struct {
	Pass      string
	Produces  []Name
	Requires  []Name
}

// Manager tracks artifact lifecycles across a run of passes within one
// scratch directory.
type Manager struct {
	scratchDir string
	keep       bool
	logger     *logrus.Logger

	produced map[Name]string // artifact -> path, once written
	declared []Declaration
	// remaining[n] counts passes still to consume artifact n.
	remaining map[Name]int
}

// NewManager creates a Manager rooted at scratchDir. If keep is true,
// artifacts are never deleted after their last consumer runs.
func NewManager(scratchDir string, keep bool, logger *logrus.Logger) *Manager {
	return &Manager{
		scratchDir: scratchDir,
		keep:       keep,
		logger:     logger,
		produced:   make(map[Name]string),
		remaining:  make(map[Name]int),
	}
}

// Register records a pass's produces/requires declaration. Call Register
// for every pass, in pipeline order, before running any of them: this lets
// the manager compute, for each artifact, how many later passes still
// need it.
func (m *Manager) Register(d Declaration) {
	m.declared = append(m.declared, d)
	for _, req := range d.Requires {
		m.remaining[req]++
	}
}

// Path returns the on-disk path an artifact will live at (whether or not
// it has been produced yet).
func (m *Manager) Path(n Name) string {
	return filepath.Join(m.scratchDir, string(n))
}

// CheckRequires verifies every artifact in names has been produced, per
// the contract that a pass cannot start if its inputs are missing.
func (m *Manager) CheckRequires(names []Name) error {
	for _, n := range names {
		if _, err := os.Stat(m.Path(n)); err != nil {
			return errors.Wrapf(err, "artifact manager: missing required artifact %q", n)
		}
	}
	return nil
}

// Publish atomically moves tmpPath into place as artifact n (write to a
// temp file and rename into place, per spec.md §5's crash-safety
// requirement), and records that it now exists.
func (m *Manager) Publish(n Name, tmpPath string) error {
	dest := m.Path(n)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrapf(err, "artifact manager: mkdir for %q", n)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return errors.Wrapf(err, "artifact manager: publish %q", n)
	}
	m.produced[n] = dest
	return nil
}

// TempPath returns a path suitable for writing artifact n before it is
// published; the caller writes here and calls Publish when done.
func (m *Manager) TempPath(n Name) string {
	return m.Path(n) + ".tmp"
}

// Consumed marks that a pass has finished consuming the artifacts in
// names, deleting any whose remaining-consumer count has reached zero
// (unless --keep was set).
func (m *Manager) Consumed(names []Name) error {
	if m.keep {
		return nil
	}
	for _, n := range names {
		if m.remaining[n] <= 0 {
			continue
		}
		m.remaining[n]--
		if m.remaining[n] == 0 {
			path := m.Path(n)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return errors.Wrapf(err, "artifact manager: cleanup %q", n)
			}
			m.logger.Debugf("artifact manager: cleaned up %q", n)
		}
	}
	return nil
}

// Validate checks that every declared pass's Requires were produced by an
// earlier pass's Produces, catching a pipeline wiring mistake before any
// pass runs.
func (m *Manager) Validate() error {
	produced := make(map[Name]bool)
	for _, d := range m.declared {
		for _, req := range d.Requires {
			if !produced[req] {
				return fmt.Errorf("artifact manager: pass %q requires %q which no earlier pass produces", d.Pass, req)
			}
		}
		for _, p := range d.Produces {
			produced[p] = true
		}
	}
	return nil
}
