package mirror

import (
	"testing"

	"github.com/paulyc/cvs2svn/internal/meta"
)

const trunk = meta.SymbolID(-1) // meta.TrunkLOD

func newTrunkMirror(t *testing.T) *Mirror {
	t.Helper()
	m := New("trunk")
	m.RegisterLOD(meta.TrunkLOD, "trunk")
	return m
}

func TestAddPathAutoCreatesParents(t *testing.T) {
	m := newTrunkMirror(t)
	if err := m.StartCommit(1); err != nil {
		t.Fatalf("StartCommit: %v", err)
	}
	if err := m.AddPath(meta.TrunkLOD, "a/b/c.txt", 1); err != nil {
		t.Fatalf("AddPath: %v", err)
	}
	if err := m.EndCommit(); err != nil {
		t.Fatalf("EndCommit: %v", err)
	}
	entries, err := m.GetCurrentDirectory("a/b", meta.TrunkLOD)
	if err != nil {
		t.Fatalf("GetCurrentDirectory: %v", err)
	}
	if len(entries) != 1 || entries[0] != "c.txt" {
		t.Fatalf("expected [c.txt], got %v", entries)
	}
}

func TestAddPathRejectsDuplicate(t *testing.T) {
	m := newTrunkMirror(t)
	m.StartCommit(1)
	if err := m.AddPath(meta.TrunkLOD, "a.txt", 1); err != nil {
		t.Fatalf("AddPath: %v", err)
	}
	err := m.AddPath(meta.TrunkLOD, "a.txt", 2)
	if _, ok := err.(*PathExistsError); !ok {
		t.Fatalf("expected PathExistsError, got %v", err)
	}
	m.EndCommit()
}

func TestDeletePathPrunesEmptyParent(t *testing.T) {
	m := newTrunkMirror(t)
	m.StartCommit(1)
	m.AddPath(meta.TrunkLOD, "dir/file.txt", 1)
	m.EndCommit()

	m.StartCommit(2)
	if err := m.DeletePath(meta.TrunkLOD, "dir/file.txt", true); err != nil {
		t.Fatalf("DeletePath: %v", err)
	}
	m.EndCommit()

	_, err := m.GetCurrentDirectory("dir", meta.TrunkLOD)
	if err == nil {
		t.Fatalf("expected dir to be pruned after deleting its only file")
	}
}

func TestDeletePathNeverPrunesProjectTop(t *testing.T) {
	m := newTrunkMirror(t)
	m.StartCommit(1)
	m.AddPath(meta.TrunkLOD, "file.txt", 1)
	m.EndCommit()

	m.StartCommit(2)
	if err := m.DeletePath(meta.TrunkLOD, "file.txt", true); err != nil {
		t.Fatalf("DeletePath: %v", err)
	}
	m.EndCommit()

	if _, err := m.GetCurrentDirectory("", meta.TrunkLOD); err != nil {
		t.Fatalf("trunk root should survive pruning: %v", err)
	}
}

func TestGetOldDirectoryUsesHistoricalRevision(t *testing.T) {
	m := newTrunkMirror(t)
	m.StartCommit(1)
	m.AddPath(meta.TrunkLOD, "a.txt", 1)
	m.EndCommit()

	m.StartCommit(2)
	m.AddPath(meta.TrunkLOD, "b.txt", 2)
	m.EndCommit()

	old, err := m.GetOldDirectory("", meta.TrunkLOD, 1)
	if err != nil {
		t.Fatalf("GetOldDirectory: %v", err)
	}
	if len(old) != 1 || old[0] != "a.txt" {
		t.Fatalf("expected [a.txt] at revision 1, got %v", old)
	}

	current, err := m.GetOldDirectory("", meta.TrunkLOD, 2)
	if err != nil {
		t.Fatalf("GetOldDirectory: %v", err)
	}
	if len(current) != 2 {
		t.Fatalf("expected 2 entries at revision 2, got %v", current)
	}
}

func TestCopyLODSharesStructure(t *testing.T) {
	m := newTrunkMirror(t)
	m.StartCommit(1)
	m.AddPath(meta.TrunkLOD, "a.txt", 1)
	m.EndCommit()

	branch := meta.SymbolID(5)
	m.StartCommit(2)
	if err := m.CopyLOD(meta.TrunkLOD, branch, 1); err != nil {
		t.Fatalf("CopyLOD: %v", err)
	}
	m.EndCommit()

	entries, err := m.GetCurrentDirectory("", branch)
	if err != nil {
		t.Fatalf("GetCurrentDirectory(branch): %v", err)
	}
	if len(entries) != 1 || entries[0] != "a.txt" {
		t.Fatalf("expected branch to inherit [a.txt], got %v", entries)
	}
}

func TestOperationsRequireOpenCommit(t *testing.T) {
	m := newTrunkMirror(t)
	if err := m.AddPath(meta.TrunkLOD, "a.txt", 1); err == nil {
		t.Fatalf("expected error when adding path outside an open commit")
	}
}

func TestChangePathRequiresExistingPath(t *testing.T) {
	m := newTrunkMirror(t)
	m.StartCommit(1)
	err := m.ChangePath(meta.TrunkLOD, "missing.txt")
	if _, ok := err.(*ParentMissingError); !ok {
		t.Fatalf("expected ParentMissingError, got %v", err)
	}
	m.EndCommit()
}
