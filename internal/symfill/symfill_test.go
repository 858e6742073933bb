package symfill

import (
	"testing"

	"github.com/paulyc/cvs2svn/internal/meta"
)

func TestScoreCountsMatchingLeaves(t *testing.T) {
	root := newTreeDir("")
	root.children["a.txt"] = &treeNode{name: "a.txt", isFile: true, opening: 1, closing: 5}
	root.children["b.txt"] = &treeNode{name: "b.txt", isFile: true, opening: 3, closing: 0}

	if got := score(root, 2); got != 1 {
		t.Fatalf("score(2) = %d, want 1 (only a.txt open)", got)
	}
	if got := score(root, 4); got != 2 {
		t.Fatalf("score(4) = %d, want 2 (both open)", got)
	}
	if got := score(root, 10); got != 1 {
		t.Fatalf("score(10) = %d, want 1 (a.txt closed, b.txt never closes)", got)
	}
}

func TestBestRevnumPrefersHighestScore(t *testing.T) {
	root := newTreeDir("")
	root.children["a.txt"] = &treeNode{name: "a.txt", isFile: true, opening: 1, closing: 5}
	root.children["b.txt"] = &treeNode{name: "b.txt", isFile: true, opening: 3, closing: 10}

	got := bestRevnum(root, []int{1, 3, 6}, -1)
	if got != 3 {
		t.Fatalf("bestRevnum = %d, want 3 (both files open at 3)", got)
	}
}

func TestBestRevnumTieBreaksToInherited(t *testing.T) {
	leaf := &treeNode{name: "f.txt", isFile: true, opening: 1, closing: 0}
	// Every candidate scores 1 (never closes): the inherited choice wins.
	got := bestRevnum(leaf, []int{2, 5, 9}, 5)
	if got != 5 {
		t.Fatalf("bestRevnum = %d, want inherited 5", got)
	}
}

func TestBestRevnumTieBreaksToLowestWithoutInherited(t *testing.T) {
	leaf := &treeNode{name: "f.txt", isFile: true, opening: 1, closing: 0}
	got := bestRevnum(leaf, []int{9, 2, 5}, -1)
	if got != 2 {
		t.Fatalf("bestRevnum = %d, want lowest candidate 2", got)
	}
}

// fakeMirror is a minimal Mirrorer for exercising the descend/copy
// recursion without a full internal/mirror.Mirror.
type fakeMirror struct {
	dirs    map[string][]string
	copies  []string
	deletes []string
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{dirs: make(map[string][]string)}
}

func (f *fakeMirror) CopyPath(path string, srcLOD, destLOD meta.SymbolID, srcRevnum int) error {
	f.copies = append(f.copies, path)
	f.dirs[path] = []string{"placeholder"}
	return nil
}

func (f *fakeMirror) DeletePath(lod meta.SymbolID, path string, prune bool) error {
	f.deletes = append(f.deletes, path)
	delete(f.dirs, path)
	return nil
}

func (f *fakeMirror) GetCurrentDirectory(cvsDir string, lod meta.SymbolID) ([]string, error) {
	entries, ok := f.dirs[cvsDir]
	if !ok {
		return nil, errNotFound
	}
	return entries, nil
}

var errNotFound = &notFoundErr{}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "not found" }

func TestFillSymbolCopiesDirectoryThenPrunesExtraneousEntries(t *testing.T) {
	fm := newFakeMirror()
	// Destination doesn't exist yet: tree has one directory with two
	// files, both open as of revnum 4.
	root := newTreeDir("")
	sub := newTreeDir("lib")
	sub.children["a.txt"] = &treeNode{name: "a.txt", isFile: true, opening: 1, closing: 0}
	sub.children["b.txt"] = &treeNode{name: "b.txt", isFile: true, opening: 1, closing: 0}
	root.children["lib"] = sub

	filler := NewFiller(fm, meta.TrunkLOD, meta.SymbolID(7), []int{4})
	if err := filler.FillSymbol(root, ""); err != nil {
		t.Fatalf("FillSymbol: %v", err)
	}
	if len(fm.copies) == 0 {
		t.Fatalf("expected at least one directory copy")
	}
}

func TestBuildTreeSingleFile(t *testing.T) {
	openings := []Opening{{Path: "README", Revnum: 1}}
	closings := []Closing{}
	tree := BuildTree(openings, closings)
	leaf, ok := tree.children["README"]
	if !ok {
		t.Fatalf("expected README leaf in tree")
	}
	if !leaf.isFile || leaf.opening != 1 {
		t.Fatalf("unexpected leaf: %+v", leaf)
	}
}
