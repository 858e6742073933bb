// Package symfill implements spec.md §4.5: coalescing a symbol's
// per-file source revisions into a minimal set of directory copies plus
// path-level fixups against an internal/mirror.Mirror tree. The
// tree-walk/scoring style is grounded on the same recursive-descent-by-
// path-segment pattern node.Node uses (AddSubFile/GetFiles), applied here
// to a tree of (opening, closing) intervals instead of file presence.
package symfill

import (
	"sort"
	"strings"

	"github.com/paulyc/cvs2svn/internal/meta"
	"github.com/paulyc/cvs2svn/internal/mirror"
)

// Opening is logged when a primary commit creates or changes a path that
// is a source for some symbol: the first revnum at which the path has the
// correct content.
type Opening struct {
	Path   string
	Revnum int
}

// Closing is logged on the next commit on the same LOD that overwrites
// that path: the first revnum at which the path no longer has the
// correct content (exclusive upper bound).
type Closing struct {
	Path   string
	Revnum int
}

// treeNode is one path component of the in-memory interval tree built
// from a symbol's openings/closings (spec §4.5 step 2).
type treeNode struct {
	name     string
	isFile   bool
	opening  int
	closing  int // exclusive; 0 means "never closed" is represented as maxRevnum+1 by caller
	children map[string]*treeNode
}

func newTreeDir(name string) *treeNode {
	return &treeNode{name: name, children: make(map[string]*treeNode)}
}

// BuildTree constructs the in-memory tree from a symbol's openings and
// closings lists (spec §4.5 step 2).
func BuildTree(openings []Opening, closings []Closing) *treeNode {
	root := newTreeDir("")
	closeByPath := make(map[string]int, len(closings))
	for _, c := range closings {
		closeByPath[c.Path] = c.Revnum
	}
	for _, o := range openings {
		segs := strings.Split(strings.Trim(o.Path, "/"), "/")
		insertLeaf(root, segs, o.Revnum, closeByPath[o.Path])
	}
	return root
}

func insertLeaf(n *treeNode, segs []string, opening, closing int) {
	if len(segs) == 1 {
		n.children[segs[0]] = &treeNode{name: segs[0], isFile: true, opening: opening, closing: closing}
		return
	}
	child, ok := n.children[segs[0]]
	if !ok {
		child = newTreeDir(segs[0])
		n.children[segs[0]] = child
	}
	insertLeaf(child, segs[1:], opening, closing)
}

// score returns the number of leaf paths under n whose (opening <= r <
// closing) holds, per spec §4.5's scoring rule.
func score(n *treeNode, r int) int {
	if n.isFile {
		if n.opening <= r && (n.closing == 0 || r < n.closing) {
			return 1
		}
		return 0
	}
	total := 0
	for _, c := range n.children {
		total += score(c, r)
	}
	return total
}

// bestRevnum picks the candidate revnum with the maximum score under n.
// Ties prefer inherited (the parent's chosen copy-from), else the lowest
// revnum, per spec §4.5's tie-break rule.
func bestRevnum(n *treeNode, candidates []int, inherited int) int {
	bestScore := -1
	best := 0
	inheritedIsBest := false
	sorted := append([]int(nil), candidates...)
	sort.Ints(sorted)
	for _, r := range sorted {
		s := score(n, r)
		if s > bestScore {
			bestScore = s
			best = r
			inheritedIsBest = r == inherited
		} else if s == bestScore && r == inherited {
			inheritedIsBest = true
			best = r
		}
	}
	if inheritedIsBest {
		return inherited
	}
	return best
}

func expectedEntries(n *treeNode) map[string]bool {
	out := make(map[string]bool, len(n.children))
	for name := range n.children {
		out[name] = true
	}
	return out
}

// Mirrorer is the subset of *mirror.Mirror the filler needs; declared as
// an interface so tests can exercise the recursion without a full Mirror.
type Mirrorer interface {
	CopyPath(path string, srcLOD, destLOD meta.SymbolID, srcRevnum int) error
	DeletePath(lod meta.SymbolID, path string, prune bool) error
	GetCurrentDirectory(cvsDir string, lod meta.SymbolID) ([]string, error)
}

// Filler runs fill_symbol for one symbol against a Mirrorer, tracking
// which source revnum each destination subtree was last copied from so it
// can detect the "copied from a different source than preferred" case.
type Filler struct {
	m          Mirrorer
	srcLOD     meta.SymbolID
	destLOD    meta.SymbolID
	candidates []int
	copiedFrom map[string]int
}

// NewFiller prepares a fill run. srcLOD is the line of development the
// symbol's sources are read from (a CVS symbol's membership normally
// draws from one predominant LOD; per-file exceptions are handled by the
// per-file re-copy step in FillSymbol's recursion, spec §4.5 step 4).
func NewFiller(m Mirrorer, srcLOD, destLOD meta.SymbolID, candidates []int) *Filler {
	return &Filler{m: m, srcLOD: srcLOD, destLOD: destLOD, candidates: candidates, copiedFrom: make(map[string]int)}
}

// FillSymbol runs the recursive descend-and-copy-then-patch procedure
// from spec §4.5 steps 3-4, starting at destPath.
func (f *Filler) FillSymbol(tree *treeNode, destPath string) error {
	return f.descend(tree, destPath, -1)
}

func (f *Filler) descend(n *treeNode, destPath string, inherited int) error {
	if n.isFile {
		return f.fillFile(n, destPath, inherited)
	}

	chosen := bestRevnum(n, f.candidates, inherited)
	existingFrom, existed := f.copiedFrom[destPath]
	_, dirExists := f.currentEntries(destPath)

	needsCopy := !dirExists || (existed && existingFrom != chosen)
	if needsCopy {
		if dirExists {
			if err := f.m.DeletePath(f.destLOD, destPath, false); err != nil {
				return err
			}
		}
		if err := f.m.CopyPath(srcPathFor(destPath), f.srcLOD, f.destLOD, chosen); err != nil {
			return err
		}
		f.copiedFrom[destPath] = chosen

		// After a copy, delete every entry at the destination that isn't
		// in the symbol's expected entry set at this node.
		entries, _ := f.currentEntries(destPath)
		expected := expectedEntries(n)
		for _, e := range entries {
			if !expected[e] {
				if err := f.m.DeletePath(f.destLOD, joinPath(destPath, e), true); err != nil {
					return err
				}
			}
		}
	}

	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := f.descend(n.children[name], joinPath(destPath, name), chosen); err != nil {
			return err
		}
	}
	return nil
}

// fillFile handles a leaf: if the copy-from produced content this leaf
// doesn't own at its own best revnum, delete and re-copy it individually
// (spec §4.5 step 4).
func (f *Filler) fillFile(n *treeNode, destPath string, inherited int) error {
	best := bestRevnum(n, f.candidates, inherited)
	if best == inherited {
		return nil // the subtree copy already produced the right content
	}
	if err := f.m.DeletePath(f.destLOD, destPath, false); err != nil {
		return err
	}
	return f.m.CopyPath(srcPathFor(destPath), f.srcLOD, f.destLOD, best)
}

func (f *Filler) currentEntries(destPath string) ([]string, bool) {
	entries, err := f.m.GetCurrentDirectory(destPath, f.destLOD)
	if err != nil {
		return nil, false
	}
	return entries, true
}

// srcPathFor maps a destination path to its corresponding source path.
// The filling engine mirrors symbol membership path-for-path, so the
// source tree is addressed identically.
func srcPathFor(destPath string) string { return destPath }

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "/" + name
}
