// Package mirror implements spec.md §4.4: an immutable, copy-on-write
// directory tree that mirrors the structure (not content) of the target
// Subversion repository, one snapshot per revision per line of
// development. The recursive-descent-by-path-segment style is grounded on
// node.Node's AddSubFile/DeleteSubFile/GetFiles/FindFile, generalized from
// one mutable tree per git branch into many immutable trees sharing
// structure via copy-on-write.
package mirror

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paulyc/cvs2svn/internal/meta"
)

// PathExistsError is raised by add_path/copy_path/copy_lod when the
// destination is already occupied.
type PathExistsError struct{ Path string }

func (e *PathExistsError) Error() string { return fmt.Sprintf("mirror: path already exists: %q", e.Path) }

// ParentMissingError is raised when an operation's parent directory does
// not exist.
type ParentMissingError struct{ Path string }

func (e *ParentMissingError) Error() string {
	return fmt.Sprintf("mirror: parent directory missing for: %q", e.Path)
}

// node is one directory-tree node. Once persisted (outside an open
// start_commit/end_commit window) a node is never mutated again; any
// change clones the node and its ancestors up to the LOD root
// (copy-on-write), per spec §4.4's invariant.
type node struct {
	name     string
	isFile   bool
	fileID   meta.FileID // valid when isFile
	children map[string]*node
}

func newDirNode(name string) *node {
	return &node{name: name, children: make(map[string]*node)}
}

func (n *node) clone() *node {
	cp := &node{name: n.name, isFile: n.isFile, fileID: n.fileID}
	if n.children != nil {
		cp.children = make(map[string]*node, len(n.children))
		for k, v := range n.children {
			cp.children[k] = v
		}
	}
	return cp
}

// lodState is one LOD's current (possibly in-progress) tree root, plus the
// history of its root per published revision for LODHistory lookups.
type lodState struct {
	name    string
	root    *node
	history []revRoot // sorted by revnum, append-only
}

type revRoot struct {
	revnum int
	root   *node
}

// Mirror is the repository-wide copy-on-write tree store.
type Mirror struct {
	projectTop map[string]bool // trunk/branches/tags-equivalent dirs, never pruned
	lods       map[meta.SymbolID]*lodState
	trunkName  string

	inCommit    bool
	currentRev  int
	dirty       map[meta.SymbolID]bool // LODs touched in the open commit
}

// New creates a Mirror. trunkName, branchesPrefix and tagsPrefix name the
// top-level project directories that are never pruned.
func New(trunkName string) *Mirror {
	return &Mirror{
		projectTop: map[string]bool{trunkName: true},
		lods:       make(map[meta.SymbolID]*lodState),
		trunkName:  trunkName,
		currentRev: -1,
	}
}

// RegisterLOD establishes a new line of development rooted at an empty
// directory, e.g. when a branch's root directory is first created.
func (m *Mirror) RegisterLOD(lod meta.SymbolID, path string) {
	m.lods[lod] = &lodState{name: path, root: newDirNode(path)}
	m.projectTop[path] = true
}

// StartCommit opens a new writable youngest revision; the prior revision's
// snapshot carries forward as the starting point for mutation.
func (m *Mirror) StartCommit(revnum int) error {
	if m.inCommit {
		return fmt.Errorf("mirror: StartCommit called while a commit is already open")
	}
	m.inCommit = true
	m.currentRev = revnum
	m.dirty = make(map[meta.SymbolID]bool)
	return nil
}

// EndCommit freezes the open revision: every LOD touched during the
// commit gets a new history entry recording its (possibly cloned) root.
func (m *Mirror) EndCommit() error {
	if !m.inCommit {
		return fmt.Errorf("mirror: EndCommit called with no open commit")
	}
	for lod := range m.dirty {
		st := m.lods[lod]
		st.history = append(st.history, revRoot{revnum: m.currentRev, root: st.root})
	}
	m.inCommit = false
	m.dirty = nil
	return nil
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

// AddPath creates a file leaf at path within lod, auto-creating parent
// directories via copy-on-write clones threaded up to the LOD root.
func (m *Mirror) AddPath(lod meta.SymbolID, path string, fileID meta.FileID) error {
	st, err := m.requireLOD(lod)
	if err != nil {
		return err
	}
	segs := splitPath(path)
	newRoot, err := addSegs(st.root.clone(), segs, fileID)
	if err != nil {
		return err
	}
	st.root = newRoot
	m.dirty[lod] = true
	return nil
}

func addSegs(n *node, segs []string, fileID meta.FileID) (*node, error) {
	if len(segs) == 1 {
		if _, exists := n.children[segs[0]]; exists {
			return nil, &PathExistsError{Path: segs[0]}
		}
		n.children[segs[0]] = &node{name: segs[0], isFile: true, fileID: fileID}
		return n, nil
	}
	child, exists := n.children[segs[0]]
	if !exists {
		child = newDirNode(segs[0])
	} else {
		child = child.clone()
	}
	newChild, err := addSegs(child, segs[1:], fileID)
	if err != nil {
		return nil, err
	}
	n.children[segs[0]] = newChild
	return n, nil
}

// ChangePath registers a content change for observability; the mirror
// itself is content-free so this only validates the path exists.
func (m *Mirror) ChangePath(lod meta.SymbolID, path string) error {
	st, err := m.requireLOD(lod)
	if err != nil {
		return err
	}
	if n := lookup(st.root, splitPath(path)); n == nil {
		return &ParentMissingError{Path: path}
	}
	m.dirty[lod] = true
	return nil
}

// DeletePath removes path from lod. If prune is set and the resulting
// parent directory is empty and is not a project top-level directory, the
// parent is removed too, recursively.
func (m *Mirror) DeletePath(lod meta.SymbolID, path string, prune bool) error {
	st, err := m.requireLOD(lod)
	if err != nil {
		return err
	}
	segs := splitPath(path)
	newRoot, err := deleteSegs(st.root.clone(), segs, prune, m.projectTop)
	if err != nil {
		return err
	}
	st.root = newRoot
	m.dirty[lod] = true
	return nil
}

func deleteSegs(n *node, segs []string, prune bool, top map[string]bool) (*node, error) {
	if len(segs) == 1 {
		if _, exists := n.children[segs[0]]; !exists {
			return nil, &ParentMissingError{Path: segs[0]}
		}
		delete(n.children, segs[0])
		return n, nil
	}
	child, exists := n.children[segs[0]]
	if !exists {
		return nil, &ParentMissingError{Path: segs[0]}
	}
	clonedChild := child.clone()
	newChild, err := deleteSegs(clonedChild, segs[1:], prune, top)
	if err != nil {
		return nil, err
	}
	if prune && len(newChild.children) == 0 && !top[newChild.name] {
		delete(n.children, segs[0])
	} else {
		n.children[segs[0]] = newChild
	}
	return n, nil
}

// CopyLOD performs a deep-structural copy of an entire LOD's tree at
// srcRevnum into dest; cheap, since it only shares the existing node
// pointers rather than deep-copying file content.
func (m *Mirror) CopyLOD(srcLOD, destLOD meta.SymbolID, srcRevnum int) error {
	srcState, ok := m.lods[srcLOD]
	if !ok {
		return fmt.Errorf("mirror: unknown source LOD %v", srcLOD)
	}
	root, err := lodRootAt(srcState, srcRevnum)
	if err != nil {
		return err
	}
	m.lods[destLOD] = &lodState{name: srcState.name, root: root}
	m.dirty[destLOD] = true
	return nil
}

// CopyPath copies one subpath from srcLOD at srcRevnum into the current
// tree of destLOD at the same path.
func (m *Mirror) CopyPath(path string, srcLOD, destLOD meta.SymbolID, srcRevnum int) error {
	srcState, ok := m.lods[srcLOD]
	if !ok {
		return fmt.Errorf("mirror: unknown source LOD %v", srcLOD)
	}
	srcRoot, err := lodRootAt(srcState, srcRevnum)
	if err != nil {
		return err
	}
	segs := splitPath(path)
	srcNode := lookup(srcRoot, segs)
	if srcNode == nil {
		return &ParentMissingError{Path: path}
	}
	destState, err := m.requireLOD(destLOD)
	if err != nil {
		return err
	}
	newRoot, err := copySegs(destState.root.clone(), segs, srcNode)
	if err != nil {
		return err
	}
	destState.root = newRoot
	m.dirty[destLOD] = true
	return nil
}

func copySegs(n *node, segs []string, src *node) (*node, error) {
	if len(segs) == 1 {
		if _, exists := n.children[segs[0]]; exists {
			return nil, &PathExistsError{Path: segs[0]}
		}
		n.children[segs[0]] = src
		return n, nil
	}
	child, exists := n.children[segs[0]]
	if !exists {
		child = newDirNode(segs[0])
	} else {
		child = child.clone()
	}
	newChild, err := copySegs(child, segs[1:], src)
	if err != nil {
		return nil, err
	}
	n.children[segs[0]] = newChild
	return n, nil
}

// GetCurrentDirectory returns the sorted child names of cvsDir in lod's
// in-progress (or latest published) tree.
func (m *Mirror) GetCurrentDirectory(cvsDir string, lod meta.SymbolID) ([]string, error) {
	st, err := m.requireLOD(lod)
	if err != nil {
		return nil, err
	}
	return listDir(st.root, splitPath(cvsDir))
}

// GetOldDirectory returns the sorted child names of cvsDir in lod's tree
// as of revnum, via LODHistory binary search.
func (m *Mirror) GetOldDirectory(cvsDir string, lod meta.SymbolID, revnum int) ([]string, error) {
	st, ok := m.lods[lod]
	if !ok {
		return nil, fmt.Errorf("mirror: unknown LOD %v", lod)
	}
	root, err := lodRootAt(st, revnum)
	if err != nil {
		return nil, err
	}
	return listDir(root, splitPath(cvsDir))
}

func listDir(root *node, segs []string) ([]string, error) {
	n := lookup(root, segs)
	if n == nil || n.isFile {
		return nil, &ParentMissingError{Path: strings.Join(segs, "/")}
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func lookup(n *node, segs []string) *node {
	if len(segs) == 0 || (len(segs) == 1 && segs[0] == "") {
		return n
	}
	child, ok := n.children[segs[0]]
	if !ok {
		return nil
	}
	if len(segs) == 1 {
		return child
	}
	return lookup(child, segs[1:])
}

// lodRootAt performs binary search over the LOD's append-only, revnum-sorted
// history to find the root as of the given revision (the latest published
// revision <= revnum), per spec §4.4's LODHistory lookup.
func lodRootAt(st *lodState, revnum int) (*node, error) {
	h := st.history
	i := sort.Search(len(h), func(i int) bool { return h[i].revnum > revnum })
	if i == 0 {
		return nil, fmt.Errorf("mirror: LOD %q has no published revision <= %d", st.name, revnum)
	}
	return h[i-1].root, nil
}

func (m *Mirror) requireLOD(lod meta.SymbolID) (*lodState, error) {
	if !m.inCommit {
		return nil, fmt.Errorf("mirror: operation requires an open commit (call StartCommit)")
	}
	st, ok := m.lods[lod]
	if !ok {
		return nil, fmt.Errorf("mirror: unknown LOD %v", lod)
	}
	return st, nil
}
