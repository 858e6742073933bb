// Package delta implements spec.md §4.6: the on-disk delta store and the
// in-memory reference-counted checkout engine that reconstructs full text
// for one CVSRevision at a time. The refcounted-cache lifecycle is
// grounded on GitBlob/BlobFileMatcher's reference-counted blob handling
// and SaveBlob's compress-then-write pattern, generalized from "compress
// once, write once" to "apply one RCS diff, refcounted across the LOD
// tree".
package delta

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"

	"github.com/h2non/filetype"

	"github.com/paulyc/cvs2svn/internal/meta"
)

// Rev is one node of a file's reconstruction tree (spec §4.6's FileTree).
type Rev struct {
	Prev     meta.RevisionID // -1 for a LOD root
	Refcount int             // live descendants not yet materialized
}

// FileTree is the per-file reconstruction tree built from lod_trees: one
// ordered revision list per LOD, flattened into a single prev/refcount
// map (spec §4.6's "FileTree construction").
type FileTree struct {
	revs map[meta.RevisionID]*Rev
}

// BuildFileTree constructs a FileTree from every LOD's ordered revision
// list for one file. prevOf must return the revision whose full text a
// given revision derives from: its predecessor on the same LOD, or the
// branch-sprout revision for a branch's first revision; meta.NoRevision
// for a LOD root.
func BuildFileTree(lodOrder [][]meta.RevisionID, prevOf func(meta.RevisionID) meta.RevisionID) *FileTree {
	ft := &FileTree{revs: make(map[meta.RevisionID]*Rev)}
	for _, lod := range lodOrder {
		for _, id := range lod {
			prev := prevOf(id)
			ft.revs[id] = &Rev{Prev: prev}
		}
	}
	for id, r := range ft.revs {
		if r.Prev == meta.NoRevision {
			continue
		}
		if parent, ok := ft.revs[r.Prev]; ok {
			parent.Refcount++
		}
		_ = id
	}
	return ft
}

// DeltaSource resolves a CVSRevision's stored record: either its full
// text (LOD roots) or the forward-applying ed-script diff against Prev.
type DeltaSource interface {
	Load(id meta.RevisionID) (data []byte, isFullText bool, err error)
}

// Engine is the single-threaded checkout engine used during emission
// (spec §4.6's "checkout(cvs_rev, suppress_keywords?)"). It is not safe
// for concurrent use: the emission pipeline is single-threaded per
// pass (spec §5).
type Engine struct {
	store DeltaStoreWithTrees
	cache map[meta.RevisionID][]byte
}

// DeltaStoreWithTrees combines delta lookup with the per-file trees the
// engine needs to know refcounts and parentage.
type DeltaStoreWithTrees interface {
	DeltaSource
	TreeFor(fileID meta.FileID) *FileTree
}

// NewEngine creates a checkout engine backed by store.
func NewEngine(store DeltaStoreWithTrees) *Engine {
	return &Engine{store: store, cache: make(map[meta.RevisionID][]byte)}
}

// Checkout reconstructs the full text of rev within fileID's tree, per
// spec §4.6 steps 1-6.
func (e *Engine) Checkout(fileID meta.FileID, rev meta.RevisionID, suppressKeywords bool) ([]byte, error) {
	text, err := e.checkout(fileID, rev, false)
	if err != nil {
		return nil, err
	}
	if suppressKeywords {
		text = stripKeywords(text)
	}
	return text, nil
}

// Skip drives the refcount for a revision the emitter will never need the
// content of, without returning it, per spec §4.6's contract.
func (e *Engine) Skip(fileID meta.FileID, rev meta.RevisionID) error {
	_, err := e.checkout(fileID, rev, true)
	return err
}

func (e *Engine) checkout(fileID meta.FileID, rev meta.RevisionID, skip bool) ([]byte, error) {
	tree := e.store.TreeFor(fileID)
	if tree == nil {
		return nil, fmt.Errorf("delta: no file tree for file %d", fileID)
	}
	node, ok := tree.revs[rev]
	if !ok {
		return nil, fmt.Errorf("delta: revision %d not in file %d's tree", rev, fileID)
	}

	data, isFullText, err := e.store.Load(rev)
	if err != nil {
		return nil, fmt.Errorf("delta: load revision %d: %w", rev, err)
	}

	var text []byte
	if node.Prev == meta.NoRevision || isFullText {
		text = data
	} else {
		prevText, cached := e.cache[node.Prev]
		if !cached {
			prevText, err = e.checkout(fileID, node.Prev, true)
			if err != nil {
				return nil, err
			}
		}
		text, err = ApplyEdScript(prevText, data)
		if err != nil {
			return nil, fmt.Errorf("delta: apply diff for revision %d: %w", rev, err)
		}
		if !skip {
			if prevNode, ok := tree.revs[node.Prev]; ok {
				prevNode.Refcount--
				if prevNode.Refcount <= 0 {
					delete(e.cache, node.Prev)
				}
			}
		}
	}

	if node.Refcount > 0 {
		e.cache[rev] = text
	}
	return text, nil
}

// keywordRE matches RCS keyword substitutions such as "$Id: foo,v 1.2 ...$".
var keywordRE = regexp.MustCompile(`\$(Author|Date|Header|Id|Locker|Log|Name|RCSfile|Revision|Source|State):[^$]*\$`)

// stripKeywords implements the RCS-keyword substitution-stripper from
// spec §4.6 step 6: each "$Keyword:…$" collapses to "$Keyword$".
func stripKeywords(text []byte) []byte {
	return keywordRE.ReplaceAllFunc(text, func(m []byte) []byte {
		name := bytes.SplitN(m, []byte(":"), 2)[0]
		return append(append([]byte{}, name...), '$')
	})
}

// ApplyEdScript applies an RCS forward ed-script diff to base. Lines
// "aN M" are followed by M literal lines to insert after line N; lines
// "dN M" delete M lines starting at line N (1-indexed against base as it
// stood before this script began applying).
func ApplyEdScript(base []byte, script []byte) ([]byte, error) {
	baseLines := splitLines(base)
	sc := bufio.NewScanner(bytes.NewReader(script))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var out []string
	out = append(out, baseLines...)
	offset := 0 // accumulated shift from earlier edits, applied to 1-indexed line numbers

	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		var op byte
		var n, m int
		if _, err := fmt.Sscanf(line, "%c%d %d", &op, &n, &m); err != nil {
			return nil, fmt.Errorf("delta: malformed ed-script command %q: %w", line, err)
		}
		switch op {
		case 'a':
			insertAt := n + offset
			added := make([]string, 0, m)
			for i := 0; i < m; i++ {
				if !sc.Scan() {
					return nil, fmt.Errorf("delta: ed-script truncated after 'a%d %d'", n, m)
				}
				added = append(added, sc.Text())
			}
			if insertAt > len(out) {
				insertAt = len(out)
			}
			out = append(out[:insertAt], append(added, out[insertAt:]...)...)
			offset += m
		case 'd':
			start := n - 1 + offset
			if start < 0 || start+m > len(out) {
				return nil, fmt.Errorf("delta: ed-script delete range out of bounds: d%d %d", n, m)
			}
			out = append(out[:start], out[start+m:]...)
			offset -= m
		default:
			return nil, fmt.Errorf("delta: unknown ed-script op %q", string(op))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return []byte(joinLines(out)), nil
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	s := string(data)
	trimmed := false
	if len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
		trimmed = true
	}
	lines := splitOnNewline(s)
	_ = trimmed
	return lines
}

func splitOnNewline(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	var b bytes.Buffer
	for i, l := range lines {
		b.WriteString(l)
		if i != len(lines)-1 {
			b.WriteByte('\n')
		}
	}
	b.WriteByte('\n')
	return b.String()
}

// SniffIsBinary uses the same content-sniffing family as the teacher's
// blob matcher (filetype.Match) to decide whether a reconstructed full
// text should be treated as binary for keyword-suppression purposes.
func SniffIsBinary(data []byte) bool {
	kind, err := filetype.Match(data)
	if err != nil {
		return false
	}
	return kind != filetype.Unknown
}
