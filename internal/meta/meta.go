// Package meta holds the dense-id data model described in spec.md §3:
// CVSFile, CVSRevision, Symbol and the author+log metadata record they
// reference by digest.
package meta

import "fmt"

// FileID identifies a CVSFile.
type FileID int

// RevisionID identifies a CVSRevision.
type RevisionID int

// SymbolID identifies a Symbol (branch or tag).
type SymbolID int

// Digest is a fixed-width hash of (author, log message), used as the key
// into the metadata table and as the primary grouping key for changeset
// formation.
type Digest [16]byte

// Operation is the action a CVSRevision performs.
type Operation int

const (
	OpAdd Operation = iota
	OpChange
	OpDelete
	OpNoop
)

func (o Operation) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpChange:
		return "change"
	case OpDelete:
		return "delete"
	case OpNoop:
		return "noop"
	default:
		return fmt.Sprintf("Operation(%d)", int(o))
	}
}

// SymbolKind distinguishes a branch from a tag.
type SymbolKind int

const (
	KindBranch SymbolKind = iota
	KindTag
)

func (k SymbolKind) String() string {
	if k == KindBranch {
		return "branch"
	}
	return "tag"
}

// TrunkLOD is the sentinel line-of-development id for trunk. Every other
// LOD is a SymbolID of kind KindBranch.
const TrunkLOD SymbolID = -1

// NoBranch is the sentinel SymbolID meaning "this file declares no RCS
// default branch" (the ",v" header's "branch" field was empty). Distinct
// from both TrunkLOD and every real SymbolID, which are assigned starting
// at 1.
const NoBranch SymbolID = 0

// CVSFile is an immutable record identified by a dense integer id.
type CVSFile struct {
	ID         FileID
	Path       string // repository-relative, ",v" stripped
	InAttic    bool
	Expansion  string // "kb", "kkv", ... as declared in the RCS header
	Executable bool

	// DefaultBranch is the branch symbol named by the RCS header's
	// "branch" field, or NoBranch if the file has none. A file with a
	// default branch needs each of its commits on that branch mirrored
	// onto trunk immediately afterward (spec.md §4.7's post-commit
	// revision, §2 P1's "default-branch table").
	DefaultBranch SymbolID
}

// CVSRevision is one revision of one CVSFile.
type CVSRevision struct {
	ID     RevisionID
	FileID FileID

	Number string // dotted RCS revision number, e.g. "1.2.4.1"
	LOD    SymbolID

	Op        Operation
	Timestamp int64 // seconds since epoch; monotone on its LOD after P2
	Digest    Digest

	DeltatextEmpty bool

	Predecessor RevisionID // on same LOD; -1 at start
	Successor   RevisionID // on same LOD; -1 at end

	BranchRoots []SymbolID // branches rooted at this revision
	TagRoots    []SymbolID // tags rooted at this revision

	FirstOnBranch bool // synthesized "dead" 1.x revision for add-on-branch
}

// NoRevision is the sentinel RevisionID meaning "no such revision".
const NoRevision RevisionID = -1

// MetadataRecord is the (author, log message) pair a Digest resolves to.
// Bytes are kept verbatim; encoding conversion happens only at emit time.
type MetadataRecord struct {
	Author string
	Log    string
}

// SymbolSource is one (file, revision) pair a symbol was sprouted from in CVS.
type SymbolSource struct {
	FileID     FileID
	RevisionID RevisionID
}

// Symbol is a CVS branch or tag.
type Symbol struct {
	ID      SymbolID
	Name    string
	Kind    SymbolKind
	Sources []SymbolSource
}

// Validate checks the invariants from spec.md §3 that are local to a single
// revision (cross-revision invariants, e.g. "exactly one trunk root per
// file", are checked by the pass that assembles the full revision set).
func (r *CVSRevision) Validate() error {
	for _, b := range r.BranchRoots {
		for _, t := range r.TagRoots {
			if b == t {
				return fmt.Errorf("revision %d: symbol %d is both a branch-root and a tag-root", r.ID, b)
			}
		}
	}
	return nil
}
