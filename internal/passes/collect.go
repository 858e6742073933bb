// Package passes orchestrates P1..P8 from spec.md §2, threading an
// explicit *Context through each pass rather than relying on package-level
// state, generalizing how gitp4transfer threads *GitP4Transfer through
// GitParse/validateCommit/processCommit in its main loop.
package passes

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/paulyc/cvs2svn/internal/cvsreader"
	"github.com/paulyc/cvs2svn/internal/meta"
)

// CollectResult is P1's output: every CVSFile and CVSRevision discovered
// under a CVS root, plus the symbol table assembled while walking them.
type CollectResult struct {
	Files     []*meta.CVSFile
	Revisions []*meta.CVSRevision
	Symbols   []*meta.Symbol

	// Metadata carries the author/log text each revision's Digest was
	// computed from, keyed by revision id, for emission to use as SVN
	// revision properties (spec §4.7 step 2). It is not part of the dense
	// revision record itself because nothing before P8 needs it.
	Metadata map[meta.RevisionID]meta.MetadataRecord

	// Deltatext carries each revision's raw RCS deltatext exactly as
	// stored in its ",v" file: the full text for a trunk tip, a reverse
	// ed-script for every other trunk revision, or a forward ed-script for
	// a branch revision. BuildDeltaRecords turns this into the delta
	// store's uniform forward-diff/full-text records.
	Deltatext map[meta.RevisionID]string
}

// fileVisitor implements cvsreader.Visitor, recording the raw facts one
// RCS file reports without interpreting any CVS-level semantics — that
// interpretation (branch numbering, predecessor/successor, operation
// inference) belongs to assembleFile, in scope for this pass per spec §6
// (the parser itself is an external collaborator; what P1 does with its
// callbacks is not).
type fileVisitor struct {
	principalBranch string
	expansion       string

	tags     map[string]string
	tagOrder []string

	revs     map[string]*rawRevision
	revOrder []string

	firstErr error
}

type rawRevision struct {
	number    string
	timestamp time.Time
	author    string
	state     string
	branches  []string
	next      string
	log       string
	text      string
}

func newFileVisitor() *fileVisitor {
	return &fileVisitor{
		tags: make(map[string]string),
		revs: make(map[string]*rawRevision),
	}
}

func (v *fileVisitor) SetPrincipalBranch(num string) { v.principalBranch = num }
func (v *fileVisitor) SetExpansion(mode string)      { v.expansion = mode }

func (v *fileVisitor) DefineTag(name, revisionNumber string) {
	if _, ok := v.tags[name]; !ok {
		v.tagOrder = append(v.tagOrder, name)
	}
	v.tags[name] = revisionNumber
}

func (v *fileVisitor) DefineRevision(rev string, timestamp time.Time, author, state string, branches []string, next string) {
	v.revOrder = append(v.revOrder, rev)
	v.revs[rev] = &rawRevision{
		number:    rev,
		timestamp: timestamp,
		author:    author,
		state:     state,
		branches:  branches,
		next:      next,
	}
}

func (v *fileVisitor) TreeCompleted() {}

func (v *fileVisitor) SetRevisionInfo(rev, log, text string) {
	r, ok := v.revs[rev]
	if !ok {
		if v.firstErr == nil {
			v.firstErr = fmt.Errorf("revision %s has log/text but no admin entry", rev)
		}
		return
	}
	r.log = log
	r.text = text
}

// splitRevision splits a dotted RCS revision number into its components.
func splitRevision(num string) []string {
	if num == "" {
		return nil
	}
	return strings.Split(num, ".")
}

func isTrunkRevision(parts []string) bool { return len(parts) == 2 }

// isMagicBranchTag reports whether parts is RCS's "a.b.0.d" magic-branch
// encoding, used only in the "symbols" header field.
func isMagicBranchTag(parts []string) bool {
	return len(parts) >= 2 && parts[len(parts)-2] == "0"
}

// realBranchNumber converts a magic-branch-tag's parts ("1.2.0.4") into
// the actual branch number ("1.2.4") that its member revisions' numbers
// are prefixed with.
func realBranchNumber(parts []string) string {
	prefix := parts[:len(parts)-2]
	last := parts[len(parts)-1]
	full := make([]string, 0, len(prefix)+1)
	full = append(full, prefix...)
	full = append(full, last)
	return strings.Join(full, ".")
}

// branchNumberOfRevision returns the branch number a revision belongs to:
// its own number with the final component dropped.
func branchNumberOfRevision(parts []string) string {
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[:len(parts)-1], ".")
}

// Collect runs P1: it walks root for RCS master files, parses each one,
// and assembles the CVSFile/CVSRevision/Symbol records spec.md §3
// describes. Per-file parse errors are accumulated rather than raised
// immediately (spec §7); Collect returns a single combined error only
// after the whole tree has been walked.
func Collect(root string, logger *logrus.Logger) (*CollectResult, error) {
	symtab := NewSymbolTable()
	var (
		files     []*meta.CVSFile
		revisions []*meta.CVSRevision
		fileID    meta.FileID
		revID     meta.RevisionID
		parseErrs []error
	)
	metadata := make(map[meta.RevisionID]meta.MetadataRecord)
	deltatext := make(map[meta.RevisionID]string)

	err := cvsreader.Walk(root, func(path string) error {
		v := newFileVisitor()
		if perr := cvsreader.ParseFile(path, v); perr != nil {
			parseErrs = append(parseErrs, perr)
			return nil
		}
		if v.firstErr != nil {
			parseErrs = append(parseErrs, fmt.Errorf("%s: %w", path, v.firstErr))
			return nil
		}
		fileID++
		relPath, inAttic := relativeCVSPath(root, path)
		executable := isExecutable(path)
		cf, revs, aerr := assembleFile(relPath, inAttic, executable, v, fileID, &revID, symtab)
		if aerr != nil {
			parseErrs = append(parseErrs, fmt.Errorf("%s: %w", path, aerr))
			return nil
		}
		files = append(files, cf)
		revisions = append(revisions, revs...)
		for _, cr := range revs {
			raw := v.revs[cr.Number]
			metadata[cr.ID] = meta.MetadataRecord{Author: raw.author, Log: raw.log}
			deltatext[cr.ID] = raw.text
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("passes: P1 collect: %w", err)
	}
	if len(parseErrs) > 0 {
		logger.Errorf("P1 collect: %d file(s) failed to parse", len(parseErrs))
		for _, e := range parseErrs {
			logger.Errorf("  %v", e)
		}
		return nil, fmt.Errorf("passes: P1 collect: %d file(s) failed to parse, first error: %w", len(parseErrs), parseErrs[0])
	}

	return &CollectResult{Files: files, Revisions: revisions, Symbols: symtab.Symbols(), Metadata: metadata, Deltatext: deltatext}, nil
}

// relativeCVSPath turns an absolute RCS file path into a repository-
// relative path with the ",v" suffix and any "Attic" path component
// stripped, reporting whether the file was found in an Attic directory
// (a CVS convention for dead/deleted files).
func relativeCVSPath(root, path string) (relPath string, inAttic bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	rel = strings.TrimSuffix(rel, ",v")
	rel = filepath.ToSlash(rel)
	segs := strings.Split(rel, "/")
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		if s == "Attic" {
			inAttic = true
			continue
		}
		out = append(out, s)
	}
	return strings.Join(out, "/"), inAttic
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&0o111 != 0
}

// assembleFile turns one parsed RCS file's raw facts into a CVSFile and
// its CVSRevisions, registering every tag/branch name it declares in
// symtab. This is where CVS-level semantics live: branch numbering,
// predecessor/successor linking and add/change/delete inference that the
// RCS parser itself (an external collaborator per spec §6) never computes.
func assembleFile(relPath string, inAttic, executable bool, v *fileVisitor, fileID meta.FileID, revID *meta.RevisionID, symtab *SymbolTable) (*meta.CVSFile, []*meta.CVSRevision, error) {
	branchNumToSymbol := make(map[string]meta.SymbolID)
	tagRevToSymbols := make(map[string][]meta.SymbolID)

	for _, name := range v.tagOrder {
		raw := v.tags[name]
		parts := splitRevision(raw)
		if isMagicBranchTag(parts) {
			id, err := symtab.Resolve(name, meta.KindBranch)
			if err != nil {
				return nil, nil, err
			}
			branchNumToSymbol[realBranchNumber(parts)] = id
			continue
		}
		id, err := symtab.Resolve(name, meta.KindTag)
		if err != nil {
			return nil, nil, err
		}
		tagRevToSymbols[raw] = append(tagRevToSymbols[raw], id)
	}

	// branchOf resolves (creating if necessary) the symbol owning the
	// branch whose number is bnum. A branch with no "symbols" tag
	// declaring it is not valid RCS, but malformed or hand-edited ,v
	// files do occur in the wild; synthesizing a name keeps the file
	// importable instead of aborting the whole run over it.
	branchOf := func(bnum string) (meta.SymbolID, error) {
		if id, ok := branchNumToSymbol[bnum]; ok {
			return id, nil
		}
		id, err := symtab.Resolve(relPath+"@unlabeled-branch-"+bnum, meta.KindBranch)
		if err != nil {
			return 0, err
		}
		branchNumToSymbol[bnum] = id
		return id, nil
	}

	// The RCS header's "branch" field (captured by SetPrincipalBranch) names
	// this file's default branch by branch number, in the same format
	// branchOf resolves revision branch-numbers against — it is not a
	// revision number, so it is resolved once here rather than alongside
	// the per-revision LOD assignment below.
	defaultBranch := meta.NoBranch
	if v.principalBranch != "" {
		id, err := branchOf(v.principalBranch)
		if err != nil {
			return nil, nil, err
		}
		defaultBranch = id
	}

	numberToID := make(map[string]meta.RevisionID, len(v.revOrder))
	revByID := make(map[meta.RevisionID]*meta.CVSRevision, len(v.revOrder))
	revByNumber := make(map[string]*meta.CVSRevision, len(v.revOrder))

	for _, num := range v.revOrder {
		raw := v.revs[num]
		*revID++
		id := *revID
		numberToID[num] = id
		cr := &meta.CVSRevision{
			ID:             id,
			FileID:         fileID,
			Number:         num,
			Timestamp:      raw.timestamp.Unix(),
			DeltatextEmpty: raw.text == "",
			Predecessor:    meta.NoRevision,
			Successor:      meta.NoRevision,
			Digest:         digestOf(raw.author, raw.log),
		}
		revByID[id] = cr
		revByNumber[num] = cr
	}

	for _, num := range v.revOrder {
		raw := v.revs[num]
		cr := revByNumber[num]
		parts := splitRevision(num)
		if isTrunkRevision(parts) {
			cr.LOD = meta.TrunkLOD
		} else {
			bnum := branchNumberOfRevision(parts)
			lod, err := branchOf(bnum)
			if err != nil {
				return nil, nil, err
			}
			cr.LOD = lod
		}
		for _, sid := range tagRevToSymbols[num] {
			cr.TagRoots = append(cr.TagRoots, sid)
			symtab.AddSource(sid, fileID, cr.ID)
		}
	}

	// Predecessor/successor linking. Trunk's "next" field points toward
	// the chronologically older revision; a branch's "next" field points
	// toward the chronologically newer one. This asymmetry is real RCS
	// behavior, not an arbitrary choice.
	for _, num := range v.revOrder {
		raw := v.revs[num]
		cr := revByNumber[num]
		parts := splitRevision(num)
		if raw.next == "" {
			continue
		}
		nextID, ok := numberToID[raw.next]
		if !ok {
			return nil, nil, fmt.Errorf("revision %s: next %q not found", num, raw.next)
		}
		if isTrunkRevision(parts) {
			cr.Predecessor = nextID
			revByID[nextID].Successor = cr.ID
		} else {
			cr.Successor = nextID
			revByID[nextID].Predecessor = cr.ID
		}
	}

	// Branch-root linking: for every revision R, each entry in its raw
	// "branches" list names the first revision of a branch rooted at R.
	for _, num := range v.revOrder {
		raw := v.revs[num]
		cr := revByNumber[num]
		for _, childNum := range raw.branches {
			childID, ok := numberToID[childNum]
			if !ok {
				return nil, nil, fmt.Errorf("revision %s: branch child %q not found", num, childNum)
			}
			childParts := splitRevision(childNum)
			bnum := branchNumberOfRevision(childParts)
			sid, err := branchOf(bnum)
			if err != nil {
				return nil, nil, err
			}
			cr.BranchRoots = append(cr.BranchRoots, sid)
			symtab.AddSource(sid, fileID, cr.ID)
			revByID[childID].Predecessor = cr.ID
		}
	}

	revisions := make([]*meta.CVSRevision, 0, len(v.revOrder))
	for _, num := range v.revOrder {
		cr := revByNumber[num]
		raw := v.revs[num]
		switch {
		case raw.state == "dead":
			cr.Op = meta.OpDelete
		case cr.Predecessor == meta.NoRevision:
			cr.Op = meta.OpAdd
		default:
			cr.Op = meta.OpChange
		}
		parts := splitRevision(num)
		cr.FirstOnBranch = isTrunkRevision(parts) && num == "1.1" && raw.state == "dead" &&
			cr.Predecessor == meta.NoRevision && len(raw.branches) > 0
		if err := cr.Validate(); err != nil {
			return nil, nil, err
		}
		revisions = append(revisions, cr)
	}

	cf := &meta.CVSFile{
		ID:            fileID,
		Path:          relPath,
		InAttic:       inAttic,
		Expansion:     v.expansion,
		Executable:    executable,
		DefaultBranch: defaultBranch,
	}
	return cf, revisions, nil
}

func digestOf(author, log string) meta.Digest {
	return meta.Digest(md5.Sum([]byte(author + "\x00" + log)))
}
