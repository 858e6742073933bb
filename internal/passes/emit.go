package passes

import (
	"fmt"
	"sort"
	"time"

	"github.com/paulyc/cvs2svn/internal/changeset"
	"github.com/paulyc/cvs2svn/internal/config"
	"github.com/paulyc/cvs2svn/internal/delta"
	"github.com/paulyc/cvs2svn/internal/dumpfile"
	"github.com/paulyc/cvs2svn/internal/meta"
	"github.com/paulyc/cvs2svn/internal/mirror"
	"github.com/paulyc/cvs2svn/internal/schedule"
	"github.com/paulyc/cvs2svn/internal/symfill"
)

// dualMirror drives both the in-memory mirror.Mirror (so later symbol
// fills can still query tree shape) and the wire-format dumpfile.Delegate
// in lockstep, translating the LOD-relative paths symfill.Filler works in
// terms of into the full repository paths the delegate expects. Reads
// (GetCurrentDirectory) only need the in-memory side: there is no wire
// equivalent of "list a directory".
type dualMirror struct {
	m        *mirror.Mirror
	delegate dumpfile.Delegate
	lodPath  map[meta.SymbolID]string
}

func (d *dualMirror) fullPath(lod meta.SymbolID, relPath string) string {
	prefix := d.lodPath[lod]
	if relPath == "" {
		return prefix
	}
	return prefix + "/" + relPath
}

func (d *dualMirror) CopyPath(path string, srcLOD, destLOD meta.SymbolID, srcRevnum int) error {
	if err := d.m.CopyPath(path, srcLOD, destLOD, srcRevnum); err != nil {
		return err
	}
	return d.delegate.CopyPath(d.fullPath(srcLOD, path), d.fullPath(destLOD, path), srcRevnum)
}

func (d *dualMirror) DeletePath(lod meta.SymbolID, path string, prune bool) error {
	if err := d.m.DeletePath(lod, path, prune); err != nil {
		return err
	}
	return d.delegate.DeletePath(d.fullPath(lod, path))
}

func (d *dualMirror) GetCurrentDirectory(cvsDir string, lod meta.SymbolID) ([]string, error) {
	return d.m.GetCurrentDirectory(cvsDir, lod)
}

// svnDateFormat is the dumpfile format's svn:date property layout.
const svnDateFormat = "2006-01-02T15:04:05.000000Z"

// Emit runs the combined P7/P8 pass: it walks the scheduled changesets,
// materializing each revision changeset's file adds/changes/deletes
// against both the mirror and the delegate, and filling each symbol
// changeset's branch/tag directory by the subtree-copy procedure in
// internal/symfill. P7 (spec §2's "symbolings") is not a separate walk
// here: it is derived from the same pass, per spec.md's own description
// of P7 as "what the emission stream reveals".
func Emit(delegate dumpfile.Delegate, cfg *config.Config, files []*meta.CVSFile, revisions []*meta.CVSRevision, symbols []*meta.Symbol, graph *changeset.Graph, entries []schedule.Entry, engine *delta.Engine, metadata map[meta.RevisionID]meta.MetadataRecord, lastSymbolSource LastSymbolSource) error {
	filesByID := make(map[meta.FileID]*meta.CVSFile, len(files))
	for _, f := range files {
		filesByID[f.ID] = f
	}
	revByID := make(map[meta.RevisionID]*meta.CVSRevision, len(revisions))
	for _, r := range revisions {
		revByID[r.ID] = r
	}
	symByID := make(map[meta.SymbolID]*meta.Symbol, len(symbols))
	for _, s := range symbols {
		symByID[s.ID] = s
	}

	lodPath := map[meta.SymbolID]string{meta.TrunkLOD: cfg.TrunkPath}
	for _, s := range symbols {
		switch s.Kind {
		case meta.KindBranch:
			lodPath[s.ID] = cfg.BranchesPath + "/" + s.Name
		case meta.KindTag:
			lodPath[s.ID] = cfg.TagsPath + "/" + s.Name
		}
	}

	m := mirror.New(cfg.TrunkPath)
	m.RegisterLOD(meta.TrunkLOD, cfg.TrunkPath)
	for _, s := range symbols {
		m.RegisterLOD(s.ID, lodPath[s.ID])
	}
	dm := &dualMirror{m: m, delegate: delegate, lodPath: lodPath}

	if err := m.StartCommit(1); err != nil {
		return err
	}
	if err := delegate.StartCommit(1, map[string]string{"svn:log": "Standard project directories initialized by cvs2svn."}); err != nil {
		return err
	}
	if err := delegate.Mkdir(cfg.TrunkPath); err != nil {
		return err
	}
	if cfg.BranchesPath != "" {
		if err := delegate.Mkdir(cfg.BranchesPath); err != nil {
			return err
		}
	}
	if cfg.TagsPath != "" {
		if err := delegate.Mkdir(cfg.TagsPath); err != nil {
			return err
		}
	}
	if err := m.EndCommit(); err != nil {
		return err
	}
	if err := delegate.EndCommit(); err != nil {
		return err
	}

	cvsRevToSVNRev := make(map[meta.RevisionID]int, len(revisions))
	lodInitialized := make(map[meta.SymbolID]bool, len(symbols))

	// nextRevnum and lastTimestamp are advanced by every emitted revision,
	// including the post-commit syncs inserted between schedule entries
	// (spec §4.7): the schedule only assigns one slot per changeset, so the
	// actual svn revnum/date sequence is tracked independently here rather
	// than read off entry.SVNRevnum/Timestamp directly.
	nextRevnum := 2 // revision 1 is the synthetic init commit
	var lastTimestamp int64 = -1 << 62

	for _, entry := range entries {
		cs, ok := graph.Changeset(entry.ChangesetID)
		if !ok {
			return fmt.Errorf("passes: P8 emit: schedule references unknown changeset %d", entry.ChangesetID)
		}
		revnum := nextRevnum
		nextRevnum++

		if cs.Kind == changeset.KindRevision {
			ts := entry.Timestamp
			if lastTimestamp+1 > ts {
				ts = lastTimestamp + 1
			}
			lastTimestamp = ts

			syncs, err := emitRevisionChangeset(dm, delegate, engine, cfg, filesByID, revByID, lodPath, metadata, cs, ts, revnum, cvsRevToSVNRev)
			if err != nil {
				return fmt.Errorf("passes: P8 emit: changeset %d: %w", cs.ID, err)
			}
			if len(syncs) > 0 {
				postRevnum := nextRevnum
				nextRevnum++
				postTS := lastTimestamp + 1
				lastTimestamp = postTS
				if err := emitPostCommit(dm, delegate, cfg, filesByID, lodPath, syncs, revnum, postRevnum, postTS); err != nil {
					return fmt.Errorf("passes: P8 emit: post-commit after changeset %d: %w", cs.ID, err)
				}
			}
			continue
		}

		if err := emitSymbolChangeset(dm, delegate, symByID, filesByID, revByID, lodPath, lastSymbolSource, cs, revnum, cvsRevToSVNRev, lodInitialized); err != nil {
			return fmt.Errorf("passes: P8 emit: symbol changeset %d: %w", cs.ID, err)
		}
	}
	return delegate.Finish()
}

func emitRevisionChangeset(dm *dualMirror, delegate dumpfile.Delegate, engine *delta.Engine, cfg *config.Config, filesByID map[meta.FileID]*meta.CVSFile, revByID map[meta.RevisionID]*meta.CVSRevision, lodPath map[meta.SymbolID]string, metadata map[meta.RevisionID]meta.MetadataRecord, cs *changeset.Changeset, ts int64, revnum int, cvsRevToSVNRev map[meta.RevisionID]int) ([]*meta.CVSRevision, error) {
	props := map[string]string{"svn:date": time.Unix(ts, 0).UTC().Format(svnDateFormat)}
	if len(cs.Revisions) > 0 {
		if md, ok := metadata[cs.Revisions[0]]; ok {
			props["svn:author"] = md.Author
			props["svn:log"] = md.Log
		}
	}

	if err := dm.m.StartCommit(revnum); err != nil {
		return nil, err
	}
	if err := delegate.StartCommit(revnum, props); err != nil {
		return nil, err
	}

	var defaultBranchSyncs []*meta.CVSRevision

	for _, revID := range cs.Revisions {
		rev := revByID[revID]
		cvsRevToSVNRev[revID] = revnum
		if rev.FirstOnBranch {
			// Bookkeeping-only "file does not yet exist on trunk" marker;
			// nothing to add, change or delete.
			if err := engine.Skip(rev.FileID, rev.ID); err != nil {
				return nil, err
			}
			continue
		}

		f := filesByID[rev.FileID]
		fullPath := lodPath[rev.LOD] + "/" + f.Path

		switch rev.Op {
		case meta.OpAdd:
			content, err := engine.Checkout(rev.FileID, rev.ID, isKeywordSuppressed(f, cfg))
			if err != nil {
				return nil, err
			}
			if err := dm.m.AddPath(rev.LOD, f.Path, rev.FileID); err != nil {
				return nil, err
			}
			if err := delegate.AddPath(fullPath, content); err != nil {
				return nil, err
			}
		case meta.OpChange:
			content, err := engine.Checkout(rev.FileID, rev.ID, isKeywordSuppressed(f, cfg))
			if err != nil {
				return nil, err
			}
			if err := dm.m.ChangePath(rev.LOD, f.Path); err != nil {
				return nil, err
			}
			if err := delegate.ChangePath(fullPath, content); err != nil {
				return nil, err
			}
		case meta.OpDelete:
			if err := engine.Skip(rev.FileID, rev.ID); err != nil {
				return nil, err
			}
			if err := dm.m.DeletePath(rev.LOD, f.Path, true); err != nil {
				return nil, err
			}
			if err := delegate.DeletePath(fullPath); err != nil {
				return nil, err
			}
		case meta.OpNoop:
			if err := engine.Skip(rev.FileID, rev.ID); err != nil {
				return nil, err
			}
		}

		// spec §4.7/§3: a commit that advances the head of a file's RCS
		// default branch is immediately followed by a post-commit revision
		// projecting that change onto trunk. FirstOnBranch revisions never
		// reach here (handled above), and trunk commits never match since
		// DefaultBranch is always a real (non-trunk) branch symbol.
		if f.DefaultBranch != meta.NoBranch && rev.LOD == f.DefaultBranch {
			defaultBranchSyncs = append(defaultBranchSyncs, rev)
		}
	}

	if err := dm.m.EndCommit(); err != nil {
		return nil, err
	}
	if err := delegate.EndCommit(); err != nil {
		return nil, err
	}
	return defaultBranchSyncs, nil
}

// emitPostCommit materializes one "trunk synchronization" revision (spec
// §3, §4.7): for each revision that just advanced the head of its file's
// RCS default branch, project that same change onto the file's trunk
// path — a copy from the branch for add/change, a delete for delete —
// content-free since the branch path already holds the right bytes as of
// primaryRevnum.
func emitPostCommit(dm *dualMirror, delegate dumpfile.Delegate, cfg *config.Config, filesByID map[meta.FileID]*meta.CVSFile, lodPath map[meta.SymbolID]string, syncs []*meta.CVSRevision, primaryRevnum, revnum int, ts int64) error {
	props := map[string]string{
		"svn:date":   time.Unix(ts, 0).UTC().Format(svnDateFormat),
		"svn:author": cfg.Username,
		"svn:log":    fmt.Sprintf("This commit was manufactured by cvs2svn to account for a CVS default-branch change in revision %d.", primaryRevnum),
	}

	if err := dm.m.StartCommit(revnum); err != nil {
		return err
	}
	if err := delegate.StartCommit(revnum, props); err != nil {
		return err
	}

	for _, rev := range syncs {
		f := filesByID[rev.FileID]
		trunkPath := lodPath[meta.TrunkLOD] + "/" + f.Path

		err := dm.m.DeletePath(meta.TrunkLOD, f.Path, false)
		switch err.(type) {
		case nil:
			if err := delegate.DeletePath(trunkPath); err != nil {
				return err
			}
		case *mirror.ParentMissingError:
			// First sync for this file: trunk never had this path.
		default:
			return err
		}

		if rev.Op == meta.OpDelete {
			continue
		}
		if err := dm.CopyPath(f.Path, rev.LOD, meta.TrunkLOD, primaryRevnum); err != nil {
			return err
		}
	}

	if err := dm.m.EndCommit(); err != nil {
		return err
	}
	return delegate.EndCommit()
}

// isKeywordSuppressed reports whether RCS keyword substitutions should be
// collapsed to their bare "$Keyword$" form before this file's content is
// written out, per spec §4.6 step 6: binary files never expand keywords.
func isKeywordSuppressed(f *meta.CVSFile, cfg *config.Config) bool {
	if isBinary, matched := cfg.IsBinaryOverride(f.Path); matched {
		return isBinary
	}
	return f.Expansion == "b" || f.Expansion == "o"
}

func emitSymbolChangeset(dm *dualMirror, delegate dumpfile.Delegate, symByID map[meta.SymbolID]*meta.Symbol, filesByID map[meta.FileID]*meta.CVSFile, revByID map[meta.RevisionID]*meta.CVSRevision, lodPath map[meta.SymbolID]string, lastSymbolSource LastSymbolSource, cs *changeset.Changeset, revnum int, cvsRevToSVNRev map[meta.RevisionID]int, lodInitialized map[meta.SymbolID]bool) error {
	sym := symByID[cs.Symbol]
	destLOD := sym.ID
	winners := lastSymbolSource[sym.ID]

	// The dominant source line of development is whichever LOD supplied the
	// most winning revisions; per-file exceptions to that choice are caught
	// by the filler's own per-file re-copy step (spec §4.5 step 4), not by
	// trying to track a distinct source LOD per file here.
	// P7 (spec §2/§3): for each winning source revision, its opening is the
	// svn revnum it was committed at; its closing is the svn revnum of the
	// next commit on the same LOD that overwrote the path, i.e. the winner's
	// same-LOD successor — if that successor has itself been emitted
	// already. A successor not yet emitted means the path is still valid
	// content for this symbol as of now, which symfill.score represents as
	// "never closed" (closing == 0).
	var openings []symfill.Opening
	var closings []symfill.Closing
	lodVotes := make(map[meta.SymbolID]int)
	for fileID, revID := range winners {
		revnumSrc, ok := cvsRevToSVNRev[revID]
		if !ok {
			continue // source revision never made it into the emitted stream
		}
		rev := revByID[revID]
		f := filesByID[fileID]
		openings = append(openings, symfill.Opening{Path: f.Path, Revnum: revnumSrc})
		lodVotes[rev.LOD]++
		if rev.Successor != meta.NoRevision {
			if closeRevnum, ok := cvsRevToSVNRev[rev.Successor]; ok {
				closings = append(closings, symfill.Closing{Path: f.Path, Revnum: closeRevnum})
			}
		}
	}
	srcLOD := dominantLOD(lodVotes)

	candidateSet := make(map[int]bool, len(openings))
	for _, o := range openings {
		candidateSet[o.Revnum] = true
	}
	candidates := make([]int, 0, len(candidateSet))
	for r := range candidateSet {
		candidates = append(candidates, r)
	}
	sort.Ints(candidates)

	tree := symfill.BuildTree(openings, closings)
	filler := symfill.NewFiller(dm, srcLOD, destLOD, candidates)

	if err := dm.m.StartCommit(revnum); err != nil {
		return err
	}
	props := map[string]string{"svn:log": fmt.Sprintf("This commit was manufactured to create %s '%s'.", sym.Kind, sym.Name)}
	if err := delegate.StartCommit(revnum, props); err != nil {
		return err
	}
	if !lodInitialized[destLOD] {
		if err := delegate.InitializeLOD(lodPath[destLOD]); err != nil {
			return err
		}
		lodInitialized[destLOD] = true
	}
	if len(candidates) > 0 {
		if err := filler.FillSymbol(tree, ""); err != nil {
			return err
		}
	}
	if err := dm.m.EndCommit(); err != nil {
		return err
	}
	return delegate.EndCommit()
}

// dominantLOD picks the line of development that sourced the most winning
// revisions for a symbol (see emitSymbolChangeset's doc comment).
func dominantLOD(lodVotes map[meta.SymbolID]int) meta.SymbolID {
	best := meta.TrunkLOD
	bestVotes := -1
	for lod, votes := range lodVotes {
		if votes > bestVotes {
			best = lod
			bestVotes = votes
		}
	}
	return best
}
