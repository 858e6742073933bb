package passes

import "github.com/paulyc/cvs2svn/internal/meta"

// LastSymbolSource maps a symbol to, for each file it touches, the single
// revision that is its final source — the table P4 builds per spec.md §2
// ("Determine which revision is the final source for each symbol"). A
// symbol can be (re)rooted at more than one revision of the same file only
// in unusual CVS histories (a tag moved by hand, or re-branched); the last
// one chronologically is what symbol filling (§4.5) must copy from.
type LastSymbolSource map[meta.SymbolID]map[meta.FileID]meta.RevisionID

// Index runs P4: it reduces each symbol's full Sources list down to one
// winning revision per file.
func Index(revisions []*meta.CVSRevision, symbols []*meta.Symbol) LastSymbolSource {
	byID := make(map[meta.RevisionID]*meta.CVSRevision, len(revisions))
	for _, r := range revisions {
		byID[r.ID] = r
	}

	out := make(LastSymbolSource, len(symbols))
	for _, s := range symbols {
		winner := make(map[meta.FileID]meta.RevisionID)
		winnerTime := make(map[meta.FileID]int64)
		for _, src := range s.Sources {
			rev, ok := byID[src.RevisionID]
			if !ok {
				continue
			}
			if _, seen := winner[src.FileID]; !seen || rev.Timestamp > winnerTime[src.FileID] {
				winner[src.FileID] = src.RevisionID
				winnerTime[src.FileID] = rev.Timestamp
			}
		}
		out[s.ID] = winner
	}
	return out
}
