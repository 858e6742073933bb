package passes

import "github.com/paulyc/cvs2svn/internal/meta"

// Resync runs P2: it enforces spec.md §8's universal invariant that for
// every revision r with predecessor r' on the same line of development,
// time(r') < time(r). RCS commit clocks are not perfectly synchronized
// across a tree (two files touched in the "same" cvs commit can carry
// timestamps a few seconds apart, occasionally out of predecessor order),
// so each LOD chain is walked root-to-tip and any non-increasing
// timestamp is bumped forward by one second.
//
// This is a direct, in-memory enforcement of the invariant rather than
// spec §4.1's digest/hint-table mechanism: that mechanism exists so a
// streaming implementation never holds more than one revision record in
// memory at a time, which does not apply here since P1 already holds
// every CVSRevision in memory for this implementation's scale. See
// DESIGN.md for the scale tradeoff this reflects.
func Resync(revisions []*meta.CVSRevision) {
	byID := make(map[meta.RevisionID]*meta.CVSRevision, len(revisions))
	for _, r := range revisions {
		byID[r.ID] = r
	}
	for _, r := range revisions {
		if r.Predecessor != meta.NoRevision {
			continue // not a chain root
		}
		cur := r
		for cur.Successor != meta.NoRevision {
			next := byID[cur.Successor]
			if next.Timestamp <= cur.Timestamp {
				next.Timestamp = cur.Timestamp + 1
			}
			cur = next
		}
	}
}
