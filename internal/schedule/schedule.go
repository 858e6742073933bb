// Package schedule implements spec.md §4.3: a topological walk of the
// acyclic changeset graph that assigns each changeset its emission order
// and its SVN revision timestamp.
package schedule

import (
	"container/heap"
	"fmt"

	"github.com/paulyc/cvs2svn/internal/changeset"
)

// Entry is one changeset's place in the emission order.
type Entry struct {
	ChangesetID int
	SVNRevnum   int
	Timestamp   int64
}

// readyQueue is a min-heap over changesets with zero remaining
// predecessors, ordered by the tie-break rule in spec.md §4.3:
// (t_max, t_min, id).
type readyQueue []*changeset.Changeset

func (q readyQueue) Len() int { return len(q) }
func (q readyQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.TMax != b.TMax {
		return a.TMax < b.TMax
	}
	if a.TMin != b.TMin {
		return a.TMin < b.TMin
	}
	return a.ID < b.ID
}
func (q readyQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *readyQueue) Push(x interface{}) { *q = append(*q, x.(*changeset.Changeset)) }
func (q *readyQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// Schedule performs the topological walk, returning one Entry per
// changeset in emission order, or an error if the graph still contains a
// cycle (callers must run changeset.Graph.BreakCycles first).
func Schedule(g *changeset.Graph) ([]Entry, error) {
	all := g.Changesets()
	remainingPred := make(map[int]int, len(all))
	for _, cs := range all {
		remainingPred[cs.ID] = len(g.Predecessors(cs.ID))
	}

	q := make(readyQueue, 0, len(all))
	for _, cs := range all {
		if remainingPred[cs.ID] == 0 {
			q = append(q, cs)
		}
	}
	heap.Init(&q)

	entries := make([]Entry, 0, len(all))
	var lastEmitted int64 = -1 << 62
	emitted := make(map[int]bool, len(all))

	for q.Len() > 0 {
		cs := heap.Pop(&q).(*changeset.Changeset)
		emitted[cs.ID] = true

		t := cs.TMin
		if lastEmitted+1 > t {
			t = lastEmitted + 1
		}
		lastEmitted = t

		entries = append(entries, Entry{
			ChangesetID: cs.ID,
			SVNRevnum:   len(entries) + 1,
			Timestamp:   t,
		})

		for _, succID := range g.Successors(cs.ID) {
			remainingPred[succID]--
			if remainingPred[succID] == 0 {
				succ, ok := g.Changeset(succID)
				if !ok {
					continue
				}
				heap.Push(&q, succ)
			}
		}
	}

	if len(entries) != len(all) {
		return nil, fmt.Errorf("schedule: graph still has a cycle: scheduled %d of %d changesets", len(entries), len(all))
	}
	return entries, nil
}
