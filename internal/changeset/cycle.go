package changeset

import (
	"fmt"
	"sort"

	"github.com/paulyc/cvs2svn/internal/meta"
)

// BreakCycles implements spec.md §4.2's cycle-handling procedure on a
// working copy of the graph:
//  1. Repeatedly remove all nodes with zero predecessors.
//  2. If the graph is now empty, done.
//  3. Otherwise every remaining node participates in a cycle: walk
//     predecessor links from any surviving node until one repeats; the
//     interval between the two occurrences is a cycle.
//  4. Break the cycle by splitting one changeset (largest revision
//     changeset in the cycle, at its largest time gap; or, if none is
//     splittable, a symbol changeset by file) and retest.
//
// Each split strictly reduces sum(size-1) over all changesets, which is
// why this terminates (spec.md §4.2).
func (g *Graph) BreakCycles() error {
	for {
		cycle, ok := g.findCycle()
		if !ok {
			return nil
		}
		if err := g.splitCycle(cycle); err != nil {
			return fmt.Errorf("changeset: cannot break cycle %v: %w", cycle, err)
		}
		g.rebuildEdges()
	}
}

// findCycle performs the destructive zero-indegree removal from step 1-3
// against a scratch copy of the adjacency maps, returning one cycle if the
// graph isn't fully acyclic.
func (g *Graph) findCycle() (cycle []int, found bool) {
	remainingPred := make(map[int]map[int]bool, len(g.changesets))
	remainingSucc := make(map[int]map[int]bool, len(g.changesets))
	for id := range g.changesets {
		remainingPred[id] = cloneSet(g.predecessors[id])
		remainingSucc[id] = cloneSet(g.successors[id])
	}
	alive := make(map[int]bool, len(g.changesets))
	for id := range g.changesets {
		alive[id] = true
	}

	queue := make([]int, 0)
	for id := range alive {
		if len(remainingPred[id]) == 0 {
			queue = append(queue, id)
		}
	}
	sort.Ints(queue)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if !alive[id] {
			continue
		}
		alive[id] = false
		for succ := range remainingSucc[id] {
			delete(remainingPred[succ], id)
			if len(remainingPred[succ]) == 0 && alive[succ] {
				queue = append(queue, succ)
				sort.Ints(queue)
			}
		}
	}

	remaining := make([]int, 0)
	for id, a := range alive {
		if a {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) == 0 {
		return nil, false
	}
	sort.Ints(remaining)

	// Walk predecessor links (deterministically: lowest id at each step)
	// from an arbitrary surviving node until one repeats.
	start := remaining[0]
	visited := map[int]int{} // node -> position in path
	path := []int{start}
	visited[start] = 0
	cur := start
	for {
		preds := setKeys(remainingPred[cur])
		var next int
		found := false
		for _, p := range preds {
			if alive[p] {
				next = p
				found = true
				break
			}
		}
		if !found {
			// Shouldn't happen: every remaining node has at least one
			// remaining predecessor, else it would have been removed.
			return remaining, true
		}
		if pos, seen := visited[next]; seen {
			return path[pos:], true
		}
		visited[next] = len(path)
		path = append(path, next)
		cur = next
	}
}

func cloneSet(m map[int]bool) map[int]bool {
	out := make(map[int]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// splitCycle picks the split that the reference heuristic prescribes: the
// largest revision changeset in the cycle, split at its largest internal
// time gap; if no revision changeset in the cycle has more than one
// member, split a symbol changeset by file instead.
func (g *Graph) splitCycle(cycle []int) error {
	var bestID int
	bestSize := 1
	for _, id := range cycle {
		cs := g.changesets[id]
		if cs.Kind == KindRevision && len(cs.Revisions) > bestSize {
			bestSize = len(cs.Revisions)
			bestID = id
		}
	}
	if bestSize > 1 {
		return g.splitRevisionChangesetByTimeGap(bestID)
	}
	for _, id := range cycle {
		cs := g.changesets[id]
		if cs.Kind == KindSymbol && len(filesOf(g, cs)) > 1 {
			return g.splitSymbolChangesetByFile(id)
		}
	}
	return fmt.Errorf("no splittable changeset found in cycle %v", cycle)
}

func filesOf(g *Graph, cs *Changeset) map[meta.FileID]bool {
	files := make(map[meta.FileID]bool)
	for _, rid := range cs.Revisions {
		if r, ok := g.revisions[rid]; ok {
			files[r.FileID] = true
		}
	}
	return files
}

// splitRevisionChangesetByTimeGap splits changeset id's members at the
// largest gap between consecutive (sorted) member timestamps, moving the
// later half into a brand new changeset.
func (g *Graph) splitRevisionChangesetByTimeGap(id int) error {
	cs := g.changesets[id]
	members := append([]meta.RevisionID(nil), cs.Revisions...)
	sort.Slice(members, func(i, j int) bool {
		return g.revisions[members[i]].Timestamp < g.revisions[members[j]].Timestamp
	})
	if len(members) < 2 {
		return fmt.Errorf("changeset %d has fewer than 2 members, cannot split by time gap", id)
	}
	splitAt := 1
	biggestGap := int64(-1)
	for i := 1; i < len(members); i++ {
		gap := g.revisions[members[i]].Timestamp - g.revisions[members[i-1]].Timestamp
		if gap > biggestGap {
			biggestGap = gap
			splitAt = i
		}
	}
	lower, upper := members[:splitAt], members[splitAt:]

	newCS := g.newChangeset(KindRevision)
	newCS.Digest = cs.Digest
	newCS.Revisions = upper
	newCS.TMin, newCS.TMax = g.timeRangeOf(upper)
	cs.Revisions = lower
	cs.TMin, cs.TMax = g.timeRangeOf(lower)
	for _, rid := range upper {
		g.itemToChangeset[rid] = newCS.ID
	}
	return nil
}

// splitSymbolChangesetByFile splits a symbol changeset's root revisions
// into two changesets partitioned by file, for the case spec.md §4.2 step
// 4 covers when no revision changeset in the cycle is splittable.
func (g *Graph) splitSymbolChangesetByFile(id int) error {
	cs := g.changesets[id]
	fileSet := make([]meta.FileID, 0)
	seen := make(map[meta.FileID]bool)
	for _, rid := range cs.Revisions {
		fid := g.revisions[rid].FileID
		if !seen[fid] {
			seen[fid] = true
			fileSet = append(fileSet, fid)
		}
	}
	if len(fileSet) < 2 {
		return fmt.Errorf("symbol changeset %d spans fewer than 2 files, cannot split by file", id)
	}
	sort.Slice(fileSet, func(i, j int) bool { return fileSet[i] < fileSet[j] })
	half := len(fileSet) / 2
	lowerFiles := make(map[meta.FileID]bool)
	for _, f := range fileSet[:half] {
		lowerFiles[f] = true
	}

	var lowerRevs, upperRevs []meta.RevisionID
	for _, rid := range cs.Revisions {
		if lowerFiles[g.revisions[rid].FileID] {
			lowerRevs = append(lowerRevs, rid)
		} else {
			upperRevs = append(upperRevs, rid)
		}
	}

	newCS := g.newChangeset(KindSymbol)
	newCS.Symbol = cs.Symbol
	newCS.Revisions = upperRevs
	newCS.TMin, newCS.TMax = g.timeRangeOf(upperRevs)
	newCS.Files = make(map[meta.FileID]bool)
	for _, f := range fileSet[half:] {
		newCS.Files[f] = true
	}

	cs.Revisions = lowerRevs
	cs.TMin, cs.TMax = g.timeRangeOf(lowerRevs)
	cs.Files = lowerFiles

	return nil
}
