// Package changeset implements spec.md §4.2: grouping CVSRevisions into
// changesets, building the dependency graph over them, and breaking any
// cycles the CVS history contains. The graph representation is grounded on
// gitp4transfer's use of github.com/emicklei/dot for its commit graph
// (GitP4Transfer.graph / createGraphEdges in main.go): here the dot.Graph
// is the structure cmd/cvs2svn-graph serializes, while the authoritative
// edge data the algorithms operate on is the plain adjacency maps in Graph.
package changeset

import (
	"fmt"
	"sort"

	"github.com/emicklei/dot"
	"github.com/sirupsen/logrus"

	"github.com/paulyc/cvs2svn/internal/meta"
)

// Kind distinguishes an ordinary commit changeset from a synthetic symbol
// (branch/tag fill) changeset.
type Kind int

const (
	KindRevision Kind = iota
	KindSymbol
)

func (k Kind) String() string {
	if k == KindRevision {
		return "revision"
	}
	return "symbol"
}

// Changeset is a set of CVSRevision ids that share a digest and can be
// committed together (KindRevision), or the synthetic changeset that fills
// one branch or tag (KindSymbol).
type Changeset struct {
	ID   int
	Kind Kind

	// Revisions holds member revisions for a KindRevision changeset, or
	// the symbol's root revisions for a KindSymbol changeset.
	Revisions []meta.RevisionID

	Symbol meta.SymbolID // valid when Kind == KindSymbol
	Digest meta.Digest   // valid when Kind == KindRevision

	TMin, TMax int64 // time_range, spec.md §3

	// Files restricts a KindSymbol changeset to a subset of files, set
	// only after a by-file cycle-break split (spec.md §4.2 step 4). nil
	// means "owns every file that sprouts or commits on this symbol".
	Files map[meta.FileID]bool
}

// Graph is the changeset dependency graph: nodes are Changesets, edges run
// predecessor -> successor per the four rules in spec.md §3.
type Graph struct {
	logger    *logrus.Logger
	revisions map[meta.RevisionID]*meta.CVSRevision
	symbols   map[meta.SymbolID]*meta.Symbol

	changesets      map[int]*Changeset
	itemToChangeset map[meta.RevisionID]int // revision -> owning KindRevision changeset
	nextID          int

	predecessors map[int]map[int]bool
	successors   map[int]map[int]bool
}

// CommitThresholdSeconds is the default same-commit window from spec.md
// §4.2 ("differ by less than the commit threshold (default 300 s)").
const CommitThresholdSeconds = 300

// Build forms changesets from a time-sorted slice of revisions (P3's
// output) and a set of symbols, then constructs the dependency graph. It
// does not break cycles; call BreakCycles for that.
func Build(logger *logrus.Logger, sortedRevisions []*meta.CVSRevision, symbols []*meta.Symbol, thresholdSeconds int64) (*Graph, error) {
	g := &Graph{
		logger:          logger,
		revisions:       make(map[meta.RevisionID]*meta.CVSRevision, len(sortedRevisions)),
		symbols:         make(map[meta.SymbolID]*meta.Symbol, len(symbols)),
		changesets:      make(map[int]*Changeset),
		itemToChangeset: make(map[meta.RevisionID]int),
		predecessors:    make(map[int]map[int]bool),
		successors:      make(map[int]map[int]bool),
	}
	for _, r := range sortedRevisions {
		g.revisions[r.ID] = r
	}
	for _, s := range symbols {
		g.symbols[s.ID] = s
	}

	g.formRevisionChangesets(sortedRevisions, thresholdSeconds)
	g.formSymbolChangesets(symbols)
	g.rebuildEdges()
	return g, nil
}

type openBucket struct {
	changesetID int
	lastTime    int64
	files       map[meta.FileID]bool
}

// formRevisionChangesets implements the same-commit and no-file-duplicate
// rules from spec.md §4.2.
func (g *Graph) formRevisionChangesets(sorted []*meta.CVSRevision, thresholdSeconds int64) {
	open := make(map[meta.Digest]*openBucket)
	for _, r := range sorted {
		b, ok := open[r.Digest]
		if ok && r.Timestamp-b.lastTime < thresholdSeconds && !b.files[r.FileID] {
			cs := g.changesets[b.changesetID]
			cs.Revisions = append(cs.Revisions, r.ID)
			if r.Timestamp > cs.TMax {
				cs.TMax = r.Timestamp
			}
			if r.Timestamp < cs.TMin {
				cs.TMin = r.Timestamp
			}
			b.lastTime = r.Timestamp
			b.files[r.FileID] = true
			g.itemToChangeset[r.ID] = cs.ID
			continue
		}
		cs := g.newChangeset(KindRevision)
		cs.Digest = r.Digest
		cs.Revisions = []meta.RevisionID{r.ID}
		cs.TMin, cs.TMax = r.Timestamp, r.Timestamp
		g.itemToChangeset[r.ID] = cs.ID
		if ok && b.files[r.FileID] {
			// No-file-duplicate rule: this revision's changeset must come
			// after the earlier changeset that already has this file.
			g.addEdge(b.changesetID, cs.ID)
		}
		open[r.Digest] = &openBucket{changesetID: cs.ID, lastTime: r.Timestamp, files: map[meta.FileID]bool{r.FileID: true}}
	}
}

// formSymbolChangesets creates one synthetic changeset per symbol,
// containing every revision that roots it in any file.
func (g *Graph) formSymbolChangesets(symbols []*meta.Symbol) {
	rootsBySymbol := make(map[meta.SymbolID][]meta.RevisionID)
	for _, r := range g.revisions {
		for _, b := range r.BranchRoots {
			rootsBySymbol[b] = append(rootsBySymbol[b], r.ID)
		}
		for _, t := range r.TagRoots {
			rootsBySymbol[t] = append(rootsBySymbol[t], r.ID)
		}
	}
	for _, s := range symbols {
		roots := rootsBySymbol[s.ID]
		sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })
		cs := g.newChangeset(KindSymbol)
		cs.Symbol = s.ID
		cs.Revisions = roots
		cs.TMin, cs.TMax = g.timeRangeOf(roots)
	}
}

func (g *Graph) timeRangeOf(ids []meta.RevisionID) (min, max int64) {
	first := true
	for _, id := range ids {
		r := g.revisions[id]
		if r == nil {
			continue
		}
		if first {
			min, max = r.Timestamp, r.Timestamp
			first = false
			continue
		}
		if r.Timestamp < min {
			min = r.Timestamp
		}
		if r.Timestamp > max {
			max = r.Timestamp
		}
	}
	return min, max
}

func (g *Graph) newChangeset(kind Kind) *Changeset {
	g.nextID++
	cs := &Changeset{ID: g.nextID, Kind: kind}
	g.changesets[cs.ID] = cs
	return cs
}

func (g *Graph) addEdge(from, to int) {
	if from == to {
		return
	}
	if g.successors[from] == nil {
		g.successors[from] = make(map[int]bool)
	}
	if g.predecessors[to] == nil {
		g.predecessors[to] = make(map[int]bool)
	}
	g.successors[from][to] = true
	g.predecessors[to][from] = true
}

// rebuildEdges recomputes the entire edge set from the current
// item-to-changeset assignment, per the four rules in spec.md §3. Cycle
// breaking calls this after reassigning a subset of a changeset's members
// to a new changeset, instead of hand-patching edges, so the graph is
// always derived fresh from one source of truth.
func (g *Graph) rebuildEdges() {
	g.predecessors = make(map[int]map[int]bool)
	g.successors = make(map[int]map[int]bool)

	symbolChangesetsFor := make(map[meta.SymbolID][]int)
	for id, cs := range g.changesets {
		if cs.Kind == KindSymbol {
			symbolChangesetsFor[cs.Symbol] = append(symbolChangesetsFor[cs.Symbol], id)
		}
	}

	for _, r := range g.revisions {
		myCS, ok := g.itemToChangeset[r.ID]
		if !ok {
			continue
		}
		if r.Predecessor != meta.NoRevision {
			if pr, ok := g.revisions[r.Predecessor]; ok {
				if predCS, ok := g.itemToChangeset[pr.ID]; ok {
					g.addEdge(predCS, myCS)
				}
			}
		}
		for _, sid := range r.BranchRoots {
			for _, symCS := range symbolChangesetsFor[sid] {
				if containsRevision(g.changesets[symCS].Revisions, r.ID) {
					g.addEdge(myCS, symCS)
				}
			}
		}
		for _, sid := range r.TagRoots {
			for _, symCS := range symbolChangesetsFor[sid] {
				if containsRevision(g.changesets[symCS].Revisions, r.ID) {
					g.addEdge(myCS, symCS)
				}
			}
		}
		if r.LOD != meta.TrunkLOD {
			for _, symCS := range symbolChangesetsFor[r.LOD] {
				files := g.changesets[symCS].Files
				if files == nil || files[r.FileID] {
					g.addEdge(symCS, myCS)
				}
			}
		}
	}
}

func containsRevision(ids []meta.RevisionID, id meta.RevisionID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// Changesets returns every changeset in the graph, in id order.
func (g *Graph) Changesets() []*Changeset {
	out := make([]*Changeset, 0, len(g.changesets))
	for _, cs := range g.changesets {
		out = append(out, cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Changeset looks up a changeset by id.
func (g *Graph) Changeset(id int) (*Changeset, bool) {
	cs, ok := g.changesets[id]
	return cs, ok
}

// Predecessors returns the ids of changesets with an edge into id.
func (g *Graph) Predecessors(id int) []int {
	return setKeys(g.predecessors[id])
}

// Successors returns the ids of changesets id has an edge into.
func (g *Graph) Successors(id int) []int {
	return setKeys(g.successors[id])
}

func setKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// ToDot renders the current graph as a github.com/emicklei/dot graph,
// generalizing GitP4Transfer.graph/createGraphEdges to changeset nodes.
func (g *Graph) ToDot() *dot.Graph {
	gr := dot.NewGraph(dot.Directed)
	nodes := make(map[int]dot.Node, len(g.changesets))
	for _, cs := range g.Changesets() {
		label := fmt.Sprintf("CS %d (%s)", cs.ID, cs.Kind)
		nodes[cs.ID] = gr.Node(label)
	}
	for id, cs := range g.changesets {
		for _, succ := range g.Successors(id) {
			gr.Edge(nodes[id], nodes[succ])
		}
		_ = cs
	}
	return gr
}
