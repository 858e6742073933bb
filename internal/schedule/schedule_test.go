package schedule

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/paulyc/cvs2svn/internal/changeset"
	"github.com/paulyc/cvs2svn/internal/meta"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	return l
}

func TestScheduleOrdersByTMaxThenTMinThenID(t *testing.T) {
	f1 := meta.FileID(1)
	revs := []*meta.CVSRevision{
		{ID: 1, FileID: f1, Number: "1.1", LOD: meta.TrunkLOD, Timestamp: 3000, Digest: meta.DigestOf("a", "m1"), Predecessor: meta.NoRevision, Successor: meta.NoRevision},
		{ID: 2, FileID: f1, Number: "1.2", LOD: meta.TrunkLOD, Timestamp: 1000, Digest: meta.DigestOf("a", "m2"), Predecessor: meta.NoRevision, Successor: meta.NoRevision},
	}
	// Two independent revisions on the same file without a Predecessor
	// link between them form two separate, unordered changesets; the
	// scheduler's tie-break should place the earlier t_max first.
	g, err := changeset.Build(testLogger(), revs, nil, changeset.CommitThresholdSeconds)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	entries, err := Schedule(g)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Timestamp > entries[1].Timestamp {
		t.Fatalf("expected entries sorted by timestamp ascending, got %v", entries)
	}
}

func TestScheduleAssignsStrictlyIncreasingTimestamps(t *testing.T) {
	f1 := meta.FileID(1)
	revs := []*meta.CVSRevision{
		{ID: 1, FileID: f1, Number: "1.1", LOD: meta.TrunkLOD, Timestamp: 1000, Digest: meta.DigestOf("a", "m1"), Predecessor: meta.NoRevision, Successor: meta.NoRevision},
		{ID: 2, FileID: f1, Number: "1.2", LOD: meta.TrunkLOD, Timestamp: 1000, Digest: meta.DigestOf("a", "m2"), Predecessor: 1, Successor: meta.NoRevision},
		{ID: 3, FileID: f1, Number: "1.3", LOD: meta.TrunkLOD, Timestamp: 1000, Digest: meta.DigestOf("a", "m3"), Predecessor: 2, Successor: meta.NoRevision},
	}
	g, err := changeset.Build(testLogger(), revs, nil, changeset.CommitThresholdSeconds)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	entries, err := Schedule(g)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp <= entries[i-1].Timestamp {
			t.Fatalf("timestamps not strictly increasing: %v", entries)
		}
	}
}

func TestScheduleSucceedsOnBranchRootGraph(t *testing.T) {
	branch := meta.SymbolID(100)
	f1 := meta.FileID(1)
	revs := []*meta.CVSRevision{
		{ID: 1, FileID: f1, Number: "1.1", LOD: meta.TrunkLOD, Timestamp: 1000,
			Digest: meta.DigestOf("a", "c1"), Predecessor: meta.NoRevision, Successor: meta.NoRevision,
			BranchRoots: []meta.SymbolID{branch}},
		{ID: 2, FileID: f1, Number: "1.1.2.1", LOD: branch, Timestamp: 2000,
			Digest: meta.DigestOf("a", "d1"), Predecessor: meta.NoRevision, Successor: meta.NoRevision},
	}
	symbols := []*meta.Symbol{{ID: branch, Name: "B", Kind: meta.KindBranch}}
	g, err := changeset.Build(testLogger(), revs, symbols, changeset.CommitThresholdSeconds)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Deliberately skip BreakCycles to exercise Schedule's own detection
	// of an incomplete topological walk; this particular graph happens to
	// already be acyclic so assert Schedule succeeds, proving it does not
	// falsely report a cycle on a normal branch-root graph.
	if _, err := Schedule(g); err != nil {
		t.Fatalf("Schedule on acyclic graph should succeed: %v", err)
	}
}
