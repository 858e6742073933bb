package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulyc/cvs2svn/internal/delta"
	"github.com/paulyc/cvs2svn/internal/meta"
)

// TestBuildDeltaRecordsReconstructsTrunkFullText exercises the tip-to-root
// walk: the tip's deltatext is full text, and its predecessor's deltatext
// is the reverse ed-script that, applied to the tip's text, produces the
// predecessor's own (older) text.
func TestBuildDeltaRecordsReconstructsTrunkFullText(t *testing.T) {
	fileID := meta.FileID(1)
	root := &meta.CVSRevision{ID: 1, FileID: fileID, Number: "1.1", LOD: meta.TrunkLOD, Predecessor: meta.NoRevision, Successor: 2}
	tip := &meta.CVSRevision{ID: 2, FileID: fileID, Number: "1.2", LOD: meta.TrunkLOD, Predecessor: 1, Successor: meta.NoRevision}

	deltatext := map[meta.RevisionID]string{
		tip.ID:  "line1\nline2\n",
		root.ID: "d2 1\n", // reverse script: tip's own text -> root's (older) text
	}

	jobs, trees, err := BuildDeltaRecords([]*meta.CVSRevision{root, tip}, deltatext)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	byID := make(map[meta.RevisionID][]byte)
	fullText := make(map[meta.RevisionID]bool)
	for _, j := range jobs {
		byID[j.ID] = j.Data
		fullText[j.ID] = j.IsFullText
	}

	assert.True(t, fullText[tip.ID])
	assert.Equal(t, "line1\nline2\n", string(byID[tip.ID]))
	assert.True(t, fullText[root.ID])
	assert.Equal(t, "line1\n", string(byID[root.ID]))

	tree, ok := trees[fileID]
	require.True(t, ok)
	require.NotNil(t, tree)
}

// TestBuildDeltaRecordsPassesBranchDiffsThrough confirms a branch
// revision's deltatext is left untouched: RCS already stores branch
// deltas forward, the direction the checkout engine wants.
func TestBuildDeltaRecordsPassesBranchDiffsThrough(t *testing.T) {
	fileID := meta.FileID(7)
	branchLOD := meta.SymbolID(3)
	root := &meta.CVSRevision{ID: 1, FileID: fileID, Number: "1.1", LOD: meta.TrunkLOD, Predecessor: meta.NoRevision, Successor: meta.NoRevision}
	branchRev := &meta.CVSRevision{ID: 2, FileID: fileID, Number: "1.1.2.1", LOD: branchLOD, Predecessor: 1, Successor: meta.NoRevision}

	deltatext := map[meta.RevisionID]string{
		root.ID:      "root text\n",
		branchRev.ID: "a1 1\nbranch line\n",
	}

	jobs, _, err := BuildDeltaRecords([]*meta.CVSRevision{root, branchRev}, deltatext)
	require.NoError(t, err)

	var branchJob *delta.RecordJob
	for i := range jobs {
		if jobs[i].ID == branchRev.ID {
			branchJob = &jobs[i]
		}
	}
	require.NotNil(t, branchJob)
	assert.False(t, branchJob.IsFullText)
	assert.Equal(t, "a1 1\nbranch line\n", string(branchJob.Data))
}
