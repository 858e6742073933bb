package passes

import (
	"fmt"

	"github.com/paulyc/cvs2svn/internal/delta"
	"github.com/paulyc/cvs2svn/internal/meta"
)

// BuildDeltaRecords turns each file's raw RCS deltatexts into the uniform
// records internal/delta.Store expects, and builds the per-file FileTree
// the checkout engine needs to walk them.
//
// RCS stores a trunk chain back-to-front: the newest trunk revision holds
// full text, and every older trunk revision's own deltatext is the reverse
// ed-script that turns its text into its (older) predecessor's — the
// opposite of what a forward, oldest-first checkout engine wants. Rather
// than invert those scripts, every trunk revision's full text is
// reconstructed once here by walking the chain tip-to-root and applying
// each revision's own script (spec §4.6 step 1's "delta inversion",
// resolved at record-build time instead of at checkout time). Branch
// deltatexts are already forward diffs against their predecessor — RCS
// stores those the direction the engine wants — so they pass through
// unchanged.
func BuildDeltaRecords(revisions []*meta.CVSRevision, deltatext map[meta.RevisionID]string) ([]delta.RecordJob, map[meta.FileID]*delta.FileTree, error) {
	byFile := make(map[meta.FileID][]*meta.CVSRevision)
	byID := make(map[meta.RevisionID]*meta.CVSRevision, len(revisions))
	for _, r := range revisions {
		byFile[r.FileID] = append(byFile[r.FileID], r)
		byID[r.ID] = r
	}

	var jobs []delta.RecordJob
	trees := make(map[meta.FileID]*delta.FileTree, len(byFile))
	prevOf := make(map[meta.RevisionID]meta.RevisionID, len(revisions))

	for fileID, revs := range byFile {
		var tip *meta.CVSRevision
		for _, r := range revs {
			if r.LOD == meta.TrunkLOD && r.Successor == meta.NoRevision {
				tip = r
				break
			}
		}

		fullText := make(map[meta.RevisionID][]byte)
		if tip != nil {
			fullText[tip.ID] = []byte(deltatext[tip.ID])
			prevOf[tip.ID] = meta.NoRevision
			cur := tip
			for cur.Predecessor != meta.NoRevision {
				pred, ok := byID[cur.Predecessor]
				if !ok || pred.LOD != meta.TrunkLOD {
					break
				}
				predText, err := delta.ApplyEdScript(fullText[cur.ID], []byte(deltatext[cur.ID]))
				if err != nil {
					return nil, nil, fmt.Errorf("passes: reconstructing trunk revision %d of file %d: %w", pred.ID, fileID, err)
				}
				fullText[pred.ID] = predText
				prevOf[pred.ID] = meta.NoRevision
				cur = pred
			}
		}

		for _, r := range revs {
			if r.LOD == meta.TrunkLOD {
				text, ok := fullText[r.ID]
				if !ok {
					// Trunk chain was broken (no reachable tip); fall back to
					// this revision's own deltatext as-is rather than failing
					// the whole file over one malformed history.
					text = []byte(deltatext[r.ID])
				}
				jobs = append(jobs, delta.RecordJob{ID: r.ID, Data: text, IsFullText: true})
				prevOf[r.ID] = meta.NoRevision
				continue
			}
			jobs = append(jobs, delta.RecordJob{ID: r.ID, Data: []byte(deltatext[r.ID]), IsFullText: false})
			prevOf[r.ID] = r.Predecessor
		}

		ids := make([]meta.RevisionID, 0, len(revs))
		for _, r := range revs {
			ids = append(ids, r.ID)
		}
		trees[fileID] = delta.BuildFileTree([][]meta.RevisionID{ids}, func(id meta.RevisionID) meta.RevisionID {
			return prevOf[id]
		})
	}

	return jobs, trees, nil
}
