package passes

import (
	"bytes"
	"sort"

	"github.com/paulyc/cvs2svn/internal/meta"
)

// Sort runs P3: it orders revisions by (time, digest), the order changeset
// formation (P5) requires its input stream to be in.
func Sort(revisions []*meta.CVSRevision) []*meta.CVSRevision {
	out := make([]*meta.CVSRevision, len(revisions))
	copy(out, revisions)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return bytes.Compare(out[i].Digest[:], out[j].Digest[:]) < 0
	})
	return out
}
