package passes

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulyc/cvs2svn/internal/meta"
)

func TestTrunkOnlyRevisionsDropsBranchRevisions(t *testing.T) {
	trunkRev := &meta.CVSRevision{ID: 1, LOD: meta.TrunkLOD}
	branchRev := &meta.CVSRevision{ID: 2, LOD: meta.SymbolID(5)}

	out := trunkOnlyRevisions([]*meta.CVSRevision{trunkRev, branchRev})

	require.Len(t, out, 1)
	assert.Equal(t, trunkRev.ID, out[0].ID)
}

func TestTrunkOnlyRevisionsEmptyInputYieldsEmptySlice(t *testing.T) {
	out := trunkOnlyRevisions(nil)
	assert.Empty(t, out)
}

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestNewRepositoryUUIDIsAWellFormedV4(t *testing.T) {
	id, err := NewRepositoryUUID()
	require.NoError(t, err)
	assert.Regexp(t, uuidPattern, id)

	other, err := NewRepositoryUUID()
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}
