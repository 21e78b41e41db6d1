package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkravtsov/cropsync/internal/models"
)

func tip(id string, version int64, updated, created time.Time) *models.Tip {
	return &models.Tip{
		Syncable: models.Syncable{
			LocalID:   id,
			Version:   version,
			UpdatedAt: updated,
		},
		Title:     "tip " + id,
		CreatedAt: created,
	}
}

func TestMerge_RemoteOnlyAndLocalOnly(t *testing.T) {
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	remote := []*models.Tip{tip("r-1", 1, base, base)}
	local := []*models.Tip{tip("l-1", 1, base, base.Add(time.Hour))}

	merged := merge(remote, local)
	require.Len(t, merged, 2)

	// Newest creation time first.
	assert.Equal(t, "l-1", merged[0].Row.LocalID)
	assert.Equal(t, OriginLocalOnly, merged[0].Origin)
	assert.Equal(t, "r-1", merged[1].Row.LocalID)
	assert.Equal(t, OriginRemote, merged[1].Origin)
	assert.False(t, merged[1].RemoteWon, "no local counterpart existed")
}

func TestMerge_VersionDecidesWinner(t *testing.T) {
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	remote := []*models.Tip{tip("x", 3, base, base)}
	localRow := tip("x", 2, base.Add(time.Hour), base)
	localRow.Title = "local edit"

	merged := merge(remote, []*models.Tip{localRow})
	require.Len(t, merged, 1)

	// Remote's higher version beats local's later timestamp.
	assert.True(t, merged[0].RemoteWon)
	assert.Equal(t, "tip x", merged[0].Row.Title)
}

func TestMerge_UpdatedAtBreaksVersionTies(t *testing.T) {
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	remote := []*models.Tip{tip("x", 2, base.Add(time.Minute), base)}
	local := []*models.Tip{tip("x", 2, base, base)}

	merged := merge(remote, local)
	require.Len(t, merged, 1)
	assert.True(t, merged[0].RemoteWon)
}

func TestMerge_FullTieKeepsLocal(t *testing.T) {
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	remoteRow := tip("x", 2, base, base)
	localRow := tip("x", 2, base, base)
	localRow.Title = "local copy"

	merged := merge([]*models.Tip{remoteRow}, []*models.Tip{localRow})
	require.Len(t, merged, 1)
	assert.False(t, merged[0].RemoteWon)
	assert.Equal(t, "local copy", merged[0].Row.Title)
	assert.Equal(t, OriginRemote, merged[0].Origin)
}

func TestMerge_Idempotent(t *testing.T) {
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	remote := []*models.Tip{
		tip("a", 1, base, base),
		tip("b", 2, base, base.Add(time.Hour)),
	}
	local := []*models.Tip{
		tip("a", 1, base, base),
		tip("c", 1, base, base.Add(2*time.Hour)),
	}

	first := merge(remote, local)

	// Feeding the merge result back as the local side reproduces it.
	again := make([]*models.Tip, len(first))
	for i, m := range first {
		again[i] = m.Row
	}
	second := merge(remote, again)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Row.LocalID, second[i].Row.LocalID)
		assert.Equal(t, first[i].Row.Title, second[i].Row.Title)
		assert.False(t, second[i].RemoteWon)
	}
}

func TestMerge_OrderStableOnEqualCreationTimes(t *testing.T) {
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	remote := []*models.Tip{
		tip("b", 1, base, base),
		tip("a", 1, base, base),
	}

	merged := merge(remote, nil)
	require.Len(t, merged, 2)
	assert.Equal(t, "a", merged[0].Row.LocalID)
	assert.Equal(t, "b", merged[1].Row.LocalID)
}
