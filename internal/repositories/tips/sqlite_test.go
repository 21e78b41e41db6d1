package tips

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkravtsov/cropsync/internal/common"
	"github.com/mkravtsov/cropsync/internal/dbx"
	"github.com/mkravtsov/cropsync/internal/models"
	"github.com/mkravtsov/cropsync/internal/store"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(context.Background(), store.MemoryDSN("tips_repo_"+t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleTip(localID string, createdAt time.Time) *models.Tip {
	return &models.Tip{
		Syncable: models.Syncable{
			LocalID:    localID,
			ServerID:   "srv-" + localID,
			SyncStatus: models.SyncStatusSynced,
			UpdatedAt:  createdAt,
			DeviceID:   "server",
			Version:    1,
		},
		Title:     "Tip " + localID,
		Body:      "body",
		Category:  "planting",
		CreatedAt: createdAt,
	}
}

func TestCreateOrUpdate_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupDB(t))

	tip := sampleTip("t-1", time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC))
	require.NoError(t, repo.CreateOrUpdate(ctx, tip))

	got, err := repo.GetByID(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, tip.Title, got.Title)
	assert.Equal(t, tip.Category, got.Category)
	assert.Equal(t, tip.CreatedAt, got.CreatedAt)
	assert.Equal(t, tip.ServerID, got.ServerID)
}

func TestGetAll_NewestFirstAndSkipsDeleted(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteRepository(setupDB(t))
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	old := sampleTip("t-old", base)
	newer := sampleTip("t-new", base.Add(time.Hour))
	gone := sampleTip("t-gone", base.Add(2*time.Hour))
	gone.MarkDeleted("dev-1", base.Add(2*time.Hour))

	for _, tip := range []*models.Tip{old, newer, gone} {
		require.NoError(t, repo.CreateOrUpdate(ctx, tip))
	}

	got, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t-new", got[0].LocalID)
	assert.Equal(t, "t-old", got[1].LocalID)

	all, err := repo.GetAllIncludingDeleted(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestReplaceAll(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewSQLiteRepository(db)
	base := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateOrUpdate(ctx, sampleTip("t-stale", base)))

	merged := []models.Tip{
		*sampleTip("t-1", base.Add(time.Hour)),
		*sampleTip("t-2", base.Add(2*time.Hour)),
	}
	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return NewSQLiteRepository(tx).ReplaceAll(ctx, merged)
	})
	require.NoError(t, err)

	got, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t-2", got[0].LocalID)
	assert.Equal(t, "t-1", got[1].LocalID)

	_, err = repo.GetByID(ctx, "t-stale")
	require.ErrorIs(t, err, common.ErrNotFound)
}
