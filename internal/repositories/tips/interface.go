package tips

import (
	"context"

	"github.com/mkravtsov/cropsync/internal/models"
)

// Repository describes storage operations for the locally cached tip feed.
type Repository interface {
	// CreateOrUpdate inserts a new tip or replaces an existing one by local id.
	CreateOrUpdate(ctx context.Context, tip *models.Tip) error

	// GetByID returns a tip by local id, excluding tombstoned rows.
	GetByID(ctx context.Context, localID string) (*models.Tip, error)

	// GetAll lists non-deleted tips, newest first.
	GetAll(ctx context.Context) ([]models.Tip, error)

	// GetAllIncludingDeleted lists every cached tip, tombstones included.
	// The pull-merge reads the full scope through this.
	GetAllIncludingDeleted(ctx context.Context) ([]models.Tip, error)

	// ReplaceAll replaces the whole cached tip scope with rows. Callers run
	// this inside a transaction so the swap is atomic.
	ReplaceAll(ctx context.Context, rows []models.Tip) error
}
