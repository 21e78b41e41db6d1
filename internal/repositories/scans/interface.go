package scans

import (
	"context"

	"github.com/mkravtsov/cropsync/internal/models"
)

// Repository describes storage operations for Scan records.
type Repository interface {
	// CreateOrUpdate inserts a new scan or replaces an existing one by local id.
	CreateOrUpdate(ctx context.Context, s *models.Scan) error

	// GetByID returns a scan by local id, excluding tombstoned rows.
	GetByID(ctx context.Context, localID string) (*models.Scan, error)

	// GetByIDIncludingDeleted returns a scan even when it carries a tombstone.
	GetByIDIncludingDeleted(ctx context.Context, localID string) (*models.Scan, error)

	// GetAllForUser lists a user's non-deleted scans, newest first.
	GetAllForUser(ctx context.Context, userLocalID string) ([]models.Scan, error)

	// GetAllWithDiagnosis lists a user's non-deleted scans joined with their
	// diagnosis, when one exists. Newest first.
	GetAllWithDiagnosis(ctx context.Context, userLocalID string) ([]models.ScanWithDiagnosis, error)
}
