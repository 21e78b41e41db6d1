package diagnoses

import (
	"context"

	"github.com/mkravtsov/cropsync/internal/models"
)

// Repository describes storage operations for Diagnosis records.
type Repository interface {
	// CreateOrUpdate inserts a new diagnosis or replaces an existing one by
	// local id. One diagnosis per scan is enforced by the schema.
	CreateOrUpdate(ctx context.Context, d *models.Diagnosis) error

	// GetByID returns a diagnosis by local id, excluding tombstoned rows.
	GetByID(ctx context.Context, localID string) (*models.Diagnosis, error)

	// GetByIDIncludingDeleted returns a diagnosis even when tombstoned.
	GetByIDIncludingDeleted(ctx context.Context, localID string) (*models.Diagnosis, error)

	// GetByScanID returns the diagnosis attached to a scan.
	GetByScanID(ctx context.Context, scanLocalID string) (*models.Diagnosis, error)
}
