package users

import (
	"context"

	"github.com/mkravtsov/cropsync/internal/models"
)

// Repository describes storage operations for User records.
// Implementations are backed by the local SQLite database.
type Repository interface {
	// CreateOrUpdate inserts a new user or replaces an existing one by local id.
	CreateOrUpdate(ctx context.Context, u *models.User) error

	// GetByID returns a user by local id, excluding tombstoned rows.
	GetByID(ctx context.Context, localID string) (*models.User, error)

	// GetByIDIncludingDeleted returns a user by local id even when it
	// carries a tombstone.
	GetByIDIncludingDeleted(ctx context.Context, localID string) (*models.User, error)

	// GetAll lists all non-deleted users ordered by name.
	GetAll(ctx context.Context) ([]models.User, error)
}
