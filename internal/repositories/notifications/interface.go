package notifications

import (
	"context"

	"github.com/mkravtsov/cropsync/internal/models"
)

// Repository describes storage operations for Notification records.
type Repository interface {
	// CreateOrUpdate inserts a new notification or replaces an existing one
	// by local id.
	CreateOrUpdate(ctx context.Context, n *models.Notification) error

	// GetByID returns a notification by local id, excluding tombstoned rows.
	GetByID(ctx context.Context, localID string) (*models.Notification, error)

	// GetByIDIncludingDeleted returns a notification even when tombstoned.
	GetByIDIncludingDeleted(ctx context.Context, localID string) (*models.Notification, error)

	// GetAllForUser lists a user's non-deleted notifications, newest first.
	GetAllForUser(ctx context.Context, userLocalID string) ([]models.Notification, error)

	// GetAllForUserIncludingDeleted lists a user's full notification scope,
	// tombstones included. The pull-merge reads through this.
	GetAllForUserIncludingDeleted(ctx context.Context, userLocalID string) ([]models.Notification, error)

	// ReplaceForUser replaces the user's cached notification scope with rows.
	// Callers run this inside a transaction so the swap is atomic.
	ReplaceForUser(ctx context.Context, userLocalID string, rows []models.Notification) error
}
