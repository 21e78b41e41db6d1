package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mkravtsov/cropsync/internal/dbx"
	"github.com/mkravtsov/cropsync/internal/models"
	"github.com/mkravtsov/cropsync/internal/repositories/notifications"
)

type NotificationService interface {
	// Add creates a locally originated notification for a user.
	Add(ctx context.Context, userLocalID, title, body, category string) (*models.Notification, error)

	// MarkRead flips the read flag. The flag is local-state, but it still
	// versions and enqueues like any other mutation so other devices see it.
	MarkRead(ctx context.Context, localID string) (*models.Notification, error)

	List(ctx context.Context, userLocalID string) ([]models.Notification, error)
}

type notificationService struct {
	*core
}

func (s *notificationService) Add(ctx context.Context, userLocalID, title, body, category string) (*models.Notification, error) {
	if userLocalID == "" || title == "" {
		return nil, fmt.Errorf("user and title are required")
	}
	now := s.now().UTC()

	n := &models.Notification{
		UserLocalID: userLocalID,
		Title:       title,
		Body:        body,
		Category:    category,
		CreatedAt:   now,
	}
	n.LocalID = uuid.NewString()
	n.Touch(s.deviceID, now)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := notifications.NewSQLiteRepository(tx).CreateOrUpdate(ctx, n); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, models.TableNotifications, n, &n.Syncable, models.OperationInsert, now)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add notification: %w", err)
	}
	return n, nil
}

func (s *notificationService) MarkRead(ctx context.Context, localID string) (*models.Notification, error) {
	now := s.now().UTC()

	var n *models.Notification
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := notifications.NewSQLiteRepository(tx)

		current, err := repo.GetByID(ctx, localID)
		if err != nil {
			return err
		}
		if current.Read {
			n = current
			return nil
		}

		current.Read = true
		current.Touch(s.deviceID, now)

		if err := repo.CreateOrUpdate(ctx, current); err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, models.TableNotifications, current, &current.Syncable, opFor(&current.Syncable), now); err != nil {
			return err
		}
		n = current
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return n, nil
}

func (s *notificationService) List(ctx context.Context, userLocalID string) ([]models.Notification, error) {
	return notifications.NewSQLiteRepository(s.db).GetAllForUser(ctx, userLocalID)
}
