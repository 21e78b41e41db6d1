package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mkravtsov/cropsync/internal/dbx"
	"github.com/mkravtsov/cropsync/internal/models"
	"github.com/mkravtsov/cropsync/internal/repositories/users"
)

type UserService interface {
	// Add creates a local profile and queues it for pushing.
	Add(ctx context.Context, name, phone, region string) (*models.User, error)

	// Update rewrites the profile fields of an existing user.
	Update(ctx context.Context, localID, name, phone, region string) (*models.User, error)

	Get(ctx context.Context, localID string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

type userService struct {
	*core
}

func (s *userService) Add(ctx context.Context, name, phone, region string) (*models.User, error) {
	if name == "" {
		return nil, fmt.Errorf("user name is required")
	}
	now := s.now().UTC()

	u := &models.User{Name: name, Phone: phone, Region: region}
	u.LocalID = uuid.NewString()
	u.Touch(s.deviceID, now)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := users.NewSQLiteRepository(tx).CreateOrUpdate(ctx, u); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, models.TableUsers, u, &u.Syncable, models.OperationInsert, now)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add user: %w", err)
	}
	return u, nil
}

func (s *userService) Update(ctx context.Context, localID, name, phone, region string) (*models.User, error) {
	if name == "" {
		return nil, fmt.Errorf("user name is required")
	}
	now := s.now().UTC()

	var u *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := users.NewSQLiteRepository(tx)

		current, err := repo.GetByID(ctx, localID)
		if err != nil {
			return err
		}

		current.Name = name
		current.Phone = phone
		current.Region = region
		current.Touch(s.deviceID, now)

		if err := repo.CreateOrUpdate(ctx, current); err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, models.TableUsers, current, &current.Syncable, opFor(&current.Syncable), now); err != nil {
			return err
		}
		u = current
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

func (s *userService) Get(ctx context.Context, localID string) (*models.User, error) {
	return users.NewSQLiteRepository(s.db).GetByID(ctx, localID)
}

func (s *userService) List(ctx context.Context) ([]models.User, error) {
	return users.NewSQLiteRepository(s.db).GetAll(ctx)
}
