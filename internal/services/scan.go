package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mkravtsov/cropsync/internal/dbx"
	"github.com/mkravtsov/cropsync/internal/models"
	"github.com/mkravtsov/cropsync/internal/repositories/diagnoses"
	"github.com/mkravtsov/cropsync/internal/repositories/scans"
)

type ScanService interface {
	// Add records a captured leaf photo for a user and queues it for pushing.
	Add(ctx context.Context, userLocalID, imagePath, crop string, lat, lng float64) (*models.Scan, error)

	// Update rewrites the editable fields of an existing scan.
	Update(ctx context.Context, localID, crop string, lat, lng float64) (*models.Scan, error)

	// Delete tombstones a scan. The row stays in the store; reads exclude it.
	Delete(ctx context.Context, localID string) error

	// Get returns a scan together with its diagnosis, when one exists.
	Get(ctx context.Context, localID string) (*models.ScanWithDiagnosis, error)

	// List returns a user's scans joined with diagnoses, newest first.
	List(ctx context.Context, userLocalID string) ([]models.ScanWithDiagnosis, error)
}

type scanService struct {
	*core
}

func (s *scanService) Add(ctx context.Context, userLocalID, imagePath, crop string, lat, lng float64) (*models.Scan, error) {
	if userLocalID == "" || imagePath == "" {
		return nil, fmt.Errorf("user and image path are required")
	}
	now := s.now().UTC()

	sc := &models.Scan{
		UserLocalID: userLocalID,
		ImagePath:   imagePath,
		Crop:        crop,
		Latitude:    lat,
		Longitude:   lng,
	}
	sc.LocalID = uuid.NewString()
	sc.Touch(s.deviceID, now)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := scans.NewSQLiteRepository(tx).CreateOrUpdate(ctx, sc); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, models.TableScans, sc, &sc.Syncable, models.OperationInsert, now)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add scan: %w", err)
	}
	return sc, nil
}

func (s *scanService) Update(ctx context.Context, localID, crop string, lat, lng float64) (*models.Scan, error) {
	now := s.now().UTC()

	var sc *models.Scan
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := scans.NewSQLiteRepository(tx)

		current, err := repo.GetByID(ctx, localID)
		if err != nil {
			return err
		}

		current.Crop = crop
		current.Latitude = lat
		current.Longitude = lng
		current.Touch(s.deviceID, now)

		if err := repo.CreateOrUpdate(ctx, current); err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, models.TableScans, current, &current.Syncable, opFor(&current.Syncable), now); err != nil {
			return err
		}
		sc = current
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update scan: %w", err)
	}
	return sc, nil
}

// Delete tombstones the scan. A scan the server never saw has nothing to
// push: its queued intents are discarded instead of queueing a delete.
func (s *scanService) Delete(ctx context.Context, localID string) error {
	now := s.now().UTC()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := scans.NewSQLiteRepository(tx)

		current, err := repo.GetByID(ctx, localID)
		if err != nil {
			return err
		}

		neverPushed := current.ServerID == ""
		current.MarkDeleted(s.deviceID, now)
		if neverPushed {
			current.SyncStatus = models.SyncStatusSynced
		}

		if err := repo.CreateOrUpdate(ctx, current); err != nil {
			return err
		}

		if neverPushed {
			return s.queue.Discard(ctx, tx, models.TableScans, localID)
		}
		return s.enqueue(ctx, tx, models.TableScans, current, &current.Syncable, models.OperationDelete, now)
	})
	if err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}
	return nil
}

func (s *scanService) Get(ctx context.Context, localID string) (*models.ScanWithDiagnosis, error) {
	sc, err := scans.NewSQLiteRepository(s.db).GetByID(ctx, localID)
	if err != nil {
		return nil, err
	}

	item := &models.ScanWithDiagnosis{Scan: *sc}
	d, err := diagnoses.NewSQLiteRepository(s.db).GetByScanID(ctx, localID)
	if err == nil {
		item.Diagnosis = d
	} else if !isNotFound(err) {
		return nil, err
	}
	return item, nil
}

func (s *scanService) List(ctx context.Context, userLocalID string) ([]models.ScanWithDiagnosis, error) {
	return scans.NewSQLiteRepository(s.db).GetAllWithDiagnosis(ctx, userLocalID)
}
