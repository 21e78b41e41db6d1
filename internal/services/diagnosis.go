package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mkravtsov/cropsync/internal/dbx"
	"github.com/mkravtsov/cropsync/internal/models"
	"github.com/mkravtsov/cropsync/internal/repositories/diagnoses"
	"github.com/mkravtsov/cropsync/internal/repositories/notifications"
	"github.com/mkravtsov/cropsync/internal/repositories/scans"
)

type DiagnosisService interface {
	// Attach records the classification produced for a scan and, in the same
	// transaction, creates a local notification for the scan's owner. One
	// diagnosis per scan.
	Attach(ctx context.Context, scanLocalID, disease string, confidence float64, severity models.Severity, recommendations []string) (*models.Diagnosis, error)

	// Update rewrites an existing diagnosis (e.g. a better model rerun).
	Update(ctx context.Context, localID, disease string, confidence float64, severity models.Severity, recommendations []string) (*models.Diagnosis, error)

	Get(ctx context.Context, localID string) (*models.Diagnosis, error)
}

type diagnosisService struct {
	*core
}

func validateDiagnosis(disease string, confidence float64, severity models.Severity) error {
	if disease == "" {
		return fmt.Errorf("disease is required")
	}
	if confidence < 0 || confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0, 1]", confidence)
	}
	switch severity {
	case models.SeverityLow, models.SeverityModerate, models.SeverityHigh:
		return nil
	default:
		return fmt.Errorf("unknown severity %q", severity)
	}
}

func (s *diagnosisService) Attach(ctx context.Context, scanLocalID, disease string, confidence float64, severity models.Severity, recommendations []string) (*models.Diagnosis, error) {
	if err := validateDiagnosis(disease, confidence, severity); err != nil {
		return nil, err
	}
	now := s.now().UTC()

	d := &models.Diagnosis{
		ScanLocalID:     scanLocalID,
		Disease:         disease,
		Confidence:      confidence,
		Severity:        severity,
		Recommendations: recommendations,
	}
	d.LocalID = uuid.NewString()
	d.Touch(s.deviceID, now)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		sc, err := scans.NewSQLiteRepository(tx).GetByID(ctx, scanLocalID)
		if err != nil {
			return err
		}

		if err := diagnoses.NewSQLiteRepository(tx).CreateOrUpdate(ctx, d); err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, models.TableDiagnoses, d, &d.Syncable, models.OperationInsert, now); err != nil {
			return err
		}

		// The owner learns about the result even while offline.
		n := &models.Notification{
			UserLocalID: sc.UserLocalID,
			Title:       "Diagnosis ready",
			Body:        fmt.Sprintf("%s detected (%s severity)", disease, severity),
			Category:    "diagnosis",
			CreatedAt:   now,
		}
		n.LocalID = uuid.NewString()
		n.Touch(s.deviceID, now)

		if err := notifications.NewSQLiteRepository(tx).CreateOrUpdate(ctx, n); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, models.TableNotifications, n, &n.Syncable, models.OperationInsert, now)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to attach diagnosis: %w", err)
	}
	return d, nil
}

func (s *diagnosisService) Update(ctx context.Context, localID, disease string, confidence float64, severity models.Severity, recommendations []string) (*models.Diagnosis, error) {
	if err := validateDiagnosis(disease, confidence, severity); err != nil {
		return nil, err
	}
	now := s.now().UTC()

	var d *models.Diagnosis
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := diagnoses.NewSQLiteRepository(tx)

		current, err := repo.GetByID(ctx, localID)
		if err != nil {
			return err
		}

		current.Disease = disease
		current.Confidence = confidence
		current.Severity = severity
		current.Recommendations = recommendations
		current.Touch(s.deviceID, now)

		if err := repo.CreateOrUpdate(ctx, current); err != nil {
			return err
		}
		if err := s.enqueue(ctx, tx, models.TableDiagnoses, current, &current.Syncable, opFor(&current.Syncable), now); err != nil {
			return err
		}
		d = current
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update diagnosis: %w", err)
	}
	return d, nil
}

func (s *diagnosisService) Get(ctx context.Context, localID string) (*models.Diagnosis, error) {
	return diagnoses.NewSQLiteRepository(s.db).GetByID(ctx, localID)
}
