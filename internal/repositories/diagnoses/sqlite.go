package diagnoses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mkravtsov/cropsync/internal/common"
	"github.com/mkravtsov/cropsync/internal/dbx"
	"github.com/mkravtsov/cropsync/internal/models"
)

const baseColumns = `local_id, server_id, sync_status, updated_at, deleted_at, device_id, version, scan_local_id, disease, confidence, severity, recommendations`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, d *models.Diagnosis) error {
	recs, err := json.Marshal(d.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to encode recommendations: %w", err)
	}

	query := `INSERT INTO diagnoses (` + baseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			server_id = excluded.server_id,
			sync_status = excluded.sync_status,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			device_id = excluded.device_id,
			version = excluded.version,
			scan_local_id = excluded.scan_local_id,
			disease = excluded.disease,
			confidence = excluded.confidence,
			severity = excluded.severity,
			recommendations = excluded.recommendations`
	_, err = r.db.ExecContext(ctx, query,
		d.LocalID, dbx.NullStr(d.ServerID), d.SyncStatus, dbx.Millis(d.UpdatedAt),
		dbx.MillisPtr(d.DeletedAt), d.DeviceID, d.Version, d.ScanLocalID,
		d.Disease, d.Confidence, d.Severity, string(recs))
	if err != nil {
		if dbx.IsConstraintErr(err) {
			return fmt.Errorf("%w: upsert diagnosis: %v", common.ErrConstraint, err)
		}
		return fmt.Errorf("failed to upsert diagnosis: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, localID string) (*models.Diagnosis, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+baseColumns+` FROM diagnoses WHERE local_id = ? AND deleted_at IS NULL`, localID)
	return scanDiagnosis(row)
}

func (r *SQLiteRepository) GetByIDIncludingDeleted(ctx context.Context, localID string) (*models.Diagnosis, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+baseColumns+` FROM diagnoses WHERE local_id = ?`, localID)
	return scanDiagnosis(row)
}

func (r *SQLiteRepository) GetByScanID(ctx context.Context, scanLocalID string) (*models.Diagnosis, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+baseColumns+` FROM diagnoses WHERE scan_local_id = ? AND deleted_at IS NULL`, scanLocalID)
	return scanDiagnosis(row)
}

func scanDiagnosis(row *sql.Row) (*models.Diagnosis, error) {
	d := &models.Diagnosis{}
	var serverID sql.NullString
	var updatedAt int64
	var deletedAt sql.NullInt64
	var recs string

	err := row.Scan(&d.LocalID, &serverID, &d.SyncStatus, &updatedAt, &deletedAt,
		&d.DeviceID, &d.Version, &d.ScanLocalID, &d.Disease, &d.Confidence,
		&d.Severity, &recs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}

	d.ServerID = serverID.String
	d.UpdatedAt = dbx.TimeFromMillis(updatedAt)
	d.DeletedAt = dbx.TimePtrFromMillis(deletedAt)
	if recs != "" {
		if err := json.Unmarshal([]byte(recs), &d.Recommendations); err != nil {
			return nil, fmt.Errorf("failed to decode recommendations: %w", err)
		}
	}
	return d, nil
}
