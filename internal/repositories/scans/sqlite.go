package scans

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

const baseColumns = `local_id, server_id, sync_status, updated_at, deleted_at, device_id, version, user_local_id, image_path, crop, latitude, longitude`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateOrUpdate upserts a scan by local id. A missing owning user surfaces
// as a constraint violation.
func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, s *models.Scan) error {
	query := `INSERT INTO scans (` + baseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			server_id = excluded.server_id,
			sync_status = excluded.sync_status,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			device_id = excluded.device_id,
			version = excluded.version,
			user_local_id = excluded.user_local_id,
			image_path = excluded.image_path,
			crop = excluded.crop,
			latitude = excluded.latitude,
			longitude = excluded.longitude`
	_, err := r.db.ExecContext(ctx, query,
		s.LocalID, dbx.NullStr(s.ServerID), s.SyncStatus, dbx.Millis(s.UpdatedAt),
		dbx.MillisPtr(s.DeletedAt), s.DeviceID, s.Version, s.UserLocalID,
		s.ImagePath, dbx.NullStr(s.Crop), s.Latitude, s.Longitude)
	if err != nil {
		if dbx.IsConstraintErr(err) {
			return fmt.Errorf("%w: upsert scan: %v", common.ErrConstraint, err)
		}
		return fmt.Errorf("failed to upsert scan: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, localID string) (*models.Scan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+baseColumns+` FROM scans WHERE local_id = ? AND deleted_at IS NULL`, localID)
	return scanScan(row)
}

func (r *SQLiteRepository) GetByIDIncludingDeleted(ctx context.Context, localID string) (*models.Scan, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+baseColumns+` FROM scans WHERE local_id = ?`, localID)
	return scanScan(row)
}

func (r *SQLiteRepository) GetAllForUser(ctx context.Context, userLocalID string) ([]models.Scan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+baseColumns+` FROM scans
		WHERE user_local_id = ? AND deleted_at IS NULL
		ORDER BY updated_at DESC, local_id`, userLocalID)
	if err != nil {
		return nil, fmt.Errorf("failed to select scans: %w", err)
	}
	defer rows.Close()

	var result []models.Scan
	for rows.Next() {
		s, err := scanScanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetAllWithDiagnosis joins each scan with its diagnosis via a LEFT JOIN, so
// scans awaiting diagnosis still appear.
func (r *SQLiteRepository) GetAllWithDiagnosis(ctx context.Context, userLocalID string) ([]models.ScanWithDiagnosis, error) {
	query := `SELECT
			s.local_id, s.server_id, s.sync_status, s.updated_at, s.deleted_at, s.device_id, s.version,
			s.user_local_id, s.image_path, s.crop, s.latitude, s.longitude,
			d.local_id, d.server_id, d.sync_status, d.updated_at, d.deleted_at, d.device_id, d.version,
			d.scan_local_id, d.disease, d.confidence, d.severity, d.recommendations
		FROM scans s
		LEFT JOIN diagnoses d ON d.scan_local_id = s.local_id AND d.deleted_at IS NULL
		WHERE s.user_local_id = ? AND s.deleted_at IS NULL
		ORDER BY s.updated_at DESC, s.local_id`
	rows, err := r.db.QueryContext(ctx, query, userLocalID)
	if err != nil {
		return nil, fmt.Errorf("failed to select scans with diagnoses: %w", err)
	}
	defer rows.Close()

	var result []models.ScanWithDiagnosis
	for rows.Next() {
		var item models.ScanWithDiagnosis
		s := &item.Scan

		var serverID, crop sql.NullString
		var updatedAt int64
		var deletedAt sql.NullInt64
		var lat, lng sql.NullFloat64

		var dLocalID, dServerID, dSyncStatus, dDeviceID, dScanID, dDisease, dSeverity, dRecs sql.NullString
		var dUpdatedAt, dDeletedAt, dVersion sql.NullInt64
		var dConfidence sql.NullFloat64

		err := rows.Scan(
			&s.LocalID, &serverID, &s.SyncStatus, &updatedAt, &deletedAt, &s.DeviceID, &s.Version,
			&s.UserLocalID, &s.ImagePath, &crop, &lat, &lng,
			&dLocalID, &dServerID, &dSyncStatus, &dUpdatedAt, &dDeletedAt, &dDeviceID, &dVersion,
			&dScanID, &dDisease, &dConfidence, &dSeverity, &dRecs)
		if err != nil {
			return nil, err
		}

		s.ServerID = serverID.String
		s.UpdatedAt = dbx.TimeFromMillis(updatedAt)
		s.DeletedAt = dbx.TimePtrFromMillis(deletedAt)
		s.Crop = crop.String
		s.Latitude = lat.Float64
		s.Longitude = lng.Float64

		if dLocalID.Valid {
			d := &models.Diagnosis{}
			d.LocalID = dLocalID.String
			d.ServerID = dServerID.String
			d.SyncStatus = models.SyncStatus(dSyncStatus.String)
			d.UpdatedAt = dbx.TimeFromMillis(dUpdatedAt.Int64)
			d.DeletedAt = dbx.TimePtrFromMillis(dDeletedAt)
			d.DeviceID = dDeviceID.String
			d.Version = dVersion.Int64
			d.ScanLocalID = dScanID.String
			d.Disease = dDisease.String
			d.Confidence = dConfidence.Float64
			d.Severity = models.Severity(dSeverity.String)
			if dRecs.Valid && dRecs.String != "" {
				if err := json.Unmarshal([]byte(dRecs.String), &d.Recommendations); err != nil {
					return nil, fmt.Errorf("failed to decode recommendations: %w", err)
				}
			}
			item.Diagnosis = d
		}

		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScanRow(row rowScanner) (*models.Scan, error) {
	s := &models.Scan{}
	var serverID, crop sql.NullString
	var updatedAt int64
	var deletedAt sql.NullInt64
	var lat, lng sql.NullFloat64

	if err := row.Scan(&s.LocalID, &serverID, &s.SyncStatus, &updatedAt, &deletedAt,
		&s.DeviceID, &s.Version, &s.UserLocalID, &s.ImagePath, &crop, &lat, &lng); err != nil {
		return nil, err
	}

	s.ServerID = serverID.String
	s.UpdatedAt = dbx.TimeFromMillis(updatedAt)
	s.DeletedAt = dbx.TimePtrFromMillis(deletedAt)
	s.Crop = crop.String
	s.Latitude = lat.Float64
	s.Longitude = lng.Float64
	return s, nil
}

func scanScan(row *sql.Row) (*models.Scan, error) {
	s, err := scanScanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return s, nil
}
