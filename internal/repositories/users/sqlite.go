package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mkravtsov/cropsync/internal/common"
	"github.com/mkravtsov/cropsync/internal/dbx"
	"github.com/mkravtsov/cropsync/internal/models"
)

const baseColumns = `local_id, server_id, sync_status, updated_at, deleted_at, device_id, version, name, phone, region`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateOrUpdate upserts a user by local id.
func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (` + baseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			server_id = excluded.server_id,
			sync_status = excluded.sync_status,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			device_id = excluded.device_id,
			version = excluded.version,
			name = excluded.name,
			phone = excluded.phone,
			region = excluded.region`
	_, err := r.db.ExecContext(ctx, query,
		u.LocalID, dbx.NullStr(u.ServerID), u.SyncStatus, dbx.Millis(u.UpdatedAt),
		dbx.MillisPtr(u.DeletedAt), u.DeviceID, u.Version, u.Name,
		dbx.NullStr(u.Phone), dbx.NullStr(u.Region))
	if err != nil {
		if dbx.IsConstraintErr(err) {
			return fmt.Errorf("%w: upsert user: %v", common.ErrConstraint, err)
		}
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, localID string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+baseColumns+` FROM users WHERE local_id = ? AND deleted_at IS NULL`, localID)
	return scanUser(row)
}

func (r *SQLiteRepository) GetByIDIncludingDeleted(ctx context.Context, localID string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+baseColumns+` FROM users WHERE local_id = ?`, localID)
	return scanUser(row)
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+baseColumns+` FROM users WHERE deleted_at IS NULL ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to select users: %w", err)
	}
	defer rows.Close()

	var result []models.User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserRow(s rowScanner) (*models.User, error) {
	u := &models.User{}
	var serverID, phone, region sql.NullString
	var updatedAt int64
	var deletedAt sql.NullInt64

	if err := s.Scan(&u.LocalID, &serverID, &u.SyncStatus, &updatedAt, &deletedAt,
		&u.DeviceID, &u.Version, &u.Name, &phone, &region); err != nil {
		return nil, err
	}

	u.ServerID = serverID.String
	u.UpdatedAt = dbx.TimeFromMillis(updatedAt)
	u.DeletedAt = dbx.TimePtrFromMillis(deletedAt)
	u.Phone = phone.String
	u.Region = region.String
	return u, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	u, err := scanUserRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return u, nil
}
