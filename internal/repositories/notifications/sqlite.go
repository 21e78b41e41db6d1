package notifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mkravtsov/cropsync/internal/common"
	"github.com/mkravtsov/cropsync/internal/dbx"
	"github.com/mkravtsov/cropsync/internal/models"
)

const baseColumns = `local_id, server_id, sync_status, updated_at, deleted_at, device_id, version, user_local_id, title, body, category, read, created_at`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, n *models.Notification) error {
	query := `INSERT INTO notifications (` + baseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			server_id = excluded.server_id,
			sync_status = excluded.sync_status,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			device_id = excluded.device_id,
			version = excluded.version,
			user_local_id = excluded.user_local_id,
			title = excluded.title,
			body = excluded.body,
			category = excluded.category,
			read = excluded.read,
			created_at = excluded.created_at`
	_, err := r.db.ExecContext(ctx, query,
		n.LocalID, dbx.NullStr(n.ServerID), n.SyncStatus, dbx.Millis(n.UpdatedAt),
		dbx.MillisPtr(n.DeletedAt), n.DeviceID, n.Version, n.UserLocalID,
		n.Title, n.Body, dbx.NullStr(n.Category), n.Read, dbx.Millis(n.CreatedAt))
	if err != nil {
		if dbx.IsConstraintErr(err) {
			return fmt.Errorf("%w: upsert notification: %v", common.ErrConstraint, err)
		}
		return fmt.Errorf("failed to upsert notification: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, localID string) (*models.Notification, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+baseColumns+` FROM notifications WHERE local_id = ? AND deleted_at IS NULL`, localID)
	return scanOne(row)
}

func (r *SQLiteRepository) GetByIDIncludingDeleted(ctx context.Context, localID string) (*models.Notification, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+baseColumns+` FROM notifications WHERE local_id = ?`, localID)
	return scanOne(row)
}

func (r *SQLiteRepository) GetAllForUser(ctx context.Context, userLocalID string) ([]models.Notification, error) {
	return r.list(ctx,
		`SELECT `+baseColumns+` FROM notifications
		WHERE user_local_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC, local_id`, userLocalID)
}

func (r *SQLiteRepository) GetAllForUserIncludingDeleted(ctx context.Context, userLocalID string) ([]models.Notification, error) {
	return r.list(ctx,
		`SELECT `+baseColumns+` FROM notifications
		WHERE user_local_id = ?
		ORDER BY created_at DESC, local_id`, userLocalID)
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select notifications: %w", err)
	}
	defer rows.Close()

	var result []models.Notification
	for rows.Next() {
		n, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ReplaceForUser swaps one user's cached scope: delete the user's rows,
// insert the merged rows. Run inside a transaction.
func (r *SQLiteRepository) ReplaceForUser(ctx context.Context, userLocalID string, rows []models.Notification) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE user_local_id = ?`, userLocalID); err != nil {
		return fmt.Errorf("failed to clear notifications: %w", err)
	}
	for i := range rows {
		if err := r.CreateOrUpdate(ctx, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (*models.Notification, error) {
	n := &models.Notification{}
	var serverID, category sql.NullString
	var updatedAt, createdAt int64
	var deletedAt sql.NullInt64

	if err := row.Scan(&n.LocalID, &serverID, &n.SyncStatus, &updatedAt, &deletedAt,
		&n.DeviceID, &n.Version, &n.UserLocalID, &n.Title, &n.Body, &category,
		&n.Read, &createdAt); err != nil {
		return nil, err
	}

	n.ServerID = serverID.String
	n.UpdatedAt = dbx.TimeFromMillis(updatedAt)
	n.DeletedAt = dbx.TimePtrFromMillis(deletedAt)
	n.Category = category.String
	n.CreatedAt = dbx.TimeFromMillis(createdAt)
	return n, nil
}

func scanOne(row *sql.Row) (*models.Notification, error) {
	n, err := scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return n, nil
}
