package tips

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mkravtsov/cropsync/internal/common"
	"github.com/mkravtsov/cropsync/internal/dbx"
	"github.com/mkravtsov/cropsync/internal/models"
)

const baseColumns = `local_id, server_id, sync_status, updated_at, deleted_at, device_id, version, title, body, category, created_at`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateOrUpdate(ctx context.Context, tip *models.Tip) error {
	query := `INSERT INTO tips (` + baseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			server_id = excluded.server_id,
			sync_status = excluded.sync_status,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			device_id = excluded.device_id,
			version = excluded.version,
			title = excluded.title,
			body = excluded.body,
			category = excluded.category,
			created_at = excluded.created_at`
	_, err := r.db.ExecContext(ctx, query,
		tip.LocalID, dbx.NullStr(tip.ServerID), tip.SyncStatus, dbx.Millis(tip.UpdatedAt),
		dbx.MillisPtr(tip.DeletedAt), tip.DeviceID, tip.Version,
		tip.Title, tip.Body, dbx.NullStr(tip.Category), dbx.Millis(tip.CreatedAt))
	if err != nil {
		if dbx.IsConstraintErr(err) {
			return fmt.Errorf("%w: upsert tip: %v", common.ErrConstraint, err)
		}
		return fmt.Errorf("failed to upsert tip: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, localID string) (*models.Tip, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+baseColumns+` FROM tips WHERE local_id = ? AND deleted_at IS NULL`, localID)
	tip, err := scanTipRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return tip, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Tip, error) {
	return r.list(ctx, `SELECT `+baseColumns+` FROM tips WHERE deleted_at IS NULL ORDER BY created_at DESC, local_id`)
}

func (r *SQLiteRepository) GetAllIncludingDeleted(ctx context.Context) ([]models.Tip, error) {
	return r.list(ctx, `SELECT `+baseColumns+` FROM tips ORDER BY created_at DESC, local_id`)
}

func (r *SQLiteRepository) list(ctx context.Context, query string) ([]models.Tip, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select tips: %w", err)
	}
	defer rows.Close()

	var result []models.Tip
	for rows.Next() {
		tip, err := scanTipRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *tip)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ReplaceAll swaps the entire cached scope: delete everything, insert the
// merged rows. Run inside a transaction.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, rows []models.Tip) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tips`); err != nil {
		return fmt.Errorf("failed to clear tips: %w", err)
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

func scanTipRow(row rowScanner) (*models.Tip, error) {
	tip := &models.Tip{}
	var serverID, category sql.NullString
	var updatedAt, createdAt int64
	var deletedAt sql.NullInt64

	if err := row.Scan(&tip.LocalID, &serverID, &tip.SyncStatus, &updatedAt, &deletedAt,
		&tip.DeviceID, &tip.Version, &tip.Title, &tip.Body, &category, &createdAt); err != nil {
		return nil, err
	}

	tip.ServerID = serverID.String
	tip.UpdatedAt = dbx.TimeFromMillis(updatedAt)
	tip.DeletedAt = dbx.TimePtrFromMillis(deletedAt)
	tip.Category = category.String
	tip.CreatedAt = dbx.TimeFromMillis(createdAt)
	return tip, nil
}
