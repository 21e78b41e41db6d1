package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mkravtsov/cropsync/internal/common"
	"github.com/mkravtsov/cropsync/internal/dbx"
	"github.com/mkravtsov/cropsync/internal/models"
)

const columns = `id, table_name, local_id, operation, payload, retry_count, last_error, created_at, last_attempted_at`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, table, localID string, op models.Operation, payload []byte, now time.Time) error {
	query := `INSERT INTO sync_queue (table_name, local_id, operation, payload, retry_count, last_error, created_at, last_attempted_at)
		VALUES (?, ?, ?, ?, 0, NULL, ?, NULL)
		ON CONFLICT(table_name, local_id, operation) DO UPDATE SET
			payload = excluded.payload,
			retry_count = 0,
			last_error = NULL,
			last_attempted_at = NULL`
	_, err := r.db.ExecContext(ctx, query, table, localID, op, payload, dbx.Millis(now))
	if err != nil {
		if dbx.IsConstraintErr(err) {
			return fmt.Errorf("%w: enqueue %s/%s: %v", common.ErrConstraint, table, localID, err)
		}
		return fmt.Errorf("failed to enqueue %s/%s: %w", table, localID, err)
	}
	return nil
}

// DeleteMatching compares payloads with IS so a NULL snapshot still matches.
func (r *SQLiteRepository) DeleteMatching(ctx context.Context, e models.QueueEntry) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE table_name = ? AND local_id = ? AND operation = ? AND payload IS ?`,
		e.TableName, e.LocalID, e.Operation, e.Payload)
	if err != nil {
		return false, fmt.Errorf("failed to delete queue entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete queue entry: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) DeleteForRecord(ctx context.Context, table, localID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE table_name = ? AND local_id = ?`, table, localID)
	if err != nil {
		return fmt.Errorf("failed to delete queue entries: %w", err)
	}
	return nil
}

// Pending orders by created_at, breaking ties by the autoincrement id, which
// preserves FIFO order within equal timestamps.
func (r *SQLiteRepository) Pending(ctx context.Context, limit, maxRetries int) ([]models.QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+columns+` FROM sync_queue
		WHERE retry_count < ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending entries: %w", err)
	}
	return collect(rows)
}

func (r *SQLiteRepository) GetForRecord(ctx context.Context, table, localID string) ([]models.QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+columns+` FROM sync_queue
		WHERE table_name = ? AND local_id = ?
		ORDER BY created_at ASC, id ASC`, table, localID)
	if err != nil {
		return nil, fmt.Errorf("failed to select queue entries: %w", err)
	}
	return collect(rows)
}

func (r *SQLiteRepository) RecordFailure(ctx context.Context, table, localID string, op models.Operation, errText string, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue
		SET retry_count = retry_count + 1, last_error = ?, last_attempted_at = ?
		WHERE table_name = ? AND local_id = ? AND operation = ?`,
		errText, dbx.Millis(now), table, localID, op)
	if err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ResetRetries(ctx context.Context, table, localID string, op models.Operation) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue
		SET retry_count = 0, last_error = NULL
		WHERE table_name = ? AND local_id = ? AND operation = ?`,
		table, localID, op)
	if err != nil {
		return fmt.Errorf("failed to reset retries: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CountPending(ctx context.Context, maxRetries int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_queue WHERE retry_count < ?`, maxRetries).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending entries: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) CountExhausted(ctx context.Context, maxRetries int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_queue WHERE retry_count >= ?`, maxRetries).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count exhausted entries: %w", err)
	}
	return n, nil
}

func collect(rows *sql.Rows) ([]models.QueueEntry, error) {
	defer rows.Close()

	var result []models.QueueEntry
	for rows.Next() {
		var e models.QueueEntry
		var payload []byte
		var lastError sql.NullString
		var createdAt int64
		var lastAttemptedAt sql.NullInt64

		if err := rows.Scan(&e.ID, &e.TableName, &e.LocalID, &e.Operation, &payload,
			&e.RetryCount, &lastError, &createdAt, &lastAttemptedAt); err != nil {
			return nil, err
		}

		e.Payload = payload
		e.LastError = lastError.String
		e.CreatedAt = dbx.TimeFromMillis(createdAt)
		e.LastAttemptedAt = dbx.TimePtrFromMillis(lastAttemptedAt)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
