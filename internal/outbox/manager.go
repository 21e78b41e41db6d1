// Package outbox coordinates the durable sync queue with the sync status of
// the records it mirrors. Every mutation enqueues its remote intent in the
// same transaction that writes the record, so a pending record and its queue
// entry can never drift apart.
package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mkravtsov/cropsync/internal/common"
	"github.com/mkravtsov/cropsync/internal/dbx"
	"github.com/mkravtsov/cropsync/internal/logging"
	"github.com/mkravtsov/cropsync/internal/models"
	outboxrepo "github.com/mkravtsov/cropsync/internal/repositories/outbox"
)

// Manager owns queue lifecycle: enqueueing intents alongside record writes,
// acknowledging pushed entries, and recording failed attempts.
type Manager struct {
	db         *sql.DB
	log        logging.Logger
	maxRetries int
	now        func() time.Time
}

func NewManager(db *sql.DB, log logging.Logger, maxRetries int) *Manager {
	return &Manager{
		db:         db,
		log:        log.With("component", "outbox"),
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// MaxRetries returns the retry ceiling entries are retried up to.
func (m *Manager) MaxRetries() int { return m.maxRetries }

// validTable guards table names before they are interpolated into SQL.
func validTable(table string) error {
	if !models.IsSyncTable(table) {
		return fmt.Errorf("unknown sync table %q", table)
	}
	return nil
}

// Enqueue records a remote intent inside the caller's transaction. The
// payload is a snapshot of the record at mutation time; pushes never re-read
// the row, so a later mutation cannot leak into an earlier intent.
//
// Enqueueing an intent that is already queued for the same record and
// operation refreshes it: new payload, retry bookkeeping cleared.
func (m *Manager) Enqueue(ctx context.Context, tx dbx.DBTX, table, localID string, op models.Operation, payload []byte, now time.Time) error {
	if err := validTable(table); err != nil {
		return err
	}
	return outboxrepo.NewSQLiteRepository(tx).Upsert(ctx, table, localID, op, payload, now)
}

// Discard removes every queued intent for a record, inside the caller's
// transaction. Used when a pull decides the remote copy supersedes pending
// local writes, and when a never-pushed record is deleted (there is nothing
// to tell the server).
func (m *Manager) Discard(ctx context.Context, tx dbx.DBTX, table, localID string) error {
	if err := validTable(table); err != nil {
		return err
	}
	return outboxrepo.NewSQLiteRepository(tx).DeleteForRecord(ctx, table, localID)
}

// MarkSynced acknowledges a pushed entry: stores the server-assigned id on
// the record, deletes the fulfilled queue entry, and flips the record to
// synced — all in one transaction. The record stays pending if other intents
// for it are still queued (e.g. an update acknowledged while a delete waits).
//
// The record row may be gone for delete pushes; the status update is then a
// no-op. Likewise the queue entry may have raced away, or been refreshed
// with a newer snapshot while the push was in flight; the refreshed intent
// stays queued and the record stays pending so the newer snapshot still
// pushes.
func (m *Manager) MarkSynced(ctx context.Context, e models.QueueEntry, serverID string) error {
	if err := validTable(e.TableName); err != nil {
		return err
	}
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := outboxrepo.NewSQLiteRepository(tx)
		if _, err := repo.DeleteMatching(ctx, e); err != nil {
			return err
		}

		remaining, err := repo.GetForRecord(ctx, e.TableName, e.LocalID)
		if err != nil {
			return err
		}

		status := models.SyncStatusSynced
		if len(remaining) > 0 {
			status = models.SyncStatusPending
		}

		query := `UPDATE ` + e.TableName + ` SET server_id = ?, sync_status = ? WHERE local_id = ?`
		if _, err := tx.ExecContext(ctx, query, dbx.NullStr(serverID), status, e.LocalID); err != nil {
			return fmt.Errorf("failed to mark %s/%s synced: %w", e.TableName, e.LocalID, err)
		}
		return nil
	})
}

// MarkFailed records a failed push attempt: increments the entry's retry
// count, stores the error text and attempt time, and flips the record to
// failed. The entry stays queued. When the failure reaches the retry
// ceiling the returned error wraps common.ErrQueueExhausted.
func (m *Manager) MarkFailed(ctx context.Context, e models.QueueEntry, cause error) error {
	if err := validTable(e.TableName); err != nil {
		return err
	}
	now := m.now().UTC()

	err := dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := outboxrepo.NewSQLiteRepository(tx)
		if err := repo.RecordFailure(ctx, e.TableName, e.LocalID, e.Operation, cause.Error(), now); err != nil {
			return err
		}

		query := `UPDATE ` + e.TableName + ` SET sync_status = ? WHERE local_id = ?`
		if _, err := tx.ExecContext(ctx, query, models.SyncStatusFailed, e.LocalID); err != nil {
			return fmt.Errorf("failed to mark %s/%s failed: %w", e.TableName, e.LocalID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if e.RetryCount+1 >= m.maxRetries {
		m.log.Warn(ctx, "outbox entry reached retry ceiling",
			"table", e.TableName, "local_id", e.LocalID, "operation", e.Operation,
			"retries", e.RetryCount+1, "last_error", cause.Error())
		return fmt.Errorf("%w: %s/%s %s", common.ErrQueueExhausted, e.TableName, e.LocalID, e.Operation)
	}
	return nil
}

// Pending returns the next batch of entries eligible for pushing, oldest
// first. Entries at the retry ceiling are excluded.
func (m *Manager) Pending(ctx context.Context, limit int) ([]models.QueueEntry, error) {
	return outboxrepo.NewSQLiteRepository(m.db).Pending(ctx, limit, m.maxRetries)
}

// Entries returns every queued intent for a record, exhausted ones included.
func (m *Manager) Entries(ctx context.Context, table, localID string) ([]models.QueueEntry, error) {
	if err := validTable(table); err != nil {
		return nil, err
	}
	return outboxrepo.NewSQLiteRepository(m.db).GetForRecord(ctx, table, localID)
}

// Retry re-arms an exhausted entry: retry bookkeeping resets to zero so the
// next pass picks it up again. Retrying a key with no queued entry returns
// common.ErrNotFound.
func (m *Manager) Retry(ctx context.Context, table, localID string, op models.Operation) error {
	if err := validTable(table); err != nil {
		return err
	}
	repo := outboxrepo.NewSQLiteRepository(m.db)

	entries, err := repo.GetForRecord(ctx, table, localID)
	if err != nil {
		return err
	}
	found := false
	for _, e := range entries {
		if e.Operation == op {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: no queued %s for %s/%s", common.ErrNotFound, op, table, localID)
	}
	return repo.ResetRetries(ctx, table, localID, op)
}

// PendingCount counts entries below the retry ceiling, for UI badges.
func (m *Manager) PendingCount(ctx context.Context) (int, error) {
	return outboxrepo.NewSQLiteRepository(m.db).CountPending(ctx, m.maxRetries)
}

// ExhaustedCount counts entries stuck at the retry ceiling.
func (m *Manager) ExhaustedCount(ctx context.Context) (int, error) {
	return outboxrepo.NewSQLiteRepository(m.db).CountExhausted(ctx, m.maxRetries)
}
