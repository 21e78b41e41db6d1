package outbox

import (
	"context"
	"time"

	"github.com/mkravtsov/cropsync/internal/models"
)

// Repository describes storage operations for the sync_queue table.
//
// The queue key is (table_name, local_id, operation); upserting on that key
// replaces the payload and resets retry bookkeeping, so a record mutated
// again while its intent is still queued simply refreshes the intent.
type Repository interface {
	// Upsert enqueues or refreshes the intent for the given key. The payload
	// snapshot replaces any previous one; retry_count resets to 0 and
	// last_error clears.
	Upsert(ctx context.Context, table, localID string, op models.Operation, payload []byte, now time.Time) error

	// DeleteMatching removes a fulfilled intent, but only while its payload
	// still matches the snapshot that was pushed. An absent entry, or one
	// refreshed with a newer snapshot while the push was in flight, is left
	// alone. Reports whether a row was deleted.
	DeleteMatching(ctx context.Context, e models.QueueEntry) (bool, error)

	// DeleteForRecord removes every queued intent for a record. Used when a
	// pull decides the remote copy wins over a pending local write.
	DeleteForRecord(ctx context.Context, table, localID string) error

	// Pending returns entries with retry_count < maxRetries, oldest first,
	// capped at limit.
	Pending(ctx context.Context, limit, maxRetries int) ([]models.QueueEntry, error)

	// GetForRecord returns every entry for a record, exhausted ones
	// included, for inspection.
	GetForRecord(ctx context.Context, table, localID string) ([]models.QueueEntry, error)

	// RecordFailure increments retry_count and stores the error text and
	// attempt time for the given key.
	RecordFailure(ctx context.Context, table, localID string, op models.Operation, errText string, now time.Time) error

	// ResetRetries zeroes retry bookkeeping for the given key so an
	// exhausted entry becomes eligible for pending retrieval again.
	ResetRetries(ctx context.Context, table, localID string, op models.Operation) error

	// CountPending counts entries below the retry ceiling.
	CountPending(ctx context.Context, maxRetries int) (int, error)

	// CountExhausted counts entries at or above the retry ceiling.
	CountExhausted(ctx context.Context, maxRetries int) (int, error)
}
