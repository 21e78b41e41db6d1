package models

import (
	"encoding/json"
	"time"
)

// QueueEntry is one row of the durable outbox: a pending remote intent for a
// single (table, record, operation) key.
//
// Payload holds a JSON snapshot of the record taken at enqueue time, so a
// push never depends on re-reading a row that may have been tombstoned or
// rewritten since.
type QueueEntry struct {
	ID              int64
	TableName       string
	LocalID         string
	Operation       Operation
	Payload         json.RawMessage
	RetryCount      int
	LastError       string
	CreatedAt       time.Time
	LastAttemptedAt *time.Time
}

// Exhausted reports whether the entry reached the retry ceiling and is
// therefore excluded from pending-work retrieval. Exhausted entries are kept
// for inspection, never deleted automatically.
func (e *QueueEntry) Exhausted(maxRetries int) bool {
	return e.RetryCount >= maxRetries
}
