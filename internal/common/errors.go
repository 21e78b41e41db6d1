// Package common defines shared constants and sentinel errors used across
// CropSync components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound   = errors.New("not found")
	ErrConstraint = errors.New("constraint violation")

	// Remote backend errors. Transient failures (network, timeout,
	// rate limiting) are retried on a later pass; rejections are retried
	// too, up to the ceiling, because the client cannot reliably tell a
	// transient-looking rejection from a permanent one.
	ErrRemoteTransient = errors.New("remote temporarily unavailable")
	ErrRemoteRejected  = errors.New("remote rejected request")

	// ErrQueueExhausted marks an outbox entry that reached the retry
	// ceiling. It stays in the queue for inspection and manual retry.
	ErrQueueExhausted = errors.New("retry ceiling reached")

	// ErrSyncInProgress is returned when a reconciliation pass is requested
	// while another one is already running.
	ErrSyncInProgress = errors.New("sync already in progress")
)
