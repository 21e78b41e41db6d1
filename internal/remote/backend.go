// Package remote adapts the backend REST API for the reconciliation engine.
package remote

import (
	"context"

	"github.com/mkravtsov/cropsync/internal/models"
)

// TokenProvider supplies the bearer token attached to every request. Token
// acquisition and refresh live outside this module; an empty token means
// the request goes out unauthenticated.
type TokenProvider func(ctx context.Context) (string, error)

// Backend is the remote surface the reconciliation engine drives.
//
// Push errors are classified into two sentinels: common.ErrRemoteTransient
// for failures worth retrying soon (network, timeout, 5xx, rate limiting)
// and common.ErrRemoteRejected for requests the server refused. Both kinds
// leave the outbox entry queued; the distinction only affects logging and
// backoff.
type Backend interface {
	// Ping probes server reachability. Used by the connectivity watcher.
	Ping(ctx context.Context) error

	// Push replays one queued mutation. The local id doubles as the
	// idempotency key, so a retry of an already-applied push is safe.
	// Returns the server-assigned id for the record; deletes return the
	// id already known, when any.
	Push(ctx context.Context, table string, op models.Operation, localID string, payload []byte) (string, error)

	// PullTips fetches the server-authoritative tip feed.
	PullTips(ctx context.Context, limit, offset int) ([]models.Tip, error)

	// PullNotifications fetches the server's notifications for a user.
	PullNotifications(ctx context.Context, userLocalID string) ([]models.Notification, error)
}
