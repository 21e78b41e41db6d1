package syncer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/mkravtsov/cropsync/internal/common"
	"github.com/mkravtsov/cropsync/internal/dbx"
	"github.com/mkravtsov/cropsync/internal/logging"
	"github.com/mkravtsov/cropsync/internal/models"
	"github.com/mkravtsov/cropsync/internal/outbox"
	"github.com/mkravtsov/cropsync/internal/remote"
	"github.com/mkravtsov/cropsync/internal/repositories/notifications"
	"github.com/mkravtsov/cropsync/internal/repositories/tips"
	"github.com/mkravtsov/cropsync/internal/repositories/users"
)

// Syncer runs reconciliation passes: push the outbox, then pull the tip feed
// and each user's notifications.
type Syncer struct {
	db         *sql.DB
	backend    remote.Backend
	queue      *outbox.Manager
	log        logging.Logger
	batchLimit int

	group   singleflight.Group
	running atomic.Bool
}

func New(db *sql.DB, backend remote.Backend, queue *outbox.Manager, log logging.Logger, batchLimit int) *Syncer {
	return &Syncer{
		db:         db,
		backend:    backend,
		queue:      queue,
		log:        log.With("component", "syncer"),
		batchLimit: batchLimit,
	}
}

// Running reports whether a pass is currently in flight.
func (s *Syncer) Running() bool {
	return s.running.Load()
}

// Run executes one reconciliation pass. Concurrent calls coalesce: a second
// caller joins the in-flight pass and shares its result instead of starting
// another one.
func (s *Syncer) Run(ctx context.Context) error {
	_, err, _ := s.group.Do("sync", func() (any, error) {
		s.running.Store(true)
		defer s.running.Store(false)
		return nil, s.run(ctx)
	})
	return err
}

// RunOnce is the non-joining variant used by interactive triggers: it
// refuses to start while a pass is already in flight instead of waiting
// on it.
func (s *Syncer) RunOnce(ctx context.Context) error {
	if s.running.Load() {
		return common.ErrSyncInProgress
	}
	return s.Run(ctx)
}

// run is the pass body: push-then-pull. Push-before-pull lets the server see
// local changes before the merge decides winners.
func (s *Syncer) run(ctx context.Context) error {
	var errs []error

	if err := s.pushPass(ctx); err != nil {
		if ctxDone(err) {
			return err
		}
		errs = append(errs, err)
	}
	if err := s.pullTips(ctx); err != nil {
		if ctxDone(err) {
			return err
		}
		errs = append(errs, fmt.Errorf("pull tips: %w", err))
	}
	if err := s.pullNotifications(ctx); err != nil {
		if ctxDone(err) {
			return err
		}
		errs = append(errs, fmt.Errorf("pull notifications: %w", err))
	}

	return errors.Join(errs...)
}

func ctxDone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// pushPass drains one batch of pending outbox entries. Failures are isolated
// per entry: a rejected or unreachable push marks that entry failed and the
// pass moves on. Each entry's remote call plus status update is the
// atomicity unit; cancellation is honored between entries.
func (s *Syncer) pushPass(ctx context.Context) error {
	entries, err := s.queue.Pending(ctx, s.batchLimit)
	if err != nil {
		return fmt.Errorf("load pending entries: %w", err)
	}

	var pushed, failed int
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		serverID, err := s.backend.Push(ctx, e.TableName, e.Operation, e.LocalID, e.Payload)
		if err != nil {
			if ctxDone(err) {
				return err
			}
			failed++
			s.log.Warn(ctx, "push failed",
				"table", e.TableName, "local_id", e.LocalID, "operation", e.Operation, "error", err)
			if mfErr := s.queue.MarkFailed(ctx, e, err); mfErr != nil && !errors.Is(mfErr, common.ErrQueueExhausted) {
				return fmt.Errorf("mark entry failed: %w", mfErr)
			}
			continue
		}

		// Bodiless delete acks carry no id; keep the one from the snapshot.
		if serverID == "" {
			serverID = serverIDFromPayload(e.Payload)
		}

		if err := s.queue.MarkSynced(ctx, e, serverID); err != nil {
			return fmt.Errorf("mark entry synced: %w", err)
		}
		pushed++
	}

	s.log.Info(ctx, "push pass finished", "pushed", pushed, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("push pass: %d of %d entries failed", failed, len(entries))
	}
	return nil
}

func serverIDFromPayload(payload []byte) string {
	var snap struct {
		ServerID string `json:"server_id"`
	}
	_ = json.Unmarshal(payload, &snap)
	return snap.ServerID
}

// pullTips replaces the tip cache with the merge of the remote feed and the
// local rows. Tips are pull-dominant: the server copy wins conflicts in
// practice because tips never mutate locally.
//
// The local scope is read in the same transaction that replaces it; a row
// committed between a detached read and the replace would be lost.
func (s *Syncer) pullTips(ctx context.Context) error {
	remoteTips, err := s.backend.PullTips(ctx, 0, 0)
	if err != nil {
		return err
	}

	var total int
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := tips.NewSQLiteRepository(tx)
		localTips, err := repo.GetAllIncludingDeleted(ctx)
		if err != nil {
			return err
		}

		merged := merge(asPtrs(remoteTips), asPtrs(localTips))

		rows := make([]models.Tip, 0, len(merged))
		for _, m := range merged {
			if m.RemoteWon {
				if err := s.queue.Discard(ctx, tx, models.TableTips, m.Row.LocalID); err != nil {
					return err
				}
			}
			if m.Row.SyncStatus == "" {
				m.Row.SyncStatus = models.SyncStatusSynced
			}
			rows = append(rows, *m.Row)
		}
		total = len(rows)
		return repo.ReplaceAll(ctx, rows)
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "tips merged", "remote", len(remoteTips), "total", total)
	return nil
}

// pullNotifications merges the server's notifications for every local user.
// Locally created, still-unpushed notifications survive the merge as
// local-only rows; a best-effort push of those follows so a freshly online
// device converges in one pass. Push failures there are swallowed and
// logged: the local copy stays authoritative and the regular push pass
// retries later.
func (s *Syncer) pullNotifications(ctx context.Context) error {
	allUsers, err := users.NewSQLiteRepository(s.db).GetAll(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for i := range allUsers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.pullNotificationsForUser(ctx, allUsers[i].LocalID); err != nil {
			if ctxDone(err) {
				return err
			}
			errs = append(errs, fmt.Errorf("user %s: %w", allUsers[i].LocalID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Syncer) pullNotificationsForUser(ctx context.Context, userLocalID string) error {
	remoteRows, err := s.backend.PullNotifications(ctx, userLocalID)
	if err != nil {
		return err
	}

	// The local scope is read and replaced in one transaction, so a
	// notification committed while the remote fetch ran is merged rather
	// than dropped by the replace.
	var merged []Tagged[*models.Notification]
	var total int
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := notifications.NewSQLiteRepository(tx)
		localRows, err := repo.GetAllForUserIncludingDeleted(ctx, userLocalID)
		if err != nil {
			return err
		}

		merged = merge(asPtrs(remoteRows), asPtrs(localRows))

		rows := make([]models.Notification, 0, len(merged))
		for _, m := range merged {
			if m.RemoteWon {
				if err := s.queue.Discard(ctx, tx, models.TableNotifications, m.Row.LocalID); err != nil {
					return err
				}
			}
			if m.Row.SyncStatus == "" {
				m.Row.SyncStatus = models.SyncStatusSynced
			}
			rows = append(rows, *m.Row)
		}
		total = len(rows)
		return repo.ReplaceForUser(ctx, userLocalID, rows)
	})
	if err != nil {
		return err
	}

	// Best-effort push of surviving local-only rows. No transaction is open
	// here; failures leave the queued intent in place.
	for _, m := range merged {
		if m.Origin != OriginLocalOnly || m.Row.SyncStatus != models.SyncStatusPending {
			continue
		}
		entries, err := s.queue.Entries(ctx, models.TableNotifications, m.Row.LocalID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Exhausted(s.queue.MaxRetries()) {
				continue
			}
			serverID, err := s.backend.Push(ctx, e.TableName, e.Operation, e.LocalID, e.Payload)
			if err != nil {
				if ctxDone(err) {
					return err
				}
				s.log.Warn(ctx, "best-effort notification push failed",
					"local_id", e.LocalID, "error", err)
				continue
			}
			if serverID == "" {
				serverID = serverIDFromPayload(e.Payload)
			}
			if err := s.queue.MarkSynced(ctx, e, serverID); err != nil {
				return err
			}
		}
	}

	s.log.Info(ctx, "notifications merged", "user", userLocalID,
		"remote", len(remoteRows), "total", total)
	return nil
}

// asPtrs adapts a value slice to the pointer element type merge works over.
func asPtrs[T any](rows []T) []*T {
	out := make([]*T, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}
