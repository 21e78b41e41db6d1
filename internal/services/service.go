// Package services implements the write and read API the UI calls.
//
// Every mutation follows the same shape inside a single transaction: bump
// the record's version, stamp updated_at and device_id, set sync_status to
// pending, upsert the record, and enqueue the remote intent with a JSON
// snapshot of the record taken at that moment. The snapshot is what gets
// pushed; later mutations refresh the queued intent rather than leaking
// into it.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mkravtsov/cropsync/internal/common"
	"github.com/mkravtsov/cropsync/internal/dbx"
	"github.com/mkravtsov/cropsync/internal/logging"
	"github.com/mkravtsov/cropsync/internal/models"
	"github.com/mkravtsov/cropsync/internal/outbox"
)

// core carries the dependencies shared by every service.
type core struct {
	db       *sql.DB
	queue    *outbox.Manager
	log      logging.Logger
	deviceID string
	now      func() time.Time
}

// Services bundles the per-entity services behind one constructor.
type Services struct {
	Users         UserService
	Scans         ScanService
	Diagnoses     DiagnosisService
	Tips          TipService
	Notifications NotificationService

	queue *outbox.Manager
}

func New(db *sql.DB, queue *outbox.Manager, log logging.Logger, deviceID string) *Services {
	c := &core{
		db:       db,
		queue:    queue,
		log:      log,
		deviceID: deviceID,
		now:      time.Now,
	}
	return &Services{
		Users:         &userService{core: c},
		Scans:         &scanService{core: c},
		Diagnoses:     &diagnosisService{core: c},
		Tips:          &tipService{core: c},
		Notifications: &notificationService{core: c},
		queue:         queue,
	}
}

// PendingCount reports how many outbox entries await pushing, for UI badges.
func (s *Services) PendingCount(ctx context.Context) (int, error) {
	return s.queue.PendingCount(ctx)
}

// ExhaustedCount reports how many outbox entries sit at the retry ceiling.
func (s *Services) ExhaustedCount(ctx context.Context) (int, error) {
	return s.queue.ExhaustedCount(ctx)
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}

// opFor picks the remote operation for a mutated record. A record the server
// has never acknowledged pushes as insert even on its second or third local
// edit; the upsert-keyed queue then collapses those edits into one refreshed
// insert intent.
func opFor(s *models.Syncable) models.Operation {
	if s.ServerID == "" {
		return models.OperationInsert
	}
	return models.OperationUpdate
}

// enqueue snapshots the record and registers the intent in the caller's
// transaction.
func (c *core) enqueue(ctx context.Context, tx dbx.DBTX, table string, record any, base *models.Syncable, op models.Operation, now time.Time) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to snapshot %s/%s: %w", table, base.LocalID, err)
	}
	return c.queue.Enqueue(ctx, tx, table, base.LocalID, op, payload, now)
}
