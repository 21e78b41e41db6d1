package syncer

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkravtsov/cropsync/internal/common"
	"github.com/mkravtsov/cropsync/internal/logging"
	"github.com/mkravtsov/cropsync/internal/models"
	"github.com/mkravtsov/cropsync/internal/outbox"
	"github.com/mkravtsov/cropsync/internal/repositories/scans"
	"github.com/mkravtsov/cropsync/internal/services"
	"github.com/mkravtsov/cropsync/internal/store"
)

type pushCall struct {
	Table   string
	Op      models.Operation
	LocalID string
}

// fakeBackend is an in-memory Backend double. Push failures are injected
// per local id.
type fakeBackend struct {
	mu       sync.Mutex
	pingErr  error
	pushErrs map[string]error
	pushes   []pushCall
	tips     []models.Tip
	notifs   map[string][]models.Notification
	nextID   int

	// afterPullNotifs runs after the remote snapshot is taken, before the
	// engine merges it. Used to interleave a local write with a pull pass.
	afterPullNotifs func(userLocalID string)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		pushErrs: map[string]error{},
		notifs:   map[string][]models.Notification{},
	}
}

func (f *fakeBackend) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeBackend) Push(ctx context.Context, table string, op models.Operation, localID string, payload []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pushes = append(f.pushes, pushCall{Table: table, Op: op, LocalID: localID})
	if err, ok := f.pushErrs[localID]; ok {
		return "", err
	}
	f.nextID++
	return fmt.Sprintf("srv-%d", f.nextID), nil
}

func (f *fakeBackend) PullTips(ctx context.Context, limit, offset int) ([]models.Tip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Tip(nil), f.tips...), nil
}

func (f *fakeBackend) PullNotifications(ctx context.Context, userLocalID string) ([]models.Notification, error) {
	f.mu.Lock()
	rows := append([]models.Notification(nil), f.notifs[userLocalID]...)
	hook := f.afterPullNotifs
	f.mu.Unlock()

	if hook != nil {
		hook(userLocalID)
	}
	return rows, nil
}

func (f *fakeBackend) pushCount(localID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.pushes {
		if p.LocalID == localID {
			n++
		}
	}
	return n
}

type fixture struct {
	db      *sql.DB
	backend *fakeBackend
	queue   *outbox.Manager
	svc     *services.Services
	syncer  *Syncer
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(context.Background(), store.MemoryDSN("syncer_"+t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	backend := newFakeBackend()
	queue := outbox.NewManager(db, log, 3)

	return &fixture{
		db:      db,
		backend: backend,
		queue:   queue,
		svc:     services.New(db, queue, log, "dev-1"),
		syncer:  New(db, backend, queue, log, 50),
	}
}

func TestRun_PushesOfflineMutations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	u, err := f.svc.Users.Add(ctx, "Amina", "", "north")
	require.NoError(t, err)
	sc, err := f.svc.Scans.Add(ctx, u.LocalID, "/img/1.jpg", "maize", 0, 0)
	require.NoError(t, err)

	require.NoError(t, f.syncer.Run(ctx))

	// Both intents drained, records acknowledged with server ids.
	n, err := f.queue.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	gotUser, err := f.svc.Users.Get(ctx, u.LocalID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, gotUser.SyncStatus)
	assert.NotEmpty(t, gotUser.ServerID)

	gotScan, err := scans.NewSQLiteRepository(f.db).GetByID(ctx, sc.LocalID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, gotScan.SyncStatus)
	assert.NotEmpty(t, gotScan.ServerID)
}

func TestRun_SecondPassPushesNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	u, err := f.svc.Users.Add(ctx, "Amina", "", "")
	require.NoError(t, err)

	require.NoError(t, f.syncer.Run(ctx))
	require.NoError(t, f.syncer.Run(ctx))

	assert.Equal(t, 1, f.backend.pushCount(u.LocalID))
}

func TestRun_PerEntryFailureIsolation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	u, err := f.svc.Users.Add(ctx, "Amina", "", "")
	require.NoError(t, err)
	bad, err := f.svc.Scans.Add(ctx, u.LocalID, "/img/bad.jpg", "maize", 0, 0)
	require.NoError(t, err)
	good, err := f.svc.Scans.Add(ctx, u.LocalID, "/img/good.jpg", "maize", 0, 0)
	require.NoError(t, err)

	f.backend.pushErrs[bad.LocalID] = fmt.Errorf("%w: status 503", common.ErrRemoteTransient)

	err = f.syncer.Run(ctx)
	require.Error(t, err, "the pass reports the failed entry")

	// The failure did not stop the rest of the batch.
	repo := scans.NewSQLiteRepository(f.db)
	gotGood, err := repo.GetByID(ctx, good.LocalID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, gotGood.SyncStatus)

	gotBad, err := repo.GetByID(ctx, bad.LocalID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusFailed, gotBad.SyncStatus)

	entries, err := f.queue.Entries(ctx, models.TableScans, bad.LocalID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].RetryCount)
	assert.Contains(t, entries[0].LastError, "503")
}

func TestRun_NoInPassRetry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	u, err := f.svc.Users.Add(ctx, "Amina", "", "")
	require.NoError(t, err)
	f.backend.pushErrs[u.LocalID] = fmt.Errorf("%w: connection refused", common.ErrRemoteTransient)

	_ = f.syncer.Run(ctx)
	assert.Equal(t, 1, f.backend.pushCount(u.LocalID), "one attempt per entry per pass")
}

func TestRun_RetryCeilingParksEntry(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	u, err := f.svc.Users.Add(ctx, "Amina", "", "")
	require.NoError(t, err)
	f.backend.pushErrs[u.LocalID] = fmt.Errorf("%w: status 500", common.ErrRemoteTransient)

	// maxRetries is 3 in this fixture.
	for i := 0; i < 4; i++ {
		_ = f.syncer.Run(ctx)
	}
	assert.Equal(t, 3, f.backend.pushCount(u.LocalID))

	pending, err := f.queue.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	exhausted, err := f.queue.ExhaustedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, exhausted)

	// Manual re-arm brings it back.
	require.NoError(t, f.queue.Retry(ctx, models.TableUsers, u.LocalID, models.OperationInsert))
	delete(f.backend.pushErrs, u.LocalID)
	require.NoError(t, f.syncer.Run(ctx))

	got, err := f.svc.Users.Get(ctx, u.LocalID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, got.SyncStatus)
}

func TestRun_PullTipsReplacesCacheIdempotently(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	created := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	f.backend.tips = []models.Tip{
		{
			Syncable: models.Syncable{LocalID: "t-1", ServerID: "srv-t-1", Version: 1, UpdatedAt: created},
			Title:    "Mulch early", Body: "b", Category: "soil", CreatedAt: created,
		},
		{
			Syncable: models.Syncable{LocalID: "t-2", ServerID: "srv-t-2", Version: 1, UpdatedAt: created},
			Title:    "Scout weekly", Body: "b", Category: "pests", CreatedAt: created.Add(time.Hour),
		},
	}

	require.NoError(t, f.syncer.Run(ctx))

	first, err := f.svc.Tips.List(ctx)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "t-2", first[0].LocalID, "newest first")
	assert.Equal(t, models.SyncStatusSynced, first[0].SyncStatus)

	// Same remote input twice: identical local cache.
	require.NoError(t, f.syncer.Run(ctx))
	second, err := f.svc.Tips.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRun_TipUpdatePropagates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	created := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	f.backend.tips = []models.Tip{{
		Syncable: models.Syncable{LocalID: "t-1", ServerID: "srv-t-1", Version: 1, UpdatedAt: created},
		Title:    "Old title", CreatedAt: created,
	}}
	require.NoError(t, f.syncer.Run(ctx))

	f.backend.mu.Lock()
	f.backend.tips[0].Title = "New title"
	f.backend.tips[0].Version = 2
	f.backend.tips[0].UpdatedAt = created.Add(time.Hour)
	f.backend.mu.Unlock()

	require.NoError(t, f.syncer.Run(ctx))

	got, err := f.svc.Tips.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "New title", got[0].Title)
	assert.Equal(t, int64(2), got[0].Version)
}

func TestRun_LocalNotificationSurvivesPullAndGetsPushed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	created := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	u, err := f.svc.Users.Add(ctx, "Amina", "", "")
	require.NoError(t, err)
	require.NoError(t, f.syncer.Run(ctx))

	// Server has one notification; the device creates another offline.
	f.backend.notifs[u.LocalID] = []models.Notification{{
		Syncable:    models.Syncable{LocalID: "n-remote", ServerID: "srv-n-1", Version: 1, UpdatedAt: created},
		UserLocalID: u.LocalID, Title: "Rain alert", CreatedAt: created,
	}}

	local, err := f.svc.Notifications.Add(ctx, u.LocalID, "Diagnosis ready", "b", "diagnosis")
	require.NoError(t, err)

	require.NoError(t, f.syncer.Run(ctx))

	ns, err := f.svc.Notifications.List(ctx, u.LocalID)
	require.NoError(t, err)
	require.Len(t, ns, 2, "local unsynced notification survives the pull")

	titles := []string{ns[0].Title, ns[1].Title}
	assert.Contains(t, titles, "Rain alert")
	assert.Contains(t, titles, "Diagnosis ready")

	// The surviving local row was pushed during the pass (push pass or
	// best-effort) and acknowledged.
	var gotLocal *models.Notification
	for i := range ns {
		if ns[i].LocalID == local.LocalID {
			gotLocal = &ns[i]
		}
	}
	require.NotNil(t, gotLocal)
	assert.Equal(t, models.SyncStatusSynced, gotLocal.SyncStatus)
	assert.NotEmpty(t, gotLocal.ServerID)
}

func TestRun_WriteCommittedDuringPullSurvivesReplace(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	created := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	u, err := f.svc.Users.Add(ctx, "Amina", "", "")
	require.NoError(t, err)
	require.NoError(t, f.syncer.Run(ctx))

	f.backend.notifs[u.LocalID] = []models.Notification{{
		Syncable:    models.Syncable{LocalID: "n-remote", ServerID: "srv-n-1", Version: 1, UpdatedAt: created},
		UserLocalID: u.LocalID, Title: "Rain alert", CreatedAt: created,
	}}

	// A UI write lands after the remote snapshot is taken but before the
	// scope is replaced. The merge must read the scope inside the replace
	// transaction, or this row is physically deleted while its queued
	// intent survives.
	var lateID string
	f.backend.afterPullNotifs = func(userLocalID string) {
		f.backend.afterPullNotifs = nil
		n, err := f.svc.Notifications.Add(ctx, userLocalID, "Pest warning", "b", "manual")
		require.NoError(t, err)
		lateID = n.LocalID
	}

	require.NoError(t, f.syncer.Run(ctx))

	ns, err := f.svc.Notifications.List(ctx, u.LocalID)
	require.NoError(t, err)
	require.Len(t, ns, 2, "the write committed mid-pull survives the replace")

	var late *models.Notification
	for i := range ns {
		if ns[i].LocalID == lateID {
			late = &ns[i]
		}
	}
	require.NotNil(t, late)

	// No orphaned intent: the row either pushed during the pass or is
	// still pending with its queue entry intact.
	entries, err := f.queue.Entries(ctx, models.TableNotifications, lateID)
	require.NoError(t, err)
	if late.SyncStatus == models.SyncStatusSynced {
		assert.Empty(t, entries)
		assert.NotEmpty(t, late.ServerID)
	} else {
		assert.NotEmpty(t, entries)
	}
}

func TestRun_RemoteWinsDiscardsQueuedIntent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	u, err := f.svc.Users.Add(ctx, "Amina", "", "")
	require.NoError(t, err)
	n, err := f.svc.Notifications.Add(ctx, u.LocalID, "Diagnosis ready", "b", "diagnosis")
	require.NoError(t, err)
	require.NoError(t, f.syncer.Run(ctx))

	// Mark it read locally while another device raced ahead: the server
	// already holds a higher version of the same notification.
	read, err := f.svc.Notifications.MarkRead(ctx, n.LocalID)
	require.NoError(t, err)

	f.backend.notifs[u.LocalID] = []models.Notification{{
		Syncable: models.Syncable{
			LocalID: n.LocalID, ServerID: read.ServerID,
			Version: read.Version + 5, UpdatedAt: read.UpdatedAt.Add(time.Hour),
		},
		UserLocalID: u.LocalID, Title: "Diagnosis ready", Body: "updated remotely",
		Read: true, CreatedAt: n.CreatedAt,
	}}

	// Make the queued read-flag push fail so only the pull can resolve it.
	f.backend.pushErrs[n.LocalID] = fmt.Errorf("%w: status 500", common.ErrRemoteTransient)

	_ = f.syncer.Run(ctx)

	// Remote won: local cache holds the remote copy and the stale intent
	// is gone.
	ns, err := f.svc.Notifications.List(ctx, u.LocalID)
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, "updated remotely", ns[0].Body)
	assert.Equal(t, read.Version+5, ns[0].Version)

	entries, err := f.queue.Entries(ctx, models.TableNotifications, n.LocalID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_ConcurrentCallsCoalesce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	u, err := f.svc.Users.Add(ctx, "Amina", "", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.syncer.Run(ctx)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.backend.pushCount(u.LocalID))
}

func TestRun_DeletePushesTombstoneFromSnapshot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	u, err := f.svc.Users.Add(ctx, "Amina", "", "")
	require.NoError(t, err)
	sc, err := f.svc.Scans.Add(ctx, u.LocalID, "/img/1.jpg", "maize", 0, 0)
	require.NoError(t, err)
	require.NoError(t, f.syncer.Run(ctx))

	require.NoError(t, f.svc.Scans.Delete(ctx, sc.LocalID))
	require.NoError(t, f.syncer.Run(ctx))

	// The delete drained and the tombstoned row is acknowledged.
	n, err := f.queue.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := scans.NewSQLiteRepository(f.db).GetByIDIncludingDeleted(ctx, sc.LocalID)
	require.NoError(t, err)
	assert.True(t, got.Deleted())
	assert.Equal(t, models.SyncStatusSynced, got.SyncStatus)
	assert.NotEmpty(t, got.ServerID, "delete ack keeps the known server id")
}
