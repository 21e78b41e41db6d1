package syncer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkravtsov/cropsync/internal/common"
	"github.com/mkravtsov/cropsync/internal/logging"
)

func newWatcher(f *fixture) *Watcher {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewWatcher(f.backend, f.syncer, log, 200*time.Millisecond)
}

func TestWatcher_OfflineProbeSetsModeAndSkipsSync(t *testing.T) {
	f := setup(t)
	w := newWatcher(f)
	ctx := context.Background()

	u, err := f.svc.Users.Add(ctx, "Amina", "", "")
	require.NoError(t, err)

	f.backend.mu.Lock()
	f.backend.pingErr = fmt.Errorf("%w: no route to host", common.ErrRemoteTransient)
	f.backend.mu.Unlock()

	w.tick(ctx)

	assert.Equal(t, ModeOffline, w.Mode())
	assert.Zero(t, f.backend.pushCount(u.LocalID), "no sync attempt while offline")
}

func TestWatcher_OnlineTransitionTriggersSync(t *testing.T) {
	f := setup(t)
	w := newWatcher(f)
	ctx := context.Background()

	u, err := f.svc.Users.Add(ctx, "Amina", "", "")
	require.NoError(t, err)

	// Offline first, then the probe succeeds.
	f.backend.mu.Lock()
	f.backend.pingErr = fmt.Errorf("%w: no route to host", common.ErrRemoteTransient)
	f.backend.mu.Unlock()
	w.tick(ctx)
	require.Equal(t, ModeOffline, w.Mode())

	f.backend.mu.Lock()
	f.backend.pingErr = nil
	f.backend.mu.Unlock()
	w.tick(ctx)

	assert.Equal(t, ModeOnline, w.Mode())
	assert.Equal(t, 1, f.backend.pushCount(u.LocalID), "offline→online transition runs a pass")
}

func TestWatcher_FailedPassBacksOff(t *testing.T) {
	f := setup(t)
	w := newWatcher(f)
	ctx := context.Background()

	u, err := f.svc.Users.Add(ctx, "Amina", "", "")
	require.NoError(t, err)
	f.backend.pushErrs[u.LocalID] = fmt.Errorf("%w: status 503", common.ErrRemoteTransient)

	w.tick(ctx)
	require.Equal(t, 1, f.backend.pushCount(u.LocalID))

	// Still online, but the failed pass armed the backoff: the immediate
	// next tick holds off instead of re-attempting.
	w.tick(ctx)
	assert.Equal(t, 1, f.backend.pushCount(u.LocalID))
}

func TestWatcher_SuccessResetsBackoff(t *testing.T) {
	f := setup(t)
	w := newWatcher(f)
	ctx := context.Background()

	u, err := f.svc.Users.Add(ctx, "Amina", "", "")
	require.NoError(t, err)
	f.backend.pushErrs[u.LocalID] = fmt.Errorf("%w: status 503", common.ErrRemoteTransient)

	w.tick(ctx)
	require.Equal(t, 1, f.backend.pushCount(u.LocalID))

	// Server recovers; wait out the first (one interval) backoff step.
	delete(f.backend.pushErrs, u.LocalID)
	time.Sleep(250 * time.Millisecond)

	w.tick(ctx)
	assert.Equal(t, 2, f.backend.pushCount(u.LocalID))

	w.mu.Lock()
	armed := !w.nextAttempt.IsZero()
	w.mu.Unlock()
	assert.False(t, armed, "successful pass resets the backoff")
}
