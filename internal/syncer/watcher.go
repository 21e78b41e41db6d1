package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mkravtsov/cropsync/internal/logging"
	"github.com/mkravtsov/cropsync/internal/remote"
)

// Mode is the connectivity state the watcher maintains.
type Mode string

const (
	ModeUnknown Mode = "unknown"
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const pingTimeout = 3 * time.Second

// backoffCap bounds how far failed-pass backoff can stretch between
// reconciliation attempts.
const backoffCap = 5 * time.Minute

// Watcher probes server reachability on a ticker and drives the syncer:
// a pass runs on the offline→online transition and on every interval while
// online. Failed passes back off along a fibonacci curve (capped) instead
// of hammering a struggling server; a successful pass resets the curve.
type Watcher struct {
	backend  remote.Backend
	syncer   *Syncer
	log      logging.Logger
	interval time.Duration

	mu          sync.Mutex
	mode        Mode
	backoff     retry.Backoff
	nextAttempt time.Time
}

func NewWatcher(backend remote.Backend, s *Syncer, log logging.Logger, interval time.Duration) *Watcher {
	w := &Watcher{
		backend:  backend,
		syncer:   s,
		log:      log.With("component", "watcher"),
		interval: interval,
		mode:     ModeUnknown,
	}
	w.resetBackoff()
	return w
}

// Mode returns the current connectivity state. Safe for concurrent use.
func (w *Watcher) Mode() Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

func (w *Watcher) setMode(ctx context.Context, mode Mode) (changed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mode == mode {
		return false
	}
	w.mode = mode
	w.log.Info(ctx, "connectivity changed", "mode", mode)
	return true
}

func (w *Watcher) resetBackoff() {
	w.backoff = retry.WithCappedDuration(backoffCap, retry.NewFibonacci(w.interval))
	w.nextAttempt = time.Time{}
}

// Run blocks until ctx is done, probing connectivity every interval.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := w.backend.Ping(pingCtx)
	cancel()

	if err != nil {
		w.setMode(ctx, ModeOffline)
		return
	}

	cameOnline := w.setMode(ctx, ModeOnline)

	w.mu.Lock()
	held := !cameOnline && time.Now().Before(w.nextAttempt)
	w.mu.Unlock()
	if held {
		return
	}

	if err := w.syncer.Run(ctx); err != nil {
		if ctxDone(err) {
			return
		}

		w.mu.Lock()
		delay, _ := w.backoff.Next()
		w.nextAttempt = time.Now().Add(delay)
		w.mu.Unlock()

		w.log.Warn(ctx, "sync pass failed, backing off", "delay", delay, "error", err)
		return
	}

	w.mu.Lock()
	w.resetBackoff()
	w.mu.Unlock()
}
