// Package cli implements the interactive CropSync client: a REPL over the
// local store with a background connectivity watcher driving sync.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/mkravtsov/cropsync/internal/config"
	"github.com/mkravtsov/cropsync/internal/filex"
	"github.com/mkravtsov/cropsync/internal/logging"
	"github.com/mkravtsov/cropsync/internal/outbox"
	"github.com/mkravtsov/cropsync/internal/remote"
	"github.com/mkravtsov/cropsync/internal/services"
	"github.com/mkravtsov/cropsync/internal/store"
	"github.com/mkravtsov/cropsync/internal/syncer"
)

type App struct {
	config  *config.Config
	db      *sql.DB
	svc     *services.Services
	queue   *outbox.Manager
	syncer  *syncer.Syncer
	watcher *syncer.Watcher
	log     logging.Logger
	reader  *bufio.Reader

	// currentUser is the profile the scan/notification commands act on.
	currentUser string
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
		log.Info(ctx, "generated device id", "device_id", cfg.DeviceID)
	}

	if _, err := filex.EnsureParentDir(cfg.DatabasePath); err != nil {
		return nil, err
	}

	db, err := store.Open(ctx, store.DSN(cfg.DatabasePath))
	if err != nil {
		return nil, err
	}

	backend := remote.NewHTTPBackend(
		cfg.ServerEndpointAddr,
		&http.Client{Timeout: cfg.RequestTimeout},
		nil,
	)

	queue := outbox.NewManager(db, log, cfg.MaxRetries)
	svc := services.New(db, queue, log, cfg.DeviceID)
	sync := syncer.New(db, backend, queue, log, cfg.SyncBatchLimit)

	return &App{
		config:  cfg,
		db:      db,
		svc:     svc,
		queue:   queue,
		syncer:  sync,
		watcher: syncer.NewWatcher(backend, sync, log, cfg.OnlineCheckInterval),
		log:     log,
		reader:  bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) Run(ctx context.Context) {
	defer func() { _ = a.db.Close() }()

	go a.watcher.Run(ctx)
	a.Root(ctx)
}
