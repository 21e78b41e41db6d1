package cli

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mkravtsov/cropsync/internal/common"
	"github.com/mkravtsov/cropsync/internal/models"
)

func (a *App) sync(ctx context.Context) {
	err := a.syncer.RunOnce(ctx)
	switch {
	case errors.Is(err, common.ErrSyncInProgress):
		fmt.Println("A sync pass is already running.")
	case err != nil:
		log.Printf("sync finished with errors: %v", err)
	default:
		fmt.Println("Sync complete.")
	}
}

func (a *App) status(ctx context.Context) {
	pending, err := a.svc.PendingCount(ctx)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	exhausted, err := a.svc.ExhaustedCount(ctx)
	if err != nil {
		log.Printf("error: %v", err)
		return
	}

	fmt.Printf("Mode:      %s\n", a.watcher.Mode())
	fmt.Printf("Pending:   %d change(s) waiting to sync\n", pending)
	if exhausted > 0 {
		fmt.Printf("Stuck:     %d change(s) at the retry ceiling (use 'retry')\n", exhausted)
	}
	if a.syncer.Running() {
		fmt.Println("A sync pass is running right now.")
	}
}

func (a *App) retry(ctx context.Context, args []string) {
	if len(args) < 3 {
		fmt.Println("Usage: retry <table> <local-id> <insert|update|delete>")
		return
	}

	err := a.queue.Retry(ctx, args[0], args[1], models.Operation(args[2]))
	if err != nil {
		log.Printf("error: %v", err)
		return
	}
	fmt.Println("Entry re-armed; it will push on the next pass.")
}
