package cmd

import (
	"context"
	"log/slog"
	"time"
)

const timeRound = time.Second

// autoSyncAfterMutation runs a quick flush after a mutating command
// completes, so offline writes reach the server as soon as it is back.
// Runs synchronously with a short deadline. Errors are logged, not
// returned.
func autoSyncAfterMutation(e *engine) {
	if !e.cfg.AutoSync {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*e.cfg.ForegroundTimeout)
	defer cancel()

	stats, err := e.reconciler.Flush(ctx)
	if err != nil {
		slog.Debug("auto-sync flush", "err", err)
		return
	}
	if stats.Committed > 0 {
		slog.Debug("auto-sync flushed queued writes", "committed", stats.Committed)
	}
}
