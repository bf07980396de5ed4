package sync

import (
	"context"
	"time"

	"github.com/mwhite/fleetsync/internal/remote"
)

// Run drives the flush triggers until ctx is canceled: a periodic timer,
// and a connectivity watcher that flushes on the offline→online
// transition. On cancellation a best-effort final flush runs with a short
// deadline, fire-and-forget.
func (r *Reconciler) Run(ctx context.Context) {
	flushTicker := time.NewTicker(r.opts.FlushInterval)
	defer flushTicker.Stop()
	probeTicker := time.NewTicker(r.opts.ProbeInterval)
	defer probeTicker.Stop()

	pinger, probeable := r.remote.(remote.Pinger)
	online := false

	for {
		select {
		case <-flushTicker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("periodic flush", "err", err)
			}

		case <-probeTicker.C:
			if !probeable {
				continue
			}
			pctx, cancel := context.WithTimeout(ctx, r.opts.ForegroundTimeout)
			err := pinger.Ping(pctx)
			cancel()

			nowOnline := err == nil
			if nowOnline && !online {
				r.logger.Info("connectivity restored, flushing offline queue")
				if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
					r.logger.Warn("reconnect flush", "err", err)
				}
			}
			online = nowOnline

		case <-ctx.Done():
			// Teardown: one last try with its own deadline, no
			// acknowledgment expected.
			fctx, cancel := context.WithTimeout(context.Background(), r.opts.ForegroundTimeout)
			r.Flush(fctx)
			cancel()
			return
		}
	}
}
