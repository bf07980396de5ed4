package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mwhite/fleetsync/internal/models"
	"github.com/mwhite/fleetsync/internal/remote"
	"github.com/mwhite/fleetsync/internal/store"
)

const (
	flushBackoffMin = 100 * time.Millisecond
	flushBackoffMax = 2 * time.Second
)

// Flush attempts to commit every queued write against the remote store.
// Only one flush runs at a time: a request while another is in flight is
// a no-op (Skipped). Entries are processed in enqueue order across all
// collections, so a write referencing a record created offline earlier
// always commits after its referent's canonical id exists. Each failure
// leaves its entry queued for the next trigger and the run moves on.
// There is no all-or-nothing abort, and entries are never dropped.
func (r *Reconciler) Flush(ctx context.Context) (FlushStats, error) {
	if !atomic.CompareAndSwapInt32(&r.flushing, 0, 1) {
		return FlushStats{Skipped: true}, nil
	}
	defer atomic.StoreInt32(&r.flushing, 0)

	start := time.Now()
	stats := FlushStats{At: start}
	backoff := flushBackoffMin

	err := r.flushQueue(ctx, &stats, &backoff)
	stats.Duration = time.Since(start)
	r.recordFlush(stats)
	if err != nil {
		return stats, err
	}
	if stats.Committed > 0 || stats.Failed > 0 {
		r.logger.Info("flush finished",
			"committed", stats.Committed, "failed", stats.Failed,
			"duration", stats.Duration)
	}
	return stats, nil
}

// flushQueue drains the queue in global seq order. After a create commits,
// the canonical id rewrite may touch later queued entries of the same
// owner, so the queue is re-read before continuing.
func (r *Reconciler) flushQueue(ctx context.Context, stats *FlushStats, backoff *time.Duration) error {
	attempted := make(map[int64]bool)
	for {
		entries, err := r.store.PendingAll()
		if err != nil {
			return err
		}

		rewritten := false
		for _, entry := range entries {
			if attempted[entry.Seq] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			attempted[entry.Seq] = true

			rewrote, err := r.commitEntry(ctx, entry)
			if err != nil {
				stats.Failed++
				r.logger.Warn("flush: commit failed",
					"collection", entry.Collection, "op", entry.Op,
					"id", entry.RecordID, "attempt", entry.AttemptCount+1,
					"err", err)
				if err := r.store.BumpAttempt(entry.Seq); err != nil {
					r.logger.Warn("flush: bump attempt", "seq", entry.Seq, "err", err)
				}
				if err := sleepCtx(ctx, *backoff); err != nil {
					return err
				}
				*backoff *= 2
				if *backoff > flushBackoffMax {
					*backoff = flushBackoffMax
				}
				continue
			}

			stats.Committed++
			*backoff = flushBackoffMin
			if rewrote {
				rewritten = true
				break
			}
		}

		if !rewritten {
			return nil
		}
	}
}

// commitEntry commits one queued write. It returns true when a local id
// was rewritten to a canonical one, which invalidates any queue snapshot
// the caller holds.
func (r *Reconciler) commitEntry(ctx context.Context, entry models.QueueEntry) (bool, error) {
	cctx, cancel := context.WithTimeout(ctx, r.opts.ForegroundTimeout)
	defer cancel()

	switch entry.Op {
	case models.OpCreate:
		if entry.Record == nil {
			return false, fmt.Errorf("queued create seq=%d has no record", entry.Seq)
		}
		out, err := r.remote.Create(cctx, entry.Collection, *entry.Record)
		if err != nil {
			return false, err
		}
		if store.IsLocalID(entry.RecordID) {
			// Ack and id rewrite happen in one transaction so a crash
			// cannot strand a committed create under its local id.
			if err := r.store.AckRewrite(entry.Seq, entry.OwnerID, entry.Collection, entry.RecordID, out); err != nil {
				return false, err
			}
			return true, nil
		}
		if err := r.store.Ack(entry.Seq); err != nil {
			return false, err
		}
		return false, r.store.Upsert(entry.OwnerID, entry.Collection, out)

	case models.OpUpdate:
		if entry.Record == nil {
			return false, fmt.Errorf("queued update seq=%d has no record", entry.Seq)
		}
		out, err := r.remote.Update(cctx, entry.Collection, *entry.Record)
		if err != nil {
			return false, err
		}
		if err := r.store.Ack(entry.Seq); err != nil {
			return false, err
		}
		return false, r.store.Upsert(entry.OwnerID, entry.Collection, out)

	case models.OpDelete:
		err := r.remote.Delete(cctx, entry.Collection, entry.OwnerID, entry.RecordID)
		// Already gone remotely still means the delete converged.
		if err != nil && !errors.Is(err, remote.ErrNotFound) {
			return false, err
		}
		return false, r.store.Ack(entry.Seq)

	default:
		return false, fmt.Errorf("queued entry seq=%d has unknown op %q", entry.Seq, entry.Op)
	}
}

func (r *Reconciler) recordFlush(stats FlushStats) {
	r.mu.Lock()
	r.lastFlush = &stats
	r.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
