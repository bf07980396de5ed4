// Package sync reconciles the local record cache, the offline queue and
// the remote document store. Reads are served from cache and refreshed in
// the background; writes try the remote first and fall back to the queue;
// flush drains the queue once the remote is reachable again.
//
// Per record the lifecycle is Local (cache/queue only, local id) → Pending
// (queued, write attempted) → Synced (canonical id confirmed). A synced
// record re-enters Pending on any later write that cannot reach the
// remote. Conflicts between copies of the same id are resolved by recency
// of UpdatedAt alone; with client-generated timestamps this is vulnerable
// to clock skew between devices, which is accepted.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mwhite/fleetsync/internal/models"
	"github.com/mwhite/fleetsync/internal/ratelimit"
	"github.com/mwhite/fleetsync/internal/remote"
	"github.com/mwhite/fleetsync/internal/store"
)

// Options bounds the reconciler's timers. Zero fields get defaults.
type Options struct {
	ForegroundTimeout time.Duration // calls a user waits on
	BackgroundTimeout time.Duration // background refreshes
	FlushInterval     time.Duration // periodic flush cadence
	ProbeInterval     time.Duration // connectivity probe cadence
}

func (o *Options) fillDefaults() {
	if o.ForegroundTimeout <= 0 {
		o.ForegroundTimeout = 3 * time.Second
	}
	if o.BackgroundTimeout <= 0 {
		o.BackgroundTimeout = 30 * time.Second
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 3 * time.Minute
	}
	if o.ProbeInterval <= 0 {
		o.ProbeInterval = 5 * time.Second
	}
}

// Reconciler is the sync engine. Construct one per process with New and
// pass it by reference; it owns all mutation of the cache and queue.
type Reconciler struct {
	store   *store.Store
	remote  remote.Store
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	opts    Options

	flushing  int32 // in-flight flush guard
	refreshes sync.WaitGroup

	mu        sync.Mutex
	lastFlush *FlushStats
}

// New builds a Reconciler.
func New(st *store.Store, rs remote.Store, rl *ratelimit.Limiter, logger *slog.Logger, opts Options) *Reconciler {
	opts.fillDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:   st,
		remote:  rs,
		limiter: rl,
		logger:  logger,
		opts:    opts,
	}
}

// Read serves (owner, collection) from the cache without waiting on the
// network. A previously synced collection gets a background refresh; a
// never-synced one is fetched in the foreground with the short timeout,
// degrading to the cached (possibly empty) snapshot when offline.
func (r *Reconciler) Read(ctx context.Context, owner string, collection models.Collection) ([]models.Record, error) {
	cached, err := r.store.Get(owner, collection)
	if err != nil {
		return nil, err
	}

	_, synced, err := r.store.LastSynced(owner, collection)
	if err != nil {
		return nil, err
	}
	if synced {
		r.refreshes.Add(1)
		go func() {
			defer r.refreshes.Done()
			r.backgroundRefresh(owner, collection)
		}()
		return cached, nil
	}

	fctx, cancel := context.WithTimeout(ctx, r.opts.ForegroundTimeout)
	defer cancel()

	fetched, err := r.remote.Query(fctx, collection, owner)
	if err != nil {
		if remote.Recoverable(err) {
			r.logger.Debug("foreground fetch failed, serving cache",
				"collection", collection, "err", err)
			return cached, nil
		}
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}

	merged := store.Merge(cached, fetched)
	if err := r.store.Set(owner, collection, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// backgroundRefresh fetches a fresh snapshot with the long timeout.
// Failures are logged and swallowed: a failed refresh must never disturb
// the existing snapshot.
func (r *Reconciler) backgroundRefresh(owner string, collection models.Collection) {
	ctx, cancel := context.WithTimeout(context.Background(), r.opts.BackgroundTimeout)
	defer cancel()

	if err := r.refresh(ctx, owner, collection); err != nil {
		r.logger.Debug("background refresh failed", "collection", collection, "err", err)
	}
}

// refresh queries one collection and replaces the cache only when the
// fetch brought strictly newer data.
func (r *Reconciler) refresh(ctx context.Context, owner string, collection models.Collection) error {
	fetched, err := r.remote.Query(ctx, collection, owner)
	if err != nil {
		return fmt.Errorf("query %s: %w", collection, err)
	}

	cached, err := r.store.Get(owner, collection)
	if err != nil {
		return err
	}
	if !store.HasNewerData(cached, fetched) {
		return nil
	}
	return r.store.Set(owner, collection, store.Merge(cached, fetched))
}

// Pull refreshes every collection's snapshot in the foreground, each
// bounded by the short timeout. It stops at the first failure so an
// offline run returns after one timeout instead of six, and reports how
// many collections refreshed before that.
func (r *Reconciler) Pull(ctx context.Context, owner string) (int, error) {
	refreshed := 0
	for _, collection := range models.Collections {
		fctx, cancel := context.WithTimeout(ctx, r.opts.ForegroundTimeout)
		err := r.refresh(fctx, owner, collection)
		cancel()
		if err != nil {
			return refreshed, err
		}
		refreshed++
	}
	return refreshed, nil
}

// WaitBackground blocks until any in-flight background refreshes finish.
// Each refresh carries its own deadline, so the wait is bounded. One-shot
// callers use this before closing the store so a refresh is never cut off
// mid-write by process exit.
func (r *Reconciler) WaitBackground() {
	r.refreshes.Wait()
}

// Write applies one operation. Admission control runs first: a denial
// fails fast with *RateLimitedError and never touches the network. An
// admitted write races the remote against the short timeout; Offline,
// Timeout and server errors fall back to the offline queue with the same
// mutation applied optimistically to the cache, so callers see the write
// immediately.
func (r *Reconciler) Write(ctx context.Context, op models.Operation) (WriteResult, error) {
	if !models.ValidCollection(op.Collection) {
		return WriteResult{}, fmt.Errorf("unknown collection %q", op.Collection)
	}

	decision := r.limiter.Admit(string(op.Collection), op.OwnerID)
	if !decision.Allowed {
		return WriteResult{}, &RateLimitedError{RetryAfter: decision.RetryAfter}
	}
	r.limiter.Classify(string(op.Collection), op.OwnerID)

	fctx, cancel := context.WithTimeout(ctx, r.opts.ForegroundTimeout)
	defer cancel()

	switch op.Type {
	case models.OpCreate:
		return r.writeCreate(fctx, op)
	case models.OpUpdate:
		return r.writeUpdate(fctx, op)
	case models.OpDelete:
		return r.writeDelete(fctx, op)
	default:
		return WriteResult{}, fmt.Errorf("unknown operation %q", op.Type)
	}
}

func (r *Reconciler) writeCreate(ctx context.Context, op models.Operation) (WriteResult, error) {
	if op.Record == nil {
		return WriteResult{}, fmt.Errorf("create requires a record")
	}

	now := time.Now()
	rec := op.Record.Clone()
	rec.OwnerID = op.OwnerID
	rec.Collection = op.Collection
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	out, err := r.remote.Create(ctx, op.Collection, rec)
	if err == nil {
		if err := r.store.Upsert(op.OwnerID, op.Collection, out); err != nil {
			return WriteResult{}, err
		}
		return WriteResult{Record: out}, nil
	}
	if !remote.Recoverable(err) {
		return WriteResult{}, fmt.Errorf("create: %w", err)
	}

	// Offline path: assign a local id now so the record renders
	// immediately, and queue the create for flush.
	rec.ID = store.NewLocalID()
	if _, err := r.store.Enqueue(models.QueueEntry{
		Collection: op.Collection,
		Op:         models.OpCreate,
		OwnerID:    op.OwnerID,
		RecordID:   rec.ID,
		Record:     &rec,
	}); err != nil {
		return WriteResult{}, err
	}
	if err := r.store.Upsert(op.OwnerID, op.Collection, rec); err != nil {
		return WriteResult{}, err
	}
	r.logger.Info("write queued offline",
		"op", op.Type, "collection", op.Collection, "id", rec.ID)
	return WriteResult{Record: rec, Pending: true}, nil
}

func (r *Reconciler) writeUpdate(ctx context.Context, op models.Operation) (WriteResult, error) {
	if op.Record == nil || op.Record.ID == "" {
		return WriteResult{}, fmt.Errorf("update requires a record with an id")
	}

	rec := op.Record.Clone()
	rec.OwnerID = op.OwnerID
	rec.Collection = op.Collection
	rec.UpdatedAt = time.Now()
	if rec.CreatedAt.IsZero() {
		if existing, err := r.store.GetByID(op.OwnerID, op.Collection, rec.ID); err == nil && existing != nil {
			rec.CreatedAt = existing.CreatedAt
		} else {
			rec.CreatedAt = rec.UpdatedAt
		}
	}

	// A record created offline has never been seen by the remote; its
	// update can only ride the queue behind the pending create.
	if !store.IsLocalID(rec.ID) {
		out, err := r.remote.Update(ctx, op.Collection, rec)
		if err == nil {
			if err := r.store.Upsert(op.OwnerID, op.Collection, out); err != nil {
				return WriteResult{}, err
			}
			return WriteResult{Record: out}, nil
		}
		if !remote.Recoverable(err) {
			return WriteResult{}, fmt.Errorf("update: %w", err)
		}
	}

	if _, err := r.store.Enqueue(models.QueueEntry{
		Collection: op.Collection,
		Op:         models.OpUpdate,
		OwnerID:    op.OwnerID,
		RecordID:   rec.ID,
		Record:     &rec,
	}); err != nil {
		return WriteResult{}, err
	}
	if err := r.store.Upsert(op.OwnerID, op.Collection, rec); err != nil {
		return WriteResult{}, err
	}
	r.logger.Info("write queued offline",
		"op", op.Type, "collection", op.Collection, "id", rec.ID)
	return WriteResult{Record: rec, Pending: true}, nil
}

func (r *Reconciler) writeDelete(ctx context.Context, op models.Operation) (WriteResult, error) {
	id := op.RecordID
	if id == "" {
		return WriteResult{}, fmt.Errorf("delete requires a record id")
	}

	// A local-id record was never committed remotely: removing it from
	// cache also drops its queued create, and the remote needs nothing.
	if store.IsLocalID(id) {
		if err := r.store.Remove(op.OwnerID, op.Collection, id); err != nil {
			return WriteResult{}, err
		}
		return WriteResult{}, nil
	}

	err := r.remote.Delete(ctx, op.Collection, op.OwnerID, id)
	if err == nil || !remote.Recoverable(err) {
		if err != nil {
			return WriteResult{}, fmt.Errorf("delete: %w", err)
		}
		if err := r.store.Remove(op.OwnerID, op.Collection, id); err != nil {
			return WriteResult{}, err
		}
		return WriteResult{}, nil
	}

	if _, err := r.store.Enqueue(models.QueueEntry{
		Collection: op.Collection,
		Op:         models.OpDelete,
		OwnerID:    op.OwnerID,
		RecordID:   id,
	}); err != nil {
		return WriteResult{}, err
	}
	if err := r.store.Remove(op.OwnerID, op.Collection, id); err != nil {
		return WriteResult{}, err
	}
	r.logger.Info("write queued offline",
		"op", op.Type, "collection", op.Collection, "id", id)
	return WriteResult{Pending: true}, nil
}

// Status reports queue depth, per-collection freshness and flush state.
func (r *Reconciler) Status(owner string) (Status, error) {
	total, byCollection, err := r.store.QueueDepth()
	if err != nil {
		return Status{}, err
	}
	collections, err := r.store.StatusByCollection(owner)
	if err != nil {
		return Status{}, err
	}

	r.mu.Lock()
	last := r.lastFlush
	r.mu.Unlock()

	return Status{
		QueueTotal:        total,
		QueueByCollection: byCollection,
		Collections:       collections,
		FlushInProgress:   atomic.LoadInt32(&r.flushing) == 1,
		LastFlush:         last,
	}, nil
}

// Limiter exposes the rate limiter for status displays.
func (r *Reconciler) Limiter() *ratelimit.Limiter {
	return r.limiter
}
