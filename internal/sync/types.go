package sync

import (
	"fmt"
	"time"

	"github.com/mwhite/fleetsync/internal/models"
	"github.com/mwhite/fleetsync/internal/store"
)

// WriteResult is the outcome of one write. Pending means the remote store
// was unreachable and the write sits in the offline queue; the record then
// carries a local id (creates) until flush rewrites it.
type WriteResult struct {
	Record  models.Record
	Pending bool
}

// RateLimitedError reports a denied admission. It carries the delay after
// which the caller may retry; the network was never touched.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter.Round(time.Second))
}

// FlushStats summarizes one flush run. Skipped means another flush was
// already in progress and this request was a no-op.
type FlushStats struct {
	Committed int
	Failed    int
	Skipped   bool
	Duration  time.Duration
	At        time.Time
}

// Status is a point-in-time snapshot of the engine for CLI and TUI
// displays.
type Status struct {
	QueueTotal        int
	QueueByCollection map[models.Collection]int
	Collections       []store.CollectionStatus
	FlushInProgress   bool
	LastFlush         *FlushStats
}
