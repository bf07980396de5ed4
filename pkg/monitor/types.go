package monitor

import (
	"time"

	"github.com/mwhite/fleetsync/internal/models"
	"github.com/mwhite/fleetsync/internal/ratelimit"
	syncengine "github.com/mwhite/fleetsync/internal/sync"
)

// Panel identifies one of the dashboard panels
type Panel int

const (
	PanelQueue Panel = iota
	PanelCollections
	PanelRateLimits
)

// MinWidth and MinHeight are the smallest terminal the full layout fits in
const (
	MinWidth  = 60
	MinHeight = 20
)

// RefreshDataMsg carries a fresh snapshot of the engine state
type RefreshDataMsg struct {
	Status    syncengine.Status
	Queue     []models.QueueEntry
	Buckets   []ratelimit.BucketInfo
	Timestamp time.Time
	Err       error
}

// FlushDoneMsg reports the outcome of a manually triggered flush
type FlushDoneMsg struct {
	Stats syncengine.FlushStats
	Err   error
}

// TickMsg drives the periodic refresh
type TickMsg time.Time
