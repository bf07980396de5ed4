package cmd

import (
	"log/slog"
	"time"

	"github.com/mwhite/fleetsync/internal/config"
	"github.com/mwhite/fleetsync/internal/ratelimit"
	"github.com/mwhite/fleetsync/internal/remote"
	"github.com/mwhite/fleetsync/internal/store"
	syncengine "github.com/mwhite/fleetsync/internal/sync"
)

// engine bundles everything a command needs. One engine is built per
// invocation and passed down; nothing here is a package-level singleton.
type engine struct {
	cfg        config.Config
	store      *store.Store
	reconciler *syncengine.Reconciler
}

// newEngine loads config, opens the local database and wires the
// reconciler.
func newEngine() (*engine, error) {
	cfg := config.Load()
	slog.SetDefault(cfg.NewLogger())

	st, err := store.Open(getBaseDir())
	if err != nil {
		return nil, err
	}

	rs := remote.New(cfg.ServerURL, cfg.APIKey, cfg.DeviceID)
	rl := ratelimit.New(slog.Default(), rateOverrides(cfg))
	rec := syncengine.New(st, rs, rl, slog.Default(), syncengine.Options{
		ForegroundTimeout: cfg.ForegroundTimeout,
		BackgroundTimeout: cfg.BackgroundTimeout,
		FlushInterval:     cfg.FlushInterval,
		ProbeInterval:     cfg.ProbeInterval,
	})

	return &engine{cfg: cfg, store: st, reconciler: rec}, nil
}

// Close waits for any background refresh still in flight before closing
// the database. Without the wait a one-shot command would exit mid-refresh
// and the fetched snapshot would never land.
func (e *engine) Close() {
	e.reconciler.WaitBackground()
	e.store.Close()
}

func rateOverrides(cfg config.Config) map[string]ratelimit.Rule {
	overrides := map[string]ratelimit.Rule{}
	if cfg.RateLimitTrucks > 0 {
		overrides["trucks"] = ratelimit.Rule{Window: time.Minute, Max: cfg.RateLimitTrucks}
	}
	if cfg.RateLimitMaintenance > 0 {
		overrides["maintenance"] = ratelimit.Rule{Window: time.Minute, Max: cfg.RateLimitMaintenance}
	}
	if cfg.RateLimitParts > 0 {
		overrides["parts"] = ratelimit.Rule{Window: time.Minute, Max: cfg.RateLimitParts}
	}
	return overrides
}
