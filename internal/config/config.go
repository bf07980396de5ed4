// Package config loads runtime settings from environment variables with
// sensible defaults.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds the engine and CLI configuration.
//
// Two timeout tiers are deliberate: ForegroundTimeout bounds calls a user
// is waiting on; BackgroundTimeout bounds refreshes nobody waits on.
type Config struct {
	ServerURL string
	APIKey    string
	OwnerID   string
	DeviceID  string

	ForegroundTimeout time.Duration // remote calls the caller waits on
	BackgroundTimeout time.Duration // background refreshes
	FlushInterval     time.Duration // periodic offline-queue flush
	ProbeInterval     time.Duration // connectivity probe cadence

	AutoSync bool // flush after mutating commands

	LogFormat string // "text" (default) or "json"
	LogLevel  string // "debug", "info" (default), "warn", "error"

	// Per-minute write admission overrides; zero keeps the default table.
	RateLimitTrucks      int
	RateLimitMaintenance int
	RateLimitParts       int
}

// Load reads configuration from FLEETSYNC_* environment variables.
func Load() Config {
	cfg := Config{
		ServerURL: "http://localhost:8080",
		OwnerID:   "default",

		ForegroundTimeout: 3 * time.Second,
		BackgroundTimeout: 30 * time.Second,
		FlushInterval:     3 * time.Minute,
		ProbeInterval:     5 * time.Second,

		AutoSync:  true,
		LogFormat: "text",
		LogLevel:  "info",
	}

	if v := os.Getenv("FLEETSYNC_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("FLEETSYNC_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("FLEETSYNC_OWNER_ID"); v != "" {
		cfg.OwnerID = v
	}
	if v := os.Getenv("FLEETSYNC_DEVICE_ID"); v != "" {
		cfg.DeviceID = v
	}
	if v := os.Getenv("FLEETSYNC_FOREGROUND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ForegroundTimeout = d
		}
	}
	if v := os.Getenv("FLEETSYNC_BACKGROUND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.BackgroundTimeout = d
		}
	}
	if v := os.Getenv("FLEETSYNC_FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.FlushInterval = d
		}
	}
	if v := os.Getenv("FLEETSYNC_PROBE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ProbeInterval = d
		}
	}
	if v := os.Getenv("FLEETSYNC_AUTO_SYNC"); v != "" {
		cfg.AutoSync = v == "1" || v == "true"
	}
	if v := os.Getenv("FLEETSYNC_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("FLEETSYNC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FLEETSYNC_RATE_LIMIT_TRUCKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitTrucks = n
		}
	}
	if v := os.Getenv("FLEETSYNC_RATE_LIMIT_MAINTENANCE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitMaintenance = n
		}
	}
	if v := os.Getenv("FLEETSYNC_RATE_LIMIT_PARTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitParts = n
		}
	}

	return cfg
}

// NewLogger builds a slog.Logger from the config's format and level.
func (c Config) NewLogger() *slog.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
