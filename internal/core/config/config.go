// Package config loads the root process configuration from environment
// variables, the way viewra's transcodingmodule/types.DefaultConfig
// and cmd/viewra/main.go's VIEWRA_* env lookups do.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/mantonx/transcodecore/internal/core/sysinfo"
)

// RootConfig is the process-wide configuration cmd/transcodecore/main.go
// wires into the adapter, store, controller, API and watcher.
type RootConfig struct {
	// ScratchDir is a working directory created at startup; the default
	// DatabasePath lives under it. Jobs read and write the paths given in
	// their own JobConfig, not paths under ScratchDir.
	ScratchDir string

	// DatabasePath is the sqlite file job records are persisted to.
	DatabasePath string

	// ListenAddr is the HTTP control plane's bind address.
	ListenAddr string

	// MaxConcurrentJobs bounds how many jobs ConcurrencyController runs at
	// once; 0 asks sysinfo for a default based on CPU count.
	MaxConcurrentJobs int

	// ThreadHint is the default per-job encoder thread count; 0 asks
	// sysinfo for a default.
	ThreadHint int

	// WatchDir, if non-empty, is a drop folder internal/core/watch watches
	// (via fsnotify) for new input files to auto-enqueue.
	WatchDir string

	// WatchDebounce is how long a watched file must sit unmodified before
	// it is considered fully written and safe to enqueue.
	WatchDebounce time.Duration
}

// Default returns the configuration used when no TRANSCODECORE_* env var
// overrides it.
func Default() RootConfig {
	return RootConfig{
		ScratchDir:        "/var/lib/transcodecore",
		DatabasePath:      "/var/lib/transcodecore/jobs.db",
		ListenAddr:        ":8383",
		MaxConcurrentJobs: sysinfo.DefaultConcurrency(),
		ThreadHint:        sysinfo.DefaultThreadHint(),
		WatchDebounce:     2 * time.Second,
	}
}

// Load returns Default() with every set TRANSCODECORE_* environment
// variable applied on top.
func Load() RootConfig {
	cfg := Default()
	if v := os.Getenv("TRANSCODECORE_SCRATCH_DIR"); v != "" {
		cfg.ScratchDir = v
	}
	if v := os.Getenv("TRANSCODECORE_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("TRANSCODECORE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("TRANSCODECORE_MAX_CONCURRENT_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConcurrentJobs = n
		}
	}
	if v := os.Getenv("TRANSCODECORE_THREAD_HINT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ThreadHint = n
		}
	}
	if v := os.Getenv("TRANSCODECORE_WATCH_DIR"); v != "" {
		cfg.WatchDir = v
	}
	if v := os.Getenv("TRANSCODECORE_WATCH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.WatchDebounce = d
		}
	}
	return cfg
}
