// Package timeouts provides centralized timeout values for handler and
// job operations.
//
// These values are used with context.WithTimeout around database calls,
// brokerage/model API calls, and archive fetches. Centralizing them keeps
// the budgets consistent and adjustable in one place.
//
// Guidelines for choosing a tier:
//   - Ping: health checks and connectivity verification
//   - Short: single-document reads and writes
//   - Medium: list queries, multi-step reads
//   - Long: whole poll pipelines, operations touching several backends
//   - Upstream: one brokerage or model API round trip (includes retries)
//   - Archive: NSE bhavcopy downloads (large zip, slow mirror, retries)
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing     = 2 * time.Second
	DefaultShort    = 5 * time.Second
	DefaultMedium   = 10 * time.Second
	DefaultLong     = 30 * time.Second
	DefaultUpstream = 20 * time.Second
	DefaultArchive  = 45 * time.Second
)

var mu sync.RWMutex

var (
	ping     = DefaultPing
	short    = DefaultShort
	medium   = DefaultMedium
	long     = DefaultLong
	upstream = DefaultUpstream
	archive  = DefaultArchive
)

// Ping returns the timeout for health checks.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

// Short returns the timeout for simple single-document operations.
func Short() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return short
}

// Medium returns the timeout for list queries and moderate writes.
func Medium() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return medium
}

// Long returns the timeout for whole pipelines, like one poll run for a
// symbol (fetch, advise, store, notify).
func Long() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return long
}

// Upstream returns the timeout for one brokerage or model API call.
func Upstream() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return upstream
}

// Archive returns the timeout for NSE bhavcopy archive downloads.
func Archive() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return archive
}

// Config holds timeout configuration values.
// Zero values are ignored (current values are kept).
type Config struct {
	Ping     time.Duration
	Short    time.Duration
	Medium   time.Duration
	Long     time.Duration
	Upstream time.Duration
	Archive  time.Duration
}

// Configure sets custom timeout values. Zero values in the config are
// ignored. Call during startup, before handlers are registered.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		ping = cfg.Ping
	}
	if cfg.Short > 0 {
		short = cfg.Short
	}
	if cfg.Medium > 0 {
		medium = cfg.Medium
	}
	if cfg.Long > 0 {
		long = cfg.Long
	}
	if cfg.Upstream > 0 {
		upstream = cfg.Upstream
	}
	if cfg.Archive > 0 {
		archive = cfg.Archive
	}
}

// Reset restores all timeouts to their defaults. Useful for testing.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping = DefaultPing
	short = DefaultShort
	medium = DefaultMedium
	long = DefaultLong
	upstream = DefaultUpstream
	archive = DefaultArchive
}

// ConfigureFromEnv reads timeout overrides from environment variables
// (WATCHDOG_TIMEOUT_PING, WATCHDOG_TIMEOUT_SHORT, WATCHDOG_TIMEOUT_MEDIUM,
// WATCHDOG_TIMEOUT_LONG, WATCHDOG_TIMEOUT_UPSTREAM, WATCHDOG_TIMEOUT_ARCHIVE),
// each a Go duration string like "5s" or "2m". Invalid or unset values keep
// the current setting. Returns how many were applied.
func ConfigureFromEnv() int {
	mu.Lock()
	defer mu.Unlock()
	applied := 0
	set := func(key string, dst *time.Duration) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
			applied++
		}
	}
	set("WATCHDOG_TIMEOUT_PING", &ping)
	set("WATCHDOG_TIMEOUT_SHORT", &short)
	set("WATCHDOG_TIMEOUT_MEDIUM", &medium)
	set("WATCHDOG_TIMEOUT_LONG", &long)
	set("WATCHDOG_TIMEOUT_UPSTREAM", &upstream)
	set("WATCHDOG_TIMEOUT_ARCHIVE", &archive)
	return applied
}

// Current returns the active configuration. Useful for logging.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{
		Ping:     ping,
		Short:    short,
		Medium:   medium,
		Long:     long,
		Upstream: upstream,
		Archive:  archive,
	}
}

// WithTimeout creates a context with the given timeout and returns a
// cancel function that logs a warning when the deadline was actually hit.
// Use for long or critical operations where timeout debugging matters.
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
