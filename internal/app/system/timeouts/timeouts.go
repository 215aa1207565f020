// Package timeouts provides the bounded durations used around database and
// outbound calls.
//
// Values start at the defaults below and are overridden once at startup from
// the timeout_* config keys (see bootstrap.LoadConfig).
//
//   - Ping: health checks
//   - Short: single-document reads and conditional updates
//   - Medium: list queries and simple writes
//   - Long: multi-collection writes (team creation, team deletion)
//   - Gateway: calls to the payment provider
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing    = 2 * time.Second
	DefaultShort   = 5 * time.Second
	DefaultMedium  = 10 * time.Second
	DefaultLong    = 30 * time.Second
	DefaultGateway = 15 * time.Second
)

var (
	mu      sync.RWMutex
	current = Config{
		Ping:    DefaultPing,
		Short:   DefaultShort,
		Medium:  DefaultMedium,
		Long:    DefaultLong,
		Gateway: DefaultGateway,
	}
)

// Config holds timeout values. Zero fields are ignored by Configure.
type Config struct {
	Ping    time.Duration
	Short   time.Duration
	Medium  time.Duration
	Long    time.Duration
	Gateway time.Duration
}

func Ping() time.Duration    { return get(func(c Config) time.Duration { return c.Ping }) }
func Short() time.Duration   { return get(func(c Config) time.Duration { return c.Short }) }
func Medium() time.Duration  { return get(func(c Config) time.Duration { return c.Medium }) }
func Long() time.Duration    { return get(func(c Config) time.Duration { return c.Long }) }
func Gateway() time.Duration { return get(func(c Config) time.Duration { return c.Gateway }) }

func get(f func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return f(current)
}

// Configure overrides the non-zero values in cfg.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		current.Ping = cfg.Ping
	}
	if cfg.Short > 0 {
		current.Short = cfg.Short
	}
	if cfg.Medium > 0 {
		current.Medium = cfg.Medium
	}
	if cfg.Long > 0 {
		current.Long = cfg.Long
	}
	if cfg.Gateway > 0 {
		current.Gateway = cfg.Gateway
	}
}

// Reset restores the defaults. Tests only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = Config{
		Ping:    DefaultPing,
		Short:   DefaultShort,
		Medium:  DefaultMedium,
		Long:    DefaultLong,
		Gateway: DefaultGateway,
	}
}

// Current returns the active configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// WithTimeout is context.WithTimeout whose cancel func logs a warning when the
// deadline was what ended the operation.
//
//	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Gateway(), log, "create gateway order")
//	defer cancel()
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
