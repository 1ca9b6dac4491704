// Package ratelimit provides a sliding-window admission limiter keyed by
// (api, method), with a shared global cap across all keys.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Default limiter configuration.
const (
	DefaultWindow    = 10 * time.Second
	DefaultKeyCap    = 10
	DefaultGlobalCap = 50
	// expiryBuffer pads the sleep past the oldest timestamp's expiry so the
	// retried admission is never re-denied by clock granularity.
	expiryBuffer = 100 * time.Millisecond
)

const globalKey = "global"

// Config holds limiter caps.
type Config struct {
	Window    time.Duration
	GlobalCap int
	// KeyCaps overrides the per-key cap for specific "api:method" keys.
	KeyCaps map[string]int
	// DefaultKeyCap applies to keys without an override.
	DefaultKeyCap int
}

// Limiter is a process-wide sliding-window limiter. Safe for concurrent use.
type Limiter struct {
	mu     sync.Mutex
	config Config
	// calls maps key to retained call timestamps inside the window.
	calls map[string][]time.Time
	now   func() time.Time
}

// New creates a limiter. Zero config fields fall back to defaults.
func New(config Config) *Limiter {
	return &Limiter{
		config: normalize(config),
		calls:  make(map[string][]time.Time),
		now:    time.Now,
	}
}

// SetConfig swaps the caps; used by config hot reload. Retained call
// timestamps carry over, so a shrunk window takes effect immediately.
func (l *Limiter) SetConfig(config Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config = normalize(config)
}

func normalize(config Config) Config {
	if config.Window <= 0 {
		config.Window = DefaultWindow
	}
	if config.GlobalCap <= 0 {
		config.GlobalCap = DefaultGlobalCap
	}
	if config.DefaultKeyCap <= 0 {
		config.DefaultKeyCap = DefaultKeyCap
	}
	return config
}

// Wait blocks until a call under (api, method) is admitted, then records it
// under both the per-key and global windows. Returns early with the context
// error if ctx is cancelled while waiting.
func (l *Limiter) Wait(ctx context.Context, api, method string) error {
	key := api + ":" + method

	for {
		sleep := l.tryAdmit(key)
		if sleep == 0 {
			return nil
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAdmit either records the call and returns 0, or returns how long to
// sleep before the next attempt.
func (l *Limiter) tryAdmit(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.expire(key, now)
	l.expire(globalKey, now)

	limit := l.config.DefaultKeyCap
	if override, ok := l.config.KeyCaps[key]; ok {
		limit = override
	}

	// When a window is full, wait out its oldest retained timestamp. If both
	// windows are full the later expiry governs.
	var oldest time.Time
	if len(l.calls[key]) >= limit {
		oldest = l.calls[key][0]
	}
	if len(l.calls[globalKey]) >= l.config.GlobalCap {
		globalOldest := l.calls[globalKey][0]
		if globalOldest.After(oldest) {
			oldest = globalOldest
		}
	}

	if !oldest.IsZero() {
		return oldest.Add(l.config.Window).Sub(now) + expiryBuffer
	}

	l.calls[key] = append(l.calls[key], now)
	l.calls[globalKey] = append(l.calls[globalKey], now)
	return 0
}

// expire drops timestamps older than the window.
func (l *Limiter) expire(key string, now time.Time) {
	cutoff := now.Add(-l.config.Window)
	retained := l.calls[key]
	i := 0
	for i < len(retained) && !retained[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.calls[key] = retained[i:]
	}
}
