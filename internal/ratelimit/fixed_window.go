package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"identityguard/internal/apperr"
	"identityguard/internal/magic"
)

type windowCounter struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// FixedWindowLimiter is the in-process variant of §4.1: a per-key counter
// reset whenever now-windowStart exceeds window, with a periodic purge once
// the key map grows past PurgeThreshold.
type FixedWindowLimiter struct {
	window         time.Duration
	limit          int
	purgeThreshold int
	logger         *slog.Logger

	counters sync.Map // string -> *windowCounter
	size     atomic.Int64
	now      func() time.Time
}

// NewFixedWindowLimiter constructs an in-process limiter admitting at most
// limit calls per window, per key.
func NewFixedWindowLimiter(window time.Duration, limit int, logger *slog.Logger) *FixedWindowLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FixedWindowLimiter{
		window:         window,
		limit:          limit,
		purgeThreshold: magic.DefaultPurgeThreshold,
		logger:         logger,
		now:            time.Now,
	}
}

// TryAcquire implements Limiter.
func (l *FixedWindowLimiter) TryAcquire(_ context.Context, key string) (Decision, error) {
	now := l.now()

	value, loaded := l.counters.Load(key)
	if !loaded {
		wc := &windowCounter{windowStart: now, count: 0}
		actual, loaded := l.counters.LoadOrStore(key, wc)
		if !loaded {
			l.size.Add(1)
			l.maybePurge()
		}
		value = actual
	}
	wc := value.(*windowCounter)

	wc.mu.Lock()
	defer wc.mu.Unlock()

	if now.Sub(wc.windowStart) > l.window {
		wc.windowStart = now
		wc.count = 0
	}

	if wc.count >= l.limit {
		retryAfter := l.window - now.Sub(wc.windowStart)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Decision{Allowed: false, RetryAfter: retryAfter}, nil
	}

	wc.count++
	return Decision{Allowed: true}, nil
}

// maybePurge drops counters for keys whose window has long expired once the
// map has grown past purgeThreshold, bounding memory under key churn.
func (l *FixedWindowLimiter) maybePurge() {
	if l.size.Load() <= int64(l.purgeThreshold) {
		return
	}

	now := l.now()
	removed := int64(0)
	l.counters.Range(func(key, value any) bool {
		wc := value.(*windowCounter)
		wc.mu.Lock()
		expired := now.Sub(wc.windowStart) > 2*l.window
		wc.mu.Unlock()
		if expired {
			l.counters.Delete(key)
			removed++
		}
		return true
	})
	l.size.Add(-removed)
	l.logger.Debug("rate limiter purge", slog.Int64("removed", removed))
}

// unavailable is a helper other limiter implementations can reuse to build
// the fail-closed error (spec §4.1).
func unavailable(err error) error {
	return apperr.Wrap(apperr.RateLimiterUnavailable, err, "rate limiter backend unreachable")
}
