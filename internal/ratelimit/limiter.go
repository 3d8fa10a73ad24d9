// Package ratelimit implements C1: admission control keyed by caller
// identity, in two interchangeable variants (spec §4.1).
package ratelimit

import (
	"context"
	"time"
)

// Decision is the result of a single TryAcquire call.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter is the single contract both variants satisfy.
type Limiter interface {
	// TryAcquire admits or denies one unit of work for key. On backend
	// failure it fails closed and returns an *apperr.Error of kind
	// RateLimiterUnavailable rather than Decision{Allowed:true}.
	TryAcquire(ctx context.Context, key string) (Decision, error)
}
