package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript evicts members older than the window, counts what
// remains, and — if under limit — inserts `now` as a new member, all as one
// server-side Lua script so evict+count+insert is atomic (spec §4.1).
//
// KEYS[1] = sorted-set key
// ARGV[1] = window start (unix nanoseconds, exclusive floor)
// ARGV[2] = now (unix nanoseconds, used as both score and member disambiguator)
// ARGV[3] = limit
// ARGV[4] = window TTL in seconds, for key expiry housekeeping
//
// Returns 1 if admitted, 0 if denied.
const slidingWindowScript = `
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local count = redis.call('ZCARD', KEYS[1])
if count < tonumber(ARGV[3]) then
	redis.call('ZADD', KEYS[1], ARGV[2], ARGV[2])
	redis.call('EXPIRE', KEYS[1], ARGV[4])
	return 1
end
return 0
`

// RedisClient is the subset of *redis.Client SlidingWindowLimiter depends on,
// satisfied by both *redis.Client and miniredis-backed test clients.
type RedisClient interface {
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// SlidingWindowLimiter is the distributed variant of §4.1, preferred for
// production: a Redis sorted set keyed by caller identity, members scored by
// timestamp, evicted/counted/inserted atomically via a single Lua script.
type SlidingWindowLimiter struct {
	client RedisClient
	window time.Duration
	limit  int
	prefix string
	now    func() time.Time
}

// NewSlidingWindowLimiter constructs a distributed limiter admitting at most
// limit calls per window, per key, against client.
func NewSlidingWindowLimiter(client RedisClient, window time.Duration, limit int) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{client: client, window: window, limit: limit, prefix: "ratelimit:", now: time.Now}
}

// TryAcquire implements Limiter, failing closed on any Redis error.
func (l *SlidingWindowLimiter) TryAcquire(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	windowStart := now.Add(-l.window)

	result, err := l.client.Eval(ctx, slidingWindowScript,
		[]string{l.prefix + key},
		windowStart.UnixNano(), now.UnixNano(), l.limit, int(l.window.Seconds())+1,
	).Int64()
	if err != nil {
		return Decision{}, unavailable(err)
	}

	if result == 1 {
		return Decision{Allowed: true}, nil
	}
	return Decision{Allowed: false, RetryAfter: l.window}, nil
}
