// Package asn implements AsnResolver (spec §4.3 C4): a cache → durable
// store → external provider pipeline for IP → autonomous-system-number
// lookups, with the external stage guarded by a token bucket, bounded
// retries, and an optional circuit breaker.
package asn

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"identityguard/internal/adapters"
	"identityguard/internal/apperr"
	"identityguard/internal/cache"
	"identityguard/internal/circuitbreaker"
	"identityguard/internal/domain"
	"identityguard/internal/magic"
)

// External resolves ip to an ASN using one external provider (GeoIP2 DB,
// cymru reverse-DNS, or WHOIS). Implementations return apperr(ExternalUnavailable)
// or similar on failure so Resolver can try the next one in the chain.
type External interface {
	Name() string
	Lookup(ctx context.Context, ip string) (uint32, error)
}

// Resolver is the AsnResolver component.
type Resolver struct {
	cache    *cache.Cache
	store    adapters.AsnEntryStore
	chain    []External
	limiter  *rate.Limiter
	breaker  *circuitbreaker.Breaker
	maxRetry int
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Resolver at construction time.
type Option func(*Resolver)

// WithBreaker wraps every external call through b.
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(r *Resolver) { r.breaker = b }
}

// WithMaxRetry overrides the default retry budget for the external stage.
func WithMaxRetry(n int) Option {
	return func(r *Resolver) { r.maxRetry = n }
}

// NewResolver constructs a Resolver querying chain in order on a cache and
// store miss, rate-limited to ratePerSecond external calls.
func NewResolver(c *cache.Cache, store adapters.AsnEntryStore, chain []External, ratePerSecond float64, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if ratePerSecond <= 0 {
		ratePerSecond = magic.DefaultExternalRatePerSecond
	}
	r := &Resolver{
		cache:    c,
		store:    store,
		chain:    chain,
		limiter:  rate.NewLimiter(rate.Limit(ratePerSecond), int(ratePerSecond)+1),
		maxRetry: 3,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LookupAsn resolves ip through cache, durable store, then the external
// chain, short-circuiting at the first stage that succeeds. Failures are
// never cached (spec §4.3): a failed external lookup simply leaves the key
// absent for retry on the next call.
func (r *Resolver) LookupAsn(ctx context.Context, ip string) (uint32, error) {
	if v, ok := r.fromCache(ip); ok {
		return v, nil
	}

	if r.store != nil {
		entry, err := r.store.Find(ctx, ip)
		if err == nil && entry != nil {
			r.cache.Put(ip, entry.ASN)
			return entry.ASN, nil
		}
	}

	asn, err := r.lookupExternal(ctx, ip)
	if err != nil {
		return 0, err
	}

	r.cache.Put(ip, asn)
	if r.store != nil {
		if err := r.store.Upsert(ctx, domain.AsnEntry{IP: ip, ASN: asn, LastModifiedAt: r.now()}); err != nil {
			r.logger.Warn("failed to persist resolved asn", slog.String("ip", ip), slog.Any("error", err))
		}
	}
	return asn, nil
}

func (r *Resolver) fromCache(ip string) (uint32, bool) {
	v, ok := r.cache.Peek(ip)
	if !ok {
		return 0, false
	}
	return v.(uint32), true
}

// lookupExternal attempts each stage of the chain in order, short-circuiting
// on first success, each call guarded by the rate limiter and circuit
// breaker and attempted up to maxRetry times in total with exponential backoff.
func (r *Resolver) lookupExternal(ctx context.Context, ip string) (uint32, error) {
	var lastErr error
	for _, stage := range r.chain {
		asn, err := r.callWithRetry(ctx, stage, ip)
		if err == nil {
			return asn, nil
		}
		r.logger.Debug("asn external stage failed", slog.String("stage", stage.Name()), slog.String("ip", ip), slog.Any("error", err))
		lastErr = err
	}
	if lastErr == nil {
		lastErr = apperr.New(apperr.ExternalUnavailable, "no external asn provider configured")
	}
	return 0, apperr.Wrap(apperr.ExternalUnavailable, lastErr, "all external asn providers failed")
}

func (r *Resolver) callWithRetry(ctx context.Context, stage External, ip string) (uint32, error) {
	var result uint32
	var lastErr error

	for attempt := 0; attempt < r.maxRetry; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 50 * time.Millisecond
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return 0, err
		}

		call := func(ctx context.Context) error {
			asn, err := stage.Lookup(ctx, ip)
			if err != nil {
				return err
			}
			result = asn
			return nil
		}

		var err error
		if r.breaker != nil {
			err = r.breaker.Call(ctx, call)
		} else {
			err = call(ctx)
		}

		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return 0, lastErr
}
