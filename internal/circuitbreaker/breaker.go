// Package circuitbreaker implements a generic closed/open/half-open breaker
// for wrapping calls to unreliable external collaborators (spec §4.1 C2):
// WHOIS servers, DNS resolvers, and other outbound network dependencies the
// ASN pipeline leans on.
package circuitbreaker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"identityguard/internal/apperr"
	"identityguard/internal/magic"
)

// State is one of Closed, Open, or HalfOpen.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker trips from Closed to Open once consecutive failures reach
// FailureThreshold, refuses calls while Open, and after OpenTimeout moves to
// HalfOpen and admits calls again: the first outcome recorded in HalfOpen
// closes it (success) or reopens it (failure). Concurrent calls in HalfOpen
// are not limited to a single probe.
type Breaker struct {
	name             string
	failureThreshold int
	openTimeout      time.Duration
	logger           *slog.Logger

	mu              sync.Mutex
	state           State
	consecutiveFail int
	openedAt        time.Time
	now             func() time.Time
}

// New constructs a breaker named for logging, tripping after
// failureThreshold consecutive failures and probing again after openTimeout.
func New(name string, failureThreshold int, openTimeout time.Duration, logger *slog.Logger) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = magic.DefaultBreakerFailureThreshold
	}
	if openTimeout <= 0 {
		openTimeout = magic.DefaultBreakerOpenDuration
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		openTimeout:      openTimeout,
		logger:           logger,
		state:            Closed,
		now:              time.Now,
	}
}

// State reports the breaker's current state, promoting Open to HalfOpen as a
// side effect once openTimeout has elapsed — so callers observing State()
// see the same transition Call() would apply.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked()
	return b.state
}

func (b *Breaker) maybeHalfOpenLocked() {
	if b.state == Open && b.now().Sub(b.openedAt) >= b.openTimeout {
		b.state = HalfOpen
		b.logger.Debug("circuit breaker half-open", slog.String("breaker", b.name))
	}
}

// Call runs fn, fails fast with apperr.ExternalUnavailable when the breaker is Open,
// and otherwise records fn's outcome to drive the next state transition.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.allow() {
		return apperr.New(apperr.ExternalUnavailable, "circuit breaker open for "+b.name)
	}

	err := fn(ctx)
	b.record(err)
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeHalfOpenLocked()
	return b.state != Open
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state == HalfOpen {
			b.logger.Info("circuit breaker closed", slog.String("breaker", b.name))
		}
		b.state = Closed
		b.consecutiveFail = 0
		return
	}

	if b.state == HalfOpen {
		b.trip()
		return
	}

	b.consecutiveFail++
	if b.consecutiveFail >= b.failureThreshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = b.now()
	b.logger.Warn("circuit breaker open", slog.String("breaker", b.name), slog.Int("consecutive_failures", b.consecutiveFail))
}
