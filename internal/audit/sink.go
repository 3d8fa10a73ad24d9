// Package audit implements AuditSink (spec §4.9 C10): a structured,
// best-effort, non-blocking security-event emitter. Delivery failures never
// fail the calling operation; they are only observable via a counter.
package audit

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"identityguard/internal/domain"
	"identityguard/internal/magic"
)

// Sink is the AuditSink component: events are pushed onto a bounded
// channel and drained by a single worker goroutine so Emit never blocks the
// caller on slow downstream delivery.
type Sink struct {
	logger  *slog.Logger
	events  chan domain.AuditEvent
	done    chan struct{}
	failCtr metric.Int64Counter
}

// NewSink constructs a Sink with a bounded event queue of the given
// capacity (defaulting to magic.DefaultAuditQueueCapacity) and starts its
// worker goroutine. Callers should defer Close.
func NewSink(logger *slog.Logger, capacity int, meter metric.Meter) (*Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = magic.DefaultAuditQueueCapacity
	}

	var failCtr metric.Int64Counter
	if meter != nil {
		ctr, err := meter.Int64Counter("identityguard.audit.delivery_failures")
		if err != nil {
			return nil, err
		}
		failCtr = ctr
	}

	s := &Sink{
		logger:  logger,
		events:  make(chan domain.AuditEvent, capacity),
		done:    make(chan struct{}),
		failCtr: failCtr,
	}
	go s.run()
	return s, nil
}

// Emit enqueues event for asynchronous delivery. If the queue is full the
// event is dropped and counted as a delivery failure rather than blocking
// the caller (spec §4.9: "best-effort, non-blocking").
func (s *Sink) Emit(event domain.AuditEvent) {
	select {
	case s.events <- event:
	default:
		s.recordFailure(event, "audit queue full")
	}
}

func (s *Sink) run() {
	for event := range s.events {
		s.deliver(event)
	}
	close(s.done)
}

// deliver logs event structurally. A real deployment might also fan out to
// a SIEM/webhook via an AlertTransport-shaped adapter; this sink's contract
// only promises the structured log line and the failure counter.
func (s *Sink) deliver(event domain.AuditEvent) {
	s.logger.Info("audit event",
		slog.String("actor", event.Actor),
		slog.String("action", event.Action),
		slog.String("target", event.Target),
		slog.String("ip", event.IP),
		slog.Time("at", event.At),
		slog.Any("details", event.Details),
	)
}

func (s *Sink) recordFailure(event domain.AuditEvent, reason string) {
	s.logger.Warn("audit event dropped", slog.String("reason", reason), slog.String("action", event.Action))
	if s.failCtr != nil {
		s.failCtr.Add(context.Background(), 1)
	}
}

// Close stops accepting new events and waits for the worker to drain the
// queue and exit.
func (s *Sink) Close() {
	close(s.events)
	<-s.done
}
