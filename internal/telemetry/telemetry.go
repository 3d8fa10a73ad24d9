// Package telemetry wires structured logging, metrics, and tracing into a
// single service handle, mirroring the teacher's shared telemetry service
// (its Slogger/MetricsProvider/TracesProvider/StartTime shape and
// once-only Shutdown). Traces/metrics always emit to stdout; an additional
// OTLP/gRPC trace exporter is wired in alongside it when WithOTLPTraceEndpoint
// names a collector, the way the teacher's fuller telemetry service offers
// both a local stream and a network collector.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TelemetryService bundles the three observability signals a running
// identityguardd process emits. Slogger fans every record out to a plain
// text handler (for local/container log capture) and an OTel log bridge
// (for collectors that tail stdout spans/metrics alongside logs).
type TelemetryService struct {
	Slogger         *slog.Logger
	MetricsProvider metric.MeterProvider
	TracesProvider  trace.TracerProvider
	StartTime       time.Time

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	shutdownOnce   sync.Once
}

// Option configures optional NewTelemetryService behavior.
type Option func(*settings)

type settings struct {
	otlpTraceEndpoint string
}

// WithOTLPTraceEndpoint adds a second span processor exporting to an
// OTLP/gRPC collector at endpoint (host:port), alongside the always-on
// stdout trace exporter. A blank endpoint leaves OTLP export disabled.
func WithOTLPTraceEndpoint(endpoint string) Option {
	return func(s *settings) { s.otlpTraceEndpoint = endpoint }
}

// NewTelemetryService constructs the service for serviceName. ctx must be
// non-nil and serviceName non-empty.
func NewTelemetryService(ctx context.Context, serviceName string, opts ...Option) (*TelemetryService, error) {
	if ctx == nil {
		return nil, fmt.Errorf("telemetry: context must be non-nil")
	}
	if serviceName == "" {
		return nil, fmt.Errorf("telemetry: service name must be non-empty")
	}

	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	traceExporter, err := stdouttrace.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: constructing trace exporter: %w", err)
	}
	tracerProviderOpts := []sdktrace.TracerProviderOption{sdktrace.WithBatcher(traceExporter), sdktrace.WithResource(res)}

	if s.otlpTraceEndpoint != "" {
		otlpExporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(s.otlpTraceEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("telemetry: constructing otlp trace exporter: %w", err)
		}
		tracerProviderOpts = append(tracerProviderOpts, sdktrace.WithBatcher(otlpExporter))
	}

	tracerProvider := sdktrace.NewTracerProvider(tracerProviderOpts...)

	metricExporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: constructing metric exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)

	textHandler := slog.NewTextHandler(os.Stdout, nil)
	otelHandler := otelslog.NewHandler(serviceName)
	logger := slog.New(slogmulti.Fanout(textHandler, otelHandler))

	return &TelemetryService{
		Slogger:         logger,
		MetricsProvider: meterProvider,
		TracesProvider:  tracerProvider,
		StartTime:       time.Now(),
		tracerProvider:  tracerProvider,
		meterProvider:   meterProvider,
	}, nil
}

// Shutdown flushes and releases both providers. Safe to call more than
// once.
func (s *TelemetryService) Shutdown() {
	s.shutdownOnce.Do(func() {
		ctx := context.Background()
		if err := s.tracerProvider.Shutdown(ctx); err != nil {
			s.Slogger.Error("shutting down trace provider", "error", err)
		}
		if err := s.meterProvider.Shutdown(ctx); err != nil {
			s.Slogger.Error("shutting down meter provider", "error", err)
		}
	})
}
