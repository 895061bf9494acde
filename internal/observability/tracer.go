// Package observability wires this server's internal operations (session
// enrichment passes, tail advances, full-file parses) into OpenTelemetry
// traces. Grounded on goadesign-goa-ai/runtime/agent/telemetry/clue.go's
// otel.Tracer/trace.Span wrapper shape (trimmed of its goa.design/clue
// logging/metrics half, which this server has no use for) and on the
// teacher's cmd/gateway.go comment noting OTLP export is wired via
// go.opentelemetry.io/otel's grpc/http exporters — carried here as the
// ambient tracing stack even though spec's Non-goals exclude a full
// metrics/observability product.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/fleetobserver/fleetobserver/internal/config"
)

const tracerName = "github.com/fleetobserver/fleetobserver"

// Init configures the global TracerProvider from cfg. When tracing is
// disabled it installs a no-op provider, so callers can unconditionally
// call StartSpan everywhere without checking cfg.Enabled. The returned
// shutdown func flushes and closes the exporter; callers should defer it.
func Init(ctx context.Context, cfg config.TelemetryConfig) (shutdown func(context.Context) error, err error) {
	if !cfg.Enabled {
		otel.SetTracerProvider(trace.NewNoopTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Insecure {
	case true:
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
	default:
		exporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(cfg.Endpoint),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("observability: build exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "fleet-observer"
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// StartSpan starts a span named name under the server's tracer. Safe to
// call unconditionally: with tracing disabled the global provider is a
// no-op and spans cost nothing beyond the call itself.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
