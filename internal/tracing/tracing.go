// Package tracing sets up OpenTelemetry. Tracing is off unless enabled in
// config; spans are then exported over OTLP HTTP.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/suPer8Hu/pdf-rag/internal/logger"
)

const ServiceName = "pdfrag"

// Tracer returns the named tracer from the global provider. Before Init
// (or when disabled) it is a no-op tracer.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Init installs a global tracer provider when enabled and returns its
// shutdown function. Exporter failures disable tracing rather than abort.
func Init(ctx context.Context, enabled bool, endpoint string, log *logger.Logger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if !enabled {
		log.Debug("tracing", "OpenTelemetry tracing is disabled", nil)
		return noop
	}
	if endpoint == "" {
		endpoint = "localhost:4318"
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		log.Warn("tracing", "failed to create OTLP exporter, tracing disabled", map[string]any{"error": err})
		return noop
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)
	log.Info("tracing", "OpenTelemetry tracer initialized", map[string]any{"endpoint": endpoint})
	return tp.Shutdown
}
