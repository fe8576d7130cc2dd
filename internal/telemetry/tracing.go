// Package telemetry installs the global OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dkeye/Babel/internal/config"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"go.opentelemetry.io/otel/trace/noop"
)

// Shutdown flushes and stops the exporter.
type Shutdown func(context.Context) error

// Setup configures tracing per cfg.Tracing: "none" installs a no-op
// provider, "stdout" pretty-prints spans to out, "otlp" exports over gRPC.
func Setup(ctx context.Context, cfg config.TelemetryConfig, out io.Writer) (Shutdown, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Tracing))
	if mode == "" || mode == "none" {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Info().Str("module", "telemetry").Str("exporter", "none").Msg("tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, err
	}

	var exporter sdktrace.SpanExporter
	switch mode {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
	case "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("telemetry: unknown exporter %q", cfg.Tracing)
	}
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	log.Info().Str("module", "telemetry").Str("exporter", mode).Str("endpoint", cfg.OTLPEndpoint).Msg("tracing initialized")
	return tp.Shutdown, nil
}
