// Package telemetry installs the OpenTelemetry tracer provider. Without an
// OTLP endpoint the global no-op provider stays in place and spans cost
// nothing.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope used by every package of the server
const TracerName = "github.com/giygas/priorauth-checker"

// Tracer returns the server tracer from the global provider
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// ShutdownFunc flushes and stops the tracer provider
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup exports spans over OTLP/HTTP when endpoint is set. The exporter reads
// the remaining OTEL_EXPORTER_OTLP_* variables itself.
func Setup(ctx context.Context, endpoint, serviceName, version string) (ShutdownFunc, error) {
	if strings.TrimSpace(endpoint) == "" {
		return noopShutdown, nil
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return noopShutdown, fmt.Errorf("telemetry: create otlp exporter: %w", err)
	}

	tp := NewProvider(sdktrace.WithBatcher(exporter), serviceName, version)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// NewProvider builds an SDK tracer provider tagged with the service identity
func NewProvider(opt sdktrace.TracerProviderOption, serviceName, version string) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)
	return sdktrace.NewTracerProvider(opt, sdktrace.WithResource(res))
}
