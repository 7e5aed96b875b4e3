// Package telemetry installs the OpenTelemetry tracer provider. Spans are
// exported as JSON lines to a rotating file, or dropped when no file is set.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"sightspeak/internal/common/fsutil"
)

// ServiceName is reported as the otel service.name resource attribute.
const ServiceName = "sightspeak"

// Options configures tracing.
type Options struct {
	// TraceFile receives exported spans. Empty disables export.
	TraceFile string
	Version   string
	// Sync exports every span as it ends instead of batching.
	Sync bool
}

// Init installs a global tracer provider and returns its shutdown function.
func Init(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if opts.TraceFile == "" {
		return func(context.Context) error { return nil }, nil
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	file, err := fsutil.PrepareFile(opts.TraceFile)
	if err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}
	traceFile := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(traceFile))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	spanOpt := sdktrace.WithBatcher(exp)
	if opts.Sync {
		spanOpt = sdktrace.WithSyncer(exp)
	}
	tp := sdktrace.NewTracerProvider(spanOpt, sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return errors.Join(tp.Shutdown(ctx), traceFile.Close())
	}, nil
}
