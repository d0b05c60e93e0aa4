package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "chunkmap"

// Tracer is the package-wide tracer. It resolves through the global provider,
// so spans become real once InitTracing installs an exporter and are no-ops
// otherwise.
var Tracer trace.Tracer = otel.Tracer(instrumentationName)

type TracingOptions struct {
	Endpoint    string
	ServiceName string
	Version     string
	Insecure    bool
}

// InitTracing installs an OTLP gRPC exporter as the global tracer provider.
// The returned function flushes and shuts the provider down.
func InitTracing(ctx context.Context, opts TracingOptions) (func(context.Context) error, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = instrumentationName
	}
	exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exporter, err := otlptracegrpc.New(dialCtx, exporterOpts...)
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", opts.ServiceName),
		attribute.String("service.version", opts.Version),
	)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	Tracer = provider.Tracer(instrumentationName)
	return provider.Shutdown, nil
}

// StartPhase opens a span for an analysis phase and returns a function that
// ends it and records the phase duration.
func StartPhase(ctx context.Context, phase string, attrs ...attribute.KeyValue) (context.Context, func()) {
	started := time.Now()
	ctx, span := Tracer.Start(ctx, "chunkmap."+phase, trace.WithAttributes(attrs...))
	return ctx, func() {
		PhaseDuration.WithLabelValues(phase).Observe(time.Since(started).Seconds())
		span.End()
	}
}
