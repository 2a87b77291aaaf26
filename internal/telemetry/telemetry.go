package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-org-server/internal/config"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName is the tracer name used by every package in the module.
const InstrumentationName = "github.com/jrsteele09/go-org-server"

// Provider owns the tracer provider lifecycle.
type Provider struct {
	shutdown func(ctx context.Context) error
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// New configures tracing. An empty OTLP endpoint installs a noop provider.
func New(ctx context.Context, cfg config.TelemetryConfig) (*Provider, error) {
	if cfg.GetOTLPEndpoint() == "" {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		return &Provider{shutdown: func(context.Context) error { return nil }}, nil
	}

	clientOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.GetOTLPEndpoint()),
	}
	if cfg.GetOTLPInsecure() {
		clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exp, err := otlptracehttp.New(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("[telemetry New] create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(attribute.String("service.name", cfg.GetServiceName())),
	)
	if err != nil {
		return nil, fmt.Errorf("[telemetry New] build resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exp),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info().Str("endpoint", cfg.GetOTLPEndpoint()).Msg("telemetry enabled")

	return &Provider{
		shutdown: tp.Shutdown,
	}, nil
}

// Tracer returns the module tracer from the global provider. Services call this
// per operation so that a provider installed after construction is still used.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}
