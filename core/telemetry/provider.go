// Package telemetry installs the OpenTelemetry tracer provider used for
// backend API spans.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Config struct {
	Enabled bool
	// Endpoint is the OTLP/HTTP collector as host:port.
	Endpoint       string
	Insecure       bool
	SampleRate     float64
	ServiceName    string
	ServiceVersion string
	Environment    string
}

var ErrNoEndpoint = errors.New("telemetry: enabled without an OTLP endpoint")

// Provider pairs the tracer provider with the propagator injected into
// outgoing requests.
type Provider struct {
	tp       trace.TracerProvider
	prop     propagation.TextMapPropagator
	shutdown func(context.Context) error
}

func (p *Provider) TracerProvider() trace.TracerProvider { return p.tp }
func (p *Provider) Propagator() propagation.TextMapPropagator { return p.prop }

// Shutdown flushes pending spans. Safe on a disabled provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// Setup builds the provider and installs it as the otel global. When tracing
// is disabled spans are no-ops and no trace context is sent.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	prop := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	if !cfg.Enabled {
		p := &Provider{tp: noop.NewTracerProvider(), prop: prop}
		otel.SetTracerProvider(p.tp)
		otel.SetTextMapPropagator(prop)
		return p, nil
	}
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	tp := NewTracerProvider(cfg, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(prop)
	return &Provider{tp: tp, prop: prop, shutdown: tp.Shutdown}, nil
}

// NewTracerProvider builds an SDK provider with the service resource and the
// configured sampler; extra options attach span processors.
func NewTracerProvider(cfg Config, extra ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(serviceResource(cfg)),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	}
	return sdktrace.NewTracerProvider(append(opts, extra...)...)
}

func sampler(rate float64) sdktrace.Sampler {
	if rate <= 0 || rate >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}

func serviceResource(cfg Config) *resource.Resource {
	name := cfg.ServiceName
	if name == "" {
		name = "logement"
	}
	attrs := []attribute.KeyValue{attribute.String("service.name", name)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}
	return resource.NewSchemaless(attrs...)
}
