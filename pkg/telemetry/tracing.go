// Package telemetry wires OpenTelemetry tracing for the skill agent and its CLI.
package telemetry

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Sampler names accepted in Config.SamplerType.
const (
	SamplerAlways = "always"
	SamplerNever  = "never"
	SamplerRatio  = "ratio"
)

// Config controls tracer setup. It is decoded from the "tracing" config key.
type Config struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"-"`
	// SamplerType is one of always, never or ratio. Anything else samples
	// every trace.
	SamplerType  string  `mapstructure:"sampler"`
	SamplerRatio float64 `mapstructure:"ratio"`
}

func noopShutdown(context.Context) error { return nil }

// InitTracer installs a global tracer provider exporting over OTLP/HTTP.
// Endpoint and headers come from the OTEL_EXPORTER_OTLP_* variables. The
// returned function flushes and stops the exporter. A disabled config
// installs nothing.
func InitTracer(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultTracerName
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create resource")
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create trace exporter")
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter,
			sdktrace.WithMaxExportBatchSize(512),
			sdktrace.WithBatchTimeout(time.Second),
		),
		sdktrace.WithSampler(samplerFor(cfg)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	// Shutting the provider down flushes and stops the batcher's exporter.
	return provider.Shutdown, nil
}

// samplerFor maps the configured sampler. Ratios outside [0, 1] are clamped.
func samplerFor(cfg Config) sdktrace.Sampler {
	switch strings.ToLower(strings.TrimSpace(cfg.SamplerType)) {
	case SamplerNever:
		return sdktrace.NeverSample()
	case SamplerRatio:
		ratio := min(max(cfg.SamplerRatio, 0), 1)
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	default:
		return sdktrace.AlwaysSample()
	}
}
