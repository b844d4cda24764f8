package telemetry

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func TestWithSpan(t *testing.T) {
	recorder := withRecorder(t)

	err := WithSpan(context.Background(), "ok", func(ctx context.Context) error {
		AddEvent(ctx, "step", attribute.Int("n", 1))
		return nil
	}, attribute.String("skill", "demo"))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = WithSpan(context.Background(), "failing", func(context.Context) error {
		return boom
	})
	assert.Equal(t, boom, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "ok", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("skill", "demo"))
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "step", spans[0].Events()[0].Name)

	assert.Equal(t, "failing", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
}

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestRecordErrorIgnoresNil(t *testing.T) {
	recorder := withRecorder(t)

	WithSpanFunc(context.Background(), "degraded", func(ctx context.Context) {
		RecordError(ctx, nil)
		SetAttributes(ctx, AttrSkillName.String("meeting-summary"))
	})

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("skill.name", "meeting-summary"))
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		cfg      Config
		expected string
	}{
		{Config{SamplerType: "always"}, "AlwaysOnSampler"},
		{Config{SamplerType: "NEVER"}, "AlwaysOffSampler"},
		{Config{SamplerType: "ratio", SamplerRatio: 0.5}, "ParentBased{root:TraceIDRatioBased{0.5}"},
		{Config{SamplerType: "ratio", SamplerRatio: 3}, "ParentBased{root:AlwaysOnSampler"},
		{Config{}, "AlwaysOnSampler"},
	}

	for _, tt := range tests {
		t.Run(tt.cfg.SamplerType, func(t *testing.T) {
			assert.Contains(t, samplerFor(tt.cfg).Description(), tt.expected)
		})
	}
}
