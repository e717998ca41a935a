package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"pokeagent/internal/config"
)

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		typ  string
		want string
	}{
		{"always_off", "AlwaysOffSampler"},
		{"always_on", "AlwaysOnSampler"},
		{"", "AlwaysOnSampler"},
		{"traceidratio", "TraceIDRatioBased{0.5}"},
	}

	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			s := createSampler(config.SamplerConfig{Type: tt.typ, Param: 0.5})
			assert.Equal(t, tt.want, s.Description())
		})
	}
}

func TestHeadersRoundTrip(t *testing.T) {
	tp, err := Init(config.TracingConfig{}, "")
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	parent := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))

	headers := InjectTraceContext(parent)
	require.Contains(t, headers, "traceparent")

	upper := map[string]string{"Traceparent": headers["traceparent"]}
	ctx := ExtractTraceContext(context.Background(), upper)
	assert.Equal(t, traceID, trace.SpanContextFromContext(ctx).TraceID())
}

func TestExtractTraceContext_NoHeaders(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, ExtractTraceContext(ctx, nil))
}
