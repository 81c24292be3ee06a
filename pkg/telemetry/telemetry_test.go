package telemetry

import (
	"context"
	"testing"

	"github.com/smallbiznis/dispatch/internal/config"
	"github.com/smallbiznis/dispatch/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestRequestIDIsCopiedOntoSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(
		trace.WithSpanProcessor(&requestIDSpanProcessor{}),
		trace.WithSpanProcessor(recorder),
	)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx := logger.WithRequestID(context.Background(), "req-42")
	_, span := tp.Tracer("test").Start(ctx, "op")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	var found bool
	for _, attr := range spans[0].Attributes() {
		if string(attr.Key) == "request_id" {
			found = true
			assert.Equal(t, "req-42", attr.Value.AsString())
		}
	}
	assert.True(t, found)
}

func TestTracerProviderWithoutExporter(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	tp, err := NewTracerProvider(lc, config.Config{AppName: "dispatch", Environment: "test"}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, tp)
	lc.RequireStart().RequireStop()
}
