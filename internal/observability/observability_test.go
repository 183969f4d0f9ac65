package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/trace"
)

func TestNewLogger(t *testing.T) {
	t.Run("production writes json with source", func(t *testing.T) {
		var buf bytes.Buffer
		newLogger("production", "", &buf).Info("hello")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "hello", entry["msg"])
		assert.Contains(t, entry, "source")
	})

	t.Run("production drops debug", func(t *testing.T) {
		var buf bytes.Buffer
		newLogger("production", "", &buf).Debug("noise")
		assert.Zero(t, buf.Len())
	})

	t.Run("development writes text at debug", func(t *testing.T) {
		var buf bytes.Buffer
		newLogger("development", "", &buf).Debug("detail")
		assert.Contains(t, buf.String(), "msg=detail")
	})

	t.Run("explicit level overrides the environment", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newLogger("development", "WARN", &buf)
		logger.Info("quiet")
		assert.Zero(t, buf.Len())
		logger.Warn("loud")
		assert.Contains(t, buf.String(), "msg=loud")

		buf.Reset()
		newLogger("production", "debug", &buf).Debug("verbose")
		assert.Contains(t, buf.String(), `"msg":"verbose"`)
	})

	t.Run("unknown level keeps the default", func(t *testing.T) {
		var buf bytes.Buffer
		newLogger("production", "chatty", &buf).Debug("noise")
		assert.Zero(t, buf.Len())
	})
}

func TestNewTracerProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("ratio one records every root span", func(t *testing.T) {
		tp, err := NewTracerProvider(ctx, resource.Empty(), "", 1)
		require.NoError(t, err)
		defer tp.Shutdown(ctx)

		_, span := tp.Tracer("test").Start(ctx, "root")
		defer span.End()
		assert.True(t, span.SpanContext().IsSampled())
	})

	t.Run("ratio zero drops roots but children follow a sampled parent", func(t *testing.T) {
		tp, err := NewTracerProvider(ctx, resource.Empty(), "", 0)
		require.NoError(t, err)
		defer tp.Shutdown(ctx)

		_, root := tp.Tracer("test").Start(ctx, "root")
		defer root.End()
		assert.False(t, root.SpanContext().IsSampled())
		assert.True(t, root.SpanContext().IsValid())

		parent := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    trace.TraceID{1},
			SpanID:     trace.SpanID{1},
			TraceFlags: trace.FlagsSampled,
			Remote:     true,
		})
		_, child := tp.Tracer("test").Start(trace.ContextWithRemoteSpanContext(ctx, parent), "child")
		defer child.End()
		assert.True(t, child.SpanContext().IsSampled())
	})

	t.Run("installs trace context and baggage propagation", func(t *testing.T) {
		tp, err := NewTracerProvider(ctx, resource.Empty(), "", 1)
		require.NoError(t, err)
		defer tp.Shutdown(ctx)

		fields := otel.GetTextMapPropagator().Fields()
		assert.Contains(t, fields, "traceparent")
		assert.Contains(t, fields, "baggage")
	})
}

func TestNewMeterProvider(t *testing.T) {
	ctx := context.Background()
	mp, handler, err := NewMeterProvider(resource.Empty())
	require.NoError(t, err)
	defer mp.Shutdown(ctx)

	counter, err := mp.Meter("test").Int64Counter("shortlink.test.events")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(body), "shortlink_test_events_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestSetup(t *testing.T) {
	ctx := context.Background()
	obs, err := Setup(ctx, Config{ServiceName: "shortlink-test", Environment: "development", TraceSampleRatio: 1})
	require.NoError(t, err)
	defer obs.Shutdown(ctx)

	assert.NotNil(t, obs.Logger)
	assert.NotNil(t, obs.MetricsHandler)
	assert.NotNil(t, obs.Meter("test"))

	empty := &Observability{}
	assert.NotNil(t, empty.Meter("test"))
}
