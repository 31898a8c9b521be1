package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/crm/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs an in-memory span recorder as the global provider.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(kvs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "customer", "create",
		telemetry.WithAttribute(telemetry.SpanAttrCustomerID, "c-1"),
		telemetry.WithSpanKind(trace.SpanKindServer),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "customer.create", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
	assert.Equal(t, "c-1", attrMap(spans[0].Attributes())[telemetry.SpanAttrCustomerID].AsString())
	assert.Equal(t, telemetry.TracerName, spans[0].InstrumentationScope().Name)
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)

	t.Run("pairs keys with values and skips non-string keys", func(t *testing.T) {
		_, span := telemetry.StartSpan(context.Background(), "attrs")
		telemetry.SetAttributes(span,
			telemetry.SpanAttrStage, "LEAD",
			"count", 3,
			42, "ignored",
			"dangling",
		)
		telemetry.SetAttribute(span, "active", true)
		span.End()

		attrs := attrMap(sr.Ended()[0].Attributes())
		assert.Equal(t, "LEAD", attrs[telemetry.SpanAttrStage].AsString())
		assert.Equal(t, int64(3), attrs["count"].AsInt64())
		assert.True(t, attrs["active"].AsBool())
		assert.NotContains(t, attrs, "dangling")
		assert.Len(t, attrs, 3)
	})

	t.Run("nil span is a no-op", func(t *testing.T) {
		assert.NotPanics(t, func() {
			telemetry.SetAttributes(nil, "k", "v")
			telemetry.SetAttribute(nil, "k", "v")
			telemetry.AddEvent(nil, "e")
			telemetry.RecordError(nil, errors.New("x"))
			telemetry.SetOK(nil)
		})
	})
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, failed := telemetry.StartSpan(context.Background(), "failed")
	telemetry.RecordError(failed, errors.New("boom"))
	failed.End()

	_, ok := telemetry.StartSpan(context.Background(), "ok")
	telemetry.RecordError(ok, nil)
	telemetry.SetOK(ok)
	ok.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
	assert.Empty(t, spans[1].Events())
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "events")
	telemetry.AddEvent(span, "cache_invalidated", "keys", []string{"customer:1", "customer:doc:2"})
	span.End()

	events := sr.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "cache_invalidated", events[0].Name)
	assert.Equal(t, []string{"customer:1", "customer:doc:2"}, attrMap(events[0].Attributes)["keys"].AsStringSlice())
}

func TestTraceAndSpanIDs(t *testing.T) {
	setupTestTracer(t)

	t.Run("empty without a span", func(t *testing.T) {
		assert.Empty(t, telemetry.GetTraceID(context.Background()))
		assert.Empty(t, telemetry.GetSpanID(context.Background()))
	})

	t.Run("reads the active span", func(t *testing.T) {
		ctx, span := telemetry.StartSpan(context.Background(), "ids")
		defer span.End()

		assert.Equal(t, span.SpanContext().TraceID().String(), telemetry.GetTraceID(ctx))
		assert.Equal(t, span.SpanContext().SpanID().String(), telemetry.GetSpanID(ctx))
	})
}
