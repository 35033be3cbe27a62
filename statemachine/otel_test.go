package statemachine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestTracer creates a test tracer with an in-memory exporter.
func setupTestTracer(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(
		trace.WithSyncer(exporter),
	)

	oldProvider := otel.GetTracerProvider()

	otel.SetTracerProvider(tp)

	cleanup := func() {
		otel.SetTracerProvider(oldProvider)
	}

	return exporter, cleanup
}

func spanAttr(stub tracetest.SpanStub, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range stub.Attributes {
		if kv.Key == key {
			return kv.Value, true
		}
	}

	return attribute.Value{}, false
}

// TestEngineSpans verifies the spans the engine emits for start, process
// and stop, including error recording.
// Note: Cannot use t.Parallel() because setupTestTracer modifies the
// global OTEL tracer provider, and subtests share one exporter.
//
//nolint:paralleltest,tparallel // Test modifies global OTEL tracer provider; subtests share the exporter
func TestEngineSpans(t *testing.T) {
	exporter, cleanup := setupTestTracer(t)
	t.Cleanup(cleanup)

	ctx := context.Background()
	tree := metricsTree(t, "traced")

	t.Run("start span", func(t *testing.T) {
		exporter.Reset()

		machine, err := Start(ctx, tree, 0)
		require.NoError(t, err)
		assert.Equal(t, StateID("on"), machine.State().ID())

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		span := spans[0]
		assert.Equal(t, "statemachine.start", span.Name)
		assert.Equal(t, codes.Ok, span.Status.Code)

		machineAttr, ok := spanAttr(span, "machine")
		require.True(t, ok)
		assert.Equal(t, "traced", machineAttr.AsString())

		resolved, ok := spanAttr(span, "resolved_state")
		require.True(t, ok)
		assert.Equal(t, "on", resolved.AsString())
	})

	t.Run("process span", func(t *testing.T) {
		machine, err := Start(ctx, tree, 0)
		require.NoError(t, err)

		exporter.Reset()

		_, err = machine.Process(ctx, "toggle")
		require.NoError(t, err)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		span := spans[0]
		assert.Equal(t, "statemachine.process", span.Name)
		assert.Equal(t, codes.Ok, span.Status.Code)

		from, ok := spanAttr(span, "from_state")
		require.True(t, ok)
		assert.Equal(t, "on", from.AsString())

		outcome, ok := spanAttr(span, "outcome")
		require.True(t, ok)
		assert.Equal(t, "handled", outcome.AsString())

		to, ok := spanAttr(span, "to_state")
		require.True(t, ok)
		assert.Equal(t, "off", to.AsString())
	})

	t.Run("stop span", func(t *testing.T) {
		machine, err := Start(ctx, tree, 0)
		require.NoError(t, err)

		exporter.Reset()

		_, err = machine.Stop(ctx)
		require.NoError(t, err)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, "statemachine.stop", spans[0].Name)
		assert.Equal(t, codes.Ok, spans[0].Status.Code)
	})

	t.Run("error span", func(t *testing.T) {
		exporter.Reset()

		_, err := StartAt(ctx, tree, 0, "nowhere")
		require.ErrorIs(t, err, ErrUnknownState)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		span := spans[0]
		assert.Equal(t, codes.Error, span.Status.Code)
		assert.Contains(t, span.Status.Description, "unknown state")

		// RecordError attaches the failure as an exception event.
		require.NotEmpty(t, span.Events)
		assert.Equal(t, "exception", span.Events[0].Name)
	})
}
