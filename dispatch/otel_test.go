package dispatch

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

// setupTestTracer installs a tracer provider backed by an in-memory exporter.
func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	tp := trace.NewTracerProvider(trace.WithSyncer(exporter))

	oldProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	t.Cleanup(func() {
		otel.SetTracerProvider(oldProvider)
	})

	return exporter
}

func spansFor(exporter *tracetest.InMemoryExporter, sequencer string) map[string]tracetest.SpanStub {
	spans := make(map[string]tracetest.SpanStub)

	for _, span := range exporter.GetSpans() {
		for _, attr := range span.Attributes {
			if attr.Key == "sequencer" && attr.Value.AsString() == sequencer {
				spans[span.Name] = span
			}
		}
	}

	return spans
}

func attrValue(span tracetest.SpanStub, key attribute.Key) string {
	for _, attr := range span.Attributes {
		if attr.Key == key {
			return attr.Value.Emit()
		}
	}

	return ""
}

//nolint:paralleltest // Test modifies global OTEL tracer provider
func TestRunSpans(t *testing.T) {
	exporter := setupTestTracer(t)
	name := t.Name()

	phases := PhaseFuncs[int]{
		DispatchFn: func(context.Context, int) (int, error) { return 0, errDispatch },
	}

	_, err := Run(t.Context(), phases, 0, WithName(name), WithLogger(NopLogger{}))
	require.Error(t, err)

	spans := spansFor(exporter, name)
	require.Len(t, spans, 3)

	run := spans["dispatch.run"]
	pre := spans["phase.pre-dispatch"]
	dispatch := spans["phase.dispatch"]

	assert.NotContains(t, spans, "phase.post-dispatch")
	assert.Equal(t, codes.Error, run.Status.Code)
	assert.Equal(t, outcomeError, attrValue(run, "outcome"))
	assert.NotEmpty(t, attrValue(run, "run_id"))
	assert.Equal(t, attrValue(run, "run_id"), attrValue(dispatch, "run_id"))

	assert.Equal(t, codes.Ok, pre.Status.Code)
	assert.Equal(t, codes.Error, dispatch.Status.Code)
	assert.Equal(t, run.SpanContext.SpanID(), pre.Parent.SpanID())
	assert.Equal(t, run.SpanContext.SpanID(), dispatch.Parent.SpanID())
	assert.NotEmpty(t, dispatch.Events, "error should be recorded on the span")
}

//nolint:paralleltest // Test modifies global OTEL tracer provider
func TestMachineRunSpans(t *testing.T) {
	exporter := setupTestTracer(t)

	m := newTestMachine[int](t, PhaseFuncs[int]{})

	fut, err := m.Trigger(t.Context(), 1)
	require.NoError(t, err)

	_, err = fut.Await()
	require.NoError(t, err)

	spans := spansFor(exporter, m.Name())
	require.Len(t, spans, 4)
	assert.Equal(t, codes.Ok, spans["dispatch.run"].Status.Code)
}
