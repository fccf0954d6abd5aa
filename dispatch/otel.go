package dispatch

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "dispatch"

// startRunSpan creates the root span of a run. The caller ends it.
//
//nolint:spancheck // Span lifecycle managed by caller
func startRunSpan(ctx context.Context, sequencer, runID string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "dispatch.run")
	span.SetAttributes(
		attribute.String("sequencer", sequencer),
		attribute.String("run_id", runID),
	)

	return ctx, span
}

// startPhaseSpan creates a child span for one phase. The caller ends it.
//
//nolint:spancheck // Span lifecycle managed by caller
func startPhaseSpan(ctx context.Context, sequencer, runID string, phase Phase) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "phase."+phase.String())
	span.SetAttributes(
		attribute.String("sequencer", sequencer),
		attribute.String("run_id", runID),
		attribute.String("phase", phase.String()),
	)

	return ctx, span
}

// endSpan records the outcome and ends span.
func endSpan(span trace.Span, err error) {
	span.SetAttributes(attribute.String("outcome", outcomeOf(err)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

// extractTraceContext returns the trace and span IDs in ctx, if any.
func extractTraceContext(ctx context.Context) (traceID, spanID string) {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		spanCtx := span.SpanContext()

		return spanCtx.TraceID().String(), spanCtx.SpanID().String()
	}

	return "", ""
}
