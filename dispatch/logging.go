package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/amp-labs/amp-dispatch/logger"
)

// Logger provides logging hooks for dispatch runs and state changes.
// Hooks are called synchronously, some while the machine holds its lock:
// they must not call back into the machine.
type Logger interface {
	RunStarted(ctx context.Context, sequencer, runID string)
	PhaseCompleted(ctx context.Context, sequencer, runID string, phase Phase, duration time.Duration, err error)
	RunCompleted(ctx context.Context, sequencer, runID string, duration time.Duration, err error)
	StateChanged(ctx context.Context, sequencer string, from, to State)
	TriggerRejected(ctx context.Context, sequencer string, state State, err error)
}

// DefaultLogger implements Logger with slog. Phase and state events are
// logged at debug level, run outcomes at info or error.
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger creates a DefaultLogger writing to log. With a nil log
// it uses logger.Get for every event.
func NewDefaultLogger(log *slog.Logger) *DefaultLogger {
	return &DefaultLogger{logger: log}
}

func (l *DefaultLogger) get(ctx context.Context) *slog.Logger {
	if l.logger != nil {
		return l.logger
	}

	return logger.Get(ctx)
}

func traceFields(ctx context.Context, fields []any) []any {
	if traceID, spanID := extractTraceContext(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID, "span_id", spanID)
	}

	return fields
}

func (l *DefaultLogger) RunStarted(ctx context.Context, sequencer, runID string) {
	l.get(ctx).DebugContext(ctx, "Dispatch run started",
		traceFields(ctx, []any{"sequencer", sequencer, "run_id", runID})...)
}

func (l *DefaultLogger) PhaseCompleted(
	ctx context.Context,
	sequencer, runID string,
	phase Phase,
	duration time.Duration,
	err error,
) {
	fields := traceFields(ctx, []any{
		"sequencer", sequencer,
		"run_id", runID,
		"phase", phase.String(),
		"duration_ms", duration.Milliseconds(),
		"outcome", outcomeOf(err),
	})

	if err != nil {
		fields = append(fields, "error", err)
	}

	l.get(ctx).DebugContext(ctx, "Dispatch phase completed", fields...)
}

func (l *DefaultLogger) RunCompleted(ctx context.Context, sequencer, runID string, duration time.Duration, err error) {
	fields := traceFields(ctx, []any{
		"sequencer", sequencer,
		"run_id", runID,
		"duration_ms", duration.Milliseconds(),
		"outcome", outcomeOf(err),
	})

	if err != nil {
		l.get(ctx).ErrorContext(ctx, "Dispatch run failed", append(fields, "error", err)...)
	} else {
		l.get(ctx).InfoContext(ctx, "Dispatch run completed", fields...)
	}
}

func (l *DefaultLogger) StateChanged(ctx context.Context, sequencer string, from, to State) {
	l.get(ctx).DebugContext(ctx, "Dispatch state changed",
		"sequencer", sequencer,
		"from", from.String(),
		"to", to.String(),
	)
}

func (l *DefaultLogger) TriggerRejected(ctx context.Context, sequencer string, state State, err error) {
	l.get(ctx).WarnContext(ctx, "Dispatch trigger rejected",
		"sequencer", sequencer,
		"state", state.String(),
		"error", err,
	)
}

// NopLogger discards every event.
type NopLogger struct{}

func (NopLogger) RunStarted(context.Context, string, string)                                {}
func (NopLogger) PhaseCompleted(context.Context, string, string, Phase, time.Duration, error) {}
func (NopLogger) RunCompleted(context.Context, string, string, time.Duration, error)         {}
func (NopLogger) StateChanged(context.Context, string, State, State)                         {}
func (NopLogger) TriggerRejected(context.Context, string, State, error)                      {}
