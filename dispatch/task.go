package dispatch

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/amp-labs/amp-dispatch/empty"
	"github.com/amp-labs/amp-dispatch/errors"
	"github.com/amp-labs/amp-dispatch/future"
	"github.com/google/uuid"
)

// Run executes pre-dispatch, dispatch and post-dispatch in order, feeding
// each phase the previous phase's output, and returns the final value.
//
// ctx is checked before every phase and passed into each one. The first
// failure stops the chain: a phase error is returned as a *PhaseError, and
// cancellation as a *CancelError naming the phase that did not complete.
func Run[T any](ctx context.Context, phases Phases[T], input T, opts ...Option) (T, error) { //nolint:ireturn
	o := defaultOptions().with(opts)

	return runPhases(ctx, phases, input, &o, uuid.NewString())
}

// RunUnit is Run for dispatches that carry no value.
func RunUnit(ctx context.Context, phases UnitPhases, opts ...Option) error {
	_, err := Run(ctx, Unit(phases), empty.V, opts...)

	return err
}

// Go starts Run on a new goroutine and returns a Future for its result.
func Go[T any](ctx context.Context, phases Phases[T], input T, opts ...Option) *future.Future[T] {
	return future.GoContext(ctx, func(ctx context.Context) (T, error) {
		return Run(ctx, phases, input, opts...)
	})
}

type phaseStep[T any] struct {
	phase Phase
	fn    func(ctx context.Context, in T) (T, error)
}

// runPhases is the shared engine of Run and Machine runs.
func runPhases[T any](ctx context.Context, phases Phases[T], input T, o *options, runID string) (T, error) { //nolint:ireturn
	name := sanitizeName(o.name)

	ctx, span := startRunSpan(ctx, name, runID)
	start := time.Now()

	o.logger.RunStarted(ctx, name, runID)

	out, err := executePhases(ctx, phases, input, o, runID)
	duration := time.Since(start)

	outcome := outcomeOf(err)
	runsTotal.WithLabelValues(name, outcome).Inc()
	runDuration.WithLabelValues(name, outcome).Observe(duration.Seconds())
	o.logger.RunCompleted(ctx, name, runID, duration, err)
	endSpan(span, err)

	return out, err
}

func executePhases[T any](ctx context.Context, phases Phases[T], input T, o *options, runID string) (T, error) { //nolint:ireturn
	var zero T

	steps := []phaseStep[T]{
		{phase: PhasePre, fn: phases.PreDispatch},
		{phase: PhaseDispatch, fn: phases.Dispatch},
		{phase: PhasePost, fn: phases.PostDispatch},
	}

	value := input

	for _, step := range steps {
		if err := context.Cause(ctx); err != nil {
			return zero, &CancelError{Phase: step.phase, Cause: err}
		}

		next, err := runPhase(ctx, step, value, o, runID)
		if err != nil {
			return zero, err
		}

		value = next
	}

	return value, nil
}

func runPhase[T any](ctx context.Context, step phaseStep[T], in T, o *options, runID string) (T, error) { //nolint:ireturn
	name := sanitizeName(o.name)

	phaseCtx, span := startPhaseSpan(ctx, name, runID, step.phase)

	if o.phaseTimeout > 0 {
		var cancel context.CancelFunc

		phaseCtx, cancel = context.WithTimeout(phaseCtx, o.phaseTimeout)
		defer cancel()
	}

	start := time.Now()

	out, err := callPhase(phaseCtx, step.fn, in)
	if err != nil {
		// Errors raised after the caller gave up are cancellations, whatever
		// the phase reported.
		if cause := context.Cause(ctx); cause != nil {
			err = &CancelError{Phase: step.phase, Cause: cause}
		} else {
			err = &PhaseError{Phase: step.phase, Err: err}
		}
	}

	duration := time.Since(start)

	phaseDuration.WithLabelValues(name, step.phase.String(), outcomeOf(err)).Observe(duration.Seconds())
	o.logger.PhaseCompleted(ctx, name, runID, step.phase, duration, err)
	endSpan(span, err)

	return out, err
}

// callPhase runs fn, turning a panic into an error.
func callPhase[T any](ctx context.Context, fn func(context.Context, T) (T, error), in T) (out T, err error) { //nolint:ireturn,nonamedreturns
	defer func() {
		if r := recover(); r != nil {
			var zero T

			out, err = zero, errors.FromPanic(r, debug.Stack())
		}
	}()

	return fn(ctx, in)
}
