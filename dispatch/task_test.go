package dispatch

import (
	"context"
	"testing"
	"time"

	commonerrors "github.com/amp-labs/amp-dispatch/errors"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ThreadsValuesThroughPhases(t *testing.T) {
	t.Parallel()

	var log callLog

	out, err := Run(t.Context(), recordingPhases(&log), 0, WithLogger(NewDefaultLogger(slogt.New(t))))
	require.NoError(t, err)

	assert.Equal(t, 15, out)
	assert.Equal(t, []string{"pre", "dispatch", "post"}, log.get())
}

func TestRun_NilPhasesAreIdentity(t *testing.T) {
	t.Parallel()

	out, err := Run(t.Context(), PhaseFuncs[string]{}, "unchanged", WithLogger(NopLogger{}))
	require.NoError(t, err)
	assert.Equal(t, "unchanged", out)
}

func TestRun_DispatchFailureSkipsPost(t *testing.T) {
	t.Parallel()

	var log callLog

	phases := recordingPhases(&log)
	phases.DispatchFn = func(context.Context, int) (int, error) {
		log.add("dispatch")

		return 0, errDispatch
	}

	out, err := Run(t.Context(), phases, 0, WithLogger(NewDefaultLogger(slogt.New(t))))
	require.ErrorIs(t, err, ErrPhaseFailed)
	require.ErrorIs(t, err, errDispatch)

	var phaseErr *PhaseError
	require.ErrorAs(t, err, &phaseErr)
	assert.Equal(t, PhaseDispatch, phaseErr.Phase)

	assert.Zero(t, out)
	assert.Equal(t, []string{"pre", "dispatch"}, log.get())
}

func TestRun_CancelBetweenPreAndDispatch(t *testing.T) {
	t.Parallel()

	var log callLog

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	phases := recordingPhases(&log)
	phases.PreFn = func(_ context.Context, in int) (int, error) {
		log.add("pre")
		cancel()

		return in, nil
	}

	_, err := Run(ctx, phases, 0, WithLogger(NopLogger{}))
	require.ErrorIs(t, err, ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)

	var cancelErr *CancelError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, PhaseDispatch, cancelErr.Phase)

	assert.Equal(t, []string{"pre"}, log.get())
}

func TestRun_AlreadyCancelled(t *testing.T) {
	t.Parallel()

	var log callLog

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := Run(ctx, recordingPhases(&log), 0, WithLogger(NopLogger{}))

	var cancelErr *CancelError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, PhasePre, cancelErr.Phase)
	assert.Empty(t, log.get())
}

func TestRun_ErrorAfterCancelIsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	phases := PhaseFuncs[int]{
		DispatchFn: func(ctx context.Context, in int) (int, error) {
			cancel()
			<-ctx.Done()

			return in, ctx.Err()
		},
	}

	_, err := Run(ctx, phases, 0, WithLogger(NopLogger{}))
	require.ErrorIs(t, err, ErrCancelled)
	require.NotErrorIs(t, err, ErrPhaseFailed)
}

func TestRun_PanicBecomesPhaseError(t *testing.T) {
	t.Parallel()

	phases := PhaseFuncs[int]{
		PostFn: func(context.Context, int) (int, error) {
			panic("post exploded")
		},
	}

	_, err := Run(t.Context(), phases, 0, WithLogger(NopLogger{}))
	require.ErrorIs(t, err, ErrPhaseFailed)
	require.ErrorIs(t, err, commonerrors.ErrPanicRecovery)

	var phaseErr *PhaseError
	require.ErrorAs(t, err, &phaseErr)
	assert.Equal(t, PhasePost, phaseErr.Phase)
}

func TestRun_PhaseTimeout(t *testing.T) {
	t.Parallel()

	phases := PhaseFuncs[int]{
		DispatchFn: func(ctx context.Context, in int) (int, error) {
			<-ctx.Done()

			return in, ctx.Err()
		},
	}

	_, err := Run(t.Context(), phases, 0, WithPhaseTimeout(10*time.Millisecond), WithLogger(NopLogger{}))
	require.ErrorIs(t, err, ErrPhaseFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunUnit(t *testing.T) {
	t.Parallel()

	var log callLog

	phases := UnitFuncs{
		PreFn: func(context.Context) error {
			log.add("pre")

			return nil
		},
		DispatchFn: func(context.Context) error {
			log.add("dispatch")

			return nil
		},
	}

	require.NoError(t, RunUnit(t.Context(), phases, WithLogger(NopLogger{})))
	assert.Equal(t, []string{"pre", "dispatch"}, log.get())

	phases.PostFn = func(context.Context) error { return errDispatch }

	err := RunUnit(t.Context(), phases, WithLogger(NopLogger{}))
	require.ErrorIs(t, err, errDispatch)
}

func TestGo(t *testing.T) {
	t.Parallel()

	var log callLog

	out, err := Go(t.Context(), recordingPhases(&log), 0, WithLogger(NopLogger{})).Await()
	require.NoError(t, err)
	assert.Equal(t, 15, out)

	failing := PhaseFuncs[int]{PreFn: func(context.Context, int) (int, error) { return 0, errDispatch }}

	_, err = Go(t.Context(), failing, 0, WithLogger(NopLogger{})).Await()
	require.ErrorIs(t, err, errDispatch)
}
