package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_TextRoundTrip(t *testing.T) {
	t.Parallel()

	for _, state := range []State{None, Dispatching, Dispatched} {
		text, err := state.MarshalText()
		require.NoError(t, err)

		var parsed State
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, state, parsed)
	}
}

func TestParseState(t *testing.T) {
	t.Parallel()

	state, err := ParseState(" Dispatching ")
	require.NoError(t, err)
	assert.Equal(t, Dispatching, state)

	_, err = ParseState("finished")
	require.ErrorIs(t, err, ErrUnknownState)

	_, err = State(9).MarshalText()
	require.ErrorIs(t, err, ErrUnknownState)
	assert.Equal(t, "State(9)", State(9).String())
}

func TestTransitionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "none -> dispatching", Transition{From: None, To: Dispatching}.String())
}

func TestPolicy(t *testing.T) {
	t.Parallel()

	policy, err := ParsePolicy("QUEUE")
	require.NoError(t, err)
	assert.Equal(t, PolicyQueue, policy)

	_, err = ParsePolicy("overlap")
	require.ErrorIs(t, err, ErrUnknownPolicy)

	text, err := PolicyReject.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "reject", string(text))
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "dispatch phase: dispatch failed",
		(&PhaseError{Phase: PhaseDispatch, Err: errDispatch}).Error())
	assert.Equal(t, "transition dispatched -> dispatching: invalid dispatch state transition",
		(&TransitionError{From: Dispatched, To: Dispatching}).Error())
	assert.Equal(t, "cancelled before completing pre-dispatch phase: dispatch state reset",
		(&CancelError{Phase: PhasePre, Cause: ErrReset}).Error())
	assert.Equal(t, "post-dispatch", PhasePost.String())
}
