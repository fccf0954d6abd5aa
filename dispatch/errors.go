package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrPhaseFailed is matched by every *PhaseError.
	ErrPhaseFailed = errors.New("dispatch phase failed")
	// ErrCancelled is matched by every *CancelError.
	ErrCancelled = errors.New("dispatch cancelled")
	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition = errors.New("invalid dispatch state transition")
	// ErrClosed is returned by a Machine after Close.
	ErrClosed = errors.New("dispatch machine closed")
	// ErrReset is the cancellation cause of a run aborted by ResetDispatchState.
	ErrReset = errors.New("dispatch state reset")
	// ErrUnknownState indicates an unrecognized state name or value.
	ErrUnknownState = errors.New("unknown dispatch state")
	// ErrUnknownPolicy indicates an unrecognized trigger policy.
	ErrUnknownPolicy = errors.New("unknown trigger policy")
	// ErrInvalidConfig indicates a configuration that cannot be applied.
	ErrInvalidConfig = errors.New("invalid dispatch configuration")
)

// Phase identifies one of the three dispatch phases.
type Phase int

const (
	// PhasePre prepares the input.
	PhasePre Phase = iota
	// PhaseDispatch performs the dispatch.
	PhaseDispatch
	// PhasePost finishes the dispatch and produces the final value.
	PhasePost
)

func (p Phase) String() string {
	switch p {
	case PhasePre:
		return "pre-dispatch"
	case PhaseDispatch:
		return "dispatch"
	case PhasePost:
		return "post-dispatch"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// PhaseError reports a phase that returned an error or panicked.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s phase: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

func (e *PhaseError) Is(target error) bool {
	return target == ErrPhaseFailed //nolint:errorlint
}

// CancelError reports a run that stopped because its context was done,
// either at the boundary before Phase or while Phase was running.
type CancelError struct {
	Phase Phase
	Cause error
}

func (e *CancelError) Error() string {
	return fmt.Sprintf("cancelled before completing %s phase: %v", e.Phase, e.Cause)
}

func (e *CancelError) Unwrap() error {
	return e.Cause
}

func (e *CancelError) Is(target error) bool {
	return target == ErrCancelled //nolint:errorlint
}

// TransitionError reports a state change that is not allowed from the
// current state, including a trigger rejected because a run is in flight.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s: %v", e.From, e.To, ErrInvalidTransition)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition //nolint:errorlint
}
