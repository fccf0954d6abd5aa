package dispatch

import (
	"context"

	"github.com/amp-labs/amp-dispatch/empty"
	"github.com/amp-labs/amp-dispatch/future"
	"github.com/amp-labs/amp-dispatch/observable"
)

// Sequencer is a Machine for dispatches that carry no value.
type Sequencer = Machine[empty.T]

// NewSequencer creates an untyped machine driving phases.
func NewSequencer(phases UnitPhases, opts ...Option) *Sequencer {
	return NewMachine(Unit(phases), opts...)
}

// TriggerUnit is Trigger for untyped machines.
func TriggerUnit(ctx context.Context, seq *Sequencer, opts ...Option) (*future.Future[empty.T], error) {
	return seq.Trigger(ctx, empty.V, opts...)
}

// RunUnitAsObservable is RunAsObservable for untyped machines.
func RunUnitAsObservable(ctx context.Context, seq *Sequencer, opts ...Option) observable.Observable[empty.T] { //nolint:ireturn,lll
	return seq.RunAsObservable(ctx, empty.V, opts...)
}
