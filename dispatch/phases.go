package dispatch

import (
	"context"

	"github.com/amp-labs/amp-dispatch/empty"
)

// PreDispatcher prepares the input of a dispatch.
type PreDispatcher[T any] interface {
	PreDispatch(ctx context.Context, in T) (T, error)
}

// Dispatcher performs the dispatch itself.
type Dispatcher[T any] interface {
	Dispatch(ctx context.Context, in T) (T, error)
}

// PostDispatcher finishes a dispatch and produces the final value.
type PostDispatcher[T any] interface {
	PostDispatch(ctx context.Context, in T) (T, error)
}

// Phases is the full capability set a sequencer drives. Each phase receives
// the output of the previous one and must honour ctx.
type Phases[T any] interface {
	PreDispatcher[T]
	Dispatcher[T]
	PostDispatcher[T]
}

// PhaseFuncs implements Phases with plain functions. A nil field passes its
// input through unchanged.
type PhaseFuncs[T any] struct {
	PreFn      func(ctx context.Context, in T) (T, error)
	DispatchFn func(ctx context.Context, in T) (T, error)
	PostFn     func(ctx context.Context, in T) (T, error)
}

func (f PhaseFuncs[T]) PreDispatch(ctx context.Context, in T) (T, error) { //nolint:ireturn
	return callOrPass(ctx, f.PreFn, in)
}

func (f PhaseFuncs[T]) Dispatch(ctx context.Context, in T) (T, error) { //nolint:ireturn
	return callOrPass(ctx, f.DispatchFn, in)
}

func (f PhaseFuncs[T]) PostDispatch(ctx context.Context, in T) (T, error) { //nolint:ireturn
	return callOrPass(ctx, f.PostFn, in)
}

func callOrPass[T any](ctx context.Context, fn func(context.Context, T) (T, error), in T) (T, error) { //nolint:ireturn
	if fn == nil {
		return in, nil
	}

	return fn(ctx, in)
}

// UnitPhases is the capability set of a dispatch that carries no value.
type UnitPhases interface {
	PreDispatch(ctx context.Context) error
	Dispatch(ctx context.Context) error
	PostDispatch(ctx context.Context) error
}

// UnitFuncs implements UnitPhases with plain functions. A nil field is a no-op.
type UnitFuncs struct {
	PreFn      func(ctx context.Context) error
	DispatchFn func(ctx context.Context) error
	PostFn     func(ctx context.Context) error
}

func (f UnitFuncs) PreDispatch(ctx context.Context) error  { return callUnit(ctx, f.PreFn) }
func (f UnitFuncs) Dispatch(ctx context.Context) error     { return callUnit(ctx, f.DispatchFn) }
func (f UnitFuncs) PostDispatch(ctx context.Context) error { return callUnit(ctx, f.PostFn) }

func callUnit(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}

	return fn(ctx)
}

// Unit adapts UnitPhases to Phases over the empty value, so untyped
// dispatches run on the same machinery as typed ones.
func Unit(phases UnitPhases) Phases[empty.T] { //nolint:ireturn
	return unitPhases{phases: phases}
}

type unitPhases struct {
	phases UnitPhases
}

func (u unitPhases) PreDispatch(ctx context.Context, _ empty.T) (empty.T, error) {
	return empty.V, u.phases.PreDispatch(ctx)
}

func (u unitPhases) Dispatch(ctx context.Context, _ empty.T) (empty.T, error) {
	return empty.V, u.phases.Dispatch(ctx)
}

func (u unitPhases) PostDispatch(ctx context.Context, _ empty.T) (empty.T, error) {
	return empty.V, u.phases.PostDispatch(ctx)
}
