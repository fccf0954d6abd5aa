package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amp-labs/amp-dispatch/observable"
	"github.com/stretchr/testify/require"
)

var errDispatch = errors.New("dispatch failed")

// callLog records phase invocations across goroutines.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) add(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, call)
}

func (c *callLog) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.calls...)
}

// recordingPhases returns int phases that log their calls and compute
// pre: +1, dispatch: *10, post: +5.
func recordingPhases(log *callLog) PhaseFuncs[int] {
	return PhaseFuncs[int]{
		PreFn: func(_ context.Context, in int) (int, error) {
			log.add("pre")

			return in + 1, nil
		},
		DispatchFn: func(_ context.Context, in int) (int, error) {
			log.add("dispatch")

			return in * 10, nil
		},
		PostFn: func(_ context.Context, in int) (int, error) {
			log.add("post")

			return in + 5, nil
		},
	}
}

// collect subscribes to src and returns a function reading what arrived.
func collect[T any](t *testing.T, src observable.Observable[T]) func() []T {
	t.Helper()

	var (
		mu     sync.Mutex
		values []T
	)

	sub := src.Subscribe(observable.Func(func(v T) {
		mu.Lock()
		defer mu.Unlock()

		values = append(values, v)
	}))
	t.Cleanup(sub.Unsubscribe)

	return func() []T {
		mu.Lock()
		defer mu.Unlock()

		return append([]T(nil), values...)
	}
}

func newTestMachine[T any](t *testing.T, phases Phases[T], opts ...Option) *Machine[T] {
	t.Helper()

	m := NewMachine(phases, append([]Option{WithName(t.Name()), WithLogger(NopLogger{})}, opts...)...)
	t.Cleanup(func() {
		_ = m.Close()
	})

	return m
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}

// gate blocks a phase until released.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
}

func (g *gate) wait(ctx context.Context) error {
	g.entered <- struct{}{}

	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gate) awaitEntered(t *testing.T) {
	t.Helper()

	select {
	case <-g.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("phase was not entered")
	}
}
