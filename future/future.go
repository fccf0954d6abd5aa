// Package future provides a minimal Future/Promise pair used to await the
// outcome of work running on another goroutine.
//
// A Future is the read side and a Promise the write side. A promise is
// fulfilled at most once; every waiter and callback observes the same result.
package future

import (
	"context"
	"sync"
)

// Result is the outcome of a Future: a value or an error, never both.
type Result[T any] struct {
	Value T
	Error error
}

// Get returns the result as a Go-style pair.
func (r Result[T]) Get() (T, error) { //nolint:ireturn
	return r.Value, r.Error
}

// Future is the read-only side of an asynchronous computation.
type Future[T any] struct {
	done   chan struct{}
	result Result[T]

	mu        sync.Mutex
	callbacks []func(Result[T])
}

// New creates a Future and the Promise that completes it.
func New[T any]() (*Future[T], *Promise[T]) {
	fut := &Future[T]{done: make(chan struct{})}

	return fut, newPromise(fut)
}

// Resolved returns an already completed Future holding value.
func Resolved[T any](value T) *Future[T] {
	fut, promise := New[T]()
	promise.Success(value)

	return fut
}

// Failed returns an already completed Future holding err.
func Failed[T any](err error) *Future[T] {
	fut, promise := New[T]()
	promise.Failure(err)

	return fut
}

// Done returns a channel that is closed once the future has a result.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future already has a result.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Await blocks until the future completes.
func (f *Future[T]) Await() (T, error) { //nolint:ireturn
	<-f.done

	return f.result.Get()
}

// AwaitContext blocks until the future completes or ctx is done, in which
// case the context error is returned. Giving up waiting does not cancel the
// underlying computation.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) { //nolint:ireturn
	select {
	case <-f.done:
		return f.result.Get()
	case <-ctx.Done():
		var zero T

		return zero, context.Cause(ctx)
	}
}

// OnResult registers a callback invoked, on its own goroutine, with the
// future's result. Registering after completion still invokes the callback.
func (f *Future[T]) OnResult(callback func(Result[T])) {
	if callback == nil {
		return
	}

	f.mu.Lock()

	if !f.IsDone() {
		f.callbacks = append(f.callbacks, callback)
		f.mu.Unlock()

		return
	}

	f.mu.Unlock()

	invokeCallback("OnResult", callback, f.result)
}

// OnSuccess registers a callback invoked only if the future succeeds.
func (f *Future[T]) OnSuccess(callback func(T)) {
	if callback == nil {
		return
	}

	f.OnResult(func(r Result[T]) {
		if r.Error == nil {
			callback(r.Value)
		}
	})
}

// OnError registers a callback invoked only if the future fails.
func (f *Future[T]) OnError(callback func(error)) {
	if callback == nil {
		return
	}

	f.OnResult(func(r Result[T]) {
		if r.Error != nil {
			callback(r.Error)
		}
	})
}
