package future

import "go.uber.org/atomic"

// Promise is the write-only side of a Future. Only the first call to
// Success, Failure or Complete has any effect; it is safe to call them
// from any goroutine.
type Promise[T any] struct {
	future    *Future[T]
	fulfilled *atomic.Bool
}

func newPromise[T any](fut *Future[T]) *Promise[T] {
	return &Promise[T]{
		future:    fut,
		fulfilled: atomic.NewBool(false),
	}
}

// Future returns the read side of this promise.
func (p *Promise[T]) Future() *Future[T] {
	return p.future
}

// Success fulfills the promise with a value.
func (p *Promise[T]) Success(value T) bool {
	return p.fulfill(Result[T]{Value: value})
}

// Failure fulfills the promise with an error. The value is the zero value of T.
func (p *Promise[T]) Failure(err error) bool {
	return p.fulfill(Result[T]{Error: err})
}

// Complete fulfills the promise from a (value, error) pair. A non-nil error
// wins and the value is discarded.
func (p *Promise[T]) Complete(value T, err error) bool {
	if err != nil {
		return p.Failure(err)
	}

	return p.Success(value)
}

// fulfill stores the result, wakes every waiter and fires the callbacks.
// It reports whether this call was the one that completed the future.
func (p *Promise[T]) fulfill(result Result[T]) bool {
	if !p.fulfilled.CompareAndSwap(false, true) {
		return false
	}

	fut := p.future

	// Holding the lock while closing means OnResult either sees the callback
	// list or the closed channel, never neither.
	fut.mu.Lock()
	fut.result = result
	close(fut.done)
	callbacks := fut.callbacks
	fut.callbacks = nil
	fut.mu.Unlock()

	for _, cb := range callbacks {
		invokeCallback("OnResult", cb, result)
	}

	return true
}
