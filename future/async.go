package future

import (
	"context"
	"runtime/debug"

	"github.com/amp-labs/amp-dispatch/errors"
)

// Go runs fn on a new goroutine and returns a Future for its result.
// A panic in fn fails the future with an error wrapping errors.ErrPanicRecovery.
func Go[T any](fn func() (T, error)) *Future[T] {
	return GoContext(context.Background(), func(context.Context) (T, error) {
		return fn()
	})
}

// GoContext is Go for functions that take a context. If ctx is already done
// the future fails immediately without running fn.
func GoContext[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	fut, promise := New[T]()

	if err := context.Cause(ctx); err != nil {
		promise.Failure(err)

		return fut
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				promise.Failure(errors.FromPanic(r, debug.Stack()))
			}
		}()

		promise.Complete(fn(ctx))
	}()

	return fut
}
