package observable

import (
	"context"
	"sync"

	"github.com/amp-labs/amp-dispatch/channels"
	"github.com/amp-labs/amp-dispatch/future"
)

// Filter passes on the values of src for which keep returns true.
func Filter[T any](src Observable[T], keep func(T) bool) Observable[T] { //nolint:ireturn
	return Create(func(observer Observer[T]) Subscription {
		next := observer.OnNext

		return src.Subscribe(Observer[T]{
			OnNext: func(v T) {
				if next != nil && keep(v) {
					next(v)
				}
			},
			OnError:    observer.OnError,
			OnComplete: observer.OnComplete,
		})
	})
}

// Map transforms every value of src with fn.
func Map[T, U any](src Observable[T], fn func(T) U) Observable[U] { //nolint:ireturn
	return Create(func(observer Observer[U]) Subscription {
		next := observer.OnNext

		return src.Subscribe(Observer[T]{
			OnNext: func(v T) {
				if next != nil {
					next(fn(v))
				}
			},
			OnError:    observer.OnError,
			OnComplete: observer.OnComplete,
		})
	})
}

// First waits for the first value of src. It fails with the source's error,
// with ErrNoValue if src completes empty, or with the context's error.
func First[T any](ctx context.Context, src Observable[T]) (T, error) { //nolint:ireturn
	fut, promise := future.New[T]()

	sub := src.Subscribe(Observer[T]{
		OnNext:     func(v T) { promise.Success(v) },
		OnError:    func(err error) { promise.Failure(err) },
		OnComplete: func() { promise.Failure(ErrNoValue) },
	})
	defer sub.Unsubscribe()

	return fut.AwaitContext(ctx)
}

// FromFuture emits the future's value and completes, or emits its error.
// Subscribing after the future resolved still delivers the result.
func FromFuture[T any](fut *future.Future[T]) Observable[T] { //nolint:ireturn
	return Create(func(observer Observer[T]) Subscription {
		var (
			mu     sync.Mutex
			active = true
		)

		fut.OnResult(func(r future.Result[T]) {
			mu.Lock()
			defer mu.Unlock()

			if !active {
				return
			}

			active = false

			if r.Error != nil {
				if observer.OnError != nil {
					observer.OnError(r.Error)
				}

				return
			}

			if observer.OnNext != nil {
				observer.OnNext(r.Value)
			}

			if observer.OnComplete != nil {
				observer.OnComplete()
			}
		})

		return SubscriptionFunc(func() {
			mu.Lock()
			active = false
			mu.Unlock()
		})
	})
}

// Chan exposes src as a channel. Sending never blocks the source. The
// channel is closed when src completes or fails (the error is dropped), or
// when ctx is done.
func Chan[T any](ctx context.Context, src Observable[T]) <-chan T {
	in, out := channels.Unbounded[T](ctx)

	var once sync.Once

	done := make(chan struct{})

	closeIn := func() {
		once.Do(func() {
			channels.CloseChannelIgnorePanic(in)
			close(done)
		})
	}

	sub := src.Subscribe(Observer[T]{
		OnNext: func(v T) {
			select {
			case in <- v:
			case <-ctx.Done():
			}
		},
		OnError:    func(error) { closeIn() },
		OnComplete: closeIn,
	})

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}

		sub.Unsubscribe()
	}()

	return out
}
