// Package observable is a small push-based event substrate: observable
// values (Property), event sources (Subject) and the handful of operators
// the dispatch package needs.
//
// Delivery is synchronous and serialized per source. Values published while
// a delivery is already running on another goroutine, or from inside an
// observer callback, are queued and delivered in publication order by the
// goroutine that is already delivering. Observers may therefore publish to
// the source they are observing without deadlocking, and every observer sees
// the same order of events.
package observable

import "errors"

// ErrNoValue is returned by First when the source completes without emitting.
var ErrNoValue = errors.New("observable completed without a value")

// Observer receives the events of an Observable. Any field may be nil.
type Observer[T any] struct {
	OnNext     func(T)
	OnError    func(error)
	OnComplete func()
}

// Func returns an Observer that only handles values.
func Func[T any](onNext func(T)) Observer[T] {
	return Observer[T]{OnNext: onNext}
}

// Subscription detaches an observer from its source.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

// Unsubscribe calls f.
func (f SubscriptionFunc) Unsubscribe() {
	if f != nil {
		f()
	}
}

// Observable is a source of values that observers subscribe to.
type Observable[T any] interface {
	Subscribe(observer Observer[T]) Subscription
}

type funcObservable[T any] func(Observer[T]) Subscription

func (f funcObservable[T]) Subscribe(observer Observer[T]) Subscription { //nolint:ireturn
	return f(observer)
}

// Create builds an Observable from its subscribe function.
func Create[T any](subscribe func(observer Observer[T]) Subscription) Observable[T] { //nolint:ireturn
	return funcObservable[T](subscribe)
}
