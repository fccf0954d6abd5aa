package observable

import (
	"runtime/debug"
	"sync"

	"github.com/amp-labs/amp-dispatch/errors"
	"github.com/amp-labs/amp-dispatch/logger"
	"go.uber.org/atomic"
)

type eventKind int

const (
	kindNext eventKind = iota
	kindError
	kindComplete
	kindFunc
)

// event is one queued delivery. The recipients are fixed when the event is
// published, so observers that subscribe later never see older events.
type event[T any] struct {
	kind       eventKind
	value      T
	err        error
	fn         func()
	recipients []*subscriber[T]
}

type subscriber[T any] struct {
	observer Observer[T]
	active   *atomic.Bool
}

// hub holds the observers of one source and delivers its events in order.
type hub[T any] struct {
	mu       sync.Mutex
	subs     []*subscriber[T] // copy-on-write, events keep references to old slices
	queue    []event[T]
	draining bool
}

func (h *hub[T]) addLocked(observer Observer[T]) *subscriber[T] {
	sub := &subscriber[T]{
		observer: observer,
		active:   atomic.NewBool(true),
	}

	subs := make([]*subscriber[T], 0, len(h.subs)+1)
	subs = append(subs, h.subs...)
	h.subs = append(subs, sub)

	return sub
}

func (h *hub[T]) remove(sub *subscriber[T]) {
	sub.active.Store(false)

	h.mu.Lock()
	defer h.mu.Unlock()

	subs := make([]*subscriber[T], 0, len(h.subs))

	for _, s := range h.subs {
		if s != sub {
			subs = append(subs, s)
		}
	}

	h.subs = subs
}

func (h *hub[T]) subscription(sub *subscriber[T]) Subscription { //nolint:ireturn
	return SubscriptionFunc(func() {
		h.remove(sub)
	})
}

// publishLocked queues an event for every current subscriber.
func (h *hub[T]) publishLocked(ev event[T]) {
	ev.recipients = h.subs
	h.queue = append(h.queue, ev)
}

// publishToLocked queues an event for a single subscriber.
func (h *hub[T]) publishToLocked(sub *subscriber[T], ev event[T]) {
	ev.recipients = []*subscriber[T]{sub}
	h.queue = append(h.queue, ev)
}

// publishFuncLocked queues fn to run in turn with the deliveries.
func (h *hub[T]) publishFuncLocked(fn func()) {
	h.queue = append(h.queue, event[T]{kind: kindFunc, fn: fn})
}

// flush delivers queued events. If another call is already delivering it
// returns at once; that call picks up whatever was queued in the meantime.
func (h *hub[T]) flush() {
	h.mu.Lock()

	if h.draining {
		h.mu.Unlock()

		return
	}

	h.draining = true

	for len(h.queue) > 0 {
		ev := h.queue[0]
		h.queue[0] = event[T]{}
		h.queue = h.queue[1:]

		h.mu.Unlock()
		deliver(ev)
		h.mu.Lock()
	}

	h.queue = nil
	h.draining = false
	h.mu.Unlock()
}

func deliver[T any](ev event[T]) {
	if ev.kind == kindFunc {
		invoke(ev.fn)

		return
	}

	for _, sub := range ev.recipients {
		if !sub.active.Load() {
			continue
		}

		switch ev.kind {
		case kindNext:
			if sub.observer.OnNext != nil {
				invoke(func() { sub.observer.OnNext(ev.value) })
			}
		case kindError:
			sub.active.Store(false)

			if sub.observer.OnError != nil {
				invoke(func() { sub.observer.OnError(ev.err) })
			}
		case kindComplete:
			sub.active.Store(false)

			if sub.observer.OnComplete != nil {
				invoke(sub.observer.OnComplete)
			}
		}
	}
}

// invoke runs an observer callback, logging instead of propagating panics
// so that one faulty observer cannot stop delivery to the rest.
func invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Get().Error("panic encountered in observer",
				"error", errors.FromPanic(r, debug.Stack()))
		}
	}()

	fn()
}
