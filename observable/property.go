package observable

// Property is an observable value. Subscribers receive the current value
// immediately and then every change, so late subscribers never miss the
// latest state.
type Property[T any] struct {
	hub   hub[T]
	value T
	equal func(a, b T) bool
}

// PropertyOption configures a Property.
type PropertyOption[T any] func(*Property[T])

// WithEquality makes Set ignore values equal to the current one.
// Without it every Set is published.
func WithEquality[T any](equal func(a, b T) bool) PropertyOption[T] {
	return func(p *Property[T]) {
		p.equal = equal
	}
}

// NewProperty creates a Property holding initial.
func NewProperty[T any](initial T, opts ...PropertyOption[T]) *Property[T] {
	p := &Property[T]{value: initial}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Get returns the most recently set value.
func (p *Property[T]) Get() T { //nolint:ireturn
	p.hub.mu.Lock()
	defer p.hub.mu.Unlock()

	return p.value
}

// Set stores v and notifies subscribers. It reports whether the value
// changed (always true without WithEquality).
func (p *Property[T]) Set(v T) bool {
	changed := p.Stage(v)
	p.Flush()

	return changed
}

// Stage stores v and queues the notification without delivering it.
// Callers holding their own lock stage under it and Flush after releasing
// it, which keeps notification order equal to write order.
func (p *Property[T]) Stage(v T) bool {
	p.hub.mu.Lock()
	defer p.hub.mu.Unlock()

	if p.equal != nil && p.equal(p.value, v) {
		return false
	}

	p.value = v
	p.hub.publishLocked(event[T]{kind: kindNext, value: v})

	return true
}

// StageFunc queues fn behind the notifications staged so far. fn runs on the
// delivering goroutine once every earlier notification was delivered.
func (p *Property[T]) StageFunc(fn func()) {
	p.hub.mu.Lock()
	defer p.hub.mu.Unlock()

	p.hub.publishFuncLocked(fn)
}

// Flush delivers staged notifications.
func (p *Property[T]) Flush() {
	p.hub.flush()
}

// Subscribe delivers the current value to observer, then every change.
func (p *Property[T]) Subscribe(observer Observer[T]) Subscription { //nolint:ireturn
	p.hub.mu.Lock()
	sub := p.hub.addLocked(observer)
	p.hub.publishToLocked(sub, event[T]{kind: kindNext, value: p.value})
	p.hub.mu.Unlock()

	p.hub.flush()

	return p.hub.subscription(sub)
}

// Changes returns an Observable of changes only: subscribers are not sent
// the current value.
func (p *Property[T]) Changes() Observable[T] { //nolint:ireturn
	return Create(func(observer Observer[T]) Subscription {
		p.hub.mu.Lock()
		sub := p.hub.addLocked(observer)
		p.hub.mu.Unlock()

		return p.hub.subscription(sub)
	})
}
