package observable

// Subject is a hot event source: values emitted before a subscription are
// not replayed. After Complete or Error further emissions are ignored and
// new subscribers immediately receive the terminal event.
type Subject[T any] struct {
	hub      hub[T]
	terminal *event[T]
}

// NewSubject creates an empty Subject.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

// Emit delivers v to every current subscriber.
func (s *Subject[T]) Emit(v T) {
	s.publish(event[T]{kind: kindNext, value: v})
}

// Error terminates the subject with err.
func (s *Subject[T]) Error(err error) {
	s.publish(event[T]{kind: kindError, err: err})
}

// Complete terminates the subject normally.
func (s *Subject[T]) Complete() {
	s.publish(event[T]{kind: kindComplete})
}

// Done reports whether the subject has terminated.
func (s *Subject[T]) Done() bool {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	return s.terminal != nil
}

func (s *Subject[T]) publish(ev event[T]) {
	s.hub.mu.Lock()

	if s.terminal != nil {
		s.hub.mu.Unlock()

		return
	}

	if ev.kind != kindNext {
		s.terminal = &ev
	}

	s.hub.publishLocked(ev)

	if s.terminal != nil {
		s.hub.subs = nil
	}

	s.hub.mu.Unlock()

	s.hub.flush()
}

// Subscribe registers observer for future events.
func (s *Subject[T]) Subscribe(observer Observer[T]) Subscription { //nolint:ireturn
	s.hub.mu.Lock()
	sub := s.hub.addLocked(observer)

	if s.terminal != nil {
		s.hub.subs = nil
		s.hub.publishToLocked(sub, *s.terminal)
	}

	s.hub.mu.Unlock()

	s.hub.flush()

	return s.hub.subscription(sub)
}
