package dispatch

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/amp-labs/amp-dispatch/future"
	"github.com/amp-labs/amp-dispatch/logger"
	"github.com/amp-labs/amp-dispatch/observable"
	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// Machine is an observable dispatch state machine over payloads of type T.
//
// State is published through an observable cell: every write happens under
// the machine lock, and notifications are delivered after the lock is
// released, in write order. Subscribers may therefore call back into the
// machine from their callbacks, Close included. Run futures settle after
// the notifications of their run were delivered, so a subscriber must not
// block on one.
type Machine[T any] struct {
	phases Phases[T]
	opts   options
	pool   pond.Pool
	cell   *observable.Property[change[T]]
	closed *atomic.Bool

	mu      sync.Mutex
	current *run[T]   // run bound to the current Dispatching state, if any
	pending []*run[T] // armed by RunAsObservable, waiting for Dispatching
	backlog []*run[T] // deferred triggers under PolicyQueue
}

// run is one execution of the phases and the promise it resolves.
type run[T any] struct {
	id      string
	input   T
	ctx     context.Context //nolint:containedctx
	cancel  context.CancelCauseFunc
	opts    options
	promise *future.Promise[T]
	future  *future.Future[T]

	// bound is false for triggers issued through SetDispatchState: they move
	// the machine to Dispatching and hand the work to an armed run, if any.
	bound bool

	// followers are armed runs that claimed this run's Dispatching state.
	// They settle with its outcome.
	followers []*run[T]
}

// NewMachine creates an idle machine driving phases. Runs execute one at a
// time on the machine's own worker.
func NewMachine[T any](phases Phases[T], opts ...Option) *Machine[T] {
	return &Machine[T]{
		phases: phases,
		opts:   defaultOptions().with(opts),
		pool:   pond.NewPool(1),
		cell:   observable.NewProperty(change[T]{Snapshot: Snapshot[T]{State: None}}),
		closed: atomic.NewBool(false),
	}
}

// Name returns the name used in logs, metrics and spans.
func (m *Machine[T]) Name() string {
	return sanitizeName(m.opts.name)
}

// Snapshot returns the current state and payload.
func (m *Machine[T]) Snapshot() Snapshot[T] {
	return m.cell.Get().Snapshot
}

// State returns the current state.
func (m *Machine[T]) State() State {
	return m.Snapshot().State
}

// Value returns the current payload.
func (m *Machine[T]) Value() T { //nolint:ireturn
	return m.Snapshot().Value
}

// Property observes the snapshot. Subscribers first receive the current
// snapshot, then every change.
func (m *Machine[T]) Property() observable.Observable[Snapshot[T]] { //nolint:ireturn
	return observable.Map[change[T]](m.cell, func(c change[T]) Snapshot[T] {
		return c.Snapshot
	})
}

// Transitions observes every state change from the moment of subscription.
func (m *Machine[T]) Transitions() observable.Observable[Transition] { //nolint:ireturn
	return observable.Map(m.cell.Changes(), func(c change[T]) Transition {
		return Transition{From: c.from, To: c.State}
	})
}

// WillDispatch emits the payload each time the machine enters Dispatching.
func (m *Machine[T]) WillDispatch() observable.Observable[T] { //nolint:ireturn
	return m.entering(Dispatching)
}

// DidDispatch emits the final value each time a dispatch completes.
func (m *Machine[T]) DidDispatch() observable.Observable[T] { //nolint:ireturn
	return m.entering(Dispatched)
}

func (m *Machine[T]) entering(state State) observable.Observable[T] { //nolint:ireturn
	entered := observable.Filter(m.cell.Changes(), func(c change[T]) bool {
		return c.State == state && c.from != state
	})

	return observable.Map(entered, func(c change[T]) T {
		return c.Value
	})
}

// Trigger moves the machine from None to Dispatching with value as payload
// and starts a run seeded with value. The future resolves with the final
// value once the run finished and the machine published Dispatched.
//
// If the machine is busy, the trigger is rejected with a *TransitionError
// or deferred, depending on the machine's Policy.
func (m *Machine[T]) Trigger(ctx context.Context, value T, opts ...Option) (*future.Future[T], error) {
	r := m.newRun(ctx, value, opts, true)

	m.mu.Lock()

	var err error
	if m.closed.Load() {
		err = ErrClosed
	} else {
		err = m.triggerLocked(ctx, r)
	}

	m.mu.Unlock()
	m.cell.Flush()

	if err != nil {
		r.cancel(err)

		return nil, err
	}

	return r.future, nil
}

// Arm registers a run that starts on the next transition into Dispatching,
// or immediately if the machine is already Dispatching and no run owns that
// state. Armed runs claim Dispatching transitions in the order they were
// armed, one each. The phases are seeded with defaultValue.
//
// A transition made by Trigger (or Sequence) already owns a run. The armed
// run claiming it follows that run instead of executing the phases, and
// settles with its outcome.
//
// Cancelling ctx abandons the run if it has not started or follows another
// run, and cancels it otherwise.
func (m *Machine[T]) Arm(ctx context.Context, defaultValue T, opts ...Option) *future.Future[T] {
	r := m.newRun(ctx, defaultValue, opts, true)

	m.mu.Lock()

	if m.closed.Load() {
		m.mu.Unlock()

		var zero T

		m.resolve(r, zero, ErrClosed)

		return r.future
	}

	m.pending = append(m.pending, r)

	if m.cell.Get().State == Dispatching {
		m.claimLocked()
	}

	m.mu.Unlock()
	m.cell.Flush()

	context.AfterFunc(r.ctx, func() {
		m.abandon(r)
	})

	return r.future
}

// RunAsObservable is Arm exposed as a stream: it emits the final value and
// completes, or emits the run's error.
func (m *Machine[T]) RunAsObservable(ctx context.Context, defaultValue T, opts ...Option) observable.Observable[T] { //nolint:ireturn,lll
	return observable.FromFuture(m.Arm(ctx, defaultValue, opts...))
}

// Sequence turns every value of trigger into a Trigger call and returns the
// stream of completed values. Rejected triggers and failed runs are passed
// to the error handler (see WithErrorHandler) and do not end the stream.
//
// The stream completes once trigger completed and every started run
// settled. It fails when trigger fails or ctx is done. Each subscription
// subscribes to trigger anew.
func (m *Machine[T]) Sequence(ctx context.Context, trigger observable.Observable[T], opts ...Option) observable.Observable[T] { //nolint:ireturn,lll
	handle := m.errorHandler(m.opts.with(opts))

	return observable.Create(func(observer observable.Observer[T]) observable.Subscription {
		out := observable.NewSubject[T]()
		outSub := out.Subscribe(observer)

		var inflight sync.WaitGroup

		triggerSub := trigger.Subscribe(observable.Observer[T]{
			OnNext: func(value T) {
				fut, err := m.Trigger(ctx, value, opts...)
				if err != nil {
					handle(ctx, err)

					return
				}

				inflight.Add(1)

				fut.OnResult(func(res future.Result[T]) {
					defer inflight.Done()

					if res.Error != nil {
						handle(ctx, res.Error)

						return
					}

					out.Emit(res.Value)
				})
			},
			OnError: out.Error,
			OnComplete: func() {
				go func() {
					inflight.Wait()
					out.Complete()
				}()
			},
		})

		stop := context.AfterFunc(ctx, func() {
			triggerSub.Unsubscribe()
			out.Error(context.Cause(ctx))
		})

		return observable.SubscriptionFunc(func() {
			stop()
			triggerSub.Unsubscribe()
			outSub.Unsubscribe()
		})
	})
}

// SetDispatchState writes the state directly.
//
//   - None resets the machine, like ResetDispatchState.
//   - Dispatching is a trigger: from None it starts the next armed run (or
//     leaves the state unclaimed); otherwise the machine's Policy applies.
//   - Dispatched is only valid from a Dispatching state that no run owns.
//
// The payload is left unchanged. Setting the current state again is a
// no-op, except for Dispatching.
func (m *Machine[T]) SetDispatchState(ctx context.Context, state State) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownState, int(state))
	}

	m.mu.Lock()

	var err error
	if m.closed.Load() {
		err = ErrClosed
	} else {
		err = m.setStateLocked(ctx, state)
	}

	m.mu.Unlock()
	m.cell.Flush()

	return err
}

func (m *Machine[T]) setStateLocked(ctx context.Context, state State) error {
	cur := m.cell.Get().Snapshot

	switch state {
	case None:
		m.resetLocked(ctx)
	case Dispatching:
		return m.triggerLocked(ctx, m.newRun(context.WithoutCancel(ctx), cur.Value, nil, false))
	case Dispatched:
		if cur.State == Dispatched {
			return nil
		}

		if cur.State != Dispatching || m.current != nil {
			return &TransitionError{From: cur.State, To: Dispatched}
		}

		m.setLocked(ctx, Dispatched, cur.Value)
	}

	return nil
}

// ResetDispatchState forces the machine back to None. A run in flight is
// cancelled with ErrReset; its result is discarded.
func (m *Machine[T]) ResetDispatchState(ctx context.Context) {
	m.mu.Lock()
	m.resetLocked(ctx)
	m.mu.Unlock()
	m.cell.Flush()
}

// Close cancels every armed, deferred and running run, resets the machine
// to None and stops its worker. Subsequent calls fail with ErrClosed. Close
// waits for the running phase to return and must not be called from a phase.
// Called from a subscriber, the cancelled runs settle once that subscriber
// returned.
func (m *Machine[T]) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	m.mu.Lock()

	runs := make([]*run[T], 0, len(m.pending)+len(m.backlog)+1)
	if m.current != nil {
		runs = append(runs, m.current)
	}

	runs = append(runs, m.pending...)
	runs = append(runs, m.backlog...)

	queuedTriggers.WithLabelValues(m.Name()).Sub(float64(len(m.backlog)))

	m.current, m.pending, m.backlog = nil, nil, nil

	if cur := m.cell.Get().Snapshot; cur.State != None {
		m.setLocked(context.Background(), None, cur.Value)
	}

	var zero T

	for _, r := range runs {
		r.cancel(ErrClosed)
		m.settleLocked(r, zero, ErrClosed)
	}

	m.mu.Unlock()
	m.cell.Flush()

	m.pool.StopAndWait()

	return nil
}

func (m *Machine[T]) newRun(ctx context.Context, input T, opts []Option, bound bool) *run[T] {
	ctx, cancel := context.WithCancelCause(ctx)
	fut, promise := future.New[T]()

	return &run[T]{
		id:      uuid.NewString(),
		input:   input,
		ctx:     ctx,
		cancel:  cancel,
		opts:    m.opts.with(opts),
		promise: promise,
		future:  fut,
		bound:   bound,
	}
}

// setLocked stages a state change. Subscribers see it on the next Flush.
func (m *Machine[T]) setLocked(ctx context.Context, state State, value T) {
	from := m.cell.Get().State

	m.cell.Stage(change[T]{
		Snapshot: Snapshot[T]{State: state, Value: value},
		from:     from,
	})

	transitionsTotal.WithLabelValues(m.Name(), from.String(), state.String()).Inc()
	m.opts.logger.StateChanged(ctx, m.Name(), from, state)
}

func (m *Machine[T]) triggerLocked(ctx context.Context, r *run[T]) error {
	state := m.cell.Get().State

	if state == None {
		m.startLocked(r)

		return nil
	}

	if m.opts.policy == PolicyQueue {
		m.backlog = append(m.backlog, r)
		queuedTriggers.WithLabelValues(m.Name()).Inc()

		if r.bound {
			context.AfterFunc(r.ctx, func() {
				m.abandon(r)
			})
		}

		return nil
	}

	err := &TransitionError{From: state, To: Dispatching}

	rejectedTriggersTotal.WithLabelValues(m.Name()).Inc()
	m.opts.logger.TriggerRejected(ctx, m.Name(), state, err)

	return err
}

func (m *Machine[T]) startLocked(r *run[T]) {
	if !r.bound {
		m.setLocked(r.ctx, Dispatching, m.cell.Get().Value)
		m.claimLocked()

		return
	}

	m.setLocked(r.ctx, Dispatching, r.input)
	m.current = r
	m.submitLocked(r)

	if f := m.nextArmedLocked(); f != nil {
		r.followers = append(r.followers, f)
	}
}

// nextArmedLocked pops the oldest armed run whose context is still live.
func (m *Machine[T]) nextArmedLocked() *run[T] {
	var zero T

	for len(m.pending) > 0 {
		r := m.pending[0]
		m.pending[0] = nil
		m.pending = m.pending[1:]

		if cause := context.Cause(r.ctx); cause != nil {
			m.resolve(r, zero, &CancelError{Phase: PhasePre, Cause: cause})

			continue
		}

		return r
	}

	return nil
}

// claimLocked hands an unowned Dispatching state to the oldest armed run.
func (m *Machine[T]) claimLocked() {
	if m.current != nil {
		return
	}

	if r := m.nextArmedLocked(); r != nil {
		m.current = r
		m.submitLocked(r)
	}
}

func (m *Machine[T]) submitLocked(r *run[T]) {
	err := m.pool.Go(func() {
		out, err := runPhases(r.ctx, m.phases, r.input, &r.opts, r.id)
		m.finish(r, out, err)
	})
	if err != nil {
		var zero T

		m.current = nil
		m.setLocked(r.ctx, None, m.cell.Get().Value)
		m.settleLocked(r, zero, fmt.Errorf("%w: %w", ErrClosed, err))
	}
}

// advanceLocked starts deferred triggers while the machine is idle.
func (m *Machine[T]) advanceLocked() {
	var zero T

	for m.cell.Get().State == None && len(m.backlog) > 0 {
		r := m.backlog[0]
		m.backlog[0] = nil
		m.backlog = m.backlog[1:]

		queuedTriggers.WithLabelValues(m.Name()).Dec()

		if cause := context.Cause(r.ctx); cause != nil {
			m.resolve(r, zero, &CancelError{Phase: PhasePre, Cause: cause})

			continue
		}

		m.startLocked(r)
	}
}

func (m *Machine[T]) resetLocked(ctx context.Context) {
	if r := m.current; r != nil {
		m.current = nil
		r.cancel(ErrReset)
	}

	if cur := m.cell.Get().Snapshot; cur.State != None {
		m.setLocked(ctx, None, cur.Value)
	}

	m.advanceLocked()
}

// finish publishes the outcome of r. The machine returns to None before a
// failure is surfaced; on success Dispatched is published first. It runs on
// the worker and leaves delivery to another goroutine, so subscribers may
// stop the worker.
func (m *Machine[T]) finish(r *run[T], out T, err error) {
	var zero T

	m.mu.Lock()

	switch {
	case m.current != r:
		// Superseded by a reset or Close.
		if err == nil {
			cause := context.Cause(r.ctx)
			if cause == nil {
				cause = ErrReset
			}

			err = &CancelError{Phase: PhasePost, Cause: cause}
		}

		m.settleLocked(r, zero, err)
	case err != nil:
		m.current = nil
		m.setLocked(r.ctx, None, m.cell.Get().Value)
		m.settleLocked(r, zero, err)
		m.advanceLocked()
	default:
		m.current = nil
		m.setLocked(r.ctx, Dispatched, out)

		if r.opts.resetOnFinish {
			m.setLocked(r.ctx, None, out)
		}

		m.settleLocked(r, out, nil)
		m.advanceLocked()
	}

	m.mu.Unlock()

	go m.cell.Flush()
}

// abandon drops r if it is still waiting to start.
func (m *Machine[T]) abandon(r *run[T]) {
	m.mu.Lock()

	removed := false

	if i := slices.Index(m.pending, r); i >= 0 {
		m.pending = slices.Delete(m.pending, i, i+1)
		removed = true
	} else if i := slices.Index(m.backlog, r); i >= 0 {
		m.backlog = slices.Delete(m.backlog, i, i+1)
		queuedTriggers.WithLabelValues(m.Name()).Dec()

		removed = true
	} else if cur := m.current; cur != nil {
		if i := slices.Index(cur.followers, r); i >= 0 {
			cur.followers = slices.Delete(cur.followers, i, i+1)
			removed = true
		}
	}

	m.mu.Unlock()

	if removed {
		var zero T

		m.resolve(r, zero, &CancelError{Phase: PhasePre, Cause: context.Cause(r.ctx)})
	}
}

// settleLocked stages the resolution of r and its followers behind the
// notifications staged so far.
func (m *Machine[T]) settleLocked(r *run[T], value T, err error) {
	followers := r.followers
	r.followers = nil

	m.cell.StageFunc(func() {
		m.resolve(r, value, err)

		for _, f := range followers {
			m.resolve(f, value, err)
		}
	})
}

func (m *Machine[T]) resolve(r *run[T], value T, err error) {
	if err != nil {
		err = logger.AnnotateError(err, "sequencer", m.Name(), "run_id", r.id)
	}

	r.promise.Complete(value, err)
	r.cancel(nil)
}

func (m *Machine[T]) errorHandler(o options) func(ctx context.Context, err error) {
	if o.errorHandler != nil {
		return o.errorHandler
	}

	return func(ctx context.Context, err error) {
		logger.Get(ctx).WarnContext(ctx, "Dispatch sequence run failed",
			"sequencer", m.Name(),
			"error", err,
		)
	}
}
