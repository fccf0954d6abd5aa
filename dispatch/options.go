package dispatch

import (
	"context"
	"time"
)

const defaultName = "default"

// Option configures a Machine, or a single run when passed to Run, Go,
// RunAsObservable, Trigger or Sequence. Per-run options override the
// machine's settings for that run only, except the Policy, which is fixed
// when the machine is created.
type Option func(*options)

type options struct {
	name          string
	policy        Policy
	resetOnFinish bool
	phaseTimeout  time.Duration
	logger        Logger
	errorHandler  func(ctx context.Context, err error)
}

func defaultOptions() options {
	return options{
		name:          defaultName,
		policy:        PolicyReject,
		resetOnFinish: true,
		logger:        &DefaultLogger{},
	}
}

func (o options) with(opts []Option) options {
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	return o
}

// WithName labels logs, metrics and spans.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithPolicy sets the policy for triggers that arrive while busy.
// The policy is machine-wide: it only takes effect when passed to NewMachine.
func WithPolicy(policy Policy) Option {
	return func(o *options) {
		o.policy = policy
	}
}

// WithResetOnFinish controls whether a successful run returns the machine
// to None after publishing Dispatched. Defaults to true.
func WithResetOnFinish(reset bool) Option {
	return func(o *options) {
		o.resetOnFinish = reset
	}
}

// WithPhaseTimeout bounds each phase. Zero means no limit. A phase that
// exceeds it fails with a *PhaseError wrapping context.DeadlineExceeded.
func WithPhaseTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.phaseTimeout = timeout
	}
}

// WithLogger replaces the logging hooks. Nil selects NopLogger.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NopLogger{}
		}

		o.logger = logger
	}
}

// WithErrorHandler receives the errors of runs started by Sequence,
// including rejected triggers. The default logs them.
func WithErrorHandler(handler func(ctx context.Context, err error)) Option {
	return func(o *options) {
		o.errorHandler = handler
	}
}
