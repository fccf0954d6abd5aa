package dispatch

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric outcome labels.
const (
	outcomeSuccess   = "success"
	outcomeError     = "error"
	outcomeCancelled = "cancelled"
)

var (
	// runsTotal counts finished runs by sequencer and outcome.
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_runs_total",
		Help: "Total number of dispatch runs by sequencer and outcome (success, error or cancelled)",
	}, []string{"sequencer", "outcome"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_run_duration_seconds",
		Help:    "Duration of dispatch runs by sequencer and outcome",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"sequencer", "outcome"})

	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_phase_duration_seconds",
		Help:    "Duration of individual dispatch phases by sequencer, phase and outcome",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"sequencer", "phase", "outcome"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_state_transitions_total",
		Help: "Total number of dispatch state transitions by sequencer, from_state and to_state",
	}, []string{"sequencer", "from_state", "to_state"})

	rejectedTriggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_rejected_triggers_total",
		Help: "Total number of triggers rejected because a dispatch was in progress",
	}, []string{"sequencer"})

	// queuedTriggers is the current backlog of deferred triggers.
	queuedTriggers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dispatch_queued_triggers",
		Help: "Number of triggers waiting for the sequencer to become idle",
	}, []string{"sequencer"})
)

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, ErrCancelled):
		return outcomeCancelled
	default:
		return outcomeError
	}
}

func sanitizeName(name string) string {
	if name == "" {
		return "unknown"
	}

	return name
}
