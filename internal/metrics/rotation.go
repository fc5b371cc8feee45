package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "videosaver"

// ControllerStates lists every value SetControllerState accepts.
var ControllerStates = []string{"idle", "running", "draining"}

var (
	unitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rotation",
		Name:      "units_total",
		Help:      "Units of work passed through Advance",
	}, []string{"session"})

	rotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rotation",
		Name:      "rotations_total",
		Help:      "Pipeline swaps triggered by the per-file threshold",
	}, []string{"session"})

	artifactsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "rotation",
		Name:      "artifacts_closed_total",
		Help:      "Artifacts finalized, by terminal event outcome",
	}, []string{"session", "outcome"})

	pipelineErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "errors_total",
		Help:      "Error events reported by the engine, by originating element",
	}, []string{"session", "source"})

	startFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "start_failures_total",
		Help:      "Start attempts that aborted back to idle",
	}, []string{"session"})

	sequence = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "rotation",
		Name:      "sequence",
		Help:      "Sequence index of the next or current artifact",
	}, []string{"session"})

	controllerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "rotation",
		Name:      "state",
		Help:      "1 for the controller's current state, 0 otherwise",
	}, []string{"session", "state"})

	drainSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "drain_seconds",
		Help:      "Time from finish signal to terminal event",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"session"})
)

// IncUnits counts one Advance call.
func IncUnits(session string) {
	unitsTotal.WithLabelValues(session).Inc()
}

// IncRotations counts one threshold-triggered swap.
func IncRotations(session string) {
	rotationsTotal.WithLabelValues(session).Inc()
}

// IncArtifactsClosed counts one finalized artifact.
func IncArtifactsClosed(session, outcome string) {
	artifactsClosed.WithLabelValues(session, outcome).Inc()
}

// IncPipelineErrors counts one error event from the engine.
func IncPipelineErrors(session, source string) {
	if source == "" {
		source = "unknown"
	}
	pipelineErrors.WithLabelValues(session, source).Inc()
}

// IncStartFailures counts one failed Start.
func IncStartFailures(session string) {
	startFailures.WithLabelValues(session).Inc()
}

// SetSequence records the current sequence index.
func SetSequence(session string, seq int) {
	sequence.WithLabelValues(session).Set(float64(seq))
}

// SetControllerState marks state as the only active state for session.
func SetControllerState(session, state string) {
	for _, s := range ControllerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		controllerState.WithLabelValues(session, s).Set(v)
	}
}

// ObserveDrain records how long a drain took.
func ObserveDrain(session string, seconds float64) {
	drainSeconds.WithLabelValues(session).Observe(seconds)
}

// DeleteSession removes every series labeled with session.
func DeleteSession(session string) {
	labels := prometheus.Labels{"session": session}
	unitsTotal.DeletePartialMatch(labels)
	rotationsTotal.DeletePartialMatch(labels)
	artifactsClosed.DeletePartialMatch(labels)
	pipelineErrors.DeletePartialMatch(labels)
	startFailures.DeletePartialMatch(labels)
	sequence.DeletePartialMatch(labels)
	controllerState.DeletePartialMatch(labels)
	drainSeconds.DeletePartialMatch(labels)
}
