package rotation

import (
	"github.com/smazurov/videosaver/internal/logging"
	"github.com/smazurov/videosaver/internal/pipeline"
)

// Outcome is the classification of a drain's terminal event.
type Outcome int

// Drain outcomes.
const (
	OutcomeNoEvent Outcome = iota
	OutcomeEOS
	OutcomeError
	OutcomeAnomaly
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEOS:
		return "eos"
	case OutcomeError:
		return "error"
	case OutcomeAnomaly:
		return "anomaly"
	default:
		return "no-event"
	}
}

// HandleEvent reports a terminal event and releases it. None of the
// outcomes is fatal: the caller tears the pipeline down regardless.
func HandleEvent(logger logging.Logger, ev *pipeline.Event) Outcome {
	if ev == nil {
		logger.Warn("No terminal event received")
		return OutcomeNoEvent
	}
	defer ev.Release()

	switch ev.Kind {
	case pipeline.EventError:
		detail := ev.Detail
		if detail == "" {
			detail = "none"
		}
		logger.Error("Error received from element", "source", ev.Source, "error", ev.Message, "debug", detail)
		return OutcomeError
	case pipeline.EventEOS:
		logger.Info("End-of-stream", "source", ev.Source)
		return OutcomeEOS
	default:
		logger.Warn("Unexpected terminal event", "kind", ev.Kind.String(), "source", ev.Source, "message", ev.Message)
		return OutcomeAnomaly
	}
}
