package events

// Event type constants for kelindar/event.
const (
	TypeArtifactOpened uint32 = iota + 1
	TypeArtifactClosed
	TypeRotation
	TypePipelineError
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ArtifactOpenedEvent is published once a pipeline reaches playing and
// starts writing a new artifact.
type ArtifactOpenedEvent struct {
	Sequence  int    `json:"sequence"`
	Path      string `json:"path"`
	HandleID  string `json:"handle_id"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for ArtifactOpenedEvent.
func (e ArtifactOpenedEvent) Type() uint32 { return TypeArtifactOpened }

// ArtifactClosedEvent is published after a pipeline was drained and
// released. Outcome is the classified terminal event ("eos", "error",
// "anomaly", "no-event").
type ArtifactClosedEvent struct {
	Sequence  int    `json:"sequence"`
	Path      string `json:"path"`
	Units     int    `json:"units"`
	Outcome   string `json:"outcome"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for ArtifactClosedEvent.
func (e ArtifactClosedEvent) Type() uint32 { return TypeArtifactClosed }

// RotationEvent is published when the unit threshold swapped pipelines.
type RotationEvent struct {
	From      int    `json:"from"`
	To        int    `json:"to"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for RotationEvent.
func (e RotationEvent) Type() uint32 { return TypeRotation }

// PipelineErrorEvent carries an error reported by the engine during a drain.
type PipelineErrorEvent struct {
	Sequence  int    `json:"sequence"`
	Source    string `json:"source"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for PipelineErrorEvent.
func (e PipelineErrorEvent) Type() uint32 { return TypePipelineError }
