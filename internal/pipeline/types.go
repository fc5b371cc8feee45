package pipeline

import (
	"sync"
	"time"
)

// State is a lifecycle state requested from the engine.
type State int

// Engine states, in the order a pipeline is torn down.
const (
	StateNull State = iota
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "null"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "invalid"
	}
}

// EventKind classifies a terminal event.
type EventKind int

// Terminal event kinds.
const (
	EventUnknown EventKind = iota
	EventError
	EventEOS
)

func (k EventKind) String() string {
	switch k {
	case EventError:
		return "error"
	case EventEOS:
		return "eos"
	default:
		return "unknown"
	}
}

// Event is the terminal status message that ends a drain wait.
type Event struct {
	Kind    EventKind
	Source  string // originating element or program
	Message string
	Detail  string // optional debug information

	releaseOnce sync.Once
	release     func()
}

// NewEvent creates an event whose backend resources are freed by release.
// release may be nil.
func NewEvent(kind EventKind, source, message, detail string, release func()) *Event {
	return &Event{
		Kind:    kind,
		Source:  source,
		Message: message,
		Detail:  detail,
		release: release,
	}
}

// Release frees the backend resources behind the event. Safe to call more
// than once and on a nil event.
func (e *Event) Release() {
	if e == nil {
		return
	}
	e.releaseOnce.Do(func() {
		if e.release != nil {
			e.release()
		}
	})
}

// Handle is an opaque reference to one constructed pipeline.
// IDs are unique for the lifetime of a Service.
type Handle interface {
	ID() string
}

// Service is the media engine as seen by the rotation controller.
type Service interface {
	// Build constructs a pipeline from desc without starting it.
	Build(desc Description) (Handle, error)
	// SetState requests a lifecycle transition.
	SetState(h Handle, s State) error
	// SendFinish asks the pipeline to flush and finalize its output.
	SendFinish(h Handle) error
	// WaitForTerminalEvent blocks until an error or end-of-stream arrives.
	// A timeout <= 0 waits until the service's own limit. An expired wait
	// returns ErrWaitTimeout and a nil event.
	WaitForTerminalEvent(h Handle, timeout time.Duration) (*Event, error)
	// Release frees every resource behind h. Releasing twice is a no-op.
	Release(h Handle)
}

// Engine is process-wide engine state with explicit setup and teardown.
type Engine interface {
	Init() error
	Deinit()
}
