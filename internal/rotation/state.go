package rotation

import "errors"

// State is the controller's lifecycle state.
type State int

// Controller states.
const (
	Idle State = iota
	Running
	Draining
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Draining:
		return "draining"
	default:
		return "invalid"
	}
}

var (
	// ErrNotIdle is returned by Start when a pipeline is already active.
	ErrNotIdle = errors.New("controller is not idle")
	// ErrNotRunning is returned by Advance when no pipeline is playing.
	ErrNotRunning = errors.New("controller is not running")
)
