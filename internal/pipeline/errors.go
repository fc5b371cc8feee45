package pipeline

import "errors"

var (
	// ErrInvalidConfig indicates a session configuration that cannot be rendered.
	ErrInvalidConfig = errors.New("invalid session configuration")
	// ErrBuild indicates the engine could not construct a pipeline.
	ErrBuild = errors.New("pipeline construction failed")
	// ErrStateChange indicates the engine refused a state transition.
	ErrStateChange = errors.New("pipeline state change failed")
	// ErrFinishSignal indicates the finish signal could not be delivered.
	ErrFinishSignal = errors.New("finish signal not delivered")
	// ErrWaitTimeout indicates no terminal event arrived in time.
	ErrWaitTimeout = errors.New("timed out waiting for terminal event")
	// ErrUnknownHandle indicates a handle that was never built or is already released.
	ErrUnknownHandle = errors.New("unknown pipeline handle")
)
