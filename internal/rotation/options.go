package rotation

import (
	"time"

	"github.com/smazurov/videosaver/internal/events"
	"github.com/smazurov/videosaver/internal/logging"
)

const (
	defaultName               = "default"
	defaultForcedDrainTimeout = 2 * time.Second
	defaultDrainLogInterval   = 5 * time.Second
)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Defaults to the "rotation" module logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithEventBus publishes artifact and rotation events on bus.
func WithEventBus(bus *events.Bus) Option {
	return func(c *Controller) {
		c.bus = bus
	}
}

// WithName labels logs and metrics with a session name.
func WithName(name string) Option {
	return func(c *Controller) {
		c.name = name
	}
}

// WithDrainTimeout bounds the wait for a terminal event. Zero leaves the
// bound to the media service.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.drainTimeout = d
	}
}

// WithForcedDrainTimeout bounds the wait after a finish signal could not be
// delivered, when no end-of-stream is expected.
func WithForcedDrainTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.forcedDrainTimeout = d
	}
}

// WithDrainLogInterval sets how often a long drain is reported.
func WithDrainLogInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.drainLogInterval = d
	}
}

// WithStartSequence sets the first sequence index. Negative values are
// ignored.
func WithStartSequence(seq int) Option {
	return func(c *Controller) {
		if seq >= 0 {
			c.sequence = seq
		}
	}
}
