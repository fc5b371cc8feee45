// Package events carries rotation lifecycle notifications between the
// controller and whoever is interested (metrics, self tests, the CLI).
package events

import (
	"time"

	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Delivery is asynchronous; subscribers run on the dispatcher's goroutines.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case ArtifactOpenedEvent:
		event.Publish(b.dispatcher, e)
	case ArtifactClosedEvent:
		event.Publish(b.dispatcher, e)
	case RotationEvent:
		event.Publish(b.dispatcher, e)
	case PipelineErrorEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function. The handler's
// parameter type selects the event. Returns an unsubscribe function; an
// unsupported handler type yields a no-op.
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ArtifactOpenedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ArtifactClosedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RotationEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PipelineErrorEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// Timestamp formats t the way every event carries it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
