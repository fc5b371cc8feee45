package events

import "github.com/kelindar/event"

// SubscribeToChannel subscribes to events of type T and forwards them to
// ch, so one select loop can consume several event types. Events are
// dropped when ch is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
