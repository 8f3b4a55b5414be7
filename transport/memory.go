// Package transport decouples the registry from consumers of its
// notifications. Delivery is fire-and-forget: a slow or absent consumer
// never blocks a commit.
package transport

import (
	"context"

	"github.com/searchnet/chainreg/logging"
	"github.com/searchnet/chainreg/registry"
)

// EventTransport is an event sink whose published events can be consumed
// from a channel.
type EventTransport interface {
	registry.EventSink
	Events() <-chan registry.Event
}

// inMemory buffers events in a channel, binding the registry with an
// in-process consumer in standalone mode.
type inMemory struct {
	events chan registry.Event
}

func NewInMemory() EventTransport {
	return &inMemory{
		events: make(chan registry.Event, 16),
	}
}

// Publish implements registry.EventSink.
func (m *inMemory) Publish(ctx context.Context, event registry.Event) {
	select {
	case m.events <- event:
	default:
		logging.FromContext(ctx).Info("nobody listens to chain events - dropping")
	}
}

func (m *inMemory) Events() <-chan registry.Event {
	return m.events
}
