package queue

import "context"

// Publisher publishes booking lifecycle events for downstream consumers
// (calendar sync, analytics, client apps). The engine only produces; nothing
// in this repository consumes.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg BookingEventMessage) error
	Close() error
}

const (
	// eventsExchange is the topic exchange lifecycle events are published to.
	// Routing keys are the event types, e.g. booking.created.
	eventsExchange = "booking.events"
)
