package events

import (
	"context"
	"time"
)

// Thread lifecycle event types.
const (
	ThreadCreated = "THREAD_CREATED"
	ThreadUpdated = "THREAD_UPDATED"
	ThreadDeleted = "THREAD_DELETED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "THREAD_CREATED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewThreadEvent describes a change to a saved thread. Content is never included.
func NewThreadEvent(eventType, threadID, userID, title string, at time.Time) BaseEvent {
	return BaseEvent{
		Type: eventType,
		Data: map[string]interface{}{
			"thread_id": threadID,
			"user_id":   userID,
			"title":     title,
		},
		OccurredAt: at,
	}
}

// Publisher sends events to the bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. Used when no bus is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
