package events

import (
	"context"
	"time"
)

const (
	// ModelModified is published when a modification request produced a new
	// operation log.
	ModelModified = "MODEL_MODIFIED"
	// ModelSimulated is published after every successful simulation.
	ModelSimulated = "MODEL_SIMULATED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g. "MODEL_MODIFIED").
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

func NewModelModified(modelID, deltaKey string, operations, warnings int) Event {
	return BaseEvent{
		Type: ModelModified,
		Data: map[string]interface{}{
			"model_id":   modelID,
			"delta_key":  deltaKey,
			"operations": operations,
			"warnings":   warnings,
		},
		OccurredAt: time.Now().UTC(),
	}
}

func NewModelSimulated(modelID, method, status string, growthRate float64) Event {
	return BaseEvent{
		Type: ModelSimulated,
		Data: map[string]interface{}{
			"model_id":    modelID,
			"method":      method,
			"status":      status,
			"growth_rate": growthRate,
		},
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events to a bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
