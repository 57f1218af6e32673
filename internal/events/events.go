package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of printer notification an event carries.
type EventType string

// Printer event types.
const (
	// TypePrinterReady fires once the printer host reports Klippy is
	// ready; its payload carries the initial print_stats snapshot.
	TypePrinterReady EventType = "printer.ready"

	// TypeStatusUpdate carries a partial print_stats object with the
	// fields that changed.
	TypeStatusUpdate EventType = "printer.status_update"

	// TypePrinterDisconnected fires when the Klippy connection drops.
	// No payload.
	TypePrinterDisconnected EventType = "printer.disconnected"

	// TypePrinterShutdown fires when Klippy enters its shutdown state.
	// No payload.
	TypePrinterShutdown EventType = "printer.shutdown"

	// TypeHistoryChanged carries a job history notification with an
	// action and the affected job record.
	TypeHistoryChanged EventType = "history.changed"
)

// Event represents one asynchronous notification originating from the
// printer connection.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type indicates which printer notification this event carries
	Type EventType `json:"type"`

	// Payload contains the notification-specific data serialized as JSON
	Payload json.RawMessage `json:"payload,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// New creates an Event of the given type, serializing the payload to
// JSON. A nil payload produces an event without payload data.
func New(eventType EventType, payload any) (*Event, error) {
	e := &Event{
		ID:        uuid.New(),
		Type:      eventType,
		CreatedAt: time.Now(),
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		e.Payload = data
	}

	return e, nil
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Handler defines an interface for components that can handle events.
type Handler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// Emitter defines an interface for components that can emit events.
// This allows the printer connection to publish events without direct
// knowledge of handlers.
type Emitter interface {
	// Emit publishes the given event to all registered handlers.
	Emit(ctx context.Context, event *Event) error
}
