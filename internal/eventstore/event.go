package eventstore

import "time"

// Event types written by the journal.
const (
	TypeTransition   = "StateTransition"
	TypeRunCompleted = "RunCompleted"
)

// Event is one journaled pipeline event.
type Event interface {
	ID() int64
	RunID() string
	Type() string
	Timestamp() time.Time
	// Payload is the JSON encoded event body.
	Payload() []byte
	Metadata() map[string]string
}

// BaseEvent provides a default implementation of Event.
type BaseEvent struct {
	EventID        int64
	EventRunID     string
	EventType      string
	EventTimestamp time.Time
	EventPayload   []byte
	EventMetadata  map[string]string
}

func (e *BaseEvent) ID() int64                   { return e.EventID }
func (e *BaseEvent) RunID() string               { return e.EventRunID }
func (e *BaseEvent) Type() string                { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time        { return e.EventTimestamp }
func (e *BaseEvent) Payload() []byte             { return e.EventPayload }
func (e *BaseEvent) Metadata() map[string]string { return e.EventMetadata }
