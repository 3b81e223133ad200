package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the subject suffix for this event (e.g., "turn.completed").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the generic Event used when an event is rebuilt from the wire.
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

const (
	TypeTurnCompleted = "turn.completed"
	TypeSessionOpened = "session.opened"
	TypeSessionClosed = "session.closed"
)

// TurnCompleted is published once per finished conversation turn.
type TurnCompleted struct {
	TurnID         string
	ConversationID string
	TenantID       string
	Mode           string
	Intent         string
	Outcome        string
	DurationMs     int64
	PassageCount   int
	OccurredAt     time.Time
}

func (e TurnCompleted) EventType() string {
	return TypeTurnCompleted
}

func (e TurnCompleted) Payload() map[string]interface{} {
	return map[string]interface{}{
		"turn_id":         e.TurnID,
		"conversation_id": e.ConversationID,
		"tenant_id":       e.TenantID,
		"mode":            e.Mode,
		"intent":          e.Intent,
		"outcome":         e.Outcome,
		"duration_ms":     e.DurationMs,
		"passage_count":   e.PassageCount,
	}
}

func (e TurnCompleted) Timestamp() time.Time {
	return e.OccurredAt
}

// SessionEvent marks a WebSocket session opening or closing.
type SessionEvent struct {
	Type       string // TypeSessionOpened or TypeSessionClosed
	SessionID  string
	Instance   string
	OccurredAt time.Time
}

func (e SessionEvent) EventType() string {
	return e.Type
}

func (e SessionEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"session_id": e.SessionID,
		"instance":   e.Instance,
	}
}

func (e SessionEvent) Timestamp() time.Time {
	return e.OccurredAt
}
