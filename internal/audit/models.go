package audit

import "time"

// Event is an immutable, append-only record of an operator action.
//
// Invariants:
// - Events are never updated or deleted.
// - Actor and IP capture are best-effort; call flows never block on audit failures.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// ActorAgentID is the authenticated agent causing the event.
	ActorAgentID string `json:"actor_agent_id,omitempty" db:"actor_agent_id"`
	ActorRole    string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress    string `json:"ip_address,omitempty" db:"ip_address"`

	// Targets, depending on the event type.
	CallSID       string `json:"call_sid,omitempty" db:"call_sid"`
	ConferenceSID string `json:"conference_sid,omitempty" db:"conference_sid"`
	AgentID       string `json:"agent_id,omitempty" db:"agent_id"`

	// Action is the requested verb (hold, kick, start, ...).
	Action  string `json:"action,omitempty" db:"action"`
	Message string `json:"message,omitempty" db:"message"`

	Metadata map[string]string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeTransfer    EventType = "call_transfer"
	EventTypeHold        EventType = "call_hold"
	EventTypeRecording   EventType = "call_recording"
	EventTypeEndCall     EventType = "call_end"
	EventTypeInitiate    EventType = "call_initiate"
	EventTypeConference  EventType = "conference_action"
	EventTypeAgentStatus EventType = "agent_status"
	EventTypeAgentCreate EventType = "agent_create"
)

// Filter narrows List. Zero fields match everything.
type Filter struct {
	CallSID       string
	ConferenceSID string
	ActorAgentID  string
	Type          EventType
	Limit         int
}

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return 100
	case f.Limit > 1000:
		return 1000
	default:
		return f.Limit
	}
}
