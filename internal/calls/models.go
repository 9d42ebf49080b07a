package calls

import "time"

// Call is one provider call leg, keyed by the provider's call SID.
//
// Invariants:
// - CallSID never changes and is unique.
// - Status only moves through Transition (state.go) or the engine's conditional writes.
// - Metrics.QueueDuration is recomputed by the store whenever both queue timestamps are set.
// - Calls are never deleted.
type Call struct {
	CallSID       string `json:"call_sid" db:"call_sid"`
	ParentCallSID string `json:"parent_call_sid,omitempty" db:"parent_call_sid"`

	Direction Direction `json:"direction" db:"direction"`
	From      string    `json:"from" db:"from_number"`
	To        string    `json:"to" db:"to_number"`

	Status  Status  `json:"status" db:"status"`
	Purpose Purpose `json:"purpose" db:"purpose"`

	AgentID         string `json:"agent_id,omitempty" db:"agent_id"`
	TransferredFrom string `json:"transferred_from,omitempty" db:"transferred_from"`
	TransferredTo   string `json:"transferred_to,omitempty" db:"transferred_to"`
	ConferenceSID   string `json:"conference_sid,omitempty" db:"conference_sid"`
	CustomerID      string `json:"customer_id,omitempty" db:"customer_id"`

	Recording *Recording `json:"recording,omitempty"`
	Queue     *Queue     `json:"queue,omitempty"`
	Metrics   Metrics    `json:"metrics"`

	Notes []Note   `json:"notes"`
	Tags  []string `json:"tags"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type Status string

const (
	StatusQueued       Status = "queued"
	StatusRinging      Status = "ringing"
	StatusInProgress   Status = "in-progress"
	StatusOnHold       Status = "on-hold"
	StatusTransferring Status = "transferring"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusBusy         Status = "busy"
	StatusNoAnswer     Status = "no-answer"
	StatusCanceled     Status = "canceled"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusBusy, StatusNoAnswer, StatusCanceled:
		return true
	default:
		return false
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusRinging, StatusInProgress, StatusOnHold, StatusTransferring:
		return true
	default:
		return s.IsTerminal()
	}
}

// ActiveStatuses are the non-terminal statuses.
var ActiveStatuses = []Status{StatusQueued, StatusRinging, StatusInProgress, StatusOnHold, StatusTransferring}

// Purpose is why the call exists. One enumeration for both initiation and storage.
type Purpose string

const (
	PurposeDirect   Purpose = "direct"
	PurposeIVR      Purpose = "ivr"
	PurposeQueue    Purpose = "queue"
	PurposeTransfer Purpose = "transfer"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeDirect, PurposeIVR, PurposeQueue, PurposeTransfer:
		return true
	default:
		return false
	}
}

type RecordingStatus string

const (
	RecordingInProgress RecordingStatus = "in-progress"
	RecordingPaused     RecordingStatus = "paused"
	RecordingStopped    RecordingStatus = "stopped"
	RecordingCompleted  RecordingStatus = "completed"
	RecordingFailed     RecordingStatus = "failed"
	RecordingAbsent     RecordingStatus = "absent"
)

type Recording struct {
	SID      string          `json:"sid"`
	Status   RecordingStatus `json:"status"`
	Duration int             `json:"duration"`
	URL      string          `json:"url,omitempty"`
}

type Queue struct {
	Name      string     `json:"name"`
	EnteredAt *time.Time `json:"entered_at,omitempty"`
	ExitedAt  *time.Time `json:"exited_at,omitempty"`
	Position  int        `json:"position"`
}

// Metrics are whole seconds.
type Metrics struct {
	QueueDuration int `json:"queue_duration"`
	CallDuration  int `json:"call_duration"`
	HoldDuration  int `json:"hold_duration"`
	TransferCount int `json:"transfer_count"`

	HoldStartedAt *time.Time `json:"hold_started_at,omitempty"`
}

type Note struct {
	Text      string    `json:"text"`
	AgentID   string    `json:"agent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Customer is a known caller. Inbound calls are linked by phone number.
type Customer struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	Email       string    `json:"email,omitempty" db:"email"`
	Tags        []string  `json:"tags" db:"tags"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// recomputeQueueDuration keeps the derived queue metric in step with the timestamps.
func (c *Call) recomputeQueueDuration() {
	if c.Queue == nil || c.Queue.EnteredAt == nil || c.Queue.ExitedAt == nil {
		return
	}
	d := int(c.Queue.ExitedAt.Sub(*c.Queue.EnteredAt) / time.Second)
	if d < 0 {
		d = 0
	}
	c.Metrics.QueueDuration = d
}
