package agents

import "time"

// Agent is a human operator who takes and places calls.
//
// Invariant: CurrentCallSID is set iff Status is busy. Only the Tracker writes
// Status and CurrentCallSID, and it always writes them together.
type Agent struct {
	ID           string `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`

	// Extension is unique and doubles as the agent's Twilio Client identity.
	Extension string `json:"extension" db:"extension"`

	Status         Status `json:"status" db:"status"`
	CurrentCallSID string `json:"current_call_sid,omitempty" db:"current_call_sid"`

	Skills []string `json:"skills" db:"skills"`
	Role   string   `json:"role" db:"role"`

	LastStatusChange time.Time `json:"last_status_change" db:"last_status_change"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusOffline   Status = "offline"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusBusy, StatusOffline:
		return true
	default:
		return false
	}
}

// HasSkill reports whether the agent lists skill.
func (a Agent) HasSkill(skill string) bool {
	for _, s := range a.Skills {
		if s == skill {
			return true
		}
	}
	return false
}
