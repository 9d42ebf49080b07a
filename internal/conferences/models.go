package conferences

import "time"

// Conference is a provider conference room and its participants.
//
// Duration is derived: floor(EndTime-StartTime) in seconds, recomputed whenever EndTime is written.
type Conference struct {
	ConferenceSID string `json:"conference_sid" db:"conference_sid"`
	FriendlyName  string `json:"friendly_name" db:"friendly_name"`
	Status        Status `json:"status" db:"status"`

	// Participants keep join order.
	Participants []Participant `json:"participants"`

	Recording *Recording `json:"recording,omitempty"`

	StartTime time.Time  `json:"start_time" db:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" db:"end_time"`
	Duration  int        `json:"duration" db:"duration"`
}

type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

type Role string

const (
	RoleAgent    Role = "agent"
	RoleCustomer Role = "customer"
)

type ParticipantStatus string

const (
	ParticipantJoined ParticipantStatus = "joined"
	ParticipantLeft   ParticipantStatus = "left"
	ParticipantMuted  ParticipantStatus = "muted"
	ParticipantHeld   ParticipantStatus = "held"
)

// Active reports whether the participant is still in the room.
func (s ParticipantStatus) Active() bool { return s != ParticipantLeft }

// Participant is keyed by the SID of its call leg.
type Participant struct {
	SID         string            `json:"sid"`
	Role        Role              `json:"role"`
	AgentID     string            `json:"agent_id,omitempty"`
	PhoneNumber string            `json:"phone_number,omitempty"`
	Status      ParticipantStatus `json:"status"`
	JoinedAt    time.Time         `json:"joined_at"`
	LeftAt      *time.Time        `json:"left_at,omitempty"`
}

type Recording struct {
	SID      string `json:"sid"`
	URL      string `json:"url,omitempty"`
	Duration int    `json:"duration"`
}

func (c Conference) participant(sid string) (Participant, bool) {
	for _, p := range c.Participants {
		if p.SID == sid {
			return p, true
		}
	}
	return Participant{}, false
}

func (c Conference) activeCount() int {
	n := 0
	for _, p := range c.Participants {
		if p.Status.Active() {
			n++
		}
	}
	return n
}

func durationBetween(start, end time.Time) int {
	d := int(end.Sub(start) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}
