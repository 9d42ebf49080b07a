package calls

import (
	"context"
	"time"
)

// StatusChange is one conditional status write: it applies only while the call's
// status is one of From.
type StatusChange struct {
	From []Status
	To   Status

	CallDuration *int

	AgentID         *string
	TransferredFrom *string
	TransferredTo   *string
	IncTransfers    bool

	// HoldStartedAt starts a hold period. ClearHold ends it and adds AddHoldSeconds.
	HoldStartedAt  *time.Time
	ClearHold      bool
	AddHoldSeconds int
}

// QueueUpdate sets the non-nil queue fields. QueueDuration is recomputed by the store.
type QueueUpdate struct {
	Name      *string
	EnteredAt *time.Time
	ExitedAt  *time.Time
	Position  *int
}

type Filter struct {
	AgentID string
	Status  Status

	// From is inclusive, To exclusive. Zero means unbounded.
	From time.Time
	To   time.Time

	Limit  int
	Offset int
}

// Store persists calls. Each method is a single atomic write or read.
type Store interface {
	Create(ctx context.Context, c Call) error
	Get(ctx context.Context, callSID string) (Call, error)
	// List returns calls newest first.
	List(ctx context.Context, f Filter) ([]Call, error)

	// ChangeStatus returns ErrCallNotFound when the call is missing and ErrStaleStatus
	// when its status is not in ch.From.
	ChangeStatus(ctx context.Context, callSID string, ch StatusChange, now time.Time) (Call, error)

	SetRecording(ctx context.Context, callSID string, rec Recording, now time.Time) (Call, error)
	UpdateQueue(ctx context.Context, callSID string, upd QueueUpdate, now time.Time) (Call, error)
	LinkConference(ctx context.Context, callSID, conferenceSID string, now time.Time) error

	AddNote(ctx context.Context, callSID string, n Note, now time.Time) (Call, error)
	// AddTags merges tags into the call's tag set.
	AddTags(ctx context.Context, callSID string, tags []string, now time.Time) (Call, error)
}

type CustomerStore interface {
	CreateCustomer(ctx context.Context, c Customer) error
	CustomerByPhone(ctx context.Context, phone string) (Customer, error)
}

const defaultListLimit = 50
const maxListLimit = 500

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultListLimit
	case f.Limit > maxListLimit:
		return maxListLimit
	default:
		return f.Limit
	}
}

func statusIn(s Status, set []Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
