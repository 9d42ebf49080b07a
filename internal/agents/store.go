package agents

import (
	"context"
	"time"
)

// Store is the persistence contract for agents.
//
// Every method that touches Status/CurrentCallSID is a single conditional write.
// No read-modify-write across round trips.
type Store interface {
	Create(ctx context.Context, a Agent) error
	GetByID(ctx context.Context, id string) (Agent, error)
	GetByEmail(ctx context.Context, email string) (Agent, error)
	GetByExtension(ctx context.Context, extension string) (Agent, error)

	// ClaimCall marks the agent busy on callSID unless it already holds a different call.
	// Returns ErrAgentBusy when it does, ErrAgentNotFound when the agent is missing.
	ClaimCall(ctx context.Context, id, callSID string, now time.Time) (Agent, error)

	// ReleaseCall frees the agent only while it still holds callSID.
	// released is false when the agent holds another call or none.
	ReleaseCall(ctx context.Context, id, callSID string, now time.Time) (a Agent, released bool, err error)

	// SetStatus writes available or offline and clears the current call in the same write.
	SetStatus(ctx context.Context, id string, status Status, now time.Time) (Agent, error)

	ListByStatus(ctx context.Context, status Status) ([]Agent, error)
}
