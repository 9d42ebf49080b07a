package conferences

import (
	"context"
	"time"
)

// Store persists conferences. Each method is one atomic step.
type Store interface {
	// Open creates the conference if it does not exist and returns the stored row.
	Open(ctx context.Context, c Conference) (Conference, error)
	Get(ctx context.Context, conferenceSID string) (Conference, error)

	// AddParticipant inserts p, or marks an existing participant joined again.
	AddParticipant(ctx context.Context, conferenceSID string, p Participant) (Conference, error)
	// SetParticipantStatus writes status; leftAt is stored when status is left.
	SetParticipantStatus(ctx context.Context, conferenceSID, participantSID string, status ParticipantStatus, leftAt *time.Time) (Conference, error)

	// Close marks the conference completed at end. Closing a completed conference is a no-op.
	Close(ctx context.Context, conferenceSID string, end time.Time) (Conference, error)
	SetRecording(ctx context.Context, conferenceSID string, rec Recording) (Conference, error)
}
