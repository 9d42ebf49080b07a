package telephony

import (
	"context"
	"fmt"
	"sync"
)

// FakeProvider is an in-memory Provider for tests and local development.
// It records every request and never touches the network.
type FakeProvider struct {
	mu sync.Mutex

	// Err, when set for an operation name ("PlaceCall", "UpdateCall", ...), is returned
	// instead of performing it.
	Err map[string]error

	Placed       []PlaceCallRequest
	Updated      []CallUpdate
	Ended        []string
	Participants []ParticipantOp
	Recordings   map[string][]Recording

	seq int
	ops int
}

type CallUpdate struct {
	CallSID      string
	Instructions string
}

type ParticipantOp struct {
	ConferenceSID  string
	ParticipantSID string
	Update         ParticipantUpdate
	Removed        bool
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{Err: map[string]error{}, Recordings: map[string][]Recording{}}
}

func (f *FakeProvider) Name() string { return "fake" }

// Calls returns how many provider operations were issued, failed ones included.
func (f *FakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ops
}

func (f *FakeProvider) fail(op string) error {
	f.ops++
	if f.Err == nil {
		return nil
	}
	return f.Err[op]
}

func (f *FakeProvider) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlacedCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("PlaceCall"); err != nil {
		return PlacedCall{}, err
	}
	f.seq++
	f.Placed = append(f.Placed, req)
	return PlacedCall{SID: fmt.Sprintf("CA%032d", f.seq), Status: "queued"}, nil
}

func (f *FakeProvider) UpdateCall(ctx context.Context, callSID, instructions string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UpdateCall"); err != nil {
		return err
	}
	f.Updated = append(f.Updated, CallUpdate{CallSID: callSID, Instructions: instructions})
	return nil
}

func (f *FakeProvider) EndCall(ctx context.Context, callSID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("EndCall"); err != nil {
		return err
	}
	f.Ended = append(f.Ended, callSID)
	return nil
}

func (f *FakeProvider) UpdateParticipant(ctx context.Context, conferenceSID, participantSID string, upd ParticipantUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UpdateParticipant"); err != nil {
		return err
	}
	f.Participants = append(f.Participants, ParticipantOp{ConferenceSID: conferenceSID, ParticipantSID: participantSID, Update: upd})
	return nil
}

func (f *FakeProvider) RemoveParticipant(ctx context.Context, conferenceSID, participantSID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("RemoveParticipant"); err != nil {
		return err
	}
	f.Participants = append(f.Participants, ParticipantOp{ConferenceSID: conferenceSID, ParticipantSID: participantSID, Removed: true})
	return nil
}

func (f *FakeProvider) StartRecording(ctx context.Context, req StartRecordingRequest) (Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("StartRecording"); err != nil {
		return Recording{}, err
	}
	f.seq++
	rec := Recording{SID: fmt.Sprintf("RE%032d", f.seq), CallSID: req.CallSID, Status: RecordingStatusInProgress}
	f.Recordings[req.CallSID] = append(f.Recordings[req.CallSID], rec)
	return rec, nil
}

func (f *FakeProvider) ListRecordings(ctx context.Context, callSID string) ([]Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("ListRecordings"); err != nil {
		return nil, err
	}
	out := make([]Recording, len(f.Recordings[callSID]))
	copy(out, f.Recordings[callSID])
	return out, nil
}

func (f *FakeProvider) UpdateRecording(ctx context.Context, callSID, recordingSID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("UpdateRecording"); err != nil {
		return err
	}
	recs := f.Recordings[callSID]
	for i := len(recs) - 1; i >= 0; i-- {
		if recordingSID == CurrentRecording || recs[i].SID == recordingSID {
			recs[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("fake: recording %s not found", recordingSID)
}
