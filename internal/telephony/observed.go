package telephony

import "context"

// Observed wraps a Provider and reports the outcome of every operation to observe.
func Observed(p Provider, observe func(op string, err error)) Provider {
	if observe == nil {
		return p
	}
	return observed{p: p, observe: observe}
}

type observed struct {
	p       Provider
	observe func(op string, err error)
}

func (o observed) Name() string { return o.p.Name() }

func (o observed) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlacedCall, error) {
	out, err := o.p.PlaceCall(ctx, req)
	o.observe("PlaceCall", err)
	return out, err
}

func (o observed) UpdateCall(ctx context.Context, callSID, instructions string) error {
	err := o.p.UpdateCall(ctx, callSID, instructions)
	o.observe("UpdateCall", err)
	return err
}

func (o observed) EndCall(ctx context.Context, callSID string) error {
	err := o.p.EndCall(ctx, callSID)
	o.observe("EndCall", err)
	return err
}

func (o observed) UpdateParticipant(ctx context.Context, conferenceSID, participantSID string, upd ParticipantUpdate) error {
	err := o.p.UpdateParticipant(ctx, conferenceSID, participantSID, upd)
	o.observe("UpdateParticipant", err)
	return err
}

func (o observed) RemoveParticipant(ctx context.Context, conferenceSID, participantSID string) error {
	err := o.p.RemoveParticipant(ctx, conferenceSID, participantSID)
	o.observe("RemoveParticipant", err)
	return err
}

func (o observed) StartRecording(ctx context.Context, req StartRecordingRequest) (Recording, error) {
	out, err := o.p.StartRecording(ctx, req)
	o.observe("StartRecording", err)
	return out, err
}

func (o observed) ListRecordings(ctx context.Context, callSID string) ([]Recording, error) {
	out, err := o.p.ListRecordings(ctx, callSID)
	o.observe("ListRecordings", err)
	return out, err
}

func (o observed) UpdateRecording(ctx context.Context, callSID, recordingSID, status string) error {
	err := o.p.UpdateRecording(ctx, callSID, recordingSID, status)
	o.observe("UpdateRecording", err)
	return err
}
