package telephony

import (
	"context"
	"errors"
	"strconv"

	"callcenter/internal/apperr"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// twilioAPI is the subset of the Twilio REST API used by the adapter.
type twilioAPI interface {
	CreateCall(params *twilioapi.CreateCallParams) (*twilioapi.ApiV2010Call, error)
	UpdateCall(sid string, params *twilioapi.UpdateCallParams) (*twilioapi.ApiV2010Call, error)
	UpdateParticipant(conferenceSid, callSid string, params *twilioapi.UpdateParticipantParams) (*twilioapi.ApiV2010Participant, error)
	DeleteParticipant(conferenceSid, callSid string, params *twilioapi.DeleteParticipantParams) error
	CreateCallRecording(callSid string, params *twilioapi.CreateCallRecordingParams) (*twilioapi.ApiV2010CallRecording, error)
	ListCallRecording(callSid string, params *twilioapi.ListCallRecordingParams) ([]twilioapi.ApiV2010CallRecording, error)
	UpdateCallRecording(callSid, sid string, params *twilioapi.UpdateCallRecordingParams) (*twilioapi.ApiV2010CallRecording, error)
}

// TwilioProvider implements Provider on top of the Twilio REST API.
// The SDK calls are not context-aware; timeouts come from the SDK's HTTP client.
type TwilioProvider struct {
	api twilioAPI
}

func NewTwilioProvider(accountSID, authToken string) *TwilioProvider {
	c := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioProvider{api: c.Api}
}

func (p *TwilioProvider) Name() string { return "twilio" }

func (p *TwilioProvider) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlacedCall, error) {
	params := &twilioapi.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(req.From)
	params.SetTwiml(req.Instructions)
	if req.StatusCallbackURL != "" {
		events := req.StatusCallbackEvents
		if len(events) == 0 {
			events = DefaultStatusCallbackEvents
		}
		params.SetStatusCallback(req.StatusCallbackURL)
		params.SetStatusCallbackEvent(events)
		params.SetStatusCallbackMethod("POST")
	}
	if req.RecordingStatusCallbackURL != "" {
		params.SetRecordingStatusCallback(req.RecordingStatusCallbackURL)
		params.SetRecordingStatusCallbackMethod("POST")
		params.SetTrim("trim-silence")
	}

	resp, err := p.api.CreateCall(params)
	if err != nil {
		return PlacedCall{}, providerError(err)
	}
	out := PlacedCall{SID: deref(resp.Sid)}
	if resp.Status != nil {
		out.Status = *resp.Status
	}
	if out.SID == "" {
		return PlacedCall{}, apperr.Provider("Error communicating with Twilio", 0, errors.New("telephony: call created without sid"))
	}
	return out, nil
}

func (p *TwilioProvider) UpdateCall(ctx context.Context, callSID, instructions string) error {
	params := &twilioapi.UpdateCallParams{}
	params.SetTwiml(instructions)
	if _, err := p.api.UpdateCall(callSID, params); err != nil {
		return providerError(err)
	}
	return nil
}

func (p *TwilioProvider) EndCall(ctx context.Context, callSID string) error {
	params := &twilioapi.UpdateCallParams{}
	params.SetStatus("completed")
	if _, err := p.api.UpdateCall(callSID, params); err != nil {
		return providerError(err)
	}
	return nil
}

func (p *TwilioProvider) UpdateParticipant(ctx context.Context, conferenceSID, participantSID string, upd ParticipantUpdate) error {
	params := &twilioapi.UpdateParticipantParams{}
	if upd.Muted != nil {
		params.SetMuted(*upd.Muted)
	}
	if upd.Hold != nil {
		params.SetHold(*upd.Hold)
	}
	if _, err := p.api.UpdateParticipant(conferenceSID, participantSID, params); err != nil {
		return providerError(err)
	}
	return nil
}

func (p *TwilioProvider) RemoveParticipant(ctx context.Context, conferenceSID, participantSID string) error {
	if err := p.api.DeleteParticipant(conferenceSID, participantSID, &twilioapi.DeleteParticipantParams{}); err != nil {
		return providerError(err)
	}
	return nil
}

func (p *TwilioProvider) StartRecording(ctx context.Context, req StartRecordingRequest) (Recording, error) {
	params := &twilioapi.CreateCallRecordingParams{}
	if req.StatusCallbackURL != "" {
		params.SetRecordingStatusCallback(req.StatusCallbackURL)
	}
	resp, err := p.api.CreateCallRecording(req.CallSID, params)
	if err != nil {
		return Recording{}, providerError(err)
	}
	return toRecording(*resp), nil
}

func (p *TwilioProvider) ListRecordings(ctx context.Context, callSID string) ([]Recording, error) {
	params := &twilioapi.ListCallRecordingParams{}
	params.SetLimit(20)
	rows, err := p.api.ListCallRecording(callSID, params)
	if err != nil {
		return nil, providerError(err)
	}
	out := make([]Recording, 0, len(rows))
	for _, r := range rows {
		out = append(out, toRecording(r))
	}
	return out, nil
}

func (p *TwilioProvider) UpdateRecording(ctx context.Context, callSID, recordingSID, status string) error {
	params := &twilioapi.UpdateCallRecordingParams{}
	params.SetStatus(status)
	if _, err := p.api.UpdateCallRecording(callSID, recordingSID, params); err != nil {
		return providerError(err)
	}
	return nil
}

// providerError keeps Twilio's own error code so the API can surface it.
func providerError(err error) error {
	var rest *client.TwilioRestError
	if errors.As(err, &rest) {
		return apperr.Provider(rest.Message, rest.Code, err)
	}
	return apperr.Provider("Error communicating with Twilio", 0, err)
}

func toRecording(r twilioapi.ApiV2010CallRecording) Recording {
	out := Recording{
		SID:     deref(r.Sid),
		CallSID: deref(r.CallSid),
	}
	if r.Status != nil {
		out.Status = *r.Status
	}
	if d, err := strconv.Atoi(deref(r.Duration)); err == nil {
		out.Duration = d
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
