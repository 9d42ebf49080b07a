package telephony

import (
	"context"
)

// Provider is the call-control capability of the telephony platform.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Adapters never touch local records; callers persist only after a method returns nil.
// - Keep request/response types provider-agnostic.
type Provider interface {
	Name() string

	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlacedCall, error)
	// UpdateCall replaces the control instructions of a live call.
	UpdateCall(ctx context.Context, callSID, instructions string) error
	EndCall(ctx context.Context, callSID string) error

	UpdateParticipant(ctx context.Context, conferenceSID, participantSID string, upd ParticipantUpdate) error
	RemoveParticipant(ctx context.Context, conferenceSID, participantSID string) error

	StartRecording(ctx context.Context, req StartRecordingRequest) (Recording, error)
	ListRecordings(ctx context.Context, callSID string) ([]Recording, error)
	UpdateRecording(ctx context.Context, callSID, recordingSID, status string) error
}

// PlaceCallRequest describes an outbound call.
type PlaceCallRequest struct {
	// To and From are E.164.
	To   string `json:"to"`
	From string `json:"from"`

	// Instructions is an inline control document (TwiML).
	Instructions string `json:"instructions"`

	StatusCallbackURL    string   `json:"status_callback_url,omitempty"`
	StatusCallbackEvents []string `json:"status_callback_events,omitempty"`

	RecordingStatusCallbackURL string `json:"recording_status_callback_url,omitempty"`
}

// DefaultStatusCallbackEvents is the event set subscribed for every placed call.
var DefaultStatusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

// PlacedCall is the provider's confirmation of a placed call.
type PlacedCall struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// ParticipantUpdate carries the participant flags to change. Nil fields are left untouched.
type ParticipantUpdate struct {
	Muted *bool `json:"muted,omitempty"`
	Hold  *bool `json:"hold,omitempty"`
}

type StartRecordingRequest struct {
	CallSID           string `json:"call_sid"`
	StatusCallbackURL string `json:"status_callback_url,omitempty"`
}

// Recording is a provider-side recording of a call.
type Recording struct {
	SID      string `json:"sid"`
	CallSID  string `json:"call_sid"`
	Status   string `json:"status"`
	Duration int    `json:"duration"`
}

// Recording status values understood by the provider.
const (
	RecordingStatusInProgress = "in-progress"
	RecordingStatusPaused     = "paused"
	RecordingStatusStopped    = "stopped"

	// CurrentRecording addresses the active recording of a call without knowing its SID.
	CurrentRecording = "Twilio.CURRENT"
)

func BoolPtr(b bool) *bool { return &b }
