package telephony

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func formRequest(path, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestParseInboundCall(t *testing.T) {
	r := formRequest("/webhooks/twilio/voice", "CallSid=CA123&From=%2B15551234567&To=%2B15557654321&Direction=inbound")

	form, err := ParseInboundCall(r)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if form.CallSid != "CA123" {
		t.Fatalf("expected CallSid")
	}
	if form.From != "+15551234567" || form.To != "+15557654321" {
		t.Fatalf("unexpected from/to: %q %q", form.From, form.To)
	}
	if form.Direction != "inbound" {
		t.Fatalf("unexpected direction %q", form.Direction)
	}
}

func TestParseCallStatus_DurationOptional(t *testing.T) {
	form, err := ParseCallStatus(formRequest("/webhooks/twilio/call-status", "CallSid=CA1&CallStatus=ringing&SequenceNumber=1"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if form.CallDuration != nil {
		t.Fatalf("expected no duration, got %d", *form.CallDuration)
	}
	if form.SequenceNumber != 1 {
		t.Fatalf("expected sequence 1, got %d", form.SequenceNumber)
	}

	form, err = ParseCallStatus(formRequest("/webhooks/twilio/call-status", "CallSid=CA1&CallStatus=completed&CallDuration=42"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if form.CallDuration == nil || *form.CallDuration != 42 {
		t.Fatalf("expected duration 42")
	}
}

func TestParseRecordingStatus(t *testing.T) {
	form, err := ParseRecordingStatus(formRequest("/webhooks/twilio/recording-status",
		"CallSid=CA1&RecordingSid=RE1&RecordingStatus=completed&RecordingUrl=https%3A%2F%2Fapi.twilio.com%2Frec%2FRE1&RecordingDuration=30"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if form.RecordingSid != "RE1" || form.RecordingStatus != "completed" {
		t.Fatalf("unexpected form: %+v", form)
	}
	if form.RecordingURL != "https://api.twilio.com/rec/RE1" {
		t.Fatalf("unexpected url %q", form.RecordingURL)
	}
	if form.RecordingDuration == nil || *form.RecordingDuration != 30 {
		t.Fatalf("expected duration 30")
	}
}

func TestParseDialAction_LowercasesStatus(t *testing.T) {
	form, err := ParseDialAction(formRequest("/webhooks/twilio/transfer-complete", "CallSid=CA1&DialCallStatus=No-Answer"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if form.DialCallStatus != "no-answer" {
		t.Fatalf("unexpected dial status %q", form.DialCallStatus)
	}
}

func TestParseQueueAndConference(t *testing.T) {
	q, err := ParseQueue(formRequest("/webhooks/twilio/queue-wait", "CallSid=CA1&QueuePosition=3&QueueTime=12"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if q.QueuePosition != 3 || q.QueueTime != 12 {
		t.Fatalf("unexpected queue form: %+v", q)
	}

	c, err := ParseConferenceEvent(formRequest("/webhooks/twilio/conference-status", "ConferenceSid=CF1&StatusCallbackEvent=participant-join&CallSid=CA2&Muted=true"))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.ConferenceSid != "CF1" || c.StatusCallbackEvent != "participant-join" || !c.Muted || c.Hold {
		t.Fatalf("unexpected conference form: %+v", c)
	}
}
