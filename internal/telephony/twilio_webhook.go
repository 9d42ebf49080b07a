package telephony

import (
	"net/http"
	"strconv"
	"strings"
)

// Twilio webhook forms.
// Twilio sends application/x-www-form-urlencoded by default.
// Ref: https://www.twilio.com/docs/voice/twiml
//
// Parsing only. What to do with an event is decided by the callers.

// InboundCallForm is posted to the voice URL when a call reaches one of our numbers.
type InboundCallForm struct {
	CallSid       string
	AccountSid    string
	From          string
	To            string
	Direction     string
	CallStatus    string
	CallerName    string
	FromCity      string
	FromState     string
	FromCountry   string
	ForwardedFrom string
}

func ParseInboundCall(r *http.Request) (InboundCallForm, error) {
	if err := r.ParseForm(); err != nil {
		return InboundCallForm{}, err
	}
	return InboundCallForm{
		CallSid:       r.PostFormValue("CallSid"),
		AccountSid:    r.PostFormValue("AccountSid"),
		From:          normalizePhone(r.PostFormValue("From")),
		To:            normalizePhone(r.PostFormValue("To")),
		Direction:     r.PostFormValue("Direction"),
		CallStatus:    r.PostFormValue("CallStatus"),
		CallerName:    r.PostFormValue("CallerName"),
		FromCity:      r.PostFormValue("FromCity"),
		FromState:     r.PostFormValue("FromState"),
		FromCountry:   r.PostFormValue("FromCountry"),
		ForwardedFrom: normalizePhone(r.PostFormValue("ForwardedFrom")),
	}, nil
}

// CallStatusForm is the call progress callback (statusCallback).
type CallStatusForm struct {
	CallSid       string
	ParentCallSid string
	CallStatus    string
	From          string
	To            string
	Direction     string

	// CallDuration is only sent with the completed event.
	CallDuration *int

	SequenceNumber int
	Timestamp      string
}

func ParseCallStatus(r *http.Request) (CallStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return CallStatusForm{}, err
	}
	seq, _ := strconv.Atoi(r.PostFormValue("SequenceNumber"))
	return CallStatusForm{
		CallSid:        r.PostFormValue("CallSid"),
		ParentCallSid:  r.PostFormValue("ParentCallSid"),
		CallStatus:     r.PostFormValue("CallStatus"),
		From:           normalizePhone(r.PostFormValue("From")),
		To:             normalizePhone(r.PostFormValue("To")),
		Direction:      r.PostFormValue("Direction"),
		CallDuration:   optionalInt(r.PostFormValue("CallDuration")),
		SequenceNumber: seq,
		Timestamp:      r.PostFormValue("Timestamp"),
	}, nil
}

// RecordingStatusForm is the recordingStatusCallback payload.
type RecordingStatusForm struct {
	CallSid           string
	RecordingSid      string
	RecordingStatus   string
	RecordingURL      string
	RecordingDuration *int
}

func ParseRecordingStatus(r *http.Request) (RecordingStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return RecordingStatusForm{}, err
	}
	return RecordingStatusForm{
		CallSid:           r.PostFormValue("CallSid"),
		RecordingSid:      r.PostFormValue("RecordingSid"),
		RecordingStatus:   r.PostFormValue("RecordingStatus"),
		RecordingURL:      r.PostFormValue("RecordingUrl"),
		RecordingDuration: optionalInt(r.PostFormValue("RecordingDuration")),
	}, nil
}

// DialActionForm is posted to a Dial's action URL when the dialed leg ends.
type DialActionForm struct {
	CallSid          string
	DialCallSid      string
	DialCallStatus   string
	DialCallDuration *int
}

func ParseDialAction(r *http.Request) (DialActionForm, error) {
	if err := r.ParseForm(); err != nil {
		return DialActionForm{}, err
	}
	return DialActionForm{
		CallSid:          r.PostFormValue("CallSid"),
		DialCallSid:      r.PostFormValue("DialCallSid"),
		DialCallStatus:   strings.ToLower(strings.TrimSpace(r.PostFormValue("DialCallStatus"))),
		DialCallDuration: optionalInt(r.PostFormValue("DialCallDuration")),
	}, nil
}

// GatherForm is posted to a Gather's action URL.
type GatherForm struct {
	CallSid      string
	Digits       string
	SpeechResult string
}

func ParseGather(r *http.Request) (GatherForm, error) {
	if err := r.ParseForm(); err != nil {
		return GatherForm{}, err
	}
	return GatherForm{
		CallSid:      r.PostFormValue("CallSid"),
		Digits:       strings.TrimSpace(r.PostFormValue("Digits")),
		SpeechResult: strings.TrimSpace(r.PostFormValue("SpeechResult")),
	}, nil
}

// QueueForm covers both the Enqueue action callback (QueueResult set) and the
// waitUrl request (QueuePosition set).
type QueueForm struct {
	CallSid          string
	QueueSid         string
	QueueResult      string
	QueueTime        int
	QueuePosition    int
	CurrentQueueSize int
}

func ParseQueue(r *http.Request) (QueueForm, error) {
	if err := r.ParseForm(); err != nil {
		return QueueForm{}, err
	}
	qt, _ := strconv.Atoi(r.PostFormValue("QueueTime"))
	pos, _ := strconv.Atoi(r.PostFormValue("QueuePosition"))
	size, _ := strconv.Atoi(r.PostFormValue("CurrentQueueSize"))
	return QueueForm{
		CallSid:          r.PostFormValue("CallSid"),
		QueueSid:         r.PostFormValue("QueueSid"),
		QueueResult:      r.PostFormValue("QueueResult"),
		QueueTime:        qt,
		QueuePosition:    pos,
		CurrentQueueSize: size,
	}, nil
}

// ConferenceEventForm is the conference statusCallback payload.
type ConferenceEventForm struct {
	ConferenceSid       string
	FriendlyName        string
	StatusCallbackEvent string
	CallSid             string
	Muted               bool
	Hold                bool
}

func ParseConferenceEvent(r *http.Request) (ConferenceEventForm, error) {
	if err := r.ParseForm(); err != nil {
		return ConferenceEventForm{}, err
	}
	return ConferenceEventForm{
		ConferenceSid:       r.PostFormValue("ConferenceSid"),
		FriendlyName:        r.PostFormValue("FriendlyName"),
		StatusCallbackEvent: r.PostFormValue("StatusCallbackEvent"),
		CallSid:             r.PostFormValue("CallSid"),
		Muted:               r.PostFormValue("Muted") == "true",
		Hold:                r.PostFormValue("Hold") == "true",
	}, nil
}

func normalizePhone(s string) string {
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return strings.TrimSpace(s)
}

func optionalInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
