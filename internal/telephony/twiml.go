package telephony

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/twilio/twilio-go/twiml"
)

// Control-instruction builder (TwiML).
// Build is pure: no I/O, no validation of phone numbers. Values are copied into the
// document as given.

var ErrInvalidIntent = errors.New("telephony: invalid intent")

type IntentKind string

const (
	IntentDirect   IntentKind = "direct"
	IntentIVR      IntentKind = "ivr"
	IntentQueue    IntentKind = "queue"
	IntentHold     IntentKind = "hold"
	IntentResume   IntentKind = "resume"
	IntentTransfer IntentKind = "transfer"

	// IntentAgent connects an inbound caller to an agent's client endpoint.
	IntentAgent IntentKind = "agent"
	// IntentQueueWait is served to callers waiting in a queue.
	IntentQueueWait IntentKind = "queue_wait"
	// IntentHangup says an optional message and ends the call.
	IntentHangup IntentKind = "hangup"
)

// Intent is what should happen to a call.
type Intent struct {
	Kind IntentKind

	Number    string
	QueueName string
	Extension string
	Position  int

	// Preamble is spoken before the main verbs when set.
	Preamble string
}

func Direct(number string) Intent {
	return Intent{Kind: IntentDirect, Number: number}
}

func IVR() Intent { return Intent{Kind: IntentIVR} }

func Queue(name string) Intent {
	return Intent{Kind: IntentQueue, QueueName: name}
}

func Hold() Intent { return Intent{Kind: IntentHold} }

func Resume() Intent { return Intent{Kind: IntentResume} }

// Transfer dials another agent's client endpoint from a live call.
func Transfer(extension string) Intent {
	return Intent{Kind: IntentTransfer, Extension: extension}
}

func ConnectAgent(extension string) Intent {
	return Intent{Kind: IntentAgent, Extension: extension}
}

func QueueWait(position int) Intent {
	return Intent{Kind: IntentQueueWait, Position: position}
}

func Hangup(message string) Intent {
	return Intent{Kind: IntentHangup, Preamble: message}
}

// Unavailable apologises and hangs up.
func Unavailable() Intent { return Hangup(msgUnavailable) }

// InstructionOptions is the context a document is built in: caller id, callback URLs,
// prompts and media.
type InstructionOptions struct {
	CallerID string
	Voice    string
	Language string

	IVRPrompt       string
	IVRActionURL    string
	GatherTimeout   int
	GatherNumDigits int

	WaitURL        string
	WorkflowSID    string
	QueueActionURL string
	WaitMusicURL   string

	HoldMusicURL string
	ResumeURL    string

	TransferActionURL   string
	TransferAnsweredURL string

	RecordingStatusCallbackURL string
}

const (
	msgConnecting    = "Please wait while we connect your call."
	msgTransferring  = "Please wait while we transfer your call."
	msgConnectAgent  = "Please wait while we connect you to an agent."
	defaultIVRPrompt = "Welcome to our call center. Press 1 for sales, 2 for support, or 3 for billing."
	msgUnavailable   = "We are unable to take your call right now. Please try again later."
)

// Build renders the control document for an intent.
func Build(in Intent, opts InstructionOptions) (string, error) {
	voice := opts.Voice
	if voice == "" {
		voice = "alice"
	}
	say := func(text string) *twiml.VoiceSay { return &twiml.VoiceSay{Voice: voice, Message: text} }

	var verbs []twiml.Element
	if in.Preamble != "" && in.Kind != IntentHangup {
		verbs = append(verbs, say(in.Preamble))
	}

	switch in.Kind {
	case IntentDirect:
		verbs = append(verbs,
			say(msgConnecting),
			&twiml.VoiceDial{
				CallerId:                opts.CallerID,
				AnswerOnBridge:          "true",
				Record:                  "record-from-answer",
				RecordingStatusCallback: opts.RecordingStatusCallbackURL,
				Number:                  in.Number,
			})
	case IntentIVR:
		prompt := opts.IVRPrompt
		if prompt == "" {
			prompt = defaultIVRPrompt
		}
		verbs = append(verbs, &twiml.VoiceGather{
			Input:     "dtmf speech",
			Timeout:   positive(opts.GatherTimeout),
			NumDigits: positive(opts.GatherNumDigits),
			Action:    opts.IVRActionURL,
			InnerElements: []twiml.Element{
				&twiml.VoiceSay{Voice: voice, Language: opts.Language, Message: prompt},
			},
		})
	case IntentQueue:
		verbs = append(verbs, &twiml.VoiceEnqueue{
			WaitUrl:     opts.WaitURL,
			WorkflowSid: opts.WorkflowSID,
			Action:      opts.QueueActionURL,
			Name:        in.QueueName,
		})
	case IntentQueueWait:
		if in.Position > 0 {
			verbs = append(verbs, say("You are caller number "+strconv.Itoa(in.Position)+" in the queue."))
		}
		verbs = append(verbs, &twiml.VoicePlay{Loop: "0", Url: opts.WaitMusicURL})
	case IntentHold:
		verbs = append(verbs, &twiml.VoicePlay{Loop: "0", Url: opts.HoldMusicURL})
	case IntentResume:
		verbs = append(verbs, &twiml.VoiceRedirect{Method: "POST", Url: opts.ResumeURL})
	case IntentTransfer:
		target := &twiml.VoiceClient{Identity: in.Extension}
		if opts.TransferAnsweredURL != "" {
			target.StatusCallback = opts.TransferAnsweredURL
			target.StatusCallbackEvent = "answered"
			target.StatusCallbackMethod = "POST"
		}
		verbs = append(verbs,
			say(msgTransferring),
			&twiml.VoiceDial{
				CallerId:      opts.CallerID,
				Action:        opts.TransferActionURL,
				InnerElements: []twiml.Element{target},
			})
	case IntentAgent:
		verbs = append(verbs,
			say(msgConnectAgent),
			&twiml.VoiceDial{
				CallerId:       opts.CallerID,
				AnswerOnBridge: "true",
				InnerElements:  []twiml.Element{&twiml.VoiceClient{Identity: in.Extension}},
			})
	case IntentHangup:
		if in.Preamble != "" {
			verbs = append(verbs, say(in.Preamble))
		}
		verbs = append(verbs, &twiml.VoiceHangup{})
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidIntent, in.Kind)
	}

	return twiml.Voice(verbs)
}

// EmptyResponse is the acknowledgement returned for every status callback.
func EmptyResponse() string {
	s, err := twiml.Voice(nil)
	if err != nil {
		return `<?xml version="1.0" encoding="UTF-8"?><Response/>`
	}
	return s
}

// positive renders n as an attribute value; zero leaves the attribute out.
func positive(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}
