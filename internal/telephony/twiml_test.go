package telephony

import (
	"errors"
	"testing"
)

var testOpts = InstructionOptions{
	CallerID:          "+15550001111",
	Language:          "en-US",
	IVRActionURL:      "https://cc.example.com/webhooks/twilio/ivr",
	GatherTimeout:     3,
	GatherNumDigits:   1,
	WaitURL:           "https://cc.example.com/webhooks/twilio/queue-wait",
	WorkflowSID:       "WW123",
	HoldMusicURL:      "https://cdn.example.com/hold.mp3",
	ResumeURL:         "https://cc.example.com/webhooks/twilio/resume",
	TransferActionURL: "https://cc.example.com/webhooks/twilio/transfer-complete",
}

func TestBuildDirect(t *testing.T) {
	xml, err := Build(Direct("+233201234567"), testOpts)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{
		`<Say voice="alice">Please wait while we connect your call.</Say>`,
		`callerId="+15550001111"`,
		`answerOnBridge="true"`,
		`record="record-from-answer"`,
		`+233201234567</Dial>`,
	} {
		if !contains(xml, want) {
			t.Fatalf("expected %q in xml: %s", want, xml)
		}
	}
}

func TestBuildIVR(t *testing.T) {
	xml, err := Build(IVR(), testOpts)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{
		`<Gather `,
		`input="dtmf speech"`,
		`timeout="3"`,
		`numDigits="1"`,
		`action="https://cc.example.com/webhooks/twilio/ivr"`,
		`language="en-US"`,
		"Press 1 for sales, 2 for support, or 3 for billing.",
	} {
		if !contains(xml, want) {
			t.Fatalf("expected %q in xml: %s", want, xml)
		}
	}
}

func TestBuildQueue(t *testing.T) {
	xml, err := Build(Queue("support"), testOpts)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !contains(xml, `workflowSid="WW123"`) || !contains(xml, ">support</Enqueue>") {
		t.Fatalf("unexpected queue xml: %s", xml)
	}
}

func TestBuildHoldAndResume(t *testing.T) {
	hold, err := Build(Hold(), testOpts)
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if !contains(hold, `<Play loop="0">https://cdn.example.com/hold.mp3</Play>`) {
		t.Fatalf("unexpected hold xml: %s", hold)
	}

	resume, err := Build(Resume(), testOpts)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !contains(resume, ">https://cc.example.com/webhooks/twilio/resume</Redirect>") {
		t.Fatalf("unexpected resume xml: %s", resume)
	}
}

func TestBuildTransfer(t *testing.T) {
	xml, err := Build(Transfer("1002"), testOpts)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !contains(xml, "Please wait while we transfer your call.") {
		t.Fatalf("expected transfer prompt: %s", xml)
	}
	if !contains(xml, "<Client>1002</Client>") {
		t.Fatalf("expected client dial: %s", xml)
	}
	if !contains(xml, `action="https://cc.example.com/webhooks/twilio/transfer-complete"`) {
		t.Fatalf("expected transfer action url: %s", xml)
	}
	if indexOf(xml, "<Say") > indexOf(xml, "<Dial") {
		t.Fatalf("expected Say before Dial: %s", xml)
	}
}

func TestBuildIVRNestsPromptInGather(t *testing.T) {
	xml, err := Build(IVR(), InstructionOptions{IVRPrompt: "Press 9"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	g, say, end := indexOf(xml, "<Gather"), indexOf(xml, ">Press 9</Say>"), indexOf(xml, "</Gather>")
	if g < 0 || !(g < say && say < end) {
		t.Fatalf("expected prompt inside Gather: %s", xml)
	}
	// Unset timeout and digit count are left to the provider defaults.
	if contains(xml, "timeout=") || contains(xml, "numDigits=") {
		t.Fatalf("expected no zero-valued gather attributes: %s", xml)
	}
}

func TestBuildTransferReportsAnsweredLeg(t *testing.T) {
	opts := testOpts
	opts.TransferAnsweredURL = "https://cc.example.com/webhooks/twilio/transfer-answered"
	xml, err := Build(Transfer("1002"), opts)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{
		`statusCallback="https://cc.example.com/webhooks/twilio/transfer-answered"`,
		`statusCallbackEvent="answered"`,
		`statusCallbackMethod="POST"`,
		`>1002</Client>`,
	} {
		if !contains(xml, want) {
			t.Fatalf("expected %q in xml: %s", want, xml)
		}
	}

	plain, err := Build(Transfer("1002"), testOpts)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if contains(plain, "statusCallback") {
		t.Fatalf("expected no leg callback without a URL: %s", plain)
	}
}

func TestBuildPassesValuesThrough(t *testing.T) {
	// No number validation at this layer.
	xml, err := Build(Direct("not-a-number"), InstructionOptions{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !contains(xml, "not-a-number</Dial>") {
		t.Fatalf("expected raw number in xml: %s", xml)
	}
}

func TestBuildRejectsUnknownIntent(t *testing.T) {
	_, err := Build(Intent{Kind: "voice"}, testOpts)
	if !errors.Is(err, ErrInvalidIntent) {
		t.Fatalf("expected ErrInvalidIntent, got %v", err)
	}
}

func TestEmptyResponse(t *testing.T) {
	xml := EmptyResponse()
	if !contains(xml, "<Response/>") {
		t.Fatalf("unexpected ack: %s", xml)
	}
	if !contains(xml, `<?xml version="1.0"`) {
		t.Fatalf("expected xml header: %s", xml)
	}
}

func TestBuildHangupWithMessage(t *testing.T) {
	xml, err := Build(Hangup("Goodbye"), testOpts)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if indexOf(xml, "Goodbye") < 0 || indexOf(xml, "<Hangup/>") < 0 {
		t.Fatalf("unexpected hangup xml: %s", xml)
	}
}

func contains(s, sub string) bool {
	return len(sub) == 0 || (len(s) >= len(sub) && (func() bool { return indexOf(s, sub) >= 0 })())
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
