package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNotifier_Topics(t *testing.T) {
	pub := NewMockPublisher()
	n := NewNotifier(pub, "callcenter/")

	at := time.Unix(1700000000, 0).UTC()
	n.CallStatus(context.Background(), CallStatus{CallSID: "CA1", Status: "completed", Duration: 42, At: at})
	n.AgentStatus(context.Background(), AgentStatus{AgentID: "a1", Status: "available", At: at})

	msgs := pub.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Topic != "callcenter/calls/CA1/status" {
		t.Fatalf("unexpected topic %q", msgs[0].Topic)
	}
	if msgs[1].Topic != "callcenter/agents/a1/status" {
		t.Fatalf("unexpected topic %q", msgs[1].Topic)
	}

	var got CallStatus
	if err := json.Unmarshal(msgs[0].Payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.Status != "completed" || got.Duration != 42 {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestNotifier_FailureIsSwallowedAndCounted(t *testing.T) {
	pub := NewMockPublisher()
	pub.SetError(errors.New("broker down"))

	failures := 0
	n := NewNotifier(pub, "")
	n.OnFailure = func() { failures++ }

	n.AgentStatus(context.Background(), AgentStatus{AgentID: "a1", Status: "busy"})
	if failures != 1 {
		t.Fatalf("expected 1 failure, got %d", failures)
	}
}

func TestNotifier_NilIsNoop(t *testing.T) {
	var n *Notifier
	n.CallStatus(context.Background(), CallStatus{CallSID: "CA1"})
}
