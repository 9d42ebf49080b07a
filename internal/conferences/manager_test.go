package conferences

import (
	"context"
	"errors"
	"testing"
	"time"

	"callcenter/internal/calls"
	"callcenter/internal/telephony"
)

type stubLinker struct {
	calls  map[string]calls.Call
	linked map[string]string
}

func (s *stubLinker) LinkConference(_ context.Context, callSID, conferenceSID string) (calls.Call, error) {
	c, ok := s.calls[callSID]
	if !ok {
		return calls.Call{}, calls.ErrCallNotFound
	}
	s.linked[callSID] = conferenceSID
	c.ConferenceSID = conferenceSID
	return c, nil
}

type confFixture struct {
	mgr      *Manager
	store    *MemoryRepo
	provider *telephony.FakeProvider
	linker   *stubLinker
	now      time.Time
}

func newConfFixture(t *testing.T) *confFixture {
	t.Helper()
	f := &confFixture{
		store:    NewMemoryRepo(),
		provider: telephony.NewFakeProvider(),
		linker: &stubLinker{
			calls: map[string]calls.Call{
				"CA-customer": {CallSID: "CA-customer", Direction: calls.DirectionInbound, From: "+233201234567", AgentID: "agent-1"},
			},
			linked: map[string]string{},
		},
		now: time.Unix(1700000000, 0).UTC(),
	}
	f.mgr = NewManager(f.store, f.provider, f.linker)
	f.mgr.clock = func() time.Time { return f.now }
	return f
}

func (f *confFixture) join(t *testing.T, conf, callSID string) Conference {
	t.Helper()
	c, err := f.mgr.HandleEvent(context.Background(), Event{ConferenceSID: conf, FriendlyName: "room", Kind: EventParticipantJoin, CallSID: callSID})
	if err != nil {
		t.Fatalf("join %s: %v", callSID, err)
	}
	return c
}

func TestJoin_CreatesConferenceAndLinksCall(t *testing.T) {
	f := newConfFixture(t)
	c := f.join(t, "CF1", "CA-customer")
	c = f.join(t, "CF1", "CA-agent")

	if c.Status != StatusInProgress || !c.StartTime.Equal(f.now) {
		t.Fatalf("unexpected conference %+v", c)
	}
	if len(c.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(c.Participants))
	}
	cust, agent := c.Participants[0], c.Participants[1]
	if cust.Role != RoleCustomer || cust.PhoneNumber != "+233201234567" || cust.AgentID != "agent-1" {
		t.Fatalf("unexpected customer participant %+v", cust)
	}
	if agent.Role != RoleAgent || agent.Status != ParticipantJoined {
		t.Fatalf("unexpected agent participant %+v", agent)
	}
	if f.linker.linked["CA-customer"] != "CF1" {
		t.Fatalf("call not linked: %v", f.linker.linked)
	}
}

func TestAct_KickMarksLeftAndClosesEmptyConference(t *testing.T) {
	f := newConfFixture(t)
	ctx := context.Background()
	f.join(t, "CF1", "CA-customer")
	f.join(t, "CF1", "CA-agent")

	f.now = f.now.Add(30 * time.Second)
	c, err := f.mgr.Act(ctx, "CF1", "kick", "CA-customer")
	if err != nil {
		t.Fatalf("kick: %v", err)
	}
	p := c.Participants[0]
	if p.Status != ParticipantLeft || p.LeftAt == nil || !p.LeftAt.Equal(f.now) {
		t.Fatalf("expected left with leftAt, got %+v", p)
	}
	if c.Status != StatusInProgress {
		t.Fatalf("conference closed with an active participant")
	}
	if len(f.provider.Participants) != 1 || !f.provider.Participants[0].Removed {
		t.Fatalf("expected one remove request, got %+v", f.provider.Participants)
	}

	f.now = f.now.Add(15 * time.Second)
	c, err = f.mgr.Act(ctx, "CF1", "kick", "CA-agent")
	if err != nil {
		t.Fatalf("kick agent: %v", err)
	}
	if c.Status != StatusCompleted || c.EndTime == nil || c.Duration != 45 {
		t.Fatalf("expected completed after 45s, got %+v", c)
	}
}

func TestAct_InvalidActionMakesNoProviderCall(t *testing.T) {
	f := newConfFixture(t)
	_, err := f.mgr.Act(context.Background(), "CF-missing", "explode", "CA1")
	if !errors.Is(err, ErrInvalidConferenceAction) {
		t.Fatalf("expected ErrInvalidConferenceAction, got %v", err)
	}
	if f.provider.Calls() != 0 {
		t.Fatalf("expected 0 provider calls, got %d", f.provider.Calls())
	}
}

func TestAct_Lookups(t *testing.T) {
	f := newConfFixture(t)
	ctx := context.Background()
	if _, err := f.mgr.Act(ctx, "CF-missing", "mute", "CA1"); !errors.Is(err, ErrConferenceNotFound) {
		t.Fatalf("expected ErrConferenceNotFound, got %v", err)
	}
	f.join(t, "CF1", "CA-agent")
	if _, err := f.mgr.Act(ctx, "CF1", "mute", "CA-nobody"); !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
	if f.provider.Calls() != 0 {
		t.Fatalf("expected 0 provider calls, got %d", f.provider.Calls())
	}
}

func TestAct_MuteHoldRoundTrip(t *testing.T) {
	f := newConfFixture(t)
	ctx := context.Background()
	f.join(t, "CF1", "CA-agent")

	cases := []struct {
		action string
		want   ParticipantStatus
	}{
		{"mute", ParticipantMuted},
		{"unmute", ParticipantJoined},
		{"HOLD", ParticipantHeld},
		{"unhold", ParticipantJoined},
	}
	for _, tc := range cases {
		c, err := f.mgr.Act(ctx, "CF1", tc.action, "CA-agent")
		if err != nil {
			t.Fatalf("%s: %v", tc.action, err)
		}
		if got := c.Participants[0].Status; got != tc.want {
			t.Fatalf("%s: want %s, got %s", tc.action, tc.want, got)
		}
	}

	ops := f.provider.Participants
	if len(ops) != 4 {
		t.Fatalf("expected 4 provider updates, got %d", len(ops))
	}
	if ops[0].Update.Muted == nil || !*ops[0].Update.Muted || ops[0].Update.Hold != nil {
		t.Fatalf("mute sent wrong flags: %+v", ops[0].Update)
	}
	if ops[3].Update.Hold == nil || *ops[3].Update.Hold {
		t.Fatalf("unhold sent wrong flags: %+v", ops[3].Update)
	}
}

func TestAct_ProviderFailureLeavesRecordUntouched(t *testing.T) {
	f := newConfFixture(t)
	ctx := context.Background()
	f.join(t, "CF1", "CA-agent")
	f.provider.Err["UpdateParticipant"] = errors.New("boom")

	if _, err := f.mgr.Act(ctx, "CF1", "mute", "CA-agent"); err == nil {
		t.Fatalf("expected provider error")
	}
	c, _ := f.mgr.Get(ctx, "CF1")
	if c.Participants[0].Status != ParticipantJoined {
		t.Fatalf("status changed despite provider failure: %s", c.Participants[0].Status)
	}
}

func TestHandleEvent_LeaveAndEnd(t *testing.T) {
	f := newConfFixture(t)
	ctx := context.Background()
	f.join(t, "CF1", "CA-agent")

	c, err := f.mgr.HandleEvent(ctx, Event{ConferenceSID: "CF1", Kind: EventParticipantHold, CallSID: "CA-agent", Hold: true})
	if err != nil || c.Participants[0].Status != ParticipantHeld {
		t.Fatalf("hold event: %v %+v", err, c.Participants)
	}

	f.now = f.now.Add(10 * time.Second)
	c, err = f.mgr.HandleEvent(ctx, Event{ConferenceSID: "CF1", Kind: EventParticipantLeave, CallSID: "CA-agent"})
	if err != nil {
		t.Fatalf("leave: %v", err)
	}
	if c.Status != StatusCompleted || c.Duration != 10 {
		t.Fatalf("expected completed after last leave, got %+v", c)
	}

	// A late conference-end keeps the first end time.
	f.now = f.now.Add(5 * time.Second)
	c, err = f.mgr.HandleEvent(ctx, Event{ConferenceSID: "CF1", Kind: EventConferenceEnd})
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if c.Duration != 10 {
		t.Fatalf("duration rewritten by late end: %d", c.Duration)
	}
}

func TestHandleEvent_StartIsIdempotent(t *testing.T) {
	f := newConfFixture(t)
	ctx := context.Background()
	start := f.now
	if _, err := f.mgr.HandleEvent(ctx, Event{ConferenceSID: "CF1", Kind: EventConferenceStart}); err != nil {
		t.Fatal(err)
	}
	f.now = f.now.Add(time.Minute)
	c, err := f.mgr.HandleEvent(ctx, Event{ConferenceSID: "CF1", Kind: EventConferenceStart})
	if err != nil {
		t.Fatal(err)
	}
	if !c.StartTime.Equal(start) {
		t.Fatalf("start time moved: %v", c.StartTime)
	}
}
