package agents

import (
	"context"
	"log/slog"
	"time"

	"callcenter/internal/events"
	"callcenter/pkg/logger"
)

// EventSink receives committed agent status changes.
// *events.Notifier satisfies it; nil disables publishing.
type EventSink interface {
	AgentStatus(ctx context.Context, e events.AgentStatus)
}

// Tracker is the only writer of Agent.Status and Agent.CurrentCallSID.
// Each method is one conditional store write; the store serializes concurrent callers.
type Tracker struct {
	store  Store
	events EventSink
	clock  func() time.Time

	// OnRelease is called each time an agent is actually freed (metrics hook).
	OnRelease func()
}

func NewTracker(store Store, sink EventSink) *Tracker {
	return &Tracker{store: store, events: sink, clock: time.Now}
}

// SetBusy assigns callSID to the agent. Re-claiming the same call is a no-op success.
func (t *Tracker) SetBusy(ctx context.Context, agentID, callSID string) (Agent, error) {
	a, err := t.store.ClaimCall(ctx, agentID, callSID, t.now())
	if err != nil {
		return Agent{}, err
	}
	t.publish(ctx, a)
	return a, nil
}

// SetAvailable frees the agent regardless of which call it holds.
func (t *Tracker) SetAvailable(ctx context.Context, agentID string) (Agent, error) {
	return t.setStatus(ctx, agentID, StatusAvailable)
}

func (t *Tracker) SetOffline(ctx context.Context, agentID string) (Agent, error) {
	return t.setStatus(ctx, agentID, StatusOffline)
}

// Release frees the agent only while it still owns callSID, so a late event
// for an older call cannot free an agent that moved on to a newer one.
func (t *Tracker) Release(ctx context.Context, agentID, callSID string) (bool, error) {
	if agentID == "" || callSID == "" {
		return false, nil
	}
	a, released, err := t.store.ReleaseCall(ctx, agentID, callSID, t.now())
	if err != nil {
		return false, err
	}
	if !released {
		logger.From(ctx).Debug("agent release skipped",
			slog.String("agent_id", agentID),
			slog.String("call_sid", callSID),
			slog.String("current_call_sid", a.CurrentCallSID),
		)
		return false, nil
	}
	if t.OnRelease != nil {
		t.OnRelease()
	}
	t.publish(ctx, a)
	return true, nil
}

func (t *Tracker) setStatus(ctx context.Context, agentID string, status Status) (Agent, error) {
	a, err := t.store.SetStatus(ctx, agentID, status, t.now())
	if err != nil {
		return Agent{}, err
	}
	t.publish(ctx, a)
	return a, nil
}

func (t *Tracker) publish(ctx context.Context, a Agent) {
	if t.events == nil {
		return
	}
	t.events.AgentStatus(ctx, events.AgentStatus{
		AgentID:        a.ID,
		Status:         string(a.Status),
		CurrentCallSID: a.CurrentCallSID,
		At:             a.LastStatusChange,
	})
}

func (t *Tracker) now() time.Time { return t.clock().UTC() }
