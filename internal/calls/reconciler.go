package calls

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"callcenter/internal/events"
	"callcenter/pkg/logger"
)

// IgnoreUnknownCall is reported when a callback names a call we never recorded.
const IgnoreUnknownCall = "unknown_call"

// IgnoreNotTransferring is reported when a transfer result arrives for a call that is
// no longer transferring.
const IgnoreNotTransferring = "not_transferring"

const maxReconcileAttempts = 3

// StatusEvent is one provider status callback.
type StatusEvent struct {
	CallSID      string
	Status       string
	CallDuration *int
}

// Reconciler applies asynchronous provider status callbacks to stored calls.
// Callbacks may arrive late, twice, or out of order; Transition decides, and the store's
// conditional write makes the decision stick only if nothing changed in between.
type Reconciler struct {
	store   Store
	tracker AgentTracker
	events  EventSink
	clock   func() time.Time

	// Metrics hooks.
	OnTransition func(from, to Status)
	OnIgnored    func(reason string)
}

func NewReconciler(store Store, tracker AgentTracker, sink EventSink) *Reconciler {
	return &Reconciler{store: store, tracker: tracker, events: sink, clock: time.Now}
}

// HandleStatusCallback applies a call-status callback.
func (r *Reconciler) HandleStatusCallback(ctx context.Context, ev StatusEvent) (Outcome, error) {
	reported, ok := NormalizeStatus(ev.Status)
	if !ok {
		r.ignored(ctx, ev.CallSID, IgnoreUnknown)
		return Outcome{Reason: IgnoreUnknown}, nil
	}
	return r.apply(ctx, ev.CallSID, reported, ev.CallDuration, nil)
}

// HandleTransferResult applies the outcome of a transfer leg. An answered transfer hands
// the call to the target agent; an unanswered one ends the call (it is not reverted).
// When the answered event already handed the call over, the result is ignored.
func (r *Reconciler) HandleTransferResult(ctx context.Context, callSID, dialStatus string) (Outcome, error) {
	reported := StatusCompleted
	switch dialStatus {
	case "answered", "completed", "in-progress":
		reported = StatusInProgress
	}
	only := []Status{StatusTransferring}
	return r.apply(ctx, callSID, reported, nil, only)
}

// HandleTransferAnswered hands a transferring call to its target agent as soon as the
// transfer leg picks up. parentCallSID is the transferred call, not the new leg.
func (r *Reconciler) HandleTransferAnswered(ctx context.Context, parentCallSID, legStatus string) (Outcome, error) {
	if s, ok := NormalizeStatus(legStatus); !ok || s != StatusInProgress {
		r.ignored(ctx, parentCallSID, IgnoreUnknown)
		return Outcome{Reason: IgnoreUnknown}, nil
	}
	return r.apply(ctx, parentCallSID, StatusInProgress, nil, []Status{StatusTransferring})
}

func (r *Reconciler) apply(ctx context.Context, callSID string, reported Status, duration *int, only []Status) (Outcome, error) {
	log := logger.ForCall(ctx, callSID).With(slog.String("reported", string(reported)))

	for attempt := 0; attempt < maxReconcileAttempts; attempt++ {
		c, err := r.store.Get(ctx, callSID)
		if errors.Is(err, ErrCallNotFound) {
			log.Info("status callback for unknown call")
			r.ignored(ctx, callSID, IgnoreUnknownCall)
			return Outcome{Reason: IgnoreUnknownCall}, nil
		}
		if err != nil {
			return Outcome{}, err
		}
		if only != nil && !statusIn(c.Status, only) {
			r.ignored(ctx, callSID, IgnoreNotTransferring)
			return Outcome{Next: c.Status, Reason: IgnoreNotTransferring}, nil
		}

		out := Transition(c.Status, reported)
		if !out.Apply {
			r.ignored(ctx, callSID, out.Reason)
			return out, nil
		}

		now := r.now()
		ch := StatusChange{From: []Status{c.Status}, To: out.Next, CallDuration: duration}
		if c.Status == StatusOnHold {
			ch.ClearHold = true
			ch.AddHoldSeconds = heldFor(c, now)
		}
		if out.TransferAccepted && c.TransferredTo != "" {
			target := c.TransferredTo
			ch.AgentID = &target
		}

		updated, err := r.store.ChangeStatus(ctx, callSID, ch, now)
		if errors.Is(err, ErrStaleStatus) {
			log.Debug("call changed while reconciling; retrying", slog.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return Outcome{}, err
		}

		r.published(ctx, c.Status, updated)
		switch {
		case out.Terminal:
			r.applyTerminal(ctx, updated)
		case out.TransferAccepted:
			r.handOver(ctx, c.AgentID, updated)
		}
		return out, nil
	}

	log.Warn("status callback not applied after retries")
	return Outcome{Reason: IgnoreStale}, ErrStaleStatus
}

// applyTerminal runs after the terminal call write has committed: free the owning agent,
// but only if that agent still holds this call.
func (r *Reconciler) applyTerminal(ctx context.Context, c Call) {
	if c.AgentID == "" {
		return
	}
	if _, err := r.tracker.Release(ctx, c.AgentID, c.CallSID); err != nil {
		// The sweeper frees the agent later.
		logger.From(ctx).Error("release agent after terminal call failed",
			slog.String("call_sid", c.CallSID), slog.String("agent_id", c.AgentID), slog.Any("err", err))
	}
}

// handOver moves agent ownership after an accepted transfer.
func (r *Reconciler) handOver(ctx context.Context, previous string, c Call) {
	if previous == c.AgentID {
		return
	}
	log := logger.ForCall(ctx, c.CallSID)
	if previous != "" {
		if _, err := r.tracker.Release(ctx, previous, c.CallSID); err != nil {
			log.Error("release transferring agent failed", slog.String("agent_id", previous), slog.Any("err", err))
		}
	}
	if c.AgentID != "" {
		if _, err := r.tracker.SetBusy(ctx, c.AgentID, c.CallSID); err != nil {
			log.Warn("claim transfer target failed", slog.String("agent_id", c.AgentID), slog.Any("err", err))
		}
	}
}

func (r *Reconciler) published(ctx context.Context, previous Status, c Call) {
	if previous != "" && r.OnTransition != nil {
		r.OnTransition(previous, c.Status)
	}
	if r.events == nil {
		return
	}
	r.events.CallStatus(ctx, events.CallStatus{
		CallSID:  c.CallSID,
		Status:   string(c.Status),
		Previous: string(previous),
		AgentID:  c.AgentID,
		Duration: c.Metrics.CallDuration,
		At:       c.UpdatedAt,
	})
}

func (r *Reconciler) ignored(ctx context.Context, callSID, reason string) {
	logger.From(ctx).Debug("status callback ignored", slog.String("call_sid", callSID), slog.String("reason", reason))
	if r.OnIgnored != nil {
		r.OnIgnored(reason)
	}
}

func (r *Reconciler) now() time.Time { return r.clock().UTC() }
