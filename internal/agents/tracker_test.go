package agents

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"callcenter/internal/events"
)

type recordingSink struct {
	mu     sync.Mutex
	events []events.AgentStatus
}

func (s *recordingSink) AgentStatus(_ context.Context, e events.AgentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func seedAgent(t *testing.T, repo *MemoryRepo, id string, status Status) {
	t.Helper()
	now := time.Unix(1700000000, 0).UTC()
	err := repo.Create(context.Background(), Agent{
		ID:               id,
		Name:             id,
		Email:            id + "@example.com",
		Extension:        "ext-" + id,
		Status:           status,
		Role:             "agent",
		LastStatusChange: now,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func newTestTracker(repo *MemoryRepo, sink EventSink) *Tracker {
	tr := NewTracker(repo, sink)
	tr.clock = func() time.Time { return time.Unix(1700000100, 0) }
	return tr
}

func assertConsistent(t *testing.T, a Agent) {
	t.Helper()
	if (a.Status == StatusBusy) != (a.CurrentCallSID != "") {
		t.Fatalf("busy/current call mismatch: status=%s current=%q", a.Status, a.CurrentCallSID)
	}
}

func TestTrackerSetBusyAndRelease(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	seedAgent(t, repo, "a1", StatusAvailable)
	sink := &recordingSink{}
	tr := newTestTracker(repo, sink)

	a, err := tr.SetBusy(ctx, "a1", "CA1")
	if err != nil {
		t.Fatalf("set busy: %v", err)
	}
	assertConsistent(t, a)
	if a.Status != StatusBusy || a.CurrentCallSID != "CA1" {
		t.Fatalf("unexpected agent %+v", a)
	}

	// Claiming the same call again is idempotent.
	if _, err := tr.SetBusy(ctx, "a1", "CA1"); err != nil {
		t.Fatalf("re-claim: %v", err)
	}

	if _, err := tr.SetBusy(ctx, "a1", "CA2"); !errors.Is(err, ErrAgentBusy) {
		t.Fatalf("expected ErrAgentBusy, got %v", err)
	}

	released, err := tr.Release(ctx, "a1", "CA1")
	if err != nil || !released {
		t.Fatalf("release: released=%v err=%v", released, err)
	}
	got, _ := repo.GetByID(ctx, "a1")
	assertConsistent(t, got)
	if got.Status != StatusAvailable {
		t.Fatalf("expected available, got %s", got.Status)
	}

	if len(sink.events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(sink.events))
	}
	last := sink.events[len(sink.events)-1]
	if last.AgentID != "a1" || last.Status != "available" || last.CurrentCallSID != "" {
		t.Fatalf("unexpected last event %+v", last)
	}
}

func TestTrackerReleaseIgnoresStaleCall(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	seedAgent(t, repo, "a1", StatusAvailable)
	tr := newTestTracker(repo, nil)

	if _, err := tr.SetBusy(ctx, "a1", "CA-new"); err != nil {
		t.Fatalf("set busy: %v", err)
	}
	released, err := tr.Release(ctx, "a1", "CA-old")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released {
		t.Fatalf("stale release must not free the agent")
	}
	got, _ := repo.GetByID(ctx, "a1")
	if got.Status != StatusBusy || got.CurrentCallSID != "CA-new" {
		t.Fatalf("agent changed by stale release: %+v", got)
	}
}

func TestTrackerSetBusyUnknownAgent(t *testing.T) {
	tr := newTestTracker(NewMemoryRepo(), nil)
	if _, err := tr.SetBusy(context.Background(), "missing", "CA1"); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestTrackerConcurrentClaimsOneWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	seedAgent(t, repo, "a1", StatusAvailable)
	tr := newTestTracker(repo, nil)

	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sid := "CA" + string(rune('a'+i))
			if _, err := tr.SetBusy(ctx, "a1", sid); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	got, _ := repo.GetByID(ctx, "a1")
	assertConsistent(t, got)
}

func TestTrackerSetOfflineClearsCall(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	seedAgent(t, repo, "a1", StatusAvailable)
	tr := newTestTracker(repo, nil)

	if _, err := tr.SetBusy(ctx, "a1", "CA1"); err != nil {
		t.Fatalf("set busy: %v", err)
	}
	a, err := tr.SetOffline(ctx, "a1")
	if err != nil {
		t.Fatalf("offline: %v", err)
	}
	assertConsistent(t, a)
	if a.Status != StatusOffline || a.CurrentCallSID != "" {
		t.Fatalf("unexpected agent %+v", a)
	}
}
