package audit

import (
	"context"
	"errors"
	"testing"

	"callcenter/internal/auth"
)

type failingRepo struct{}

func (failingRepo) Append(context.Context, Event) error           { return errors.New("disk full") }
func (failingRepo) List(context.Context, Filter) ([]Event, error) { return nil, nil }

func TestService_AppendRequiresType(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if err := svc.Append(context.Background(), Event{CallSID: "CA1"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestService_RecordCapturesActor(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	ctx := auth.WithIdentity(context.Background(), "agent-1", "supervisor")
	ctx = WithClientIP(ctx, "10.0.0.7")
	svc.Record(ctx, Event{Type: EventTypeHold, CallSID: "CA1", Action: "hold"})

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	e := evs[0]
	if e.ActorAgentID != "agent-1" || e.ActorRole != "supervisor" || e.IPAddress != "10.0.0.7" {
		t.Fatalf("actor not captured: %+v", e)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", e)
	}
}

func TestService_RecordSwallowsFailures(t *testing.T) {
	svc := NewService(failingRepo{})
	svc.Record(context.Background(), Event{Type: EventTypeEndCall})

	var nilSvc *Service
	nilSvc.Record(context.Background(), Event{Type: EventTypeEndCall})
}

func TestMemoryRepo_ListFiltersNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	for _, e := range []Event{
		{Type: EventTypeHold, CallSID: "CA1", Action: "hold"},
		{Type: EventTypeTransfer, CallSID: "CA2"},
		{Type: EventTypeHold, CallSID: "CA1", Action: "resume"},
	} {
		if err := svc.Append(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := svc.List(ctx, Filter{CallSID: "CA1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Action != "resume" || got[1].Action != "hold" {
		t.Fatalf("unexpected list %+v", got)
	}
	got, _ = svc.List(ctx, Filter{Type: EventTypeTransfer, Limit: 1})
	if len(got) != 1 || got[0].CallSID != "CA2" {
		t.Fatalf("unexpected type filter result %+v", got)
	}
}
