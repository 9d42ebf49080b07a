package calls

import (
	"context"
	"errors"
	"testing"
	"time"

	"callcenter/internal/apperr"
)

func TestMemoryRepoChangeStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	if err := repo.Create(ctx, Call{CallSID: "CA1", Status: StatusQueued, CreatedAt: now}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, Call{CallSID: "CA1"}); apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	if _, err := repo.ChangeStatus(ctx, "CA1", StatusChange{From: []Status{StatusRinging}, To: StatusInProgress}, now); !errors.Is(err, ErrStaleStatus) {
		t.Fatalf("expected ErrStaleStatus, got %v", err)
	}
	if _, err := repo.ChangeStatus(ctx, "CA2", StatusChange{From: []Status{StatusQueued}, To: StatusRinging}, now); !errors.Is(err, ErrCallNotFound) {
		t.Fatalf("expected ErrCallNotFound, got %v", err)
	}
	c, err := repo.ChangeStatus(ctx, "CA1", StatusChange{From: []Status{StatusQueued}, To: StatusRinging}, now)
	if err != nil || c.Status != StatusRinging {
		t.Fatalf("change: %+v %v", c, err)
	}
}

func TestMemoryRepoListFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	base := time.Unix(1700000000, 0).UTC()
	for i, a := range []string{"a1", "a2", "a1"} {
		err := repo.Create(ctx, Call{
			CallSID:   "CA" + string(rune('1'+i)),
			AgentID:   a,
			Status:    StatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, _ := repo.List(ctx, Filter{AgentID: "a1"})
	if len(got) != 2 || got[0].CallSID != "CA3" || got[1].CallSID != "CA1" {
		t.Fatalf("expected newest first for a1, got %+v", got)
	}
	got, _ = repo.List(ctx, Filter{From: base.Add(30 * time.Second), To: base.Add(2 * time.Minute)})
	if len(got) != 1 || got[0].CallSID != "CA2" {
		t.Fatalf("expected only CA2 in range, got %+v", got)
	}
	got, _ = repo.List(ctx, Filter{Limit: 1, Offset: 1})
	if len(got) != 1 || got[0].CallSID != "CA2" {
		t.Fatalf("expected paging to return CA2, got %+v", got)
	}
}

func TestMemoryRepoReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	_ = repo.Create(ctx, Call{CallSID: "CA1", Status: StatusQueued, Tags: []string{"a"}, CreatedAt: now})

	c, _ := repo.Get(ctx, "CA1")
	c.Tags[0] = "mutated"
	again, _ := repo.Get(ctx, "CA1")
	if again.Tags[0] != "a" {
		t.Fatalf("store leaked internal slice")
	}
}
