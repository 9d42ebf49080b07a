package audit

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory append-only repository for tests and local development.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// List returns matching events, newest first.
func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0)
	for i := len(r.events) - 1; i >= 0 && len(out) < f.limit(); i-- {
		e := r.events[i]
		if f.CallSID != "" && e.CallSID != f.CallSID {
			continue
		}
		if f.ConferenceSID != "" && e.ConferenceSID != f.ConferenceSID {
			continue
		}
		if f.ActorAgentID != "" && e.ActorAgentID != f.ActorAgentID {
			continue
		}
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
