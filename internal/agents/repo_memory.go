package agents

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"callcenter/internal/apperr"
)

// MemoryRepo is an in-memory Store for tests and local development.
// The mutex makes every method one atomic step, like a conditional UPDATE.
type MemoryRepo struct {
	mu     sync.Mutex
	agents map[string]Agent
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{agents: map[string]Agent{}} }

func (r *MemoryRepo) Create(ctx context.Context, a Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.agents {
		if strings.EqualFold(existing.Email, a.Email) {
			return apperr.Duplicate("email")
		}
		if existing.Extension == a.Extension {
			return apperr.Duplicate("extension")
		}
	}
	if _, ok := r.agents[a.ID]; ok {
		return apperr.Duplicate("id")
	}
	r.agents[a.ID] = clone(a)
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return Agent{}, ErrAgentNotFound
	}
	return clone(a), nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.agents {
		if strings.EqualFold(a.Email, email) {
			return clone(a), nil
		}
	}
	return Agent{}, ErrAgentNotFound
}

func (r *MemoryRepo) GetByExtension(ctx context.Context, extension string) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.agents {
		if a.Extension == extension {
			return clone(a), nil
		}
	}
	return Agent{}, ErrAgentNotFound
}

func (r *MemoryRepo) ClaimCall(ctx context.Context, id, callSID string, now time.Time) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return Agent{}, ErrAgentNotFound
	}
	if a.CurrentCallSID != "" && a.CurrentCallSID != callSID {
		return Agent{}, ErrAgentBusy
	}
	a.Status = StatusBusy
	a.CurrentCallSID = callSID
	a.LastStatusChange = now
	a.UpdatedAt = now
	r.agents[id] = a
	return clone(a), nil
}

func (r *MemoryRepo) ReleaseCall(ctx context.Context, id, callSID string, now time.Time) (Agent, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return Agent{}, false, ErrAgentNotFound
	}
	if a.CurrentCallSID != callSID {
		return clone(a), false, nil
	}
	a.Status = StatusAvailable
	a.CurrentCallSID = ""
	a.LastStatusChange = now
	a.UpdatedAt = now
	r.agents[id] = a
	return clone(a), true, nil
}

func (r *MemoryRepo) SetStatus(ctx context.Context, id string, status Status, now time.Time) (Agent, error) {
	if status != StatusAvailable && status != StatusOffline {
		return Agent{}, ErrInvalidStatus
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return Agent{}, ErrAgentNotFound
	}
	a.Status = status
	a.CurrentCallSID = ""
	a.LastStatusChange = now
	a.UpdatedAt = now
	r.agents[id] = a
	return clone(a), nil
}

func (r *MemoryRepo) ListByStatus(ctx context.Context, status Status) ([]Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Agent, 0)
	for _, a := range r.agents {
		if a.Status == status {
			out = append(out, clone(a))
		}
	}
	// Longest-idle first, the same order the Postgres query returns.
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastStatusChange.Equal(out[j].LastStatusChange) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastStatusChange.Before(out[j].LastStatusChange)
	})
	return out, nil
}

func clone(a Agent) Agent {
	if a.Skills != nil {
		a.Skills = append([]string(nil), a.Skills...)
	}
	return a
}
