package calls

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"callcenter/internal/apperr"
)

// MemoryRepo is an in-memory Store and CustomerStore for tests and local development.
type MemoryRepo struct {
	mu        sync.Mutex
	calls     map[string]Call
	customers map[string]Customer
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{calls: map[string]Call{}, customers: map[string]Customer{}}
}

func (r *MemoryRepo) Create(ctx context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calls[c.CallSID]; ok {
		return apperr.Duplicate("call_sid")
	}
	c.Tags = mergeTags(nil, c.Tags)
	if c.Notes == nil {
		c.Notes = []Note{}
	}
	c.recomputeQueueDuration()
	r.calls[c.CallSID] = cloneCall(c)
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, callSID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[callSID]
	if !ok {
		return Call{}, ErrCallNotFound
	}
	return cloneCall(c), nil
}

func (r *MemoryRepo) List(ctx context.Context, f Filter) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0)
	for _, c := range r.calls {
		if f.AgentID != "" && c.AgentID != f.AgentID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && c.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !c.CreatedAt.Before(f.To) {
			continue
		}
		out = append(out, cloneCall(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CallSID > out[j].CallSID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Offset >= len(out) {
		return []Call{}, nil
	}
	out = out[f.Offset:]
	if n := f.limit(); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (r *MemoryRepo) ChangeStatus(ctx context.Context, callSID string, ch StatusChange, now time.Time) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[callSID]
	if !ok {
		return Call{}, ErrCallNotFound
	}
	if !statusIn(c.Status, ch.From) {
		return Call{}, ErrStaleStatus
	}
	c.Status = ch.To
	if ch.CallDuration != nil {
		c.Metrics.CallDuration = *ch.CallDuration
	}
	if ch.AgentID != nil {
		c.AgentID = *ch.AgentID
	}
	if ch.TransferredFrom != nil {
		c.TransferredFrom = *ch.TransferredFrom
	}
	if ch.TransferredTo != nil {
		c.TransferredTo = *ch.TransferredTo
	}
	if ch.IncTransfers {
		c.Metrics.TransferCount++
	}
	if ch.HoldStartedAt != nil {
		t := *ch.HoldStartedAt
		c.Metrics.HoldStartedAt = &t
	}
	if ch.ClearHold {
		c.Metrics.HoldStartedAt = nil
		c.Metrics.HoldDuration += ch.AddHoldSeconds
	}
	c.UpdatedAt = now
	r.calls[callSID] = c
	return cloneCall(c), nil
}

func (r *MemoryRepo) SetRecording(ctx context.Context, callSID string, rec Recording, now time.Time) (Call, error) {
	return r.mutate(callSID, now, func(c *Call) {
		c.Recording = &rec
	})
}

func (r *MemoryRepo) UpdateQueue(ctx context.Context, callSID string, upd QueueUpdate, now time.Time) (Call, error) {
	return r.mutate(callSID, now, func(c *Call) {
		if c.Queue == nil {
			c.Queue = &Queue{}
		}
		if upd.Name != nil {
			c.Queue.Name = *upd.Name
		}
		if upd.EnteredAt != nil {
			t := *upd.EnteredAt
			c.Queue.EnteredAt = &t
		}
		if upd.ExitedAt != nil {
			t := *upd.ExitedAt
			c.Queue.ExitedAt = &t
		}
		if upd.Position != nil {
			c.Queue.Position = *upd.Position
		}
		c.recomputeQueueDuration()
	})
}

func (r *MemoryRepo) LinkConference(ctx context.Context, callSID, conferenceSID string, now time.Time) error {
	_, err := r.mutate(callSID, now, func(c *Call) {
		c.ConferenceSID = conferenceSID
	})
	return err
}

func (r *MemoryRepo) AddNote(ctx context.Context, callSID string, n Note, now time.Time) (Call, error) {
	return r.mutate(callSID, now, func(c *Call) {
		c.Notes = append(c.Notes, n)
	})
}

func (r *MemoryRepo) AddTags(ctx context.Context, callSID string, tags []string, now time.Time) (Call, error) {
	return r.mutate(callSID, now, func(c *Call) {
		c.Tags = mergeTags(c.Tags, tags)
	})
}

func (r *MemoryRepo) mutate(callSID string, now time.Time, fn func(c *Call)) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[callSID]
	if !ok {
		return Call{}, ErrCallNotFound
	}
	c = cloneCall(c)
	fn(&c)
	c.UpdatedAt = now
	r.calls[callSID] = c
	return cloneCall(c), nil
}

func (r *MemoryRepo) CreateCustomer(ctx context.Context, cu Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.customers {
		if existing.PhoneNumber == cu.PhoneNumber {
			return apperr.Duplicate("phone_number")
		}
	}
	cu.Tags = append([]string(nil), cu.Tags...)
	r.customers[cu.ID] = cu
	return nil
}

func (r *MemoryRepo) CustomerByPhone(ctx context.Context, phone string) (Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cu := range r.customers {
		if cu.PhoneNumber == phone {
			cu.Tags = append([]string(nil), cu.Tags...)
			return cu, nil
		}
	}
	return Customer{}, ErrCustomerNotFound
}

// mergeTags returns the sorted union of existing and add, trimmed and lowercased.
func mergeTags(existing, add []string) []string {
	set := make(map[string]struct{}, len(existing)+len(add))
	for _, list := range [][]string{existing, add} {
		for _, t := range list {
			t = strings.ToLower(strings.TrimSpace(t))
			if t != "" {
				set[t] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func cloneCall(c Call) Call {
	if c.Recording != nil {
		rec := *c.Recording
		c.Recording = &rec
	}
	if c.Queue != nil {
		q := *c.Queue
		if q.EnteredAt != nil {
			t := *q.EnteredAt
			q.EnteredAt = &t
		}
		if q.ExitedAt != nil {
			t := *q.ExitedAt
			q.ExitedAt = &t
		}
		c.Queue = &q
	}
	if c.Metrics.HoldStartedAt != nil {
		t := *c.Metrics.HoldStartedAt
		c.Metrics.HoldStartedAt = &t
	}
	c.Notes = append([]Note{}, c.Notes...)
	c.Tags = append([]string{}, c.Tags...)
	return c
}
