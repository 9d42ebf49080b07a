package conferences

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Store for tests and local development.
type MemoryRepo struct {
	mu    sync.Mutex
	confs map[string]Conference
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{confs: map[string]Conference{}} }

func (r *MemoryRepo) Open(ctx context.Context, c Conference) (Conference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.confs[c.ConferenceSID]; ok {
		return clone(existing), nil
	}
	if c.Status == "" {
		c.Status = StatusInProgress
	}
	if c.Participants == nil {
		c.Participants = []Participant{}
	}
	r.confs[c.ConferenceSID] = clone(c)
	return clone(c), nil
}

func (r *MemoryRepo) Get(ctx context.Context, conferenceSID string) (Conference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.confs[conferenceSID]
	if !ok {
		return Conference{}, ErrConferenceNotFound
	}
	return clone(c), nil
}

func (r *MemoryRepo) AddParticipant(ctx context.Context, conferenceSID string, p Participant) (Conference, error) {
	return r.mutate(conferenceSID, func(c *Conference) error {
		for i := range c.Participants {
			if c.Participants[i].SID == p.SID {
				c.Participants[i].Status = ParticipantJoined
				c.Participants[i].LeftAt = nil
				return nil
			}
		}
		if p.Status == "" {
			p.Status = ParticipantJoined
		}
		c.Participants = append(c.Participants, p)
		return nil
	})
}

func (r *MemoryRepo) SetParticipantStatus(ctx context.Context, conferenceSID, participantSID string, status ParticipantStatus, leftAt *time.Time) (Conference, error) {
	return r.mutate(conferenceSID, func(c *Conference) error {
		for i := range c.Participants {
			if c.Participants[i].SID != participantSID {
				continue
			}
			c.Participants[i].Status = status
			if status == ParticipantLeft && leftAt != nil {
				t := *leftAt
				c.Participants[i].LeftAt = &t
			}
			return nil
		}
		return ErrParticipantNotFound
	})
}

func (r *MemoryRepo) Close(ctx context.Context, conferenceSID string, end time.Time) (Conference, error) {
	return r.mutate(conferenceSID, func(c *Conference) error {
		if c.Status == StatusCompleted {
			return nil
		}
		c.Status = StatusCompleted
		c.EndTime = &end
		c.Duration = durationBetween(c.StartTime, end)
		return nil
	})
}

func (r *MemoryRepo) SetRecording(ctx context.Context, conferenceSID string, rec Recording) (Conference, error) {
	return r.mutate(conferenceSID, func(c *Conference) error {
		c.Recording = &rec
		return nil
	})
}

func (r *MemoryRepo) mutate(conferenceSID string, fn func(c *Conference) error) (Conference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.confs[conferenceSID]
	if !ok {
		return Conference{}, ErrConferenceNotFound
	}
	c = clone(c)
	if err := fn(&c); err != nil {
		return Conference{}, err
	}
	r.confs[conferenceSID] = c
	return clone(c), nil
}

func clone(c Conference) Conference {
	ps := make([]Participant, len(c.Participants))
	for i, p := range c.Participants {
		if p.LeftAt != nil {
			t := *p.LeftAt
			p.LeftAt = &t
		}
		ps[i] = p
	}
	c.Participants = ps
	if c.EndTime != nil {
		t := *c.EndTime
		c.EndTime = &t
	}
	if c.Recording != nil {
		rec := *c.Recording
		c.Recording = &rec
	}
	return c
}
