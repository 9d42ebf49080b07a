package calls

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"callcenter/internal/agents"
	"callcenter/pkg/logger"
)

// BusyAgents lists agents currently marked busy.
type BusyAgents interface {
	Busy(ctx context.Context) ([]agents.Agent, error)
	Get(ctx context.Context, id string) (agents.Agent, error)
}

// Sweeper repairs agent availability drift: an agent left busy on a call that is
// terminal, missing, or owned by someone else (a release lost to a crash or an
// error between the call write and the agent write).
type Sweeper struct {
	store   Store
	agents  BusyAgents
	tracker AgentTracker

	// OnRepair is called once per agent freed (metrics hook).
	OnRepair func()
}

func NewSweeper(store Store, dir BusyAgents, tracker AgentTracker) *Sweeper {
	return &Sweeper{store: store, agents: dir, tracker: tracker}
}

// Sweep checks every busy agent and returns how many were freed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	busy, err := s.agents.Busy(ctx)
	if err != nil {
		return 0, err
	}
	repaired := 0
	for _, a := range busy {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}
		ok, err := s.repair(ctx, a)
		if err != nil {
			logger.From(ctx).Warn("sweep agent failed", slog.String("agent_id", a.ID), slog.Any("err", err))
			continue
		}
		if ok {
			repaired++
		}
	}
	return repaired, nil
}

// RepairAgent runs the same check for one agent, used when an operator reads it.
func (s *Sweeper) RepairAgent(ctx context.Context, agentID string) (bool, error) {
	a, err := s.agents.Get(ctx, agentID)
	if err != nil {
		return false, err
	}
	return s.repair(ctx, a)
}

func (s *Sweeper) repair(ctx context.Context, a agents.Agent) (bool, error) {
	if a.CurrentCallSID == "" {
		return false, nil
	}
	c, err := s.store.Get(ctx, a.CurrentCallSID)
	switch {
	case errors.Is(err, ErrCallNotFound):
	case err != nil:
		return false, err
	case c.Status.IsTerminal():
	case c.AgentID != a.ID:
	default:
		return false, nil
	}

	released, err := s.tracker.Release(ctx, a.ID, a.CurrentCallSID)
	if err != nil {
		return false, err
	}
	if released {
		logger.From(ctx).Info("freed stale busy agent",
			slog.String("agent_id", a.ID), slog.String("call_sid", a.CurrentCallSID))
		if s.OnRepair != nil {
			s.OnRepair()
		}
	}
	return released, nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Sweep(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.From(ctx).Warn("sweep failed", slog.Any("err", err))
				continue
			}
			if n > 0 {
				logger.From(ctx).Info("sweep repaired agents", slog.Int("count", n))
			}
		}
	}
}
