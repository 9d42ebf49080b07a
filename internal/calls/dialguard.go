package calls

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"callcenter/internal/agents"
	"callcenter/pkg/logger"
	"callcenter/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// DialGuard serializes outbound dials per agent so two concurrent initiates for the
// same agent cannot both reach the provider.
type DialGuard interface {
	// Acquire returns agents.ErrAgentBusy when another dial for agentID is in flight.
	Acquire(ctx context.Context, agentID string) (release func(), err error)
}

// RedisDialGuard shares the guard across API replicas.
type RedisDialGuard struct {
	rdb    redis.Scripter
	prefix string
	ttl    time.Duration
}

func NewRedisDialGuard(rdb redis.Scripter, prefix string, ttl time.Duration) *RedisDialGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisDialGuard{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (g *RedisDialGuard) Acquire(ctx context.Context, agentID string) (func(), error) {
	key := fmt.Sprintf("%s:dial:%s", g.prefix, agentID)
	ok, err := utils.AcquireConcurrencyCap(ctx, g.rdb, key, 1, g.ttl)
	if err != nil {
		return nil, fmt.Errorf("dial guard: %w", err)
	}
	if !ok {
		return nil, agents.ErrAgentBusy
	}
	return func() {
		// Detached: the request context may already be canceled.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := utils.ReleaseConcurrencyCap(rctx, g.rdb, key); err != nil {
			logger.From(ctx).Warn("dial guard release failed", slog.String("agent_id", agentID), slog.Any("err", err))
		}
	}, nil
}

// LocalDialGuard is the single-process guard used when Redis is not configured.
type LocalDialGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewLocalDialGuard() *LocalDialGuard {
	return &LocalDialGuard{inFlight: map[string]struct{}{}}
}

func (g *LocalDialGuard) Acquire(ctx context.Context, agentID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.inFlight[agentID]; ok {
		return nil, agents.ErrAgentBusy
	}
	g.inFlight[agentID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, agentID)
			g.mu.Unlock()
		})
	}, nil
}
