package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"callcenter/internal/auth"
	"callcenter/pkg/logger"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. It is append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
	List(ctx context.Context, f Filter) ([]Event, error)
}

// Service records operator actions.
//
// Audit is internal-only and best-effort: Record never fails the caller's request.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Record appends e with the actor taken from the request context. Failures are
// logged, not returned.
func (s *Service) Record(ctx context.Context, e Event) {
	if s == nil {
		return
	}
	if e.ActorAgentID == "" {
		e.ActorAgentID, _ = auth.AgentID(ctx)
	}
	if e.ActorRole == "" {
		e.ActorRole, _ = auth.Role(ctx)
	}
	if e.IPAddress == "" {
		e.IPAddress = ClientIPFromContext(ctx)
	}
	if err := s.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("audit append failed", slog.String("type", string(e.Type)), slog.Any("err", err))
	}
}

func (s *Service) List(ctx context.Context, f Filter) ([]Event, error) {
	return s.repo.List(ctx, f)
}
