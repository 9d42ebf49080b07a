package agents

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"callcenter/internal/apperr"
	"callcenter/internal/auth"
	"callcenter/internal/rbac"

	"github.com/google/uuid"
)

var extensionRe = regexp.MustCompile(`^[A-Za-z0-9_.-]{2,32}$`)

type CreateRequest struct {
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	Extension string   `json:"extension"`
	Skills    []string `json:"skills"`
	Role      string   `json:"role"`
}

type Service struct {
	store   Store
	tracker *Tracker
	clock   func() time.Time
}

func NewService(store Store, tracker *Tracker) *Service {
	return &Service{store: store, tracker: tracker, clock: time.Now}
}

func (s *Service) Tracker() *Tracker { return s.tracker }

// Create registers a new agent, offline until it sets itself available.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Agent, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Extension = strings.TrimSpace(req.Extension)
	if req.Role == "" {
		req.Role = rbac.RoleAgent
	}

	switch {
	case req.Name == "":
		return Agent{}, apperr.InvalidInput("Name is required")
	case !strings.Contains(req.Email, "@"):
		return Agent{}, apperr.InvalidInput("A valid email is required")
	case !extensionRe.MatchString(req.Extension):
		return Agent{}, apperr.InvalidInput("Extension must be 2-32 letters, digits, '.', '_' or '-'")
	case !rbac.Valid(req.Role):
		return Agent{}, ErrInvalidRole
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return Agent{}, apperr.InvalidInput(err.Error())
		}
		return Agent{}, err
	}

	now := s.clock().UTC()
	a := Agent{
		ID:               uuid.NewString(),
		Name:             req.Name,
		Email:            req.Email,
		PasswordHash:     hash,
		Extension:        req.Extension,
		Status:           StatusOffline,
		Skills:           dedupe(req.Skills),
		Role:             req.Role,
		LastStatusChange: now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Create(ctx, a); err != nil {
		return Agent{}, err
	}
	return a, nil
}

// Authenticate checks email/password. Unknown email and wrong password are indistinguishable.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Agent, error) {
	a, err := s.store.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			return Agent{}, ErrInvalidCredentials
		}
		return Agent{}, err
	}
	if !auth.CheckPassword(a.PasswordHash, password) {
		return Agent{}, ErrInvalidCredentials
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id string) (Agent, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) GetByExtension(ctx context.Context, extension string) (Agent, error) {
	return s.store.GetByExtension(ctx, extension)
}

// Available lists agents that can take a call, longest idle first.
func (s *Service) Available(ctx context.Context) ([]Agent, error) {
	return s.store.ListByStatus(ctx, StatusAvailable)
}

func (s *Service) Busy(ctx context.Context) ([]Agent, error) {
	return s.store.ListByStatus(ctx, StatusBusy)
}

// UpdateStatus is the operator toggle. busy is owned by the call lifecycle and is rejected here.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (Agent, error) {
	switch status {
	case StatusAvailable:
		return s.tracker.SetAvailable(ctx, id)
	case StatusOffline:
		return s.tracker.SetOffline(ctx, id)
	default:
		return Agent{}, ErrInvalidStatus
	}
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
