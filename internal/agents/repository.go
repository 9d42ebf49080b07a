package agents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"callcenter/internal/apperr"
	"callcenter/pkg/utils"
)

// PostgresRepo is the production Store.
//
// NOTE: assumes the agents table from migrations/0001_init.sql, with
// UNIQUE (email) and UNIQUE (extension).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const agentColumns = `id, name, email, password_hash, extension, status, current_call_sid, skills, role,
  last_status_change, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (Agent, error) {
	var (
		a       Agent
		current sql.NullString
		skills  []byte
	)
	if err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.PasswordHash,
		&a.Extension,
		&a.Status,
		&current,
		&skills,
		&a.Role,
		&a.LastStatusChange,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return Agent{}, err
	}
	a.CurrentCallSID = current.String
	if len(skills) > 0 {
		if err := json.Unmarshal(skills, &a.Skills); err != nil {
			return Agent{}, fmt.Errorf("agents: decode skills: %w", err)
		}
	}
	return a, nil
}

func (r *PostgresRepo) Create(ctx context.Context, a Agent) error {
	skills, err := json.Marshal(nonNil(a.Skills))
	if err != nil {
		return err
	}
	const q = `
INSERT INTO agents (
  id, name, email, password_hash, extension, status, current_call_sid, skills, role,
  last_status_change, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
`
	_, err = r.db.ExecContext(ctx, q,
		a.ID,
		a.Name,
		a.Email,
		a.PasswordHash,
		a.Extension,
		a.Status,
		utils.NullString(a.CurrentCallSID),
		skills,
		a.Role,
		a.LastStatusChange,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if constraint, ok := utils.UniqueViolation(err); ok {
		return apperr.Duplicate(uniqueField(constraint))
	}
	return err
}

func (r *PostgresRepo) getOne(ctx context.Context, where string, arg any) (Agent, error) {
	q := `SELECT ` + agentColumns + ` FROM agents WHERE ` + where
	a, err := scanAgent(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Agent{}, ErrAgentNotFound
		}
		return Agent{}, err
	}
	return a, nil
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (Agent, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *PostgresRepo) GetByEmail(ctx context.Context, email string) (Agent, error) {
	return r.getOne(ctx, `lower(email) = lower($1)`, email)
}

func (r *PostgresRepo) GetByExtension(ctx context.Context, extension string) (Agent, error) {
	return r.getOne(ctx, `extension = $1`, extension)
}

func (r *PostgresRepo) ClaimCall(ctx context.Context, id, callSID string, now time.Time) (Agent, error) {
	q := `
UPDATE agents
SET status = 'busy', current_call_sid = $2, last_status_change = $3, updated_at = $3
WHERE id = $1 AND (current_call_sid IS NULL OR current_call_sid = $2)
RETURNING ` + agentColumns
	a, err := scanAgent(r.db.QueryRowContext(ctx, q, id, callSID, now))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Agent{}, err
	}
	// No row updated: either the agent is missing or it holds another call.
	if _, err := r.GetByID(ctx, id); err != nil {
		return Agent{}, err
	}
	return Agent{}, ErrAgentBusy
}

func (r *PostgresRepo) ReleaseCall(ctx context.Context, id, callSID string, now time.Time) (Agent, bool, error) {
	q := `
UPDATE agents
SET status = 'available', current_call_sid = NULL, last_status_change = $3, updated_at = $3
WHERE id = $1 AND current_call_sid = $2
RETURNING ` + agentColumns
	a, err := scanAgent(r.db.QueryRowContext(ctx, q, id, callSID, now))
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Agent{}, false, err
	}
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return Agent{}, false, err
	}
	return current, false, nil
}

func (r *PostgresRepo) SetStatus(ctx context.Context, id string, status Status, now time.Time) (Agent, error) {
	if status != StatusAvailable && status != StatusOffline {
		return Agent{}, ErrInvalidStatus
	}
	q := `
UPDATE agents
SET status = $2, current_call_sid = NULL, last_status_change = $3, updated_at = $3
WHERE id = $1
RETURNING ` + agentColumns
	a, err := scanAgent(r.db.QueryRowContext(ctx, q, id, status, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Agent{}, ErrAgentNotFound
		}
		return Agent{}, err
	}
	return a, nil
}

func (r *PostgresRepo) ListByStatus(ctx context.Context, status Status) ([]Agent, error) {
	q := `SELECT ` + agentColumns + ` FROM agents WHERE status = $1 ORDER BY last_status_change ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Agent, 0)
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func uniqueField(constraint string) string {
	switch constraint {
	case "agents_email_key":
		return "email"
	case "agents_extension_key":
		return "extension"
	case "agents_pkey":
		return "id"
	default:
		return constraint
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
