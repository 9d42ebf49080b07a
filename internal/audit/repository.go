package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"callcenter/pkg/utils"
)

// PostgresRepo appends to the audit_events table. It has no update or delete paths.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO audit_events (
  id, type, actor_agent_id, actor_role, ip_address, call_sid, conference_sid, agent_id,
  action, message, metadata, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`
	_, err = r.db.ExecContext(ctx, q,
		e.ID,
		e.Type,
		utils.NullString(e.ActorAgentID),
		utils.NullString(e.ActorRole),
		utils.NullString(e.IPAddress),
		utils.NullString(e.CallSID),
		utils.NullString(e.ConferenceSID),
		utils.NullString(e.AgentID),
		utils.NullString(e.Action),
		utils.NullString(e.Message),
		meta,
		e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]Event, error) {
	var (
		where []string
		args  []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.CallSID != "" {
		add("call_sid", f.CallSID)
	}
	if f.ConferenceSID != "" {
		add("conference_sid", f.ConferenceSID)
	}
	if f.ActorAgentID != "" {
		add("actor_agent_id", f.ActorAgentID)
	}
	if f.Type != "" {
		add("type", f.Type)
	}

	q := `
SELECT id, type, actor_agent_id, actor_role, ip_address, call_sid, conference_sid, agent_id,
  action, message, metadata, created_at
FROM audit_events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.limit())
	q += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var (
			e                                 Event
			actor, role, ip, call, conf, agnt sql.NullString
			action, msg                       sql.NullString
			meta                              []byte
		)
		if err := rows.Scan(&e.ID, &e.Type, &actor, &role, &ip, &call, &conf, &agnt, &action, &msg, &meta, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ActorAgentID, e.ActorRole, e.IPAddress = actor.String, role.String, ip.String
		e.CallSID, e.ConferenceSID, e.AgentID = call.String, conf.String, agnt.String
		e.Action, e.Message = action.String, msg.String
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("audit: decode metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
