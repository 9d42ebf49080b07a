package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"callcenter/internal/apperr"
	"callcenter/pkg/utils"
)

// PostgresRepo is the production Store and CustomerStore.
//
// NOTE: assumes the calls and customers tables from migrations/0001_init.sql.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const callColumns = `call_sid, parent_call_sid, direction, from_number, to_number, status, purpose,
  agent_id, transferred_from, transferred_to, conference_sid, customer_id,
  recording_sid, recording_status, recording_duration, recording_url,
  queue_name, queue_entered_at, queue_exited_at, queue_position,
  queue_duration, call_duration, hold_duration, transfer_count, hold_started_at,
  notes, tags, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var (
		c                                       Call
		parent, agent, from, to, conf, customer sql.NullString
		recSID, recStatus, recURL, queueName    sql.NullString
		recDuration, queuePos                   sql.NullInt64
		queueEntered, queueExited, holdStarted  sql.NullTime
		notes, tags                             []byte
	)
	if err := row.Scan(
		&c.CallSID, &parent, &c.Direction, &c.From, &c.To, &c.Status, &c.Purpose,
		&agent, &from, &to, &conf, &customer,
		&recSID, &recStatus, &recDuration, &recURL,
		&queueName, &queueEntered, &queueExited, &queuePos,
		&c.Metrics.QueueDuration, &c.Metrics.CallDuration, &c.Metrics.HoldDuration, &c.Metrics.TransferCount, &holdStarted,
		&notes, &tags, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return Call{}, err
	}
	c.ParentCallSID = parent.String
	c.AgentID = agent.String
	c.TransferredFrom = from.String
	c.TransferredTo = to.String
	c.ConferenceSID = conf.String
	c.CustomerID = customer.String

	if recSID.Valid || recStatus.Valid {
		c.Recording = &Recording{
			SID:      recSID.String,
			Status:   RecordingStatus(recStatus.String),
			Duration: int(recDuration.Int64),
			URL:      recURL.String,
		}
	}
	if queueName.Valid || queueEntered.Valid {
		c.Queue = &Queue{Name: queueName.String, Position: int(queuePos.Int64)}
		if queueEntered.Valid {
			t := queueEntered.Time
			c.Queue.EnteredAt = &t
		}
		if queueExited.Valid {
			t := queueExited.Time
			c.Queue.ExitedAt = &t
		}
	}
	if holdStarted.Valid {
		t := holdStarted.Time
		c.Metrics.HoldStartedAt = &t
	}

	c.Notes = []Note{}
	if len(notes) > 0 {
		if err := json.Unmarshal(notes, &c.Notes); err != nil {
			return Call{}, fmt.Errorf("calls: decode notes: %w", err)
		}
	}
	c.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &c.Tags); err != nil {
			return Call{}, fmt.Errorf("calls: decode tags: %w", err)
		}
	}
	return c, nil
}

func (r *PostgresRepo) Create(ctx context.Context, c Call) error {
	notes, err := json.Marshal(append([]Note{}, c.Notes...))
	if err != nil {
		return err
	}
	tags, err := json.Marshal(mergeTags(nil, c.Tags))
	if err != nil {
		return err
	}
	c.recomputeQueueDuration()

	var (
		recSID, recStatus, recURL sql.NullString
		recDuration               sql.NullInt64
		queueName                 sql.NullString
		queueEntered, queueExited sql.NullTime
		queuePos                  sql.NullInt64
	)
	if c.Recording != nil {
		recSID = utils.NullString(c.Recording.SID)
		recStatus = utils.NullString(string(c.Recording.Status))
		recURL = utils.NullString(c.Recording.URL)
		recDuration = sql.NullInt64{Int64: int64(c.Recording.Duration), Valid: true}
	}
	if c.Queue != nil {
		queueName = utils.NullString(c.Queue.Name)
		queuePos = sql.NullInt64{Int64: int64(c.Queue.Position), Valid: true}
		if c.Queue.EnteredAt != nil {
			queueEntered = utils.NullTime(*c.Queue.EnteredAt)
		}
		if c.Queue.ExitedAt != nil {
			queueExited = utils.NullTime(*c.Queue.ExitedAt)
		}
	}
	var holdStarted sql.NullTime
	if c.Metrics.HoldStartedAt != nil {
		holdStarted = utils.NullTime(*c.Metrics.HoldStartedAt)
	}

	const q = `
INSERT INTO calls (
  call_sid, parent_call_sid, direction, from_number, to_number, status, purpose,
  agent_id, transferred_from, transferred_to, conference_sid, customer_id,
  recording_sid, recording_status, recording_duration, recording_url,
  queue_name, queue_entered_at, queue_exited_at, queue_position,
  queue_duration, call_duration, hold_duration, transfer_count, hold_started_at,
  notes, tags, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
  $21,$22,$23,$24,$25,$26,$27,$28,$29
)
`
	_, err = r.db.ExecContext(ctx, q,
		c.CallSID, utils.NullString(c.ParentCallSID), c.Direction, c.From, c.To, c.Status, c.Purpose,
		utils.NullString(c.AgentID), utils.NullString(c.TransferredFrom), utils.NullString(c.TransferredTo),
		utils.NullString(c.ConferenceSID), utils.NullString(c.CustomerID),
		recSID, recStatus, recDuration, recURL,
		queueName, queueEntered, queueExited, queuePos,
		c.Metrics.QueueDuration, c.Metrics.CallDuration, c.Metrics.HoldDuration, c.Metrics.TransferCount, holdStarted,
		notes, tags, c.CreatedAt, c.UpdatedAt,
	)
	if _, ok := utils.UniqueViolation(err); ok {
		return apperr.Duplicate("call_sid")
	}
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, callSID string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE call_sid = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, callSID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrCallNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]Call, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.AgentID != "" {
		add("agent_id = $%d", f.AgentID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}

	q := `SELECT ` + callColumns + ` FROM calls`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.limit(), f.Offset)
	q += fmt.Sprintf(` ORDER BY created_at DESC, call_sid DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ChangeStatus(ctx context.Context, callSID string, ch StatusChange, now time.Time) (Call, error) {
	from := make([]string, 0, len(ch.From))
	for _, s := range ch.From {
		from = append(from, string(s))
	}
	var holdStarted sql.NullTime
	if ch.HoldStartedAt != nil {
		holdStarted = utils.NullTime(*ch.HoldStartedAt)
	}

	q := `
UPDATE calls SET
  status = $3,
  call_duration = COALESCE($4, call_duration),
  agent_id = COALESCE($5, agent_id),
  transferred_from = COALESCE($6, transferred_from),
  transferred_to = COALESCE($7, transferred_to),
  transfer_count = transfer_count + CASE WHEN $8 THEN 1 ELSE 0 END,
  hold_started_at = CASE WHEN $10 THEN NULL ELSE COALESCE($9, hold_started_at) END,
  hold_duration = hold_duration + CASE WHEN $10 THEN $11 ELSE 0 END,
  updated_at = $12
WHERE call_sid = $1 AND status = ANY($2)
RETURNING ` + callColumns

	c, err := scanCall(r.db.QueryRowContext(ctx, q,
		callSID,
		from,
		ch.To,
		nullInt(ch.CallDuration),
		nullStringPtr(ch.AgentID),
		nullStringPtr(ch.TransferredFrom),
		nullStringPtr(ch.TransferredTo),
		ch.IncTransfers,
		holdStarted,
		ch.ClearHold,
		ch.AddHoldSeconds,
		now,
	))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Call{}, err
	}
	if _, err := r.Get(ctx, callSID); err != nil {
		return Call{}, err
	}
	return Call{}, ErrStaleStatus
}

func (r *PostgresRepo) SetRecording(ctx context.Context, callSID string, rec Recording, now time.Time) (Call, error) {
	q := `
UPDATE calls SET
  recording_sid = $2, recording_status = $3, recording_duration = $4, recording_url = $5, updated_at = $6
WHERE call_sid = $1
RETURNING ` + callColumns
	return r.updateOne(ctx, q, callSID,
		utils.NullString(rec.SID), string(rec.Status), rec.Duration, utils.NullString(rec.URL), now)
}

func (r *PostgresRepo) UpdateQueue(ctx context.Context, callSID string, upd QueueUpdate, now time.Time) (Call, error) {
	var entered, exited sql.NullTime
	if upd.EnteredAt != nil {
		entered = utils.NullTime(*upd.EnteredAt)
	}
	if upd.ExitedAt != nil {
		exited = utils.NullTime(*upd.ExitedAt)
	}
	q := `
UPDATE calls SET
  queue_name = COALESCE($2, queue_name),
  queue_entered_at = COALESCE($3::timestamptz, queue_entered_at),
  queue_exited_at = COALESCE($4::timestamptz, queue_exited_at),
  queue_position = COALESCE($5, queue_position),
  queue_duration = CASE
    WHEN COALESCE($3::timestamptz, queue_entered_at) IS NOT NULL AND COALESCE($4::timestamptz, queue_exited_at) IS NOT NULL
    THEN GREATEST(0, floor(extract(epoch FROM COALESCE($4::timestamptz, queue_exited_at) - COALESCE($3::timestamptz, queue_entered_at))))::int
    ELSE queue_duration
  END,
  updated_at = $6
WHERE call_sid = $1
RETURNING ` + callColumns
	return r.updateOne(ctx, q, callSID, nullStringPtr(upd.Name), entered, exited, nullInt(upd.Position), now)
}

func (r *PostgresRepo) LinkConference(ctx context.Context, callSID, conferenceSID string, now time.Time) error {
	const q = `UPDATE calls SET conference_sid = $2, updated_at = $3 WHERE call_sid = $1`
	res, err := r.db.ExecContext(ctx, q, callSID, conferenceSID, now)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCallNotFound
	}
	return nil
}

func (r *PostgresRepo) AddNote(ctx context.Context, callSID string, n Note, now time.Time) (Call, error) {
	b, err := json.Marshal([]Note{n})
	if err != nil {
		return Call{}, err
	}
	q := `
UPDATE calls SET notes = notes || $2::jsonb, updated_at = $3
WHERE call_sid = $1
RETURNING ` + callColumns
	return r.updateOne(ctx, q, callSID, b, now)
}

func (r *PostgresRepo) AddTags(ctx context.Context, callSID string, tags []string, now time.Time) (Call, error) {
	b, err := json.Marshal(mergeTags(nil, tags))
	if err != nil {
		return Call{}, err
	}
	q := `
UPDATE calls SET
  tags = (
    SELECT COALESCE(jsonb_agg(DISTINCT t ORDER BY t), '[]'::jsonb)
    FROM jsonb_array_elements_text(calls.tags || $2::jsonb) AS t
  ),
  updated_at = $3
WHERE call_sid = $1
RETURNING ` + callColumns
	return r.updateOne(ctx, q, callSID, b, now)
}

func (r *PostgresRepo) updateOne(ctx context.Context, q, callSID string, args ...any) (Call, error) {
	c, err := scanCall(r.db.QueryRowContext(ctx, q, append([]any{callSID}, args...)...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrCallNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (r *PostgresRepo) CreateCustomer(ctx context.Context, cu Customer) error {
	tags, err := json.Marshal(append([]string{}, cu.Tags...))
	if err != nil {
		return err
	}
	const q = `
INSERT INTO customers (id, name, phone_number, email, tags, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err = r.db.ExecContext(ctx, q, cu.ID, cu.Name, cu.PhoneNumber, utils.NullString(cu.Email), tags, cu.CreatedAt, cu.UpdatedAt)
	if _, ok := utils.UniqueViolation(err); ok {
		return apperr.Duplicate("phone_number")
	}
	return err
}

func (r *PostgresRepo) CustomerByPhone(ctx context.Context, phone string) (Customer, error) {
	const q = `
SELECT id, name, phone_number, email, tags, created_at, updated_at
FROM customers WHERE phone_number = $1
`
	var (
		cu    Customer
		email sql.NullString
		tags  []byte
	)
	err := r.db.QueryRowContext(ctx, q, phone).Scan(&cu.ID, &cu.Name, &cu.PhoneNumber, &email, &tags, &cu.CreatedAt, &cu.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Customer{}, ErrCustomerNotFound
		}
		return Customer{}, err
	}
	cu.Email = email.String
	cu.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &cu.Tags); err != nil {
			return Customer{}, fmt.Errorf("calls: decode customer tags: %w", err)
		}
	}
	return cu, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullStringPtr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
