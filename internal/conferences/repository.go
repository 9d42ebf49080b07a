package conferences

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"callcenter/pkg/utils"
)

// PostgresRepo is the production Store.
//
// NOTE: assumes the conferences and conference_participants tables from
// migrations/0001_init.sql. Participant order is the insertion sequence.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Open(ctx context.Context, c Conference) (Conference, error) {
	if c.Status == "" {
		c.Status = StatusInProgress
	}
	const q = `
INSERT INTO conferences (conference_sid, friendly_name, status, start_time, duration)
VALUES ($1, $2, $3, $4, 0)
ON CONFLICT (conference_sid) DO NOTHING
`
	if _, err := r.db.ExecContext(ctx, q, c.ConferenceSID, c.FriendlyName, c.Status, c.StartTime); err != nil {
		return Conference{}, err
	}
	return r.Get(ctx, c.ConferenceSID)
}

func (r *PostgresRepo) Get(ctx context.Context, conferenceSID string) (Conference, error) {
	const q = `
SELECT conference_sid, friendly_name, status, recording_sid, recording_url, recording_duration,
  start_time, end_time, duration
FROM conferences WHERE conference_sid = $1
`
	var (
		c              Conference
		recSID, recURL sql.NullString
		recDuration    sql.NullInt64
		end            sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, conferenceSID).Scan(
		&c.ConferenceSID, &c.FriendlyName, &c.Status, &recSID, &recURL, &recDuration,
		&c.StartTime, &end, &c.Duration,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conference{}, ErrConferenceNotFound
		}
		return Conference{}, err
	}
	if recSID.Valid {
		c.Recording = &Recording{SID: recSID.String, URL: recURL.String, Duration: int(recDuration.Int64)}
	}
	if end.Valid {
		t := end.Time
		c.EndTime = &t
	}

	c.Participants, err = r.participants(ctx, conferenceSID)
	if err != nil {
		return Conference{}, err
	}
	return c, nil
}

func (r *PostgresRepo) participants(ctx context.Context, conferenceSID string) ([]Participant, error) {
	const q = `
SELECT participant_sid, role, agent_id, phone_number, status, joined_at, left_at
FROM conference_participants WHERE conference_sid = $1
ORDER BY seq ASC
`
	rows, err := r.db.QueryContext(ctx, q, conferenceSID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Participant, 0)
	for rows.Next() {
		var (
			p            Participant
			agent, phone sql.NullString
			left         sql.NullTime
		)
		if err := rows.Scan(&p.SID, &p.Role, &agent, &phone, &p.Status, &p.JoinedAt, &left); err != nil {
			return nil, err
		}
		p.AgentID = agent.String
		p.PhoneNumber = phone.String
		if left.Valid {
			t := left.Time
			p.LeftAt = &t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) AddParticipant(ctx context.Context, conferenceSID string, p Participant) (Conference, error) {
	if p.Status == "" {
		p.Status = ParticipantJoined
	}
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM conferences WHERE conference_sid = $1 FOR UPDATE`, conferenceSID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConferenceNotFound
		}
		if err != nil {
			return err
		}
		const q = `
INSERT INTO conference_participants (
  conference_sid, participant_sid, role, agent_id, phone_number, status, joined_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (conference_sid, participant_sid)
DO UPDATE SET status = 'joined', left_at = NULL
`
		_, err = tx.ExecContext(ctx, q,
			conferenceSID,
			p.SID,
			p.Role,
			utils.NullString(p.AgentID),
			utils.NullString(p.PhoneNumber),
			p.Status,
			p.JoinedAt,
		)
		return err
	})
	if err != nil {
		return Conference{}, err
	}
	return r.Get(ctx, conferenceSID)
}

func (r *PostgresRepo) SetParticipantStatus(ctx context.Context, conferenceSID, participantSID string, status ParticipantStatus, leftAt *time.Time) (Conference, error) {
	var left sql.NullTime
	if status == ParticipantLeft && leftAt != nil {
		left = sql.NullTime{Time: *leftAt, Valid: true}
	}
	const q = `
UPDATE conference_participants
SET status = $3, left_at = COALESCE($4, left_at)
WHERE conference_sid = $1 AND participant_sid = $2
`
	res, err := r.db.ExecContext(ctx, q, conferenceSID, participantSID, status, left)
	if err != nil {
		return Conference{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Get(ctx, conferenceSID); err != nil {
			return Conference{}, err
		}
		return Conference{}, ErrParticipantNotFound
	}
	return r.Get(ctx, conferenceSID)
}

func (r *PostgresRepo) Close(ctx context.Context, conferenceSID string, end time.Time) (Conference, error) {
	const q = `
UPDATE conferences
SET status = 'completed', end_time = $2,
  duration = GREATEST(0, floor(extract(epoch FROM ($2::timestamptz - start_time))))::int
WHERE conference_sid = $1 AND status <> 'completed'
`
	if _, err := r.db.ExecContext(ctx, q, conferenceSID, end); err != nil {
		return Conference{}, err
	}
	return r.Get(ctx, conferenceSID)
}

func (r *PostgresRepo) SetRecording(ctx context.Context, conferenceSID string, rec Recording) (Conference, error) {
	const q = `
UPDATE conferences SET recording_sid = $2, recording_url = $3, recording_duration = $4
WHERE conference_sid = $1
`
	res, err := r.db.ExecContext(ctx, q, conferenceSID, rec.SID, utils.NullString(rec.URL), rec.Duration)
	if err != nil {
		return Conference{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Conference{}, ErrConferenceNotFound
	}
	return r.Get(ctx, conferenceSID)
}
