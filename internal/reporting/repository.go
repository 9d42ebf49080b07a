package reporting

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"callcenter/internal/calls"
)

// Repository aggregates call records per status for a range.
type Repository interface {
	StatusAggregates(ctx context.Context, req CallMetricsRequest) ([]StatusAggregate, error)
}

// CallStoreRepo aggregates in process by paging through a calls.Store. Used with
// the in-memory stores.
type CallStoreRepo struct {
	store calls.Store
}

func NewCallStoreRepo(store calls.Store) *CallStoreRepo { return &CallStoreRepo{store: store} }

const pageSize = 500

func (r *CallStoreRepo) StatusAggregates(ctx context.Context, req CallMetricsRequest) ([]StatusAggregate, error) {
	f := calls.Filter{
		AgentID: req.AgentID,
		From:    req.Range.From,
		// Filter.To is exclusive.
		To:    req.Range.To.Add(1),
		Limit: pageSize,
	}
	byStatus := map[calls.Status]*StatusAggregate{}
	var order []calls.Status
	for {
		page, err := r.store.List(ctx, f)
		if err != nil {
			return nil, err
		}
		for _, c := range page {
			agg, ok := byStatus[c.Status]
			if !ok {
				agg = &StatusAggregate{Status: c.Status}
				byStatus[c.Status] = agg
				order = append(order, c.Status)
			}
			agg.Count++
			agg.TotalDuration += c.Metrics.CallDuration
			agg.TotalQueue += c.Metrics.QueueDuration
			agg.TotalHold += c.Metrics.HoldDuration
			agg.Transfers += c.Metrics.TransferCount
			if c.Recording != nil && c.Recording.SID != "" {
				agg.Recorded++
			}
		}
		if len(page) < pageSize {
			break
		}
		f.Offset += pageSize
	}

	out := make([]StatusAggregate, 0, len(order))
	for _, s := range order {
		out = append(out, *byStatus[s])
	}
	return out, nil
}

// PostgresRepo aggregates in the database.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) StatusAggregates(ctx context.Context, req CallMetricsRequest) ([]StatusAggregate, error) {
	where := []string{"created_at >= $1", "created_at <= $2"}
	args := []any{req.Range.From, req.Range.To}
	if req.AgentID != "" {
		args = append(args, req.AgentID)
		where = append(where, fmt.Sprintf("agent_id = $%d", len(args)))
	}
	q := `
SELECT status, COUNT(*), COALESCE(SUM(call_duration), 0), COALESCE(SUM(queue_duration), 0),
  COALESCE(SUM(hold_duration), 0), COALESCE(SUM(transfer_count), 0),
  COUNT(*) FILTER (WHERE recording_sid IS NOT NULL)
FROM calls
WHERE ` + strings.Join(where, " AND ") + `
GROUP BY status
ORDER BY status`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]StatusAggregate, 0)
	for rows.Next() {
		var a StatusAggregate
		if err := rows.Scan(&a.Status, &a.Count, &a.TotalDuration, &a.TotalQueue, &a.TotalHold, &a.Transfers, &a.Recorded); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
