package reporting

import (
	"context"
	"errors"
	"sort"
	"time"

	"callcenter/internal/apperr"
	"callcenter/internal/calls"
)

var ErrInvalidRange = apperr.InvalidInput("Invalid date range")

// DefaultWindow is the report range used when no start is given.
const DefaultWindow = 30 * 24 * time.Hour

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service { return &Service{repo: repo, clock: time.Now} }

// CallMetrics groups calls created in the range by status, with count and average
// call duration per group, plus overall totals. A missing end defaults to now and
// a missing start to DefaultWindow before the end.
func (s *Service) CallMetrics(ctx context.Context, req CallMetricsRequest) (CallMetrics, error) {
	if s.repo == nil {
		return CallMetrics{}, errors.New("reporting: repository not configured")
	}
	if req.Range.To.IsZero() {
		req.Range.To = s.clock().UTC()
	}
	if req.Range.From.IsZero() {
		req.Range.From = req.Range.To.Add(-DefaultWindow)
	}
	if req.Range.To.Before(req.Range.From) {
		return CallMetrics{}, ErrInvalidRange
	}

	aggs, err := s.repo.StatusAggregates(ctx, req)
	if err != nil {
		return CallMetrics{}, err
	}
	sort.Slice(aggs, func(i, j int) bool { return aggs[i].Status < aggs[j].Status })

	out := CallMetrics{Range: req.Range, AgentID: req.AgentID, ByStatus: make([]StatusMetrics, 0, len(aggs))}
	var queue, hold int
	for _, a := range aggs {
		if a.Count == 0 {
			continue
		}
		out.ByStatus = append(out.ByStatus, StatusMetrics{
			Status:      a.Status,
			Count:       a.Count,
			AvgDuration: float64(a.TotalDuration) / float64(a.Count),
		})

		t := &out.Totals
		t.TotalCalls += a.Count
		t.TotalDurationSeconds += a.TotalDuration
		t.Transfers += a.Transfers
		t.RecordedCalls += a.Recorded
		queue += a.TotalQueue
		hold += a.TotalHold
		switch a.Status {
		case calls.StatusCompleted:
			t.CompletedCalls += a.Count
		case calls.StatusFailed:
			t.FailedCalls += a.Count
		case calls.StatusNoAnswer:
			t.NoAnswerCalls += a.Count
		case calls.StatusBusy:
			t.BusyCalls += a.Count
		case calls.StatusCanceled:
			t.CanceledCalls += a.Count
		case calls.StatusInProgress, calls.StatusOnHold, calls.StatusTransferring:
			t.InProgressCalls += a.Count
		}
	}
	if n := out.Totals.TotalCalls; n > 0 {
		out.Totals.AverageDurationSeconds = float64(out.Totals.TotalDurationSeconds) / float64(n)
		out.Totals.AverageQueueSeconds = float64(queue) / float64(n)
		out.Totals.AverageHoldSeconds = float64(hold) / float64(n)
	}
	return out, nil
}
