package reporting

import (
	"time"

	"callcenter/internal/calls"
)

// TimeRange bounds a report. Both ends are inclusive.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallMetricsRequest requests aggregated call metrics. AgentID is optional.
type CallMetricsRequest struct {
	Range   TimeRange `json:"range"`
	AgentID string    `json:"agent_id,omitempty"`
}

// StatusMetrics is one status group.
type StatusMetrics struct {
	Status      calls.Status `json:"status"`
	Count       int          `json:"count"`
	AvgDuration float64      `json:"avg_duration"`
}

// StatusAggregate is what a repository returns per status before averages are taken.
type StatusAggregate struct {
	Status        calls.Status
	Count         int
	TotalDuration int
	TotalQueue    int
	TotalHold     int
	Transfers     int
	Recorded      int
}

type CallMetrics struct {
	Range   TimeRange `json:"range"`
	AgentID string    `json:"agent_id,omitempty"`

	ByStatus []StatusMetrics `json:"by_status"`
	Totals   Totals          `json:"totals"`
}

type Totals struct {
	TotalCalls      int `json:"total_calls"`
	CompletedCalls  int `json:"completed_calls"`
	FailedCalls     int `json:"failed_calls"`
	NoAnswerCalls   int `json:"no_answer_calls"`
	BusyCalls       int `json:"busy_calls"`
	CanceledCalls   int `json:"canceled_calls"`
	InProgressCalls int `json:"in_progress_calls"`

	TotalDurationSeconds   int     `json:"total_duration_seconds"`
	AverageDurationSeconds float64 `json:"average_duration_seconds"`
	AverageQueueSeconds    float64 `json:"average_queue_seconds"`
	AverageHoldSeconds     float64 `json:"average_hold_seconds"`

	Transfers     int `json:"transfers"`
	RecordedCalls int `json:"recorded_calls"`
}
