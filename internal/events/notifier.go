package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"callcenter/pkg/logger"
)

// CallStatus is published after a call's status is committed.
type CallStatus struct {
	CallSID  string    `json:"call_sid"`
	Status   string    `json:"status"`
	Previous string    `json:"previous,omitempty"`
	AgentID  string    `json:"agent_id,omitempty"`
	Duration int       `json:"duration,omitempty"`
	At       time.Time `json:"at"`
}

// AgentStatus is published after an agent's availability is committed.
type AgentStatus struct {
	AgentID        string    `json:"agent_id"`
	Status         string    `json:"status"`
	CurrentCallSID string    `json:"current_call_sid,omitempty"`
	At             time.Time `json:"at"`
}

// Notifier fans committed state changes out to front-end consumers.
// Publishing is best-effort: failures are logged and counted, never returned.
type Notifier struct {
	pub    Publisher
	prefix string

	// OnFailure is called for every failed publish (metrics hook).
	OnFailure func()
}

func NewNotifier(pub Publisher, topicPrefix string) *Notifier {
	if pub == nil {
		pub = NoopPublisher{}
	}
	return &Notifier{pub: pub, prefix: strings.Trim(topicPrefix, "/")}
}

func (n *Notifier) CallStatus(ctx context.Context, e CallStatus) {
	if n == nil {
		return
	}
	n.publish(ctx, n.topic("calls", e.CallSID), e)
}

func (n *Notifier) AgentStatus(ctx context.Context, e AgentStatus) {
	if n == nil {
		return
	}
	n.publish(ctx, n.topic("agents", e.AgentID), e)
}

func (n *Notifier) topic(kind, id string) string {
	if n.prefix == "" {
		return kind + "/" + id + "/status"
	}
	return n.prefix + "/" + kind + "/" + id + "/status"
}

func (n *Notifier) publish(ctx context.Context, topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		n.failed(ctx, topic, err)
		return
	}
	if err := n.pub.Publish(ctx, topic, payload); err != nil {
		n.failed(ctx, topic, err)
	}
}

func (n *Notifier) failed(ctx context.Context, topic string, err error) {
	logger.From(ctx).Warn("event publish failed", slog.String("topic", topic), slog.Any("err", err))
	if n.OnFailure != nil {
		n.OnFailure()
	}
}
