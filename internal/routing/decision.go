package routing

import (
	"callcenter/internal/agents"
	"callcenter/internal/calls"
)

// Decision is the routing engine's answer for an inbound call. It carries no
// provider detail; the call engine turns it into instructions.
type Decision struct {
	Action Action `json:"action"`
	Queue  string `json:"queue,omitempty"`

	// Agent is set when Action is ActionAgent.
	Agent *agents.Agent `json:"-"`

	// Reason is for logs and metrics only.
	Reason string `json:"reason,omitempty"`
}

type Action string

const (
	ActionIVR   Action = "ivr"
	ActionQueue Action = "queue"
	ActionAgent Action = "agent"
)

// Route converts the decision into the call engine's inbound route.
func (d Decision) Route() calls.InboundRoute {
	switch d.Action {
	case ActionAgent:
		return calls.InboundRoute{Purpose: calls.PurposeDirect, Agent: d.Agent}
	case ActionQueue:
		return calls.InboundRoute{Purpose: calls.PurposeQueue, Queue: d.Queue}
	default:
		return calls.InboundRoute{Purpose: calls.PurposeIVR}
	}
}
