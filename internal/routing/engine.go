package routing

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"callcenter/internal/agents"
	"callcenter/internal/config"
)

// AvailableAgents lists agents that can take a call, longest idle first.
// *agents.Service satisfies it.
type AvailableAgents interface {
	Available(ctx context.Context) ([]agents.Agent, error)
}

// Engine decides where inbound calls go.
//
// Priority:
//  1. Inbound mode from the call flow (ivr, queue, agent)
//  2. For agent mode: skill-weighted pick among available agents
//  3. Fallback: the default queue
//
// Route returns a decision only. No side effects (no DB writes, no provider calls).
type Engine struct {
	Flow   config.CallFlow
	Agents AvailableAgents

	mu  sync.Mutex
	rng *rand.Rand
}

func NewEngine(flow config.CallFlow, dir AvailableAgents, rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{Flow: flow, Agents: dir, rng: rng}
}

// RouteInbound picks the first step for a new inbound call.
func (e *Engine) RouteInbound(ctx context.Context) (Decision, error) {
	switch e.Flow.InboundMode {
	case config.InboundModeQueue:
		return e.queue(e.Flow.DefaultQueue, "inbound_mode_queue"), nil
	case config.InboundModeAgent:
		return e.RouteToQueue(ctx, e.Flow.DefaultQueue)
	default:
		return Decision{Action: ActionIVR, Reason: "inbound_mode_ivr"}, nil
	}
}

// RouteDigits resolves an IVR menu selection. Unknown options replay the menu.
func (e *Engine) RouteDigits(ctx context.Context, digits string) (Decision, error) {
	q, ok := e.Flow.QueueForDigits(digits)
	if !ok {
		return Decision{Action: ActionIVR, Reason: ReasonUnknownOption}, nil
	}
	return e.queue(q, "menu_option"), nil
}

// RouteToQueue connects the caller straight to an available agent holding the
// queue's skills, or queues the call when nobody qualifies.
func (e *Engine) RouteToQueue(ctx context.Context, queue string) (Decision, error) {
	if e.Agents == nil {
		return e.queue(queue, "no_agent_directory"), nil
	}
	avail, err := e.Agents.Available(ctx)
	if err != nil {
		return Decision{}, err
	}
	var skills []string
	if qc, ok := e.Flow.Queue(queue); ok {
		skills = qc.Skills
	}
	if a, ok := e.pickAgent(weigh(avail, skills)); ok {
		return Decision{Action: ActionAgent, Agent: &a, Queue: queue, Reason: "selected"}, nil
	}
	return e.queue(queue, "no_eligible_agent"), nil
}

func (e *Engine) queue(name, reason string) Decision {
	if name == "" {
		name = e.Flow.DefaultQueue
	}
	return Decision{Action: ActionQueue, Queue: name, Reason: reason}
}

// ReasonUnknownOption marks a menu selection that matched no option.
const ReasonUnknownOption = "unknown_option"

type weightedAgent struct {
	agent  agents.Agent
	weight int
}

// weigh scores each agent by the number of required skills it has. Agents with
// none of them are not eligible. A queue with no skills accepts everyone equally.
func weigh(avail []agents.Agent, skills []string) []weightedAgent {
	out := make([]weightedAgent, 0, len(avail))
	for _, a := range avail {
		if len(skills) == 0 {
			out = append(out, weightedAgent{agent: a, weight: 1})
			continue
		}
		w := 0
		for _, s := range skills {
			if hasSkill(a.Skills, s) {
				w++
			}
		}
		if w > 0 {
			out = append(out, weightedAgent{agent: a, weight: w})
		}
	}
	return out
}

func hasSkill(have []string, want string) bool {
	for _, h := range have {
		if strings.EqualFold(h, want) {
			return true
		}
	}
	return false
}

func (e *Engine) pickAgent(cands []weightedAgent) (agents.Agent, bool) {
	var total int
	for _, c := range cands {
		total += c.weight
	}
	if total <= 0 {
		return agents.Agent{}, false
	}

	e.mu.Lock()
	r := e.rng.Intn(total) // 0..total-1
	e.mu.Unlock()

	var acc int
	for _, c := range cands {
		acc += c.weight
		if r < acc {
			return c.agent, true
		}
	}
	return agents.Agent{}, false
}
