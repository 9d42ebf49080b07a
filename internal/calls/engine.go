package calls

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"callcenter/internal/agents"
	"callcenter/internal/apperr"
	"callcenter/internal/events"
	"callcenter/internal/telephony"
	"callcenter/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrNoCurrentCall  = apperr.NotFound("Agent has no active call")
	ErrTransferToSelf = apperr.InvalidInput("Call is already with that agent")
)

// AgentDirectory resolves agents for the engine.
type AgentDirectory interface {
	Get(ctx context.Context, id string) (agents.Agent, error)
}

// AgentTracker is the part of agents.Tracker the engine and reconciler drive.
type AgentTracker interface {
	SetBusy(ctx context.Context, agentID, callSID string) (agents.Agent, error)
	Release(ctx context.Context, agentID, callSID string) (bool, error)
}

// EventSink receives committed call status changes. *events.Notifier satisfies it.
type EventSink interface {
	CallStatus(ctx context.Context, e events.CallStatus)
}

// Options are the provider-facing settings every call is placed with.
type Options struct {
	CallerID                   string
	StatusCallbackURL          string
	RecordingStatusCallbackURL string
	DefaultQueue               string

	Instructions telephony.InstructionOptions
}

type Deps struct {
	Store     Store
	Customers CustomerStore
	Agents    AgentDirectory
	Tracker   AgentTracker
	Provider  telephony.Provider
	Guard     DialGuard
	Events    EventSink
}

// Engine drives call lifecycle operations. Every local write happens after the
// provider accepted the corresponding request.
type Engine struct {
	store     Store
	customers CustomerStore
	agents    AgentDirectory
	tracker   AgentTracker
	provider  telephony.Provider
	guard     DialGuard
	opts      Options
	clock     func() time.Time

	*Reconciler
}

func NewEngine(d Deps, opts Options) *Engine {
	if d.Guard == nil {
		d.Guard = NewLocalDialGuard()
	}
	if opts.Instructions.CallerID == "" {
		opts.Instructions.CallerID = opts.CallerID
	}
	if opts.Instructions.RecordingStatusCallbackURL == "" {
		opts.Instructions.RecordingStatusCallbackURL = opts.RecordingStatusCallbackURL
	}
	return &Engine{
		store:      d.Store,
		customers:  d.Customers,
		agents:     d.Agents,
		tracker:    d.Tracker,
		provider:   d.Provider,
		guard:      d.Guard,
		opts:       opts,
		clock:      time.Now,
		Reconciler: NewReconciler(d.Store, d.Tracker, d.Events),
	}
}

// Instructions exposes the document options for webhook handlers.
func (e *Engine) Instructions() telephony.InstructionOptions { return e.opts.Instructions }

type InitiateRequest struct {
	To      string  `json:"to"`
	AgentID string  `json:"agentId"`
	Purpose Purpose `json:"callType"`

	// Queue overrides the default queue for queue-purpose calls.
	Queue string `json:"queue,omitempty"`
}

// Initiate places an outbound call on behalf of an agent.
func (e *Engine) Initiate(ctx context.Context, req InitiateRequest) (Call, error) {
	to, err := ValidateAddress(req.To)
	if err != nil {
		return Call{}, err
	}
	purpose := req.Purpose
	if purpose == "" {
		purpose = PurposeDirect
	}
	var intent telephony.Intent
	queueName := strings.TrimSpace(req.Queue)
	switch purpose {
	case PurposeDirect:
		intent = telephony.Direct(to)
	case PurposeIVR:
		intent = telephony.IVR()
	case PurposeQueue:
		if queueName == "" {
			queueName = e.opts.DefaultQueue
		}
		intent = telephony.Queue(queueName)
	default:
		return Call{}, ErrInvalidCallType
	}

	agent, err := e.agents.Get(ctx, req.AgentID)
	if err != nil {
		return Call{}, err
	}
	if agent.CurrentCallSID != "" {
		return Call{}, agents.ErrAgentBusy
	}

	release, err := e.guard.Acquire(ctx, agent.ID)
	if err != nil {
		return Call{}, err
	}
	defer release()

	doc, err := telephony.Build(intent, e.opts.Instructions)
	if err != nil {
		return Call{}, err
	}
	placed, err := e.provider.PlaceCall(ctx, telephony.PlaceCallRequest{
		To:                         to,
		From:                       e.opts.CallerID,
		Instructions:               doc,
		StatusCallbackURL:          e.opts.StatusCallbackURL,
		StatusCallbackEvents:       telephony.DefaultStatusCallbackEvents,
		RecordingStatusCallbackURL: e.opts.RecordingStatusCallbackURL,
	})
	if err != nil {
		return Call{}, err
	}

	now := e.now()
	c := Call{
		CallSID:   placed.SID,
		Direction: DirectionOutbound,
		From:      e.opts.CallerID,
		To:        to,
		Status:    StatusQueued,
		Purpose:   purpose,
		AgentID:   agent.ID,
		Notes:     []Note{},
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if purpose == PurposeQueue {
		c.Queue = &Queue{Name: queueName, EnteredAt: &now}
	}
	c.CustomerID = e.customerFor(ctx, to)

	log := logger.ForCall(ctx, c.CallSID).With(slog.String("agent_id", agent.ID))
	if err := e.store.Create(ctx, c); err != nil {
		log.Error("placed call not recorded; canceling", slog.Any("err", err))
		e.cancel(ctx, c.CallSID)
		return Call{}, err
	}
	if _, err := e.tracker.SetBusy(ctx, agent.ID, c.CallSID); err != nil {
		if errors.Is(err, agents.ErrAgentBusy) {
			log.Warn("agent claimed by another call during initiate; canceling")
			e.cancel(ctx, c.CallSID)
		}
		return Call{}, err
	}
	e.published(ctx, "", c)
	return c, nil
}

type TransferResult struct {
	CallSID     string `json:"call_sid"`
	FromAgentID string `json:"from_agent_id,omitempty"`
	ToAgentID   string `json:"to_agent_id"`
	Status      Status `json:"status"`
	Message     string `json:"message"`
}

var transferable = []Status{StatusQueued, StatusRinging, StatusInProgress, StatusOnHold}

// Transfer redirects a live call to another agent's client endpoint. The call stays
// transferring until the transfer leg reports back.
func (e *Engine) Transfer(ctx context.Context, callSID, targetAgentID string) (TransferResult, error) {
	c, err := e.store.Get(ctx, callSID)
	if err != nil {
		return TransferResult{}, err
	}
	target, err := e.agents.Get(ctx, targetAgentID)
	if err != nil {
		return TransferResult{}, err
	}
	if !statusIn(c.Status, transferable) {
		return TransferResult{}, ErrInvalidTransition
	}
	if target.ID == c.AgentID {
		return TransferResult{}, ErrTransferToSelf
	}
	if target.Status == agents.StatusBusy {
		return TransferResult{}, agents.ErrAgentBusy
	}

	if err := e.push(ctx, callSID, telephony.Transfer(target.Extension)); err != nil {
		return TransferResult{}, err
	}

	now := e.now()
	from := c.AgentID
	ch := StatusChange{
		From:            transferable,
		To:              StatusTransferring,
		TransferredFrom: &from,
		TransferredTo:   &target.ID,
		IncTransfers:    true,
	}
	if c.Status == StatusOnHold {
		ch.ClearHold = true
		ch.AddHoldSeconds = heldFor(c, now)
	}
	updated, err := e.store.ChangeStatus(ctx, callSID, ch, now)
	if err != nil {
		return TransferResult{}, mapStale(err)
	}
	e.published(ctx, c.Status, updated)
	return TransferResult{
		CallSID:     callSID,
		FromAgentID: from,
		ToAgentID:   target.ID,
		Status:      updated.Status,
		Message:     "Call transfer initiated",
	}, nil
}

const (
	HoldActionHold   = "hold"
	HoldActionResume = "resume"
)

// ToggleHold parks the caller on hold music or brings them back.
func (e *Engine) ToggleHold(ctx context.Context, callSID, action string) (Call, error) {
	if action != HoldActionHold && action != HoldActionResume {
		return Call{}, ErrInvalidHoldAction
	}
	c, err := e.store.Get(ctx, callSID)
	if err != nil {
		return Call{}, err
	}

	now := e.now()
	var (
		intent telephony.Intent
		ch     StatusChange
	)
	if action == HoldActionHold {
		if c.Status != StatusInProgress {
			return Call{}, ErrInvalidTransition
		}
		intent = telephony.Hold()
		ch = StatusChange{From: []Status{StatusInProgress}, To: StatusOnHold, HoldStartedAt: &now}
	} else {
		if c.Status != StatusOnHold {
			return Call{}, ErrInvalidTransition
		}
		intent = telephony.Resume()
		ch = StatusChange{From: []Status{StatusOnHold}, To: StatusInProgress, ClearHold: true, AddHoldSeconds: heldFor(c, now)}
	}

	if err := e.push(ctx, callSID, intent); err != nil {
		return Call{}, err
	}
	updated, err := e.store.ChangeStatus(ctx, callSID, ch, now)
	if err != nil {
		return Call{}, mapStale(err)
	}
	e.published(ctx, c.Status, updated)
	return updated, nil
}

// ResumeIntent is served when a resumed call is redirected back: reconnect the owning agent.
func (e *Engine) ResumeIntent(ctx context.Context, callSID string) telephony.Intent {
	c, err := e.store.Get(ctx, callSID)
	if err != nil || c.AgentID == "" {
		return telephony.Hangup("")
	}
	a, err := e.agents.Get(ctx, c.AgentID)
	if err != nil {
		return telephony.Hangup("")
	}
	return telephony.ConnectAgent(a.Extension)
}

const (
	RecordingActionStart  = "start"
	RecordingActionStop   = "stop"
	RecordingActionPause  = "pause"
	RecordingActionResume = "resume"
)

// ManageRecording starts, stops, pauses or resumes the call's recording.
func (e *Engine) ManageRecording(ctx context.Context, callSID, action string) (Call, error) {
	switch action {
	case RecordingActionStart, RecordingActionStop, RecordingActionPause, RecordingActionResume:
	default:
		return Call{}, ErrInvalidRecordingAction
	}
	c, err := e.store.Get(ctx, callSID)
	if err != nil {
		return Call{}, err
	}
	now := e.now()

	switch action {
	case RecordingActionStart:
		rec, err := e.provider.StartRecording(ctx, telephony.StartRecordingRequest{
			CallSID:           callSID,
			StatusCallbackURL: e.opts.RecordingStatusCallbackURL,
		})
		if err != nil {
			return Call{}, err
		}
		return e.store.SetRecording(ctx, callSID, Recording{SID: rec.SID, Status: RecordingInProgress}, now)

	case RecordingActionStop:
		recs, err := e.provider.ListRecordings(ctx, callSID)
		if err != nil {
			return Call{}, err
		}
		if len(recs) == 0 {
			return c, nil
		}
		first := recs[0]
		if err := e.provider.UpdateRecording(ctx, callSID, first.SID, telephony.RecordingStatusStopped); err != nil {
			return Call{}, err
		}
		rec := Recording{SID: first.SID, Status: RecordingStopped, Duration: first.Duration}
		if c.Recording != nil && c.Recording.SID == first.SID {
			rec.URL = c.Recording.URL
		}
		return e.store.SetRecording(ctx, callSID, rec, now)

	default:
		status, local := telephony.RecordingStatusPaused, RecordingPaused
		if action == RecordingActionResume {
			status, local = telephony.RecordingStatusInProgress, RecordingInProgress
		}
		if err := e.provider.UpdateRecording(ctx, callSID, telephony.CurrentRecording, status); err != nil {
			return Call{}, err
		}
		rec := Recording{Status: local}
		if c.Recording != nil {
			rec = *c.Recording
			rec.Status = local
		}
		return e.store.SetRecording(ctx, callSID, rec, now)
	}
}

// End asks the provider to hang up. The terminal status arrives through the status callback.
func (e *Engine) End(ctx context.Context, callSID string) (Call, error) {
	c, err := e.store.Get(ctx, callSID)
	if err != nil {
		return Call{}, err
	}
	if c.Status.IsTerminal() {
		return Call{}, ErrInvalidTransition
	}
	if err := e.provider.EndCall(ctx, callSID); err != nil {
		return Call{}, err
	}
	return c, nil
}

func (e *Engine) Get(ctx context.Context, callSID string) (Call, error) {
	return e.store.Get(ctx, callSID)
}

func (e *Engine) List(ctx context.Context, f Filter) ([]Call, error) {
	return e.store.List(ctx, f)
}

// History lists an agent's calls, newest first.
func (e *Engine) History(ctx context.Context, agentID string, limit, offset int) ([]Call, error) {
	if _, err := e.agents.Get(ctx, agentID); err != nil {
		return nil, err
	}
	return e.store.List(ctx, Filter{AgentID: agentID, Limit: limit, Offset: offset})
}

func (e *Engine) CurrentCall(ctx context.Context, agentID string) (Call, error) {
	a, err := e.agents.Get(ctx, agentID)
	if err != nil {
		return Call{}, err
	}
	if a.CurrentCallSID == "" {
		return Call{}, ErrNoCurrentCall
	}
	c, err := e.store.Get(ctx, a.CurrentCallSID)
	if errors.Is(err, ErrCallNotFound) {
		return Call{}, ErrNoCurrentCall
	}
	return c, err
}

func (e *Engine) AddNote(ctx context.Context, callSID, agentID, text string) (Call, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Call{}, ErrEmptyNote
	}
	now := e.now()
	return e.store.AddNote(ctx, callSID, Note{Text: text, AgentID: agentID, CreatedAt: now}, now)
}

func (e *Engine) AddTags(ctx context.Context, callSID string, tags []string) (Call, error) {
	if len(mergeTags(nil, tags)) == 0 {
		return Call{}, ErrNoTags
	}
	return e.store.AddTags(ctx, callSID, tags, e.now())
}

// LinkConference records the conference a call leg joined.
func (e *Engine) LinkConference(ctx context.Context, callSID, conferenceSID string) (Call, error) {
	if err := e.store.LinkConference(ctx, callSID, conferenceSID, e.now()); err != nil {
		return Call{}, err
	}
	return e.store.Get(ctx, callSID)
}

// InboundCall is a new call arriving at the voice webhook.
type InboundCall struct {
	CallSID string
	From    string
	To      string
	Status  string
}

// InboundRoute is where an inbound call goes.
type InboundRoute struct {
	Purpose Purpose
	Queue   string
	// Agent is set for calls connected straight to an agent.
	Agent *agents.Agent
}

// AcceptInbound records an inbound call and returns the instructions to serve.
// A direct route that loses the agent to a concurrent call falls back to the default queue.
func (e *Engine) AcceptInbound(ctx context.Context, in InboundCall, route InboundRoute) (Call, telephony.Intent, error) {
	now := e.now()
	status, ok := NormalizeStatus(in.Status)
	if !ok || status.IsTerminal() {
		status = StatusRinging
	}
	c := Call{
		CallSID:   in.CallSID,
		Direction: DirectionInbound,
		From:      NormalizeAddress(in.From),
		To:        NormalizeAddress(in.To),
		Status:    status,
		Purpose:   route.Purpose,
		Notes:     []Note{},
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.CustomerID = e.customerFor(ctx, c.From)

	var intent telephony.Intent
	switch route.Purpose {
	case PurposeDirect:
		if route.Agent == nil {
			return Call{}, telephony.Intent{}, ErrInvalidCallType
		}
		c.AgentID = route.Agent.ID
		intent = telephony.ConnectAgent(route.Agent.Extension)
	case PurposeIVR:
		intent = telephony.IVR()
	case PurposeQueue:
		q := route.Queue
		if q == "" {
			q = e.opts.DefaultQueue
		}
		c.Queue = &Queue{Name: q, EnteredAt: &now}
		intent = telephony.Queue(q)
	default:
		return Call{}, telephony.Intent{}, ErrInvalidCallType
	}

	if err := e.store.Create(ctx, c); err != nil {
		return Call{}, telephony.Intent{}, err
	}

	if c.AgentID != "" {
		if _, err := e.tracker.SetBusy(ctx, c.AgentID, c.CallSID); err != nil {
			logger.From(ctx).Warn("inbound agent unavailable; queueing",
				slog.String("call_sid", c.CallSID), slog.String("agent_id", c.AgentID), slog.Any("err", err))
			return e.requeue(ctx, c, now)
		}
	}
	e.published(ctx, "", c)
	return c, intent, nil
}

// requeue moves an inbound call that lost its agent into the default queue.
func (e *Engine) requeue(ctx context.Context, c Call, now time.Time) (Call, telephony.Intent, error) {
	q := e.opts.DefaultQueue
	empty := ""
	updated, err := e.store.ChangeStatus(ctx, c.CallSID, StatusChange{
		From:    []Status{c.Status},
		To:      c.Status,
		AgentID: &empty,
	}, now)
	if err != nil {
		return Call{}, telephony.Intent{}, err
	}
	updated, err = e.store.UpdateQueue(ctx, c.CallSID, QueueUpdate{Name: &q, EnteredAt: &now}, now)
	if err != nil {
		return Call{}, telephony.Intent{}, err
	}
	e.published(ctx, "", updated)
	return updated, telephony.Queue(q), nil
}

// EnterQueue places an IVR caller into a queue after a menu selection.
func (e *Engine) EnterQueue(ctx context.Context, callSID, queue string) (telephony.Intent, error) {
	now := e.now()
	if _, err := e.store.UpdateQueue(ctx, callSID, QueueUpdate{Name: &queue, EnteredAt: &now}, now); err != nil {
		return telephony.Intent{}, err
	}
	return telephony.Queue(queue), nil
}

// QueueEvent is reported by the provider while a caller waits in or leaves a queue.
type QueueEvent struct {
	CallSID  string
	Result   string
	Position int
	// WaitSeconds is the provider's own count of time spent queued.
	WaitSeconds int
}

// HandleQueueExit stamps the exit time; the store derives QueueDuration.
func (e *Engine) HandleQueueExit(ctx context.Context, ev QueueEvent) (Call, error) {
	c, err := e.store.Get(ctx, ev.CallSID)
	if err != nil {
		return Call{}, err
	}
	now := e.now()
	upd := QueueUpdate{ExitedAt: &now}
	if c.Queue == nil || c.Queue.EnteredAt == nil {
		entered := now.Add(-time.Duration(ev.WaitSeconds) * time.Second)
		upd.EnteredAt = &entered
	}
	return e.store.UpdateQueue(ctx, ev.CallSID, upd, now)
}

// HandleQueueWait records the caller's position and returns the wait instructions.
func (e *Engine) HandleQueueWait(ctx context.Context, ev QueueEvent) (telephony.Intent, error) {
	pos := ev.Position
	if _, err := e.store.UpdateQueue(ctx, ev.CallSID, QueueUpdate{Position: &pos}, e.now()); err != nil {
		return telephony.QueueWait(ev.Position), err
	}
	return telephony.QueueWait(ev.Position), nil
}

// RecordingEvent is the provider's recording status callback.
type RecordingEvent struct {
	CallSID      string
	RecordingSID string
	Status       string
	URL          string
	Duration     *int
}

func (e *Engine) HandleRecordingCallback(ctx context.Context, ev RecordingEvent) error {
	c, err := e.store.Get(ctx, ev.CallSID)
	if err != nil {
		return err
	}
	rec := Recording{}
	if c.Recording != nil {
		rec = *c.Recording
	}
	if ev.RecordingSID != "" {
		rec.SID = ev.RecordingSID
	}
	switch s := RecordingStatus(strings.ToLower(strings.TrimSpace(ev.Status))); s {
	case RecordingInProgress, RecordingPaused, RecordingStopped, RecordingCompleted, RecordingFailed, RecordingAbsent:
		rec.Status = s
	}
	if ev.URL != "" {
		rec.URL = ev.URL
	}
	if ev.Duration != nil {
		rec.Duration = *ev.Duration
	}
	_, err = e.store.SetRecording(ctx, ev.CallSID, rec, e.now())
	return err
}

func (e *Engine) push(ctx context.Context, callSID string, in telephony.Intent) error {
	doc, err := telephony.Build(in, e.opts.Instructions)
	if err != nil {
		return err
	}
	return e.provider.UpdateCall(ctx, callSID, doc)
}

func (e *Engine) cancel(ctx context.Context, callSID string) {
	if err := e.provider.EndCall(ctx, callSID); err != nil {
		logger.From(ctx).Warn("cancel placed call failed", slog.String("call_sid", callSID), slog.Any("err", err))
	}
}

func (e *Engine) customerFor(ctx context.Context, phone string) string {
	if e.customers == nil || phone == "" {
		return ""
	}
	cu, err := e.customers.CustomerByPhone(ctx, phone)
	if err != nil {
		if !errors.Is(err, ErrCustomerNotFound) {
			logger.From(ctx).Warn("customer lookup failed", slog.Any("err", err))
		}
		return ""
	}
	return cu.ID
}

// CreateCustomer registers a known caller.
func (e *Engine) CreateCustomer(ctx context.Context, name, phone, email string, tags []string) (Customer, error) {
	if e.customers == nil {
		return Customer{}, errors.New("calls: customer store not configured")
	}
	n, err := ValidateAddress(phone)
	if err != nil {
		return Customer{}, err
	}
	now := e.now()
	cu := Customer{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		PhoneNumber: n,
		Email:       strings.TrimSpace(email),
		Tags:        mergeTags(nil, tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.customers.CreateCustomer(ctx, cu); err != nil {
		return Customer{}, err
	}
	return cu, nil
}

func (e *Engine) now() time.Time { return e.clock().UTC() }

func heldFor(c Call, now time.Time) int {
	if c.Metrics.HoldStartedAt == nil {
		return 0
	}
	d := int(now.Sub(*c.Metrics.HoldStartedAt) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}

func mapStale(err error) error {
	if errors.Is(err, ErrStaleStatus) {
		return ErrInvalidTransition
	}
	return err
}
