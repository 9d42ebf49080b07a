package httpapi

import (
	"net/http"
	"time"

	"callcenter/internal/audit"
	"callcenter/internal/calls"
	"callcenter/internal/reporting"

	"github.com/gin-gonic/gin"
)

// InitiateCall places an outbound call. Agents may only place calls for themselves;
// supervisors and admins may name any agent.
func (h Handlers) InitiateCall(c *gin.Context) {
	var req calls.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	self, privileged := actingAgent(c)
	if req.AgentID == "" {
		req.AgentID = self
	}
	if req.AgentID != self && !privileged {
		fail(c, http.StatusForbidden, "Forbidden")
		return
	}

	call, err := h.Calls.Initiate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), audit.Event{Type: audit.EventTypeInitiate, CallSID: call.CallSID, AgentID: call.AgentID, Action: string(call.Purpose)})
	respond(c, http.StatusCreated, "Call initiated successfully", call)
}

func (h Handlers) ListCalls(c *gin.Context) {
	limit, offset, ok := paging(c)
	if !ok {
		return
	}
	f := calls.Filter{
		AgentID: c.Query("agentId"),
		Status:  calls.Status(c.Query("status")),
		Limit:   limit,
		Offset:  offset,
	}
	if f.Status != "" && !f.Status.Valid() {
		fail(c, http.StatusBadRequest, "Invalid status filter")
		return
	}
	if f.From, ok = queryTime(c, "start"); !ok {
		return
	}
	if f.To, ok = queryTime(c, "end"); !ok {
		return
	}
	list, err := h.Calls.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Calls retrieved", list)
}

func (h Handlers) GetCall(c *gin.Context) {
	call, err := h.Calls.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Call retrieved", call)
}

// CallMetrics aggregates calls by status. start and end accept RFC 3339 or YYYY-MM-DD.
func (h Handlers) CallMetrics(c *gin.Context) {
	var (
		req reporting.CallMetricsRequest
		ok  bool
	)
	req.AgentID = c.Query("agentId")
	if req.Range.From, ok = queryTime(c, "start"); !ok {
		return
	}
	if req.Range.To, ok = queryTime(c, "end"); !ok {
		return
	}
	if d := c.Query("end"); len(d) == len(dateLayout) {
		// A bare end date covers the whole day.
		req.Range.To = req.Range.To.Add(24*time.Hour - time.Nanosecond)
	}
	out, err := h.Reports.CallMetrics(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Call metrics retrieved", out)
}

type transferRequest struct {
	TargetAgentID string `json:"targetAgentId"`
}

func (h Handlers) TransferCall(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TargetAgentID == "" {
		fail(c, http.StatusBadRequest, "targetAgentId is required")
		return
	}
	res, err := h.Calls.Transfer(c.Request.Context(), c.Param("id"), req.TargetAgentID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), audit.Event{
		Type:     audit.EventTypeTransfer,
		CallSID:  res.CallSID,
		AgentID:  res.ToAgentID,
		Action:   "transfer",
		Metadata: map[string]string{"from_agent_id": res.FromAgentID},
	})
	respond(c, http.StatusOK, res.Message, res)
}

type actionRequest struct {
	Action string `json:"action"`
}

func bindAction(c *gin.Context) (string, bool) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Action == "" {
		fail(c, http.StatusBadRequest, "action is required")
		return "", false
	}
	return req.Action, true
}

func (h Handlers) HoldCall(c *gin.Context) {
	action, ok := bindAction(c)
	if !ok {
		return
	}
	call, err := h.Calls.ToggleHold(c.Request.Context(), c.Param("id"), action)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), audit.Event{Type: audit.EventTypeHold, CallSID: call.CallSID, AgentID: call.AgentID, Action: action})
	msg := "Call placed on hold"
	if call.Status != calls.StatusOnHold {
		msg = "Call resumed"
	}
	respond(c, http.StatusOK, msg, call)
}

func (h Handlers) RecordCall(c *gin.Context) {
	action, ok := bindAction(c)
	if !ok {
		return
	}
	call, err := h.Calls.ManageRecording(c.Request.Context(), c.Param("id"), action)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), audit.Event{Type: audit.EventTypeRecording, CallSID: call.CallSID, AgentID: call.AgentID, Action: action})
	respond(c, http.StatusOK, "Recording "+action+" successful", call)
}

func (h Handlers) EndCall(c *gin.Context) {
	call, err := h.Calls.End(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), audit.Event{Type: audit.EventTypeEndCall, CallSID: call.CallSID, AgentID: call.AgentID, Action: "end"})
	respond(c, http.StatusOK, "Call ended", call)
}

type noteRequest struct {
	Text string `json:"text"`
}

func (h Handlers) AddNote(c *gin.Context) {
	var req noteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	self, _ := actingAgent(c)
	call, err := h.Calls.AddNote(c.Request.Context(), c.Param("id"), self, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Note added", call)
}

type tagsRequest struct {
	Tags []string `json:"tags"`
}

func (h Handlers) AddTags(c *gin.Context) {
	var req tagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	call, err := h.Calls.AddTags(c.Request.Context(), c.Param("id"), req.Tags)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Tags added", call)
}

type customerRequest struct {
	Name        string   `json:"name"`
	PhoneNumber string   `json:"phoneNumber"`
	Email       string   `json:"email"`
	Tags        []string `json:"tags"`
}

func (h Handlers) CreateCustomer(c *gin.Context) {
	var req customerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	cu, err := h.Calls.CreateCustomer(c.Request.Context(), req.Name, req.PhoneNumber, req.Email, req.Tags)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "Customer created", cu)
}

// --- Conferences ---

func (h Handlers) ConferenceAction(c *gin.Context) {
	action, ok := bindAction(c)
	if !ok {
		return
	}
	conf, err := h.Conferences.Act(c.Request.Context(), c.Param("id"), action, c.Param("pid"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), audit.Event{
		Type:          audit.EventTypeConference,
		ConferenceSID: conf.ConferenceSID,
		Action:        action,
		Metadata:      map[string]string{"participant_sid": c.Param("pid")},
	})
	respond(c, http.StatusOK, "Participant "+action+" successful", conf)
}

func (h Handlers) GetConference(c *gin.Context) {
	conf, err := h.Conferences.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Conference retrieved", conf)
}

const dateLayout = "2006-01-02"

// queryTime parses an optional time query parameter. It writes the failure itself.
func queryTime(c *gin.Context, key string) (time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(dateLayout, v); err == nil {
		return t.UTC(), true
	}
	fail(c, http.StatusBadRequest, key+" must be RFC 3339 or YYYY-MM-DD")
	return time.Time{}, false
}
