package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"callcenter/internal/agents"
	"callcenter/internal/audit"
	"callcenter/internal/auth"
	"callcenter/internal/calls"
	"callcenter/internal/conferences"
	"callcenter/internal/rbac"
	"callcenter/internal/reporting"
	"callcenter/internal/routing"
	"callcenter/internal/telephony"
	"callcenter/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth        *auth.Manager
	Agents      *agents.Service
	Calls       *calls.Engine
	Conferences *conferences.Manager
	Router      *routing.Engine
	Reports     *reporting.Service
	Audit       *audit.Service
	Sweeper     *calls.Sweeper
	VoiceTokens telephony.VoiceTokenIssuer

	// OnWebhook observes every provider webhook outcome (metrics).
	OnWebhook func(kind string, err error)

	Clock func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

// --- Auth ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	Agent        *agents.Agent `json:"agent,omitempty"`
}

// Login checks credentials and issues a JWT token pair.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, "Email and password are required")
		return
	}
	a, err := h.Agents.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	pair, err := h.Auth.IssuePair(h.now(), a.ID, a.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Login successful", tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, Agent: &a})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh trades a refresh token for a new pair. The role is re-read from the
// agent record since refresh tokens do not carry it.
func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		fail(c, http.StatusBadRequest, "refresh_token is required")
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, h.now())
	if err != nil {
		fail(c, http.StatusUnauthorized, "Invalid token")
		return
	}
	a, err := h.Agents.Get(c.Request.Context(), claims.AgentID)
	if err != nil {
		if errors.Is(err, agents.ErrAgentNotFound) {
			fail(c, http.StatusUnauthorized, "Invalid token")
			return
		}
		respondError(c, err)
		return
	}
	pair, err := h.Auth.IssuePair(h.now(), a.ID, a.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Token refreshed", tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// --- Agents ---

func (h Handlers) CreateAgent(c *gin.Context) {
	var req agents.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	a, err := h.Agents.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), audit.Event{Type: audit.EventTypeAgentCreate, AgentID: a.ID, Action: "create", Message: a.Email})
	respond(c, http.StatusCreated, "Agent created", a)
}

// GetAgent returns the agent after reconciling a stale busy state against its call.
func (h Handlers) GetAgent(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if h.Sweeper != nil {
		if _, err := h.Sweeper.RepairAgent(ctx, id); err != nil && !errors.Is(err, agents.ErrAgentNotFound) {
			logger.FromGin(c).Warn("agent repair failed", "agent_id", id, "err", err)
		}
	}
	a, err := h.Agents.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Agent retrieved", a)
}

type statusRequest struct {
	Status agents.Status `json:"status"`
}

func (h Handlers) UpdateAgentStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	a, err := h.Agents.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	h.Audit.Record(c.Request.Context(), audit.Event{Type: audit.EventTypeAgentStatus, AgentID: a.ID, Action: string(a.Status)})
	respond(c, http.StatusOK, "Agent status updated", a)
}

func (h Handlers) CurrentCall(c *gin.Context) {
	call, err := h.Calls.CurrentCall(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Current call retrieved", call)
}

func (h Handlers) CallHistory(c *gin.Context) {
	limit, offset, ok := paging(c)
	if !ok {
		return
	}
	list, err := h.Calls.History(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Call history retrieved", list)
}

// VoiceToken issues a softphone token whose identity is the agent's extension.
func (h Handlers) VoiceToken(c *gin.Context) {
	a, err := h.Agents.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	tok, err := h.VoiceTokens.Issue(a.Extension)
	if err != nil {
		if errors.Is(err, telephony.ErrVoiceTokenNotConfigured) {
			fail(c, http.StatusServiceUnavailable, "Voice tokens are not configured")
			return
		}
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Voice token issued", gin.H{"token": tok, "identity": a.Extension})
}

// --- Audit ---

func (h Handlers) ListAudit(c *gin.Context) {
	limit, _, ok := paging(c)
	if !ok {
		return
	}
	evs, err := h.Audit.List(c.Request.Context(), audit.Filter{
		CallSID:       c.Query("callSid"),
		ConferenceSID: c.Query("conferenceSid"),
		ActorAgentID:  c.Query("actorId"),
		Type:          audit.EventType(c.Query("type")),
		Limit:         limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "Audit events retrieved", evs)
}

// paging reads limit and offset query parameters. It writes the failure itself.
func paging(c *gin.Context) (limit, offset int, ok bool) {
	var err error
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			fail(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return 0, 0, false
		}
	}
	if v := c.Query("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			fail(c, http.StatusBadRequest, "offset must be a non-negative integer")
			return 0, 0, false
		}
	}
	return limit, offset, true
}

// actingAgent returns the caller's agent id and whether they may act for others.
func actingAgent(c *gin.Context) (string, bool) {
	ctx := c.Request.Context()
	id, _ := auth.AgentID(ctx)
	role, _ := auth.Role(ctx)
	return id, role == rbac.RoleSupervisor || rbac.IsAdmin(role)
}
