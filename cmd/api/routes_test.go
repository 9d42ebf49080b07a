package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"callcenter/internal/agents"
	"callcenter/internal/audit"
	"callcenter/internal/auth"
	"callcenter/internal/calls"
	"callcenter/internal/conferences"
	"callcenter/internal/config"
	"callcenter/internal/httpapi"
	"callcenter/internal/rbac"
	"callcenter/internal/reporting"
	"callcenter/internal/routing"
	"callcenter/internal/telephony"

	"github.com/gin-gonic/gin"
)

type apiFixture struct {
	router   *gin.Engine
	agents   *agents.Service
	provider *telephony.FakeProvider
	audit    *audit.MemoryRepo
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		App:    config.AppConfig{Env: "test", BaseURL: "https://cc.example.com"},
		Twilio: config.TwilioConfig{PhoneNumber: "+15550001111"},
	}
	flow := config.DefaultCallFlow()

	authManager, err := auth.NewManager(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}

	f := &apiFixture{provider: telephony.NewFakeProvider(), audit: audit.NewMemoryRepo()}
	agentStore := agents.NewMemoryRepo()
	callStore := calls.NewMemoryRepo()
	tracker := agents.NewTracker(agentStore, nil)
	f.agents = agents.NewService(agentStore, tracker)

	engine := calls.NewEngine(calls.Deps{
		Store:     callStore,
		Customers: callStore,
		Agents:    f.agents,
		Tracker:   tracker,
		Provider:  f.provider,
	}, engineOptions(cfg, flow))

	h := httpapi.Handlers{
		Auth:        authManager,
		Agents:      f.agents,
		Calls:       engine,
		Conferences: conferences.NewManager(conferences.NewMemoryRepo(), f.provider, engine),
		Router:      routing.NewEngine(flow, f.agents, nil),
		Reports:     reporting.NewService(reporting.NewCallStoreRepo(callStore)),
		Audit:       audit.NewService(f.audit),
		Sweeper:     calls.NewSweeper(callStore, f.agents, tracker),
	}

	pass := func(c *gin.Context) { c.Next() }
	f.router = gin.New()
	registerRoutes(f.router, routeDeps{
		Handlers:     h,
		Auth:         authManager,
		APILimit:     pass,
		AuthLimit:    pass,
		WebhookLimit: pass,
		Health:       func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) },
	})
	return f
}

func (f *apiFixture) seed(t *testing.T, email, ext, role string) agents.Agent {
	t.Helper()
	a, err := f.agents.Create(context.Background(), agents.CreateRequest{
		Name: ext, Email: email, Password: "correct horse battery", Extension: ext, Role: role,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return a
}

type apiResponse struct {
	Success bool            `json:"success"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s %s: %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, out
}

func (f *apiFixture) login(t *testing.T, email string) string {
	t.Helper()
	code, res := f.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": email, "password": "correct horse battery"})
	if code != http.StatusOK {
		t.Fatalf("login %s: %d %+v", email, code, res)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(res.Data, &tok); err != nil || tok.AccessToken == "" {
		t.Fatalf("no access token in %s", res.Data)
	}
	return tok.AccessToken
}

func TestLogin(t *testing.T) {
	f := newAPIFixture(t)
	f.seed(t, "ada@example.com", "1001", rbac.RoleAgent)

	code, res := f.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "ada@example.com", "password": "wrong"})
	if code != http.StatusUnauthorized || res.Success || res.Status != "fail" {
		t.Fatalf("expected 401 fail envelope, got %d %+v", code, res)
	}

	code, res = f.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "ada@example.com"})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", code)
	}

	code, res = f.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "ADA@example.com", "password": "correct horse battery"})
	if code != http.StatusOK || !res.Success {
		t.Fatalf("expected login success, got %d %+v", code, res)
	}
	if strings.Contains(string(res.Data), "correct horse battery") || strings.Contains(string(res.Data), "password_hash") {
		t.Fatalf("credentials leaked in response: %s", res.Data)
	}
}

func TestProtectedRoutesRequireTokenAndRole(t *testing.T) {
	f := newAPIFixture(t)
	ada := f.seed(t, "ada@example.com", "1001", rbac.RoleAgent)
	bob := f.seed(t, "bob@example.com", "1002", rbac.RoleAgent)
	f.seed(t, "root@example.com", "9000", rbac.RoleAdmin)

	code, res := f.do(t, http.MethodGet, "/v1/agents/"+ada.ID, "", nil)
	if code != http.StatusUnauthorized || res.Message != "Missing bearer token" {
		t.Fatalf("expected 401 missing token, got %d %+v", code, res)
	}

	tok := f.login(t, "ada@example.com")
	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"own agent", http.MethodGet, "/v1/agents/" + ada.ID, nil, http.StatusOK},
		{"other agent", http.MethodGet, "/v1/agents/" + bob.ID, nil, http.StatusForbidden},
		{"create agent", http.MethodPost, "/v1/agents", gin.H{"name": "x"}, http.StatusForbidden},
		{"metrics", http.MethodGet, "/v1/calls/metrics", nil, http.StatusForbidden},
		{"audit", http.MethodGet, "/v1/audit", nil, http.StatusForbidden},
		{"own history", http.MethodGet, "/v1/agents/" + ada.ID + "/call-history", nil, http.StatusOK},
		{"call for someone else", http.MethodPost, "/v1/calls", gin.H{"to": "+14155550100", "agentId": bob.ID}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, res := f.do(t, tc.method, tc.path, tok, tc.body)
			if code != tc.want {
				t.Fatalf("expected %d, got %d %+v", tc.want, code, res)
			}
		})
	}

	admin := f.login(t, "root@example.com")
	if code, res := f.do(t, http.MethodGet, "/v1/calls/metrics", admin, nil); code != http.StatusOK {
		t.Fatalf("admin metrics: %d %+v", code, res)
	}
	code, res = f.do(t, http.MethodPost, "/v1/agents", admin, gin.H{
		"name": "Cy", "email": "cy@example.com", "password": "hunter22hunter", "extension": "1003",
	})
	if code != http.StatusCreated {
		t.Fatalf("admin create agent: %d %+v", code, res)
	}
}

func TestInitiateThroughCompletion(t *testing.T) {
	f := newAPIFixture(t)
	ada := f.seed(t, "ada@example.com", "1001", rbac.RoleAgent)
	tok := f.login(t, "ada@example.com")

	if code, res := f.do(t, http.MethodPut, "/v1/agents/"+ada.ID+"/status", tok, gin.H{"status": "available"}); code != http.StatusOK {
		t.Fatalf("set available: %d %+v", code, res)
	}

	code, res := f.do(t, http.MethodPost, "/v1/calls", tok, gin.H{"to": "0201234567", "callType": "direct"})
	if code != http.StatusCreated || res.Message != "Call initiated successfully" {
		t.Fatalf("initiate: %d %+v", code, res)
	}
	var call calls.Call
	if err := json.Unmarshal(res.Data, &call); err != nil {
		t.Fatalf("decode call: %v", err)
	}
	if call.To != "+201234567" || call.AgentID != ada.ID || call.Status != calls.StatusQueued {
		t.Fatalf("unexpected call %+v", call)
	}
	if len(f.provider.Placed) != 1 || f.provider.Placed[0].StatusCallbackURL != "https://cc.example.com/webhooks/twilio/call-status" {
		t.Fatalf("unexpected placed calls %+v", f.provider.Placed)
	}

	a, _ := f.agents.Get(context.Background(), ada.ID)
	if a.Status != agents.StatusBusy || a.CurrentCallSID != call.CallSID {
		t.Fatalf("agent not busy on the call: %+v", a)
	}

	evs := f.audit.Events()
	if len(evs) == 0 || evs[len(evs)-1].Type != audit.EventTypeInitiate || evs[len(evs)-1].ActorAgentID != ada.ID {
		t.Fatalf("initiate not audited with actor: %+v", evs)
	}

	// A second initiate while busy is rejected.
	if code, _ := f.do(t, http.MethodPost, "/v1/calls", tok, gin.H{"to": "+14155550100"}); code != http.StatusBadRequest {
		t.Fatalf("expected busy agent to be rejected, got %d", code)
	}

	for _, status := range []string{"ringing", "in-progress"} {
		postStatus(f.router, call.CallSID, status, "")
	}
	w := postStatus(f.router, call.CallSID, "completed", "42")
	if w.Code != http.StatusOK {
		t.Fatalf("call-status: %d", w.Code)
	}

	code, res = f.do(t, http.MethodGet, "/v1/calls/"+call.CallSID, tok, nil)
	if code != http.StatusOK {
		t.Fatalf("get call: %d", code)
	}
	_ = json.Unmarshal(res.Data, &call)
	if call.Status != calls.StatusCompleted || call.Metrics.CallDuration != 42 {
		t.Fatalf("unexpected final call %+v", call)
	}

	a, _ = f.agents.Get(context.Background(), ada.ID)
	if a.Status != agents.StatusAvailable || a.CurrentCallSID != "" {
		t.Fatalf("agent not released: %+v", a)
	}
}

func TestTransferUnknownCall(t *testing.T) {
	f := newAPIFixture(t)
	f.seed(t, "lead@example.com", "2001", rbac.RoleSupervisor)
	bob := f.seed(t, "bob@example.com", "1002", rbac.RoleAgent)
	tok := f.login(t, "lead@example.com")

	code, res := f.do(t, http.MethodPost, "/v1/calls/CAmissing/transfer", tok, gin.H{"targetAgentId": bob.ID})
	if code != http.StatusNotFound || res.Message != "Call not found" {
		t.Fatalf("expected 404 Call not found, got %d %+v", code, res)
	}
	if f.provider.Calls() != 0 {
		t.Fatalf("expected no provider calls, got %d", f.provider.Calls())
	}
}

func postStatus(r http.Handler, callSID, status, duration string) *httptest.ResponseRecorder {
	form := url.Values{"CallSid": {callSID}, "CallStatus": {status}}
	if duration != "" {
		form.Set("CallDuration", duration)
	}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/call-status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
