package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"callcenter/internal/agents"
	"callcenter/internal/audit"
	"callcenter/internal/auth"
	"callcenter/internal/calls"
	"callcenter/internal/conferences"
	"callcenter/internal/config"
	"callcenter/internal/reporting"
	"callcenter/internal/routing"
	"callcenter/internal/telephony"

	"github.com/gin-gonic/gin"
)

type webhookResult struct {
	kind string
	err  error
}

// testEnv is the full handler stack over in-memory stores and the fake provider.
type testEnv struct {
	h        Handlers
	provider *telephony.FakeProvider
	calls    *calls.MemoryRepo
	agents   *agents.Service
	confs    *conferences.MemoryRepo
	audit    *audit.MemoryRepo

	mu       sync.Mutex
	webhooks []webhookResult
}

func newTestEnv(t *testing.T, flow config.CallFlow) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authManager, err := auth.NewManager(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}

	env := &testEnv{
		provider: telephony.NewFakeProvider(),
		calls:    calls.NewMemoryRepo(),
		confs:    conferences.NewMemoryRepo(),
		audit:    audit.NewMemoryRepo(),
	}
	agentStore := agents.NewMemoryRepo()
	tracker := agents.NewTracker(agentStore, nil)
	env.agents = agents.NewService(agentStore, tracker)

	engine := calls.NewEngine(calls.Deps{
		Store:     env.calls,
		Customers: env.calls,
		Agents:    env.agents,
		Tracker:   tracker,
		Provider:  env.provider,
	}, calls.Options{
		CallerID:          "+15550001111",
		StatusCallbackURL: "https://cc.example.com/webhooks/twilio/call-status",
		DefaultQueue:      flow.DefaultQueue,
		Instructions: telephony.InstructionOptions{
			IVRPrompt:      flow.IVR.Prompt,
			IVRActionURL:   "https://cc.example.com/webhooks/twilio/ivr",
			WaitURL:        "https://cc.example.com/webhooks/twilio/queue-wait",
			QueueActionURL: "https://cc.example.com/webhooks/twilio/queue",
			WaitMusicURL:   flow.Music.Wait,
			HoldMusicURL:   flow.Music.Hold,
		},
	})

	env.h = Handlers{
		Auth:        authManager,
		Agents:      env.agents,
		Calls:       engine,
		Conferences: conferences.NewManager(env.confs, env.provider, engine),
		Router:      routing.NewEngine(flow, env.agents, nil),
		Reports:     reporting.NewService(reporting.NewCallStoreRepo(env.calls)),
		Audit:       audit.NewService(env.audit),
		Sweeper:     calls.NewSweeper(env.calls, env.agents, tracker),
		OnWebhook: func(kind string, err error) {
			env.mu.Lock()
			env.webhooks = append(env.webhooks, webhookResult{kind, err})
			env.mu.Unlock()
		},
	}
	return env
}

func (env *testEnv) webhookRouter() *gin.Engine {
	r := gin.New()
	wh := r.Group("/webhooks/twilio")
	wh.POST("/voice", env.h.Voice)
	wh.POST("/call-status", env.h.CallStatus)
	wh.POST("/recording-status", env.h.RecordingStatus)
	wh.POST("/transfer-complete", env.h.TransferComplete)
	wh.POST("/transfer-answered", env.h.TransferAnswered)
	wh.POST("/ivr", env.h.IVR)
	wh.POST("/queue", env.h.QueueExit)
	wh.POST("/queue-wait", env.h.QueueWait)
	wh.POST("/conference-status", env.h.ConferenceStatus)
	return r
}

func (env *testEnv) seedAgent(t *testing.T, email, ext, role string, skills ...string) agents.Agent {
	t.Helper()
	a, err := env.agents.Create(context.Background(), agents.CreateRequest{
		Name:      strings.Split(email, "@")[0],
		Email:     email,
		Password:  "correct horse battery",
		Extension: ext,
		Skills:    skills,
		Role:      role,
	})
	if err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	return a
}

func (env *testEnv) lastWebhook(t *testing.T) webhookResult {
	t.Helper()
	env.mu.Lock()
	defer env.mu.Unlock()
	if len(env.webhooks) == 0 {
		t.Fatalf("no webhook observed")
	}
	return env.webhooks[len(env.webhooks)-1]
}

func postForm(r http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)
	return w
}
