package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callcenter/internal/agents"
	"callcenter/internal/audit"
	"callcenter/internal/auth"
	"callcenter/internal/calls"
	"callcenter/internal/conferences"
	"callcenter/internal/config"
	"callcenter/internal/events"
	"callcenter/internal/httpapi"
	"callcenter/internal/metrics"
	"callcenter/internal/reporting"
	"callcenter/internal/routing"
	"callcenter/internal/telephony"
	"callcenter/pkg/logger"
	"callcenter/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	flow := config.DefaultCallFlow()
	if cfg.CallFlowFile != "" {
		if flow, err = config.LoadCallFlow(cfg.CallFlowFile); err != nil {
			log.Error("call flow load failed", "err", err, "file", cfg.CallFlowFile)
			os.Exit(1)
		}
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		log.Error("metrics init failed", "err", err)
		os.Exit(1)
	}

	pub, err := newPublisher(cfg.MQTT)
	if err != nil {
		log.Error("mqtt init failed", "err", err)
		os.Exit(1)
	}
	defer pub.Close()
	notifier := events.NewNotifier(pub, cfg.MQTT.TopicPrefix)
	notifier.OnFailure = metrics.EventPublishFailures.Inc

	var provider telephony.Provider = telephony.NewFakeProvider()
	if cfg.Twilio.Enabled() {
		provider = telephony.NewTwilioProvider(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
	} else {
		log.Warn("twilio credentials missing; using the fake provider")
	}
	provider = telephony.Observed(provider, metrics.ObserveProvider)

	// Stores
	agentStore := agents.NewPostgresRepo(db)
	callStore := calls.NewPostgresRepo(db)

	tracker := agents.NewTracker(agentStore, notifier)
	tracker.OnRelease = metrics.AgentsReleased.Inc
	agentSvc := agents.NewService(agentStore, tracker)

	engine := calls.NewEngine(calls.Deps{
		Store:     callStore,
		Customers: callStore,
		Agents:    agentSvc,
		Tracker:   tracker,
		Provider:  provider,
		Guard:     calls.NewRedisDialGuard(rdb, "callcenter", 30*time.Second),
		Events:    notifier,
	}, engineOptions(cfg, flow))
	engine.OnTransition = func(from, to calls.Status) { metrics.ObserveTransition(string(from), string(to)) }
	engine.OnIgnored = metrics.ObserveIgnored

	sweeper := calls.NewSweeper(callStore, agentSvc, tracker)
	sweeper.OnRepair = metrics.SweepRepairs.Inc

	confs := conferences.NewManager(conferences.NewPostgresRepo(db), provider, engine)

	h := httpapi.Handlers{
		Auth:        authManager,
		Agents:      agentSvc,
		Calls:       engine,
		Conferences: confs,
		Router:      routing.NewEngine(flow, agentSvc, nil),
		Reports:     reporting.NewService(reporting.NewPostgresRepo(db)),
		Audit:       audit.NewService(audit.NewPostgresRepo(db)),
		Sweeper:     sweeper,
		VoiceTokens: telephony.VoiceTokenIssuer{
			AccountSID:     cfg.Twilio.AccountSID,
			APIKey:         cfg.Twilio.APIKey,
			APISecret:      cfg.Twilio.APISecret,
			ApplicationSID: cfg.Twilio.TwimlAppSID,
			TTL:            time.Hour,
		},
		OnWebhook: metrics.ObserveWebhook,
	}

	apiLimiter := httpapi.NewIPRateLimiter(httpapi.RateLimitConfig{Rate: rate.Limit(cfg.RateLimit.RPS), Burst: cfg.RateLimit.Burst})
	authLimiter := httpapi.NewIPRateLimiter(httpapi.RateLimitConfig{Rate: rate.Limit(cfg.RateLimit.AuthRPS), Burst: cfg.RateLimit.AuthBurst})
	// Twilio retries and fans out callbacks from a small set of addresses.
	webhookLimiter := httpapi.NewIPRateLimiter(httpapi.RateLimitConfig{Rate: 200, Burst: 400})
	for _, rl := range []*httpapi.IPRateLimiter{apiLimiter, authLimiter, webhookLimiter} {
		go rl.Run(rootCtx)
	}

	go sweeper.Run(rootCtx, cfg.SweepInterval)

	var signature gin.HandlerFunc
	if cfg.Twilio.ValidateSignature && cfg.Twilio.AuthToken != "" {
		signature = telephony.RequireTwilioSignature(cfg.Twilio.AuthToken, cfg.App.BaseURL)
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		Handlers:     h,
		Auth:         authManager,
		Signature:    signature,
		APILimit:     httpapi.RateLimit(apiLimiter, metrics.RateLimited.WithLabelValues("api").Inc),
		AuthLimit:    httpapi.RateLimit(authLimiter, metrics.RateLimited.WithLabelValues("auth").Inc),
		WebhookLimit: httpapi.RateLimit(webhookLimiter, metrics.RateLimited.WithLabelValues("webhook").Inc),
		Health:       healthz(db, rdb),
		Metrics:      metrics.Handler(reg),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "provider", provider.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

func newPublisher(cfg config.MQTTConfig) (events.Publisher, error) {
	if cfg.Broker == "" {
		return events.NoopPublisher{}, nil
	}
	return events.NewMQTTPublisher(events.MQTTOptions{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		QoS:      byte(cfg.QoS),
	})
}

// engineOptions maps configuration and the call flow onto the TwiML callback URLs
// and prompts the engine serves.
func engineOptions(cfg config.Config, flow config.CallFlow) calls.Options {
	return calls.Options{
		CallerID:                   cfg.Twilio.PhoneNumber,
		StatusCallbackURL:          cfg.WebhookURL("call-status"),
		RecordingStatusCallbackURL: cfg.WebhookURL("recording-status"),
		DefaultQueue:               flow.DefaultQueue,
		Instructions: telephony.InstructionOptions{
			Voice:           flow.Voice,
			Language:        flow.Language,
			IVRPrompt:       flow.IVR.Prompt,
			IVRActionURL:    cfg.WebhookURL("ivr"),
			GatherTimeout:   flow.IVR.Timeout,
			GatherNumDigits: flow.IVR.NumDigits,
			WaitURL:         cfg.WebhookURL("queue-wait"),
			WorkflowSID:     cfg.Twilio.WorkflowSID,
			QueueActionURL:  cfg.WebhookURL("queue"),
			WaitMusicURL:    flow.Music.Wait,
			HoldMusicURL:    flow.Music.Hold,
			ResumeURL:       cfg.WebhookURL("resume"),

			TransferActionURL:   cfg.WebhookURL("transfer-complete"),
			TransferAnsweredURL: cfg.WebhookURL("transfer-answered"),
		},
	}
}

func healthz(db *sql.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := utils.HealthCheck(ctx, db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := utils.PingRedis(ctx, rdb, time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
