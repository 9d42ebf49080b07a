package main

import (
	"net/http"

	"callcenter/internal/auth"
	"callcenter/internal/httpapi"
	"callcenter/internal/rbac"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	Handlers httpapi.Handlers
	Auth     *auth.Manager

	// Twilio webhook signature check; nil disables it.
	Signature gin.HandlerFunc

	APILimit     gin.HandlerFunc
	AuthLimit    gin.HandlerFunc
	WebhookLimit gin.HandlerFunc

	Health  gin.HandlerFunc
	Metrics http.Handler
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	h := d.Handlers

	// public
	r.GET("/healthz", d.Health)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	// Provider webhooks: signed by Twilio, always answered with TwiML.
	wh := r.Group("/webhooks/twilio")
	wh.Use(d.WebhookLimit)
	if d.Signature != nil {
		wh.Use(d.Signature)
	}
	{
		wh.POST("/voice", h.Voice)
		wh.POST("/call-status", h.CallStatus)
		wh.POST("/recording-status", h.RecordingStatus)
		wh.POST("/transfer-complete", h.TransferComplete)
		wh.POST("/transfer-answered", h.TransferAnswered)
		wh.POST("/ivr", h.IVR)
		wh.POST("/queue", h.QueueExit)
		wh.POST("/queue-wait", h.QueueWait)
		wh.POST("/resume", h.Resume)
		wh.POST("/conference-status", h.ConferenceStatus)
	}

	// token issuance
	authGroup := r.Group("/v1/auth")
	authGroup.Use(d.AuthLimit, httpapi.RequestContext())
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(d.APILimit, auth.RequireAccessToken(d.Auth), httpapi.RequestContext())
	{
		v1.POST("/agents", rbac.RequireAnyRole(rbac.RoleAdmin), h.CreateAgent)

		self := rbac.RequireSelfOrRole("id", rbac.RoleSupervisor)
		ag := v1.Group("/agents/:id")
		ag.Use(self)
		{
			ag.GET("", h.GetAgent)
			ag.PUT("/status", h.UpdateAgentStatus)
			ag.GET("/current-call", h.CurrentCall)
			ag.GET("/call-history", h.CallHistory)
			ag.GET("/voice-token", h.VoiceToken)
		}

		calls := v1.Group("/calls")
		{
			calls.POST("", h.InitiateCall)
			calls.GET("", h.ListCalls)
			calls.GET("/metrics", rbac.RequireAnyRole(rbac.RoleSupervisor), h.CallMetrics)
			calls.GET("/:id", h.GetCall)
			calls.POST("/:id/transfer", h.TransferCall)
			calls.POST("/:id/hold", h.HoldCall)
			calls.POST("/:id/recording", h.RecordCall)
			calls.POST("/:id/end", h.EndCall)
			calls.POST("/:id/notes", h.AddNote)
			calls.POST("/:id/tags", h.AddTags)
		}

		conf := v1.Group("/conferences")
		{
			conf.GET("/:id", h.GetConference)
			conf.POST("/:id/participants/:pid", h.ConferenceAction)
		}

		v1.POST("/customers", rbac.RequireAnyRole(rbac.RoleSupervisor), h.CreateCustomer)
		v1.GET("/audit", rbac.RequireAnyRole(rbac.RoleSupervisor), h.ListAudit)
	}
}
