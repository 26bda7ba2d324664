package api

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/orchestrator"
	"github.com/kbukum/flowkit/server/endpoint"
	"github.com/kbukum/flowkit/server/middleware"
	"github.com/kbukum/flowkit/sse"
)

// Prefix is the versioned API root.
const Prefix = "/api/v1"

// Options configure the routes.
type Options struct {
	ServiceName string
	// Auth protects everything under Prefix when its secret is set.
	Auth middleware.JWTConfig
	// Health reports component health on /health.
	Health endpoint.HealthChecker
}

// Handler serves the orchestrator over HTTP.
type Handler struct {
	orch *orchestrator.Orchestrator
	hub  *sse.Hub
	log  *logger.Logger
}

// New returns a handler for orch. hub may be nil, which disables /stream.
func New(orch *orchestrator.Orchestrator, hub *sse.Hub, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Get("api")
	}
	return &Handler{orch: orch, hub: hub, log: log}
}

// Register mounts the probe endpoints and the v1 API on r.
func (h *Handler) Register(r gin.IRouter, opts Options) {
	r.GET("/health", endpoint.Health(opts.ServiceName, opts.Health))
	r.GET("/livez", endpoint.Liveness())
	r.GET("/version", endpoint.Version())

	v1 := r.Group(Prefix)
	if opts.Auth.Enabled() {
		v1.Use(middleware.Auth(opts.Auth))
	}

	wf := v1.Group("/workflows")
	wf.GET("", h.listWorkflows)
	wf.POST("", h.createWorkflow)
	wf.GET("/:id", h.getWorkflow)
	wf.DELETE("/:id", h.deleteWorkflow)
	wf.POST("/:id/validate", h.validateWorkflow)
	wf.POST("/:id/execute", h.executeWorkflow)

	inst := v1.Group("/instances")
	inst.GET("", h.listInstances)
	inst.GET("/:id", h.getInstance)
	inst.POST("/:id/pause", h.pauseInstance)
	inst.POST("/:id/resume", h.resumeInstance)
	inst.POST("/:id/cancel", h.cancelInstance)

	sc := v1.Group("/schedules")
	sc.GET("", h.listSchedules)
	sc.POST("", h.createSchedule)
	sc.GET("/:id", h.getSchedule)
	sc.DELETE("/:id", h.deleteSchedule)
	sc.POST("/:id/enable", h.enableSchedule)
	sc.POST("/:id/disable", h.disableSchedule)
	sc.POST("/:id/trigger", h.triggerSchedule)
	sc.GET("/:id/jobs", h.scheduleJobs)

	v1.GET("/jobs/:id", h.getJob)
	v1.POST("/jobs/:id/cancel", h.cancelJob)
	v1.POST("/events/:name", h.emitEvent)

	if h.hub != nil {
		v1.GET("/stream", h.stream)
	}
}

// runRequest is the optional body of execute, trigger and event calls.
type runRequest struct {
	Parameters map[string]any `json:"parameters"`
}

// bindOptional decodes a JSON body into v. An empty body leaves v unchanged.
func bindOptional(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.InvalidInput("body", err.Error())
	}
	return nil
}

// actor labels work started through the API with the token subject, if any.
func actor(c *gin.Context) string {
	if subject := c.GetString(middleware.SubjectKey); subject != "" {
		return "api:" + subject
	}
	return "api"
}

// detached keeps request values such as the request id but outlives the
// request, for work that continues after the response.
func detached(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}
