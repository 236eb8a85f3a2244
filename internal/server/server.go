// Package server provides the HTTP API for caseflowd.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lexfoundry/caseflowd/internal/orchestrator"
	"github.com/lexfoundry/caseflowd/internal/persist"
	"github.com/lexfoundry/caseflowd/internal/session"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// RateLimit is requests per second per client IP; RateBurst is the
	// allowed burst above it.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 8465
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 5
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 10
	}
}

// Server exposes case submission, status, report, and resume over HTTP.
type Server struct {
	echo   *echo.Echo
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
	config Config

	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
}

// NewServer creates the HTTP server.
func NewServer(orch *orchestrator.Orchestrator, logger *zap.Logger, config Config) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:        e,
		orch:        orch,
		logger:      logger,
		config:      config,
		limiters:    make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.rateLimit)
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/cases", s.handleSubmit)
	v1.GET("/cases/:id", s.handleStatus)
	v1.GET("/cases/:id/report", s.handleReport)
	v1.POST("/cases/:id/resume", s.handleResume)
	v1.DELETE("/cases/:id", s.handleAbort)
}

// rateLimit throttles per client IP. Limiters are dropped wholesale once
// an hour so the map cannot grow without bound.
func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.limiterFor(c.RealIP()).Allow() {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		}
		return next(c)
	}
}

func (s *Server) limiterFor(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.lastCleanup) > time.Hour {
		s.limiters = make(map[string]*rate.Limiter)
		s.lastCleanup = time.Now()
	}

	limiter, ok := s.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.config.RateLimit), s.config.RateBurst)
		s.limiters[ip] = limiter
	}
	return limiter
}

// SubmitRequest is the request body for POST /api/v1/cases.
type SubmitRequest struct {
	Facts         string     `json:"facts"`
	Jurisdiction  string     `json:"jurisdiction"`
	CaseType      string     `json:"case_type"`
	DocumentType  string     `json:"document_type,omitempty"`
	Sections      []string   `json:"sections,omitempty"`
	IncidentDate  *time.Time `json:"incident_date,omitempty"`
	MonthlyIncome float64    `json:"monthly_income,omitempty"`
}

// SubmitResponse is the response body for POST /api/v1/cases.
type SubmitResponse struct {
	CaseID    string             `json:"case_id"`
	Status    session.Status     `json:"status"`
	RiskFlags []session.RiskFlag `json:"risk_flags,omitempty"`
}

// StatusResponse summarizes a session for GET /api/v1/cases/:id.
type StatusResponse struct {
	CaseID    string         `json:"case_id"`
	Status    session.Status `json:"status"`
	Stages    []StageStatus  `json:"stages"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// StageStatus is one stage record in a StatusResponse.
type StageStatus struct {
	Stage      string              `json:"stage"`
	State      session.RecordState `json:"state"`
	Confidence session.Confidence  `json:"confidence,omitempty"`
	Handoff    session.Decision    `json:"handoff,omitempty"`
	Reason     string              `json:"reason,omitempty"`
	Superseded bool                `json:"superseded,omitempty"`
}

// ResumeRequest is the request body for POST /api/v1/cases/:id/resume.
type ResumeRequest struct {
	Stage      string `json:"stage"`
	Decision   string `json:"decision"`
	Correction string `json:"correction,omitempty"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleSubmit(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid submit request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	intake := session.Intake{
		Facts:         req.Facts,
		Jurisdiction:  req.Jurisdiction,
		CaseType:      session.CaseType(req.CaseType),
		DocumentType:  req.DocumentType,
		Sections:      req.Sections,
		IncidentDate:  req.IncidentDate,
		MonthlyIncome: req.MonthlyIncome,
	}
	if err := intake.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sess, err := s.orch.Submit(c.Request().Context(), intake)
	if err != nil {
		s.logger.Error("submit failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "case submission failed")
	}

	return c.JSON(http.StatusAccepted, SubmitResponse{
		CaseID:    sess.CaseID,
		Status:    sess.Status,
		RiskFlags: sess.RiskFlags,
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	sess, err := s.orch.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.caseError(err)
	}

	resp := StatusResponse{
		CaseID:    sess.CaseID,
		Status:    sess.Status,
		Stages:    make([]StageStatus, 0, len(sess.Records)),
		UpdatedAt: sess.UpdatedAt,
	}
	for _, rec := range sess.Records {
		resp.Stages = append(resp.Stages, StageStatus{
			Stage:      rec.StageName,
			State:      rec.State,
			Confidence: rec.ValidatedConfidence,
			Handoff:    rec.Handoff,
			Reason:     rec.HandoffReason,
			Superseded: rec.SupersededBy != "",
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleReport(c echo.Context) error {
	report, err := s.orch.ReportFor(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.caseError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleResume(c echo.Context) error {
	var req ResumeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Stage == "" || req.Decision == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "stage and decision fields are required")
	}

	report, err := s.orch.Resume(c.Request().Context(), c.Param("id"), req.Stage, req.Decision, req.Correction)
	if err != nil {
		if errors.Is(err, persist.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "case not found")
		}
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleAbort(c echo.Context) error {
	if err := s.orch.Abort(c.Request().Context(), c.Param("id")); err != nil {
		return s.caseError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) caseError(err error) error {
	if errors.Is(err, persist.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "case not found")
	}
	s.logger.Error("case lookup failed", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
