// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/somnus/internal/auth"
	"github.com/tomtom215/somnus/internal/config"
	"github.com/tomtom215/somnus/internal/corpus"
	"github.com/tomtom215/somnus/internal/experiment"
	"github.com/tomtom215/somnus/internal/form"
	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/middleware"
	"github.com/tomtom215/somnus/internal/models"
	"github.com/tomtom215/somnus/internal/pipeline"
	"github.com/tomtom215/somnus/internal/progress"
	"github.com/tomtom215/somnus/internal/results"
)

// apiVersion is reported by the status endpoint.
const apiVersion = "1.0.0"

// PipelineRunner runs the full recommendation pipeline for one form
// submission and returns its ranked result.
type PipelineRunner interface {
	Run(ctx context.Context, sub form.FormSubmission) (*pipeline.Result, error)
}

// SessionManager is the experiment lifecycle surface the API serves.
// Satisfied by *experiment.Manager.
type SessionManager interface {
	GetSession(ctx context.Context, sessionID string) (*experiment.Session, error)
	SubmitChoice(ctx context.Context, sessionID string, req models.SubmitChoiceRequest) (*experiment.Session, error)
	Results(ctx context.Context, sessionID string) (models.SessionResultsView, error)
	ActiveSessions(ctx context.Context) (int, error)
}

// TrackCatalog is the read-only corpus surface the API samples from.
// Satisfied by *corpus.Store.
type TrackCatalog interface {
	RandomTracks(n int) []corpus.Track
	Size() int
	Dimension() int
}

// AnalyticsProvider computes cross-session experiment analytics.
// Satisfied by *results.Warehouse.
type AnalyticsProvider interface {
	Analytics(ctx context.Context, detailLimit int) (*results.Analytics, error)
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, WebSocket upgrader (this file)
//   - handlers_recommend.go: recommendation run + random track sampling
//   - handlers_experiment.go: session view, choice submission, results
//   - handlers_analytics.go: cross-session analytics
//   - handlers_status.go: service status and liveness
//   - handlers_progress.go: WebSocket progress feed
type Handler struct {
	config    *config.Config
	pipeline  PipelineRunner
	sessions  SessionManager
	catalog   TrackCatalog
	analytics AnalyticsProvider
	tokens    *auth.TokenManager
	hub       *progress.Hub
	startTime time.Time
	perfMon   *middleware.PerformanceMonitor
}

// NewHandler creates the API handler. analytics may be nil when the results
// warehouse is disabled; the analytics endpoint then answers 503. tokens may
// not be nil: every created session's choice route depends on it.
func NewHandler(cfg *config.Config, pl PipelineRunner, sessions SessionManager, catalog TrackCatalog, analytics AnalyticsProvider, tokens *auth.TokenManager, hub *progress.Hub) *Handler {
	return &Handler{
		config:    cfg,
		pipeline:  pl,
		sessions:  sessions,
		catalog:   catalog,
		analytics: analytics,
		tokens:    tokens,
		hub:       hub,
		startTime: time.Now(),
		perfMon:   middleware.NewPerformanceMonitor(1000, 0),
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow-client attacks.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins. Browser
// WebSockets always send Origin; an empty header means a non-browser client
// and is rejected so the CORS allowlist cannot be bypassed.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	// Fail open only when there is no config at all (tests).
	if h.config == nil {
		return true
	}

	for _, allowedOrigin := range h.config.API.CORSOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}
