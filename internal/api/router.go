// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/somnus/internal/auth"
	"github.com/tomtom215/somnus/internal/middleware"
)

// Router wires handlers and middleware into the chi route tree.
type Router struct {
	handler *Handler
	auth    *auth.Middleware
}

// NewRouter creates a router around the handler and the auth middleware.
func NewRouter(handler *Handler, authMW *auth.Middleware) *Router {
	return &Router{
		handler: handler,
		auth:    authMW,
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)    // X-Request-ID header plus logging context
	r.Use(chimiddleware.RealIP)    // Extract real IP from X-Forwarded-For
	r.Use(chimiddleware.Recoverer) // Recover from panics
	r.Use(router.auth.CORS)        // Global so OPTIONS preflight is always handled

	// ========================
	// API Endpoints
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.auth.RateLimit)
		r.Use(middleware.PrometheusMetrics)
		r.Use(router.handler.perfMon.Middleware)
		r.Use(middleware.Compression)

		r.Post("/recommendations", router.handler.Recommendations)
		r.Get("/tracks/random", router.handler.RandomTracks)
		r.Get("/status", router.handler.Status)

		r.Route("/experiment", func(r chi.Router) {
			r.Get("/analytics", router.handler.ExperimentAnalytics)
			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Get("/", router.handler.GetSession)
				r.Get("/results", router.handler.SessionResults)

				// Choice submission is the one write endpoint; it
				// requires the session token issued with the run.
				r.With(router.auth.RequireSessionToken).Post("/choices", router.handler.SubmitChoice)
			})
		})

		r.Get("/progress/{run_id}", router.handler.ProgressFeed)
	})

	// ========================
	// Observability
	// ========================
	r.Get("/healthz", router.handler.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
