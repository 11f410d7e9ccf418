// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/models"
)

// Status reports service readiness: collaborator configuration, corpus size
// and embedding dimension, active session count, and uptime. "ok" means every
// collaborator is configured; "degraded" means the pipeline will refuse runs
// that need the missing one.
//
// GET /api/v1/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	collaborators := []models.CollaboratorStatus{
		{Name: "llm", Endpoint: h.config.LLM.Endpoint, Available: h.config.LLM.Endpoint != ""},
		{Name: "synthesis", Endpoint: h.config.Synthesis.Endpoint, Available: h.config.Synthesis.Endpoint != ""},
		{Name: "embedding", Endpoint: h.config.Embedding.Endpoint, Available: h.config.Embedding.Endpoint != ""},
	}

	status := "ok"
	for _, c := range collaborators {
		if !c.Available {
			status = "degraded"
			break
		}
	}

	activeSessions := 0
	if n, err := h.sessions.ActiveSessions(r.Context()); err != nil {
		logging.Warn().Err(err).Msg("Failed to count active sessions for status")
	} else {
		activeSessions = n
	}

	respondCacheable(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: models.StatusView{
			Status:         status,
			Version:        apiVersion,
			CorpusSize:     h.catalog.Size(),
			EmbeddingDim:   h.catalog.Dimension(),
			ActiveSessions: activeSessions,
			Collaborators:  collaborators,
			UptimeSeconds:  int64(time.Since(h.startTime).Seconds()),
		},
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// Healthz is the liveness probe: no dependency checks, answers as long as
// the process serves requests.
//
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":          true,
			"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
