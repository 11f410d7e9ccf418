// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/models"
	"github.com/tomtom215/somnus/internal/progress"
)

// ProgressFeed upgrades to WebSocket and streams pipeline stage events for
// one run. The path's run_id scopes the subscription; the literal "all"
// subscribes to every run (operational dashboards).
//
// GET /api/v1/progress/{run_id}
func (h *Handler) ProgressFeed(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeInternal, "Progress feed is not available", nil)
		return
	}

	runID := chi.URLParam(r, "run_id")
	if runID == "all" {
		runID = ""
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response
		logging.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	logging.Info().
		Str("run_id", sanitizeLogValue(runID)).
		Str("remote_addr", r.RemoteAddr).
		Msg("Progress feed connected")

	progress.NewClient(h.hub, conn, runID).Start()
}
