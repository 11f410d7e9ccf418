// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/somnus/internal/models"
)

const (
	defaultDetailLimit = 20
	maxDetailLimit     = 200
)

// ExperimentAnalytics returns the cross-session effectiveness analysis from
// the warehouse: preference rates, decision-time distribution, per-session
// details, and per-theme breakdown. limit caps the session detail rows.
//
// GET /api/v1/experiment/analytics?limit=20
func (h *Handler) ExperimentAnalytics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if h.analytics == nil {
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeInternal, "Analytics warehouse is not available", nil)
		return
	}

	limit := getIntParam(r, "limit", defaultDetailLimit)
	if limit < 1 {
		limit = defaultDetailLimit
	}
	if limit > maxDetailLimit {
		limit = maxDetailLimit
	}

	analytics, err := h.analytics.Analytics(r.Context(), limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondCacheable(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   analytics,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}
