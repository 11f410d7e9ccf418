// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package api

import (
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/somnus/internal/form"
	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/models"
)

const (
	// maxFormBytes bounds the submission body. Survey forms are a few
	// hundred bytes; anything near the limit is hostile.
	maxFormBytes = 1 << 20

	defaultRandomTracks = 5
	maxRandomTracks     = 50
)

// Recommendations runs the full pipeline for one survey submission and
// returns the ranked tracks plus the blinded experiment session.
//
// POST /api/v1/recommendations
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFormBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "Failed to read request body", err)
		return
	}
	defer r.Body.Close()

	var sub form.FormSubmission
	if err := json.Unmarshal(body, &sub); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "Failed to parse submission JSON", err)
		return
	}

	if apiErr := validateRequest(&sub); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	// Sanitize user-provided values before logging
	logging.Info().
		Str("user", sanitizeLogValue(sub.UserID)).
		Str("sleep_theme", sanitizeLogValue(sub.SleepTheme)).
		Str("sleep_goal", sanitizeLogValue(sub.SleepGoal)).
		Msg("Recommendation run requested")

	result, err := h.pipeline.Run(r.Context(), sub)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	view := result.View()
	if result.Session != nil {
		token, err := h.tokens.IssueToken(result.Session.SessionID, result.RunID)
		if err != nil {
			// A session without its token is unusable: the choice
			// route would reject every submission.
			respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "Failed to issue session token", err)
			return
		}
		view.Token = token
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   view,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// RandomTracks samples tracks uniformly from the corpus for pre-experiment
// browsing. The sample is fresh on every call and never cached.
//
// GET /api/v1/tracks/random?count=5
func (h *Handler) RandomTracks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	count := getIntParam(r, "count", defaultRandomTracks)
	if count < 1 {
		count = defaultRandomTracks
	}
	if count > maxRandomTracks {
		count = maxRandomTracks
	}

	tracks := h.catalog.RandomTracks(count)
	views := make([]models.TrackView, 0, len(tracks))
	for _, t := range tracks {
		views = append(views, models.TrackView{
			ID:       t.ID,
			Title:    t.Title,
			Artist:   t.Artist,
			AudioURL: t.AudioURL,
		})
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: models.RandomTracksView{
			Tracks: views,
			Count:  len(views),
		},
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}
