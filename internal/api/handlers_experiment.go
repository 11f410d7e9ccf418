// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package api

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/somnus/internal/auth"
	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/models"
)

// GetSession returns the blinded view of an experiment session: pair order
// and track metadata, never the recommended-side assignment.
//
// GET /api/v1/experiment/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID := chi.URLParam(r, "id")

	sess, err := h.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   sess.View(),
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// SubmitChoice records one comparison choice. The route sits behind
// RequireSessionToken; this handler additionally checks that the presented
// token covers this session, so one participant cannot answer another's
// pairs with a valid token of their own.
//
// POST /api/v1/experiment/sessions/{id}/choices
func (h *Handler) SubmitChoice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID := chi.URLParam(r, "id")

	claims := auth.GetClaims(r.Context())
	if claims == nil || !claims.Covers(sessionID) {
		logging.Warn().
			Str("session_id", sanitizeLogValue(sessionID)).
			Msg("Choice submission with token for a different session")
		respondError(w, http.StatusForbidden, models.ErrCodeAuthentication, "Session token does not cover this session", nil)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFormBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "Failed to read request body", err)
		return
	}
	defer r.Body.Close()

	var req models.SubmitChoiceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, "Failed to parse choice JSON", err)
		return
	}

	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, http.StatusBadRequest, apiErr)
		return
	}

	sess, err := h.sessions.SubmitChoice(r.Context(), sessionID, req)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   sess.View(),
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// SessionResults returns the unblinded per-session summary. Only completed
// sessions have results; asking earlier answers SESSION_NOT_COMPLETED so the
// recommended-side assignment stays hidden while choices are still open.
//
// GET /api/v1/experiment/sessions/{id}/results
func (h *Handler) SessionResults(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID := chi.URLParam(r, "id")

	view, err := h.sessions.Results(r.Context(), sessionID)
	if err != nil {
		respondDomainError(w, err)
		return
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
