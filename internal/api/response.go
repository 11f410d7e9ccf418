// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/somnus/internal/analysis"
	"github.com/tomtom215/somnus/internal/embedding"
	"github.com/tomtom215/somnus/internal/experiment"
	"github.com/tomtom215/somnus/internal/llm"
	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/models"
	"github.com/tomtom215/somnus/internal/synthesis"
	"github.com/tomtom215/somnus/internal/validation"
)

// sanitizeLogValue removes control characters from strings to prevent log
// injection. Newlines, carriage returns, and other control characters could
// otherwise let a submitted form value forge log entries.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends an envelope response. No cache headers: almost every
// endpoint here is stateful (session progression, random sampling), so
// responses are cacheable only where a handler opts in via respondCacheable.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondCacheable sends an envelope response with short-lived cache headers
// and an ETag. Used by read-only aggregate endpoints (status, analytics)
// where a 60-second-stale answer is acceptable.
func respondCacheable(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Header().Set("Vary", "Accept-Encoding")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", generateETag(data))

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// generateETag creates a simple ETag from data using FNV-1a hash
func generateETag(data []byte) string {
	hash := uint32(2166136261)
	for _, b := range data {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return strconv.FormatUint(uint64(hash), 16)
}

// respondError sends an error envelope
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		// Sanitize error output to prevent log injection
		logging.Error().Str("code", sanitizeLogValue(code)).Str("error", sanitizeLogValue(err.Error())).Msg("API Error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Data:   nil,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// respondDomainError maps the package error taxonomy onto HTTP status and
// the stable envelope codes. Anything unrecognized becomes a 500 with a
// generic message; the original error only ever reaches the log.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, experiment.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, models.ErrCodeSessionNotFound, "Session not found", nil)
	case errors.Is(err, experiment.ErrSessionClosed):
		respondError(w, http.StatusConflict, models.ErrCodeSessionClosed, "Session is no longer accepting choices", err)
	case errors.Is(err, experiment.ErrStaleSubmission):
		respondError(w, http.StatusConflict, models.ErrCodeStaleSubmission, "Choice does not match the session's current pair", err)
	case errors.Is(err, experiment.ErrSessionNotCompleted):
		respondError(w, http.StatusConflict, models.ErrCodeSessionNotComplete, "Session has not completed all comparisons", nil)
	case errors.Is(err, experiment.ErrInvalidChoice):
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), err)
	case errors.Is(err, experiment.ErrInsufficientCorpus):
		respondError(w, http.StatusUnprocessableEntity, models.ErrCodeInsufficientCorpus, "Corpus is too small to assemble comparison pairs", err)
	case errors.Is(err, analysis.ErrMissingField):
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, err.Error(), err)
	case errors.Is(err, synthesis.ErrGeneration):
		respondError(w, http.StatusBadGateway, models.ErrCodeGeneration, "Reference audio generation failed", err)
	case errors.Is(err, llm.ErrUpstream), errors.Is(err, embedding.ErrUpstream):
		respondError(w, http.StatusBadGateway, models.ErrCodeUpstream, "Upstream collaborator request failed", err)
	case errors.Is(err, llm.ErrNotConfigured), errors.Is(err, synthesis.ErrNotConfigured), errors.Is(err, embedding.ErrNotConfigured):
		respondError(w, http.StatusServiceUnavailable, models.ErrCodeUpstream, "Required collaborator is not configured", err)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, models.ErrCodeUpstream, "Pipeline timed out waiting on a collaborator", err)
	default:
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "Internal error", err)
	}
}

// validateRequest validates a struct using go-playground/validator.
// Returns nil if validation passes, or a models.APIError carrying the
// VALIDATION_ERROR code and per-field details if it fails.
func validateRequest(v interface{}) *models.APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}

	apiErr := validationErr.ToAPIError()
	return &models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}

// respondAPIError sends a prepared APIError in the envelope
func respondAPIError(w http.ResponseWriter, status int, apiErr *models.APIError) {
	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
		Error: apiErr,
	})
}

// getIntParam extracts an integer query parameter with a default value
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}
