// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package models

import (
	"time"
)

// APIResponse represents a standardized API response wrapper used by all HTTP endpoints.
// It provides consistent structure for both successful and error responses, with metadata
// for observability.
//
// Status field values:
//   - "success": Request completed successfully, see Data field
//   - "error": Request failed, see Error field for details
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"session_id": "...", "recommendations": [...]},
//	  "metadata": {
//	    "timestamp": "2026-08-24T12:00:00Z",
//	    "query_time_ms": 45
//	  }
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "STALE_SUBMISSION",
//	    "message": "submitted pair is not the current pair",
//	    "details": {"expected_pair_id": "p-3"}
//	  },
//	  "metadata": {"timestamp": "2026-08-24T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability and performance tracking.
//
// Fields:
//   - Timestamp: Server time when response was generated (RFC3339 format)
//   - QueryTimeMS: Request processing time in milliseconds
//
// Pipeline runs dominate QueryTimeMS: synthesis and embedding calls to the
// model-serving collaborators take tens of seconds, everything else is sub-100ms.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError represents an error response with structured error details.
// Provides a consistent error format across all API endpoints, and keeps the
// "your input was invalid" and "a dependent service failed" cases distinct.
//
// Error codes:
//   - VALIDATION_ERROR: Invalid or missing form/request fields (not retryable)
//   - UPSTREAM_ERROR: LLM, synthesis, or embedding collaborator failed or timed out
//   - GENERATION_ERROR: Synthesis produced no usable reference audio
//   - STALE_SUBMISSION: Choice submitted for a pair other than the current one
//   - SESSION_CLOSED: Choice submitted to a completed session
//   - SESSION_NOT_FOUND: Unknown experiment session ID
//   - INSUFFICIENT_CORPUS: Too few eligible control tracks to build the experiment
//   - AUTHENTICATION_ERROR: Missing or invalid session token
//   - RATE_LIMIT_EXCEEDED: Too many requests
//   - INTERNAL_ERROR: Unexpected server-side failure
//
// Example:
//
//	{
//	  "code": "VALIDATION_ERROR",
//	  "message": "stress_level must be one of the survey values",
//	  "details": {"field": "stress_level"}
//	}
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error codes returned in APIError.Code. Handlers map the package error
// taxonomy onto these so clients can branch without string matching messages.
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeUpstream           = "UPSTREAM_ERROR"
	ErrCodeGeneration         = "GENERATION_ERROR"
	ErrCodeStaleSubmission    = "STALE_SUBMISSION"
	ErrCodeSessionClosed      = "SESSION_CLOSED"
	ErrCodeSessionNotFound    = "SESSION_NOT_FOUND"
	ErrCodeSessionNotComplete = "SESSION_NOT_COMPLETED"
	ErrCodeInsufficientCorpus = "INSUFFICIENT_CORPUS"
	ErrCodeAuthentication     = "AUTHENTICATION_ERROR"
	ErrCodeRateLimit          = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)
