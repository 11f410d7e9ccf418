// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package validation provides struct validation using go-playground/validator v10.
//
// This package wraps the go-playground/validator library to provide a thread-safe
// singleton validator instance with user-friendly error messages. It integrates
// with the application's API error format for consistent error responses.
//
// # Overview
//
// The package provides:
//   - Thread-safe singleton validator (initialized once, cached struct info)
//   - Error translation to human-readable messages
//   - APIError conversion matching the application's error format
//   - Future v11 compatibility with WithRequiredStructEnabled
//
// # Quick Start
//
//	type SubmitChoiceRequest struct {
//	    PairID         string `validate:"required"`
//	    ChosenSide     string `validate:"required,oneof=A B"`
//	    DecisionTimeMS int64  `validate:"gte=0"`
//	}
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    var req SubmitChoiceRequest
//	    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
//	        // handle decode error
//	    }
//
//	    if verr := validation.ValidateStruct(&req); verr != nil {
//	        apiErr := verr.ToAPIError()
//	        respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	        return
//	    }
//
//	    // proceed with valid request
//	}
//
// # Common Validation Tags
//
// String validations:
//   - required: Field must not be empty
//   - oneof=a b: Value must be one of the listed survey answers
//   - email: Valid email format (user identifiers)
//   - min=n / max=n: Length bounds in characters
//
// Numeric validations:
//   - gte=n: Greater than or equal to n (instrumentation counters)
//   - lte=n: Less than or equal to n
//
// Collection validations:
//   - dive: Apply the following tags to each element (answer sets)
//   - omitempty: Skip validation when the field is empty
//
// # Error Handling
//
// ValidateStruct returns *RequestValidationError, which aggregates every
// failing field. ToAPIError flattens single failures into a simple message
// and multi-field failures into a details list, always under the
// VALIDATION_ERROR code so clients can branch on the code alone.
//
// # Thread Safety
//
// The singleton validator caches struct metadata and is safe for concurrent
// use from any number of request goroutines.
package validation
