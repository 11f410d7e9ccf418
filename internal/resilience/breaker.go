// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package resilience wraps external collaborator calls (language model,
// music synthesis, audio embedding) with the circuit breaker pattern to
// prevent cascading failures when a collaborator is unavailable or slow.
package resilience

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/metrics"
)

// Breaker wraps calls returning T with circuit breaker protection.
//
// DETERMINISM NOTE: The circuit breaker uses real time (via sony/gobreaker)
// for its interval and timeout calculations. This is intentional for
// production resilience: the timing determines when to recover from
// failures, not data integrity. Unit tests should exercise the wrapped
// client directly, or drive the breaker with explicit failures.
type Breaker[T any] struct {
	cb   *gobreaker.CircuitBreaker[T]
	name string
}

// NewBreaker creates a circuit breaker for the named collaborator.
// Configuration:
//   - Max 3 concurrent requests in half-open state
//   - 1 minute measurement window
//   - 2 minute timeout before attempting recovery
//   - Opens after 60% failure rate with minimum 10 requests
func NewBreaker[T any](name string) *Breaker[T] {
	// Initialize circuit breaker state metrics
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    breakerInterval,
		Timeout:     breakerTimeout,

		// ReadyToTrip determines when to open the circuit.
		// Opens when failure rate >= 60% with minimum 10 requests.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerMinRequests {
				return false // Need a statistically meaningful sample
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= breakerFailureRatio

			if shouldTrip {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().
				Str("breaker", name).
				Str("from", fromStr).
				Str("to", toStr).
				Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &Breaker[T]{cb: cb, name: name}
}

// Breaker timing and trip thresholds shared by all collaborators.
const (
	breakerMinRequests  = 10
	breakerFailureRatio = 0.6
	breakerInterval     = time.Minute
	breakerTimeout      = 2 * time.Minute
)

// Execute runs fn under circuit breaker protection. When the circuit is
// open or too many half-open probes are in flight, fn is not invoked and
// the call fails immediately with a rejection error (see IsRejection).
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(fn)

	if err != nil {
		if IsRejection(err) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			logging.Warn().Str("breaker", b.name).Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		}
		return result, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()

	return result, nil
}

// Name returns the collaborator name this breaker guards.
func (b *Breaker[T]) Name() string {
	return b.name
}

// State returns the current circuit breaker state.
func (b *Breaker[T]) State() gobreaker.State {
	return b.cb.State()
}

// IsRejection reports whether err means the breaker refused the call
// without invoking it (open circuit, or half-open probe limit reached).
// Rejections indicate upstream unavailability rather than a new failure.
func IsRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// stateToFloat converts circuit breaker state to a numeric gauge value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to a label value.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
