// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey int

const (
	// requestIDKey is the context key for HTTP request IDs.
	requestIDKey contextKey = iota

	// runIDKey is the context key for recommendation pipeline run IDs.
	runIDKey
)

// ContextWithRequestID returns a new context with the given request ID.
// Request IDs identify a single HTTP request through all log entries
// it produces.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ContextWithNewRequestID returns a new context with a generated request ID.
func ContextWithNewRequestID(ctx context.Context) context.Context {
	return ContextWithRequestID(ctx, uuid.New().String())
}

// RequestIDFromContext extracts the request ID from the context.
// Returns an empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRunID returns a new context with the given pipeline run ID.
// Run IDs tie together the analysis, synthesis, embedding, and ranking
// stages of one recommendation run across log entries and progress events.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunIDFromContext extracts the pipeline run ID from the context.
// Returns an empty string if no run ID is present.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns a logger with request ID and run ID from the context.
// If the context carries neither, the global logger is returned unchanged.
//
//	logging.Ctx(ctx).Info().Msg("Processing submission")
func Ctx(ctx context.Context) zerolog.Logger {
	mu.RLock()
	logger := log
	mu.RUnlock()

	lctx := logger.With()
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		lctx = lctx.Str("request_id", requestID)
	}
	if runID := RunIDFromContext(ctx); runID != "" {
		lctx = lctx.Str("run_id", runID)
	}
	return lctx.Logger()
}

// WithComponent returns a logger tagged with a component name.
//
//	rankerLogger := logging.WithComponent("ranker")
func WithComponent(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log.With().Str("component", component).Logger()
}
