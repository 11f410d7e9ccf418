// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package logging provides centralized zerolog-based structured logging for Somnus.
//
// This package implements a unified logging layer using zerolog, providing
// zero-allocation structured JSON logging for production and human-readable
// console output for development.
//
// # Overview
//
// The package provides:
//   - Zero-allocation structured logging via zerolog
//   - JSON output format for production (machine-parseable)
//   - Console output format for development (human-readable)
//   - Context-aware logging with request ID and pipeline run ID propagation
//   - slog adapter for Suture v4 integration
//
// # Quick Start
//
//	import "github.com/tomtom215/somnus/internal/logging"
//
//	// Initialize at application startup
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Caller: false,
//	})
//
//	// Log messages with structured fields
//	logging.Info().Str("session_id", id).Msg("Session created")
//	logging.Error().Err(err).Int("code", 500).Msg("Request failed")
//
//	// Context-aware logging
//	logging.Ctx(ctx).Info().Str("stage", "ranking").Msg("Stage complete")
//
// # Log Levels
//
// Supported log levels (from most to least verbose):
//
//	trace  - Very detailed diagnostic information
//	debug  - Detailed diagnostic information
//	info   - General operational information (default)
//	warn   - Warning conditions that should be addressed
//	error  - Error conditions requiring attention
//	fatal  - Fatal errors that terminate the program
//	panic  - Panic conditions that crash the program
//
// # Structured Logging Best Practices
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
//
// Use structured fields instead of string formatting:
//
//	// Good - structured, searchable, efficient
//	logging.Info().
//	    Str("session_id", sessionID).
//	    Int("count", trackCount).
//	    Dur("elapsed", duration).
//	    Msg("Recommendations ranked")
//
//	// Avoid - unstructured, harder to parse
//	logging.Info().Msgf("Ranked %d tracks in %v", trackCount, duration)
//
// # Component Loggers
//
// Create component-specific loggers with default fields:
//
//	rankerLogger := logging.WithComponent("ranker")
//	rankerLogger.Info().Msg("Corpus loaded")
//
// # Context-Aware Logging
//
// Propagate request and pipeline run identity through logging:
//
//	ctx = logging.ContextWithRunID(ctx, runID)
//	logging.Ctx(ctx).Info().Msg("Analysis stage started")
//
// # slog Adapter
//
// The package provides an slog adapter for libraries that require slog.Logger:
//
//	slogLogger := logging.NewSlogLogger()
//	// Use slogLogger with Suture or other slog-compatible libraries
//
// # Thread Safety
//
// All exported functions are safe for concurrent use. The global logger
// is protected by sync.RWMutex for configuration changes.
//
// # Testing
//
// Create test loggers that capture output:
//
//	var buf bytes.Buffer
//	logger := logging.NewTestLogger(&buf)
//	logger.Info().Msg("test message")
//	output := buf.String()
//
// # See Also
//
//   - github.com/rs/zerolog: Underlying logging library
//   - internal/middleware: Request ID middleware for correlation
package logging
