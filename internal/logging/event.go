// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

//go:build nats

package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// EventLogger provides specialized logging for experiment event processing.
// It is designed for NATS/Watermill handlers with domain-specific methods
// for the lifecycle events Somnus publishes.
type EventLogger struct {
	logger zerolog.Logger
}

// NewEventLogger creates a logger configured for event processing.
func NewEventLogger() *EventLogger {
	return &EventLogger{
		logger: With().Str("component", "events").Logger(),
	}
}

// NewEventLoggerWithLogger creates an EventLogger with a custom logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value (copy-on-write semantics)
func NewEventLoggerWithLogger(logger zerolog.Logger) *EventLogger {
	return &EventLogger{
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// WithFields returns a new EventLogger with additional default fields.
func (e *EventLogger) WithFields(fields map[string]interface{}) *EventLogger {
	ctx := e.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &EventLogger{logger: ctx.Logger()}
}

// Debug logs a debug message.
func (e *EventLogger) Debug(msg string, fields ...interface{}) {
	event := e.logger.Debug()
	event = addFieldPairs(event, fields)
	event.Msg(msg)
}

// Info logs an info message.
func (e *EventLogger) Info(msg string, fields ...interface{}) {
	event := e.logger.Info()
	event = addFieldPairs(event, fields)
	event.Msg(msg)
}

// Warn logs a warning message.
func (e *EventLogger) Warn(msg string, fields ...interface{}) {
	event := e.logger.Warn()
	event = addFieldPairs(event, fields)
	event.Msg(msg)
}

// Error logs an error message.
func (e *EventLogger) Error(msg string, fields ...interface{}) {
	event := e.logger.Error()
	event = addFieldPairs(event, fields)
	event.Msg(msg)
}

// DebugContext logs a debug message with request ID from context.
func (e *EventLogger) DebugContext(ctx context.Context, msg string, fields ...interface{}) {
	logger := e.loggerWithContext(ctx)
	event := logger.Debug()
	event = addFieldPairs(event, fields)
	event.Msg(msg)
}

// InfoContext logs an info message with request ID from context.
func (e *EventLogger) InfoContext(ctx context.Context, msg string, fields ...interface{}) {
	logger := e.loggerWithContext(ctx)
	event := logger.Info()
	event = addFieldPairs(event, fields)
	event.Msg(msg)
}

// WarnContext logs a warning message with request ID from context.
func (e *EventLogger) WarnContext(ctx context.Context, msg string, fields ...interface{}) {
	logger := e.loggerWithContext(ctx)
	event := logger.Warn()
	event = addFieldPairs(event, fields)
	event.Msg(msg)
}

// ErrorContext logs an error message with request ID from context.
func (e *EventLogger) ErrorContext(ctx context.Context, msg string, fields ...interface{}) {
	logger := e.loggerWithContext(ctx)
	event := logger.Error()
	event = addFieldPairs(event, fields)
	event.Msg(msg)
}

// loggerWithContext returns a logger with context fields added.
func (e *EventLogger) loggerWithContext(ctx context.Context) zerolog.Logger {
	logCtx := e.logger.With()

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		logCtx = logCtx.Str("request_id", requestID)
	}
	if runID := RunIDFromContext(ctx); runID != "" {
		logCtx = logCtx.Str("run_id", runID)
	}

	return logCtx.Logger()
}

// ============================================================
// Domain-Specific Event Logging Methods
// ============================================================

// LogEventPublished logs when an experiment event is published to NATS.
func (e *EventLogger) LogEventPublished(ctx context.Context, eventID, topic string) {
	e.DebugContext(ctx, "event published",
		"event_id", eventID,
		"topic", topic,
	)
}

// LogEventFailed logs when event publishing or handling fails.
func (e *EventLogger) LogEventFailed(ctx context.Context, eventID string, err error) {
	logger := e.loggerWithContext(ctx)
	logger.Error().
		Str("event_id", eventID).
		Err(err).
		Msg("event processing failed")
}

// LogDuplicate logs when JetStream deduplication drops an event.
func (e *EventLogger) LogDuplicate(ctx context.Context, eventID, reason string) {
	e.DebugContext(ctx, "duplicate event skipped",
		"event_id", eventID,
		"reason", reason,
	)
}

// LogSubscriptionStarted logs when a subscription is started.
func (e *EventLogger) LogSubscriptionStarted(topic, durable string) {
	e.Info("subscription started",
		"topic", topic,
		"durable", durable,
	)
}

// LogSubscriptionStopped logs when a subscription is stopped.
func (e *EventLogger) LogSubscriptionStopped(topic string) {
	e.Info("subscription stopped",
		"topic", topic,
	)
}

// LogStreamEnsured logs when the JetStream stream has been created or verified.
func (e *EventLogger) LogStreamEnsured(stream string, created bool) {
	e.Info("stream ensured",
		"stream", stream,
		"created", created,
	)
}
