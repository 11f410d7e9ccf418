// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

//go:build nats

package events

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/tomtom215/somnus/internal/logging"
)

// watermillLogger adapts the process zerolog logger to Watermill's
// LoggerAdapter. Watermill's Trace level maps to zerolog Debug; the
// distinction is not worth a custom level.
type watermillLogger struct {
	logger zerolog.Logger
}

// newWatermillLogger returns a LoggerAdapter writing through the global
// zerolog logger with a component field.
func newWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{
		logger: logging.Logger().With().Str("component", "events").Logger(),
	}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.emit(l.logger.Error().Err(err), msg, fields)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.emit(l.logger.Info(), msg, fields)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.emit(l.logger.Debug(), msg, fields)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.emit(l.logger.Debug(), msg, fields)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &watermillLogger{logger: ctx.Logger()}
}

func (l *watermillLogger) emit(ev *zerolog.Event, msg string, fields watermill.LogFields) {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
