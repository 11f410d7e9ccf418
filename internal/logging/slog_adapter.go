// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// SlogHandler adapts the global zerolog logger to the log/slog interface.
// The supervision tree logs through slog (via sutureslog), and this handler
// routes those records into the same zerolog output as everything else.
type SlogHandler struct {
	logger zerolog.Logger
	attrs  []slog.Attr
	groups []string
}

// NewSlogHandler creates a slog.Handler backed by the given zerolog logger.
func NewSlogHandler(logger zerolog.Logger) *SlogHandler {
	return &SlogHandler{logger: logger}
}

// NewSlogLogger returns a *slog.Logger that writes through the global
// zerolog logger. Intended for libraries that require slog, such as the
// suture supervision tree.
func NewSlogLogger() *slog.Logger {
	return slog.New(NewSlogHandler(Logger()))
}

// Enabled reports whether the handler handles records at the given level.
func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return slogToZerologLevel(level) >= zerolog.GlobalLevel()
}

// Handle converts the slog record into a zerolog event and emits it.
func (h *SlogHandler) Handle(_ context.Context, record slog.Record) error {
	event := h.logger.WithLevel(slogToZerologLevel(record.Level))

	for _, attr := range h.attrs {
		event = addAttr(event, h.prefix(), attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		event = addAttr(event, h.prefix(), attr)
		return true
	})

	event.Msg(record.Message)
	return nil
}

// WithAttrs returns a handler whose records carry the given attributes.
func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	combined := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	combined = append(combined, h.attrs...)
	combined = append(combined, attrs...)
	return &SlogHandler{logger: h.logger, attrs: combined, groups: h.groups}
}

// WithGroup returns a handler that prefixes attribute keys with the group name.
func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := make([]string, 0, len(h.groups)+1)
	groups = append(groups, h.groups...)
	groups = append(groups, name)
	return &SlogHandler{logger: h.logger, attrs: h.attrs, groups: groups}
}

// prefix returns the dotted group prefix for attribute keys.
func (h *SlogHandler) prefix() string {
	prefix := ""
	for _, g := range h.groups {
		prefix += g + "."
	}
	return prefix
}

// addAttr appends one slog attribute to a zerolog event.
func addAttr(event *zerolog.Event, prefix string, attr slog.Attr) *zerolog.Event {
	key := prefix + attr.Key
	value := attr.Value.Resolve()

	switch value.Kind() {
	case slog.KindString:
		return event.Str(key, value.String())
	case slog.KindInt64:
		return event.Int64(key, value.Int64())
	case slog.KindUint64:
		return event.Uint64(key, value.Uint64())
	case slog.KindFloat64:
		return event.Float64(key, value.Float64())
	case slog.KindBool:
		return event.Bool(key, value.Bool())
	case slog.KindDuration:
		return event.Dur(key, value.Duration())
	case slog.KindTime:
		return event.Time(key, value.Time())
	case slog.KindGroup:
		for _, nested := range value.Group() {
			event = addAttr(event, key+".", nested)
		}
		return event
	default:
		return event.Interface(key, value.Any())
	}
}

// slogToZerologLevel maps slog levels onto zerolog levels.
func slogToZerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelInfo:
		return zerolog.DebugLevel
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
