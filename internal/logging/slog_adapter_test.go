// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewSlogHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := NewSlogHandler(zerolog.New(&buf))

	if handler == nil {
		t.Fatal("NewSlogHandler() = nil, want non-nil")
	}

	slogger := slog.New(handler)
	slogger.Info("test message")

	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("expected 'test message' in output: %s", buf.String())
	}
}

func TestSlogHandler_Enabled(t *testing.T) {
	originalLevel := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(originalLevel)

	tests := []struct {
		name        string
		globalLevel zerolog.Level
		slogLevel   slog.Level
		want        bool
	}{
		{
			name:        "debug global enables debug level",
			globalLevel: zerolog.DebugLevel,
			slogLevel:   slog.LevelDebug,
			want:        true,
		},
		{
			name:        "info global disables debug level",
			globalLevel: zerolog.InfoLevel,
			slogLevel:   slog.LevelDebug,
			want:        false,
		},
		{
			name:        "info global enables info level",
			globalLevel: zerolog.InfoLevel,
			slogLevel:   slog.LevelInfo,
			want:        true,
		},
		{
			name:        "info global enables warn level",
			globalLevel: zerolog.InfoLevel,
			slogLevel:   slog.LevelWarn,
			want:        true,
		},
		{
			name:        "warn global disables info level",
			globalLevel: zerolog.WarnLevel,
			slogLevel:   slog.LevelInfo,
			want:        false,
		},
		{
			name:        "error global disables warn level",
			globalLevel: zerolog.ErrorLevel,
			slogLevel:   slog.LevelWarn,
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zerolog.SetGlobalLevel(tt.globalLevel)
			handler := NewSlogHandler(zerolog.New(nil))

			got := handler.Enabled(context.Background(), tt.slogLevel)
			if got != tt.want {
				t.Errorf("Enabled(%v) = %v, want %v", tt.slogLevel, got, tt.want)
			}
		})
	}
}

func TestSlogHandler_Handle(t *testing.T) {
	originalLevel := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(originalLevel)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	slogger := slog.New(NewSlogHandler(zerolog.New(&buf)))

	slogger.Info("supervisor event",
		slog.String("supervisor", "somnus"),
		slog.Int64("restarts", 2),
		slog.Bool("terminal", false),
		slog.Duration("backoff", 15*time.Second),
		slog.Float64("decay", 30.0),
	)

	output := buf.String()
	for _, want := range []string{
		"supervisor event",
		`"supervisor":"somnus"`,
		`"restarts":2`,
		`"terminal":false`,
		`"decay":30`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestSlogHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandler(zerolog.New(&buf))

	withAttrs := handler.WithAttrs([]slog.Attr{slog.String("service", "api")})
	slogger := slog.New(withAttrs)
	slogger.Info("started")

	output := buf.String()
	if !strings.Contains(output, `"service":"api"`) {
		t.Errorf("expected service attr in output: %s", output)
	}

	// Original handler must be unaffected.
	buf.Reset()
	slog.New(handler).Info("plain")
	if strings.Contains(buf.String(), "service") {
		t.Errorf("expected original handler without attrs: %s", buf.String())
	}
}

func TestSlogHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandler(zerolog.New(&buf))

	grouped := handler.WithGroup("suture")
	slogger := slog.New(grouped)
	slogger.Info("failure", slog.String("service", "hub"))

	output := buf.String()
	if !strings.Contains(output, `"suture.service":"hub"`) {
		t.Errorf("expected grouped key in output: %s", output)
	}
}

func TestSlogHandler_WithGroup_Empty(t *testing.T) {
	t.Parallel()

	handler := NewSlogHandler(zerolog.New(nil))
	if got := handler.WithGroup(""); got != handler {
		t.Error("WithGroup(\"\") should return the same handler")
	}
}

func TestSlogHandler_GroupAttr(t *testing.T) {
	var buf bytes.Buffer
	slogger := slog.New(NewSlogHandler(zerolog.New(&buf)))

	slogger.Info("nested",
		slog.Group("session", slog.String("id", "s-1"), slog.Int("choices", 4)),
	)

	output := buf.String()
	if !strings.Contains(output, `"session.id":"s-1"`) {
		t.Errorf("expected flattened group key in output: %s", output)
	}
	if !strings.Contains(output, `"session.choices":4`) {
		t.Errorf("expected flattened group key in output: %s", output)
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		slogLevel slog.Level
		want      zerolog.Level
	}{
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
		{slog.LevelDebug - 4, zerolog.DebugLevel},
		{slog.LevelError + 4, zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		if got := slogToZerologLevel(tt.slogLevel); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.slogLevel, got, tt.want)
		}
	}
}

func TestNewSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))

	slogger := NewSlogLogger()
	slogger.Info("tree started")

	if !strings.Contains(buf.String(), "tree started") {
		t.Errorf("expected message in output: %s", buf.String())
	}
}
