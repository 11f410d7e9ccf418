// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

//go:build nats

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/somnus/internal/config"
)

// duplicateWindow is how long JetStream remembers Nats-Msg-Ids. Choice
// republishes happen within seconds of the original (reconnect retries),
// so two minutes is generous.
const duplicateWindow = 2 * time.Minute

// JetStreamContext is the subset of jetstream.JetStream the initializer
// uses, extracted so tests can drive the create-versus-update paths
// without a server.
type JetStreamContext interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// StreamInitializer ensures the experiment stream exists with the
// configured limits before publishers and consumers start.
type StreamInitializer struct {
	js  JetStreamContext
	cfg streamConfig
}

type streamConfig struct {
	name     string
	subjects []string
	maxAge   time.Duration
	maxBytes int64
}

// NewStreamInitializer builds an initializer from the NATS settings.
func NewStreamInitializer(js JetStreamContext, cfg *config.NATSConfig) (*StreamInitializer, error) {
	if js == nil {
		return nil, fmt.Errorf("JetStream context required")
	}

	retention := time.Duration(cfg.StreamRetentionDays) * 24 * time.Hour
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}

	return &StreamInitializer{
		js: js,
		cfg: streamConfig{
			name:     StreamName,
			subjects: []string{StreamSubjects},
			maxAge:   retention,
			maxBytes: cfg.MaxStore,
		},
	}, nil
}

// EnsureStream creates the stream, or updates its configuration when it
// already exists. Idempotent; safe to call on every startup.
func (s *StreamInitializer) EnsureStream(ctx context.Context) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:        s.cfg.name,
		Subjects:    s.cfg.subjects,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      s.cfg.maxAge,
		MaxBytes:    s.cfg.maxBytes,
		Duplicates:  duplicateWindow,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		AllowDirect: true,
	}

	_, err := s.js.Stream(ctx, s.cfg.name)
	if err == nil {
		stream, err := s.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", s.cfg.name, err)
		}
		return stream, nil
	}

	if errors.Is(err, jetstream.ErrStreamNotFound) {
		stream, err := s.js.CreateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("create stream %s: %w", s.cfg.name, err)
		}
		return stream, nil
	}

	return nil, fmt.Errorf("check stream %s: %w", s.cfg.name, err)
}

// IsHealthy reports whether the stream exists and can be queried.
func (s *StreamInitializer) IsHealthy(ctx context.Context) bool {
	_, err := s.js.Stream(ctx, s.cfg.name)
	return err == nil
}
