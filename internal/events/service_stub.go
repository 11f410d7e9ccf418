// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

//go:build !nats

package events

import (
	"context"

	"github.com/tomtom215/somnus/internal/config"
	"github.com/tomtom215/somnus/internal/experiment"
)

// Service is a stub compiled without the nats build tag. New always
// fails, so none of the other methods are ever reached in production;
// they exist to keep the call sites type-checked.
type Service struct{}

// New returns ErrNotBuilt. Build with -tags=nats for event support.
func New(cfg *config.NATSConfig) (*Service, error) {
	return nil, ErrNotBuilt
}

// ChoiceRecorded is a no-op stub.
func (s *Service) ChoiceRecorded(session *experiment.Session, choice experiment.Choice) {}

// SessionCompleted is a no-op stub.
func (s *Service) SessionCompleted(session *experiment.Session) {}

// Serve is a stub that waits for cancellation.
func (s *Service) Serve(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Consumer is a stub that returns ErrNotBuilt.
func (s *Service) Consumer(ingestor Ingestor) (*Consumer, error) {
	return nil, ErrNotBuilt
}

// ClientURL returns an empty string for the stub.
func (s *Service) ClientURL() string {
	return ""
}

// Healthy always reports false for the stub.
func (s *Service) Healthy() bool {
	return false
}

// Close is a no-op stub.
func (s *Service) Close(ctx context.Context) error {
	return nil
}

// Consumer is a stub compiled without the nats build tag.
type Consumer struct{}

// Serve is a stub that waits for cancellation.
func (c *Consumer) Serve(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Ingestor stores completed sessions. Satisfied by results.Warehouse.
type Ingestor interface {
	IngestSession(ctx context.Context, s *experiment.Session) error
}
