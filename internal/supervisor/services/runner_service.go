// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package services

import "context"

// Runner is any component whose lifetime is a single blocking
// Serve call that honours context cancellation. The progress hub,
// results recorder, and event publisher/consumer all satisfy it.
type Runner interface {
	Serve(ctx context.Context) error
}

// RunnerService gives a Runner a stable name in the supervision tree.
type RunnerService struct {
	name   string
	runner Runner
}

// NewRunnerService wraps runner under the given supervisor name.
func NewRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{name: name, runner: runner}
}

// NewProgressHubService wraps the WebSocket progress hub.
func NewProgressHubService(hub Runner) *RunnerService {
	return NewRunnerService("progress-hub", hub)
}

// NewResultsRecorderService wraps the analytics warehouse recorder.
func NewResultsRecorderService(recorder Runner) *RunnerService {
	return NewRunnerService("results-recorder", recorder)
}

// NewEventPublisherService wraps the NATS event publisher.
func NewEventPublisherService(publisher Runner) *RunnerService {
	return NewRunnerService("event-publisher", publisher)
}

// NewEventConsumerService wraps the NATS event consumer.
func NewEventConsumerService(consumer Runner) *RunnerService {
	return NewRunnerService("event-consumer", consumer)
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.runner.Serve(ctx)
}

// String names the service in supervisor logs.
func (s *RunnerService) String() string {
	return s.name
}
