// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

//go:build nats

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/somnus/internal/config"
	"github.com/tomtom215/somnus/internal/experiment"
	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/metrics"
)

// publishQueueSize bounds events waiting for the publish loop. Notifier
// callbacks run inside choice-submission requests and must never block,
// so a full queue drops the event instead.
const publishQueueSize = 256

// streamInitTimeout bounds stream provisioning at startup.
const streamInitTimeout = 30 * time.Second

// queuedEvent is one marshaled event awaiting publication.
type queuedEvent struct {
	topic   string
	eventID string
	payload []byte
}

// Service runs the event side of the experiment: it owns the optional
// embedded NATS server, provisions the stream, and publishes lifecycle
// events handed over by the experiment manager. It implements
// experiment.Notifier; publishing happens on the Serve loop so notifier
// callbacks return immediately.
type Service struct {
	cfg       config.NATSConfig
	url       string
	server    *EmbeddedServer
	publisher *Publisher
	queue     chan queuedEvent
	events    *logging.EventLogger
}

// New starts the embedded server when configured, ensures the experiment
// stream exists, and connects the publisher. The returned service must be
// driven by Serve and released with Close.
func New(cfg *config.NATSConfig) (*Service, error) {
	s := &Service{
		cfg:    *cfg,
		url:    cfg.URL,
		queue:  make(chan queuedEvent, publishQueueSize),
		events: logging.NewEventLogger(),
	}

	if cfg.EmbeddedServer {
		srv, err := NewEmbeddedServer(cfg)
		if err != nil {
			return nil, fmt.Errorf("start embedded server: %w", err)
		}
		s.server = srv
		s.url = srv.ClientURL()
	}

	if err := s.ensureStream(); err != nil {
		s.shutdownServer()
		return nil, err
	}

	pub, err := NewPublisher(s.url, nil)
	if err != nil {
		s.shutdownServer()
		return nil, fmt.Errorf("connect publisher: %w", err)
	}
	s.publisher = pub

	logging.Info().
		Str("url", s.url).
		Bool("embedded", s.server != nil).
		Str("stream", StreamName).
		Msg("Experiment event stream ready")

	return s, nil
}

// ensureStream provisions the stream over a short-lived bootstrap
// connection.
func (s *Service) ensureStream() error {
	nc, err := natsgo.Connect(s.url)
	if err != nil {
		return fmt.Errorf("connect for stream init: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}

	init, err := NewStreamInitializer(js, &s.cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), streamInitTimeout)
	defer cancel()

	if _, err := init.EnsureStream(ctx); err != nil {
		return err
	}
	s.events.LogStreamEnsured(StreamName, true)
	return nil
}

// ChoiceRecorded implements experiment.Notifier.
func (s *Service) ChoiceRecorded(session *experiment.Session, choice experiment.Choice) {
	event, err := NewChoiceRecordedEvent(session, choice)
	if err != nil {
		logging.Err(err).Str("session_id", session.SessionID).Msg("Skipping malformed choice event")
		return
	}
	s.enqueue(TopicChoiceRecorded, event.EventID, event)
}

// SessionCompleted implements experiment.Notifier.
func (s *Service) SessionCompleted(session *experiment.Session) {
	event := NewSessionCompletedEvent(session)
	s.enqueue(TopicSessionCompleted, event.EventID, event)
}

// enqueue marshals and queues one event without blocking.
func (s *Service) enqueue(topic, eventID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		logging.Err(err).Str("event_id", eventID).Msg("Failed to marshal event")
		return
	}

	select {
	case s.queue <- queuedEvent{topic: topic, eventID: eventID, payload: payload}:
	default:
		metrics.NATSPublishDropped.Inc()
		logging.Warn().
			Str("event_id", eventID).
			Str("topic", topic).
			Msg("Event publish queue full, dropping event")
	}
}

// Serve publishes queued events until the context is canceled, then
// flushes whatever is already queued. Implements suture.Service.
func (s *Service) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.flush()
			logging.Info().Msg("Event publish loop stopped")
			return ctx.Err()
		case ev := <-s.queue:
			s.publish(ev)
		}
	}
}

// flush publishes queued events without waiting for more.
func (s *Service) flush() {
	for {
		select {
		case ev := <-s.queue:
			s.publish(ev)
		default:
			return
		}
	}
}

// publish sends one event. Failures are logged and dropped; the
// deterministic event IDs mean a later retry of the same fact dedupes.
func (s *Service) publish(ev queuedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := message.NewMessage(ev.eventID, ev.payload)
	if err := s.publisher.Publish(ctx, ev.topic, msg); err != nil {
		s.events.LogEventFailed(ctx, ev.eventID, err)
		return
	}
	s.events.LogEventPublished(ctx, ev.eventID, ev.topic)
}

// Consumer builds a warehouse consumer attached to this service's
// server, using the configured durable name and queue group.
func (s *Service) Consumer(ingestor Ingestor) (*Consumer, error) {
	sub, err := NewSubscriber(s.url, &s.cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("connect subscriber: %w", err)
	}
	return NewConsumer(sub, ingestor)
}

// ClientURL returns the URL clients and consumers connect to.
func (s *Service) ClientURL() string {
	return s.url
}

// Healthy reports whether the event path is usable: the embedded server
// (when owned) is running and the publisher is connected.
func (s *Service) Healthy() bool {
	if s.server != nil && !s.server.IsRunning() {
		return false
	}
	return s.publisher != nil
}

// Close releases the publisher and stops the embedded server.
func (s *Service) Close(ctx context.Context) error {
	var firstErr error
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			firstErr = err
		}
	}
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Service) shutdownServer() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(ctx)
}
