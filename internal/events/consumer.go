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

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/somnus/internal/cache"
	"github.com/tomtom215/somnus/internal/experiment"
	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/metrics"
)

// Dedup cache sizing. One entry per completed session within the window;
// capacity is far above any plausible completion rate.
const (
	dedupCapacity = 4096
	dedupWindow   = 10 * time.Minute
)

// MessageSource is the subset of the Watermill subscriber the consumer
// uses. Tests drive the handling loop through a channel-backed fake.
type MessageSource interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	Close() error
}

// Ingestor stores completed sessions. Satisfied by results.Warehouse.
type Ingestor interface {
	IngestSession(ctx context.Context, s *experiment.Session) error
}

// Consumer materializes session.completed events into the results
// warehouse. Ingestion is idempotent on session id, so at-least-once
// delivery from JetStream yields exactly-once warehouse rows; the exact
// LRU in front only skips the redundant database round-trip on fast
// redelivery. Unparseable payloads are acked and counted rather than
// redelivered forever.
type Consumer struct {
	source   MessageSource
	ingestor Ingestor
	dedup    *cache.ExactLRU
	events   *logging.EventLogger
}

// NewConsumer wires a message source to the warehouse.
func NewConsumer(source MessageSource, ingestor Ingestor) (*Consumer, error) {
	if source == nil {
		return nil, fmt.Errorf("message source required")
	}
	if ingestor == nil {
		return nil, fmt.Errorf("ingestor required")
	}

	return &Consumer{
		source:   source,
		ingestor: ingestor,
		dedup:    cache.NewExactLRU(dedupCapacity, dedupWindow),
		events:   logging.NewEventLogger(),
	}, nil
}

// Serve subscribes to completion events and processes them until the
// context is canceled. Implements suture.Service; a closed subscription
// channel returns an error so the supervisor restarts the consumer.
func (c *Consumer) Serve(ctx context.Context) error {
	msgs, err := c.source.Subscribe(ctx, TopicSessionCompleted)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicSessionCompleted, err)
	}
	c.events.LogSubscriptionStarted(TopicSessionCompleted, StreamName)

	for {
		select {
		case <-ctx.Done():
			c.events.LogSubscriptionStopped(TopicSessionCompleted)
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				c.events.LogSubscriptionStopped(TopicSessionCompleted)
				return fmt.Errorf("subscription to %s closed", TopicSessionCompleted)
			}
			c.handle(ctx, msg)
		}
	}
}

// handle processes one message. Ack on success and on permanent
// failures; Nack only on transient ingest errors so JetStream redelivers.
func (c *Consumer) handle(ctx context.Context, msg *message.Message) {
	start := time.Now()
	metrics.RecordNATSConsume()

	var event SessionCompletedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		metrics.RecordNATSParseFailed()
		logging.Err(err).Str("message_id", msg.UUID).Msg("Dropping unparseable completion event")
		msg.Ack()
		return
	}
	if event.Session == nil {
		metrics.RecordNATSParseFailed()
		logging.Warn().Str("event_id", event.EventID).Msg("Completion event without session snapshot")
		msg.Ack()
		return
	}

	// Check without recording: the key must only be recorded after a
	// successful ingest, or a Nacked failure would ack its redelivery.
	if c.dedup.Contains(event.EventID) {
		metrics.RecordNATSDeduplicated()
		c.events.LogDuplicate(ctx, event.EventID, "recently ingested")
		msg.Ack()
		return
	}

	if err := c.ingestor.IngestSession(ctx, event.Session); err != nil {
		if errors.Is(err, experiment.ErrSessionNotCompleted) {
			// Malformed event; redelivery cannot fix it.
			logging.Err(err).Str("event_id", event.EventID).Msg("Dropping completion event for unfinished session")
			msg.Ack()
			return
		}
		logging.Err(err).Str("event_id", event.EventID).Msg("Warehouse ingest failed, requesting redelivery")
		msg.Nack()
		return
	}

	c.dedup.Record(event.EventID)
	metrics.RecordNATSProcessed()
	metrics.RecordNATSProcessingDuration(time.Since(start))
	msg.Ack()
}
