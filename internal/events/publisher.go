// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

//go:build nats

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/somnus/internal/metrics"
	"github.com/tomtom215/somnus/internal/resilience"
)

// Reconnection behavior for the publisher connection. MaxReconnects -1
// retries forever; the circuit breaker sheds load while disconnected.
const (
	reconnectWait   = 2 * time.Second
	reconnectBuffer = 8 * 1024 * 1024
)

// Publisher wraps the Watermill NATS publisher with circuit breaker
// protection and reconnect handling.
type Publisher struct {
	publisher message.Publisher
	breaker   *resilience.Breaker[any]
	mu        sync.RWMutex
	closed    bool
}

// NewPublisher connects a JetStream publisher to the server at url.
// Message ID tracking is enabled so the deterministic event IDs dedupe
// republishes inside the stream's duplicate window.
func NewPublisher(url string, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = newWatermillLogger()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(reconnectWait),
		natsgo.ReconnectBufSize(reconnectBuffer),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false, // StreamInitializer owns the stream
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return &Publisher{
		publisher: pub,
		breaker:   resilience.NewBreaker[any]("nats-publisher"),
	}, nil
}

// Publish sends one message. The message UUID becomes the Nats-Msg-Id
// when no explicit id is set.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("publisher is closed")
	}
	p.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if msg.Metadata.Get(natsgo.MsgIdHdr) == "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}

	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(topic, msg)
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	metrics.NATSMessagesPublished.Inc()
	return nil
}

// Close shuts down the publisher. Subsequent Publish calls fail.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
