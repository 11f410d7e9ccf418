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

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/somnus/internal/config"
)

// Consumer delivery tuning. MaxDeliver bounds redelivery of messages the
// warehouse keeps rejecting; after that they age out with the stream.
const (
	ackWaitTimeout  = 30 * time.Second
	closeTimeout    = 10 * time.Second
	maxDeliver      = 10
	maxAckPending   = 256
	subscriberCount = 1 // single consumer keeps completion order
)

// Subscriber is a durable JetStream subscriber bound to the experiment
// stream. It satisfies MessageSource.
type Subscriber struct {
	subscriber message.Subscriber
}

// NewSubscriber connects a durable queue subscriber to the server at url.
// The durable name and queue group come from the NATS settings so
// horizontally scaled instances share one cursor.
func NewSubscriber(url string, cfg *config.NATSConfig, logger watermill.LoggerAdapter) (*Subscriber, error) {
	if logger == nil {
		logger = newWatermillLogger()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(reconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("Subscriber disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("Subscriber reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(maxDeliver),
		natsgo.MaxAckPending(maxAckPending),
		natsgo.AckWait(ackWaitTimeout),
		// DeliverAll so a fresh durable replays retained completions into
		// an empty warehouse; ingestion idempotency absorbs the overlap.
		natsgo.DeliverAll(),
		natsgo.BindStream(StreamName),
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: subscriberCount,
		AckWaitTimeout:   ackWaitTimeout,
		CloseTimeout:     closeTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    false, // StreamInitializer owns the stream
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &Subscriber{subscriber: sub}, nil
}

// Subscribe returns the message channel for topic. The channel closes
// when the context is canceled or the subscriber is closed.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return s.subscriber.Subscribe(ctx, topic)
}

// Close shuts the subscription down.
func (s *Subscriber) Close() error {
	return s.subscriber.Close()
}
