// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultNATSImage is the official NATS server image.
	DefaultNATSImage = "nats:2.10-alpine"

	// DefaultNATSPort is the NATS client port.
	DefaultNATSPort = "4222"
)

// NATSContainer represents a running NATS server for testing. JetStream
// is always enabled; the event fabric depends on it.
type NATSContainer struct {
	testcontainers.Container
	URL string
}

// NATSOption configures the NATS container.
type NATSOption func(*natsConfig)

type natsConfig struct {
	image        string
	startTimeout time.Duration
}

// WithNATSImage sets a custom NATS server image.
func WithNATSImage(image string) NATSOption {
	return func(c *natsConfig) {
		c.image = image
	}
}

// WithStartTimeout sets the timeout for waiting for the server to start.
func WithStartTimeout(timeout time.Duration) NATSOption {
	return func(c *natsConfig) {
		c.startTimeout = timeout
	}
}

// NewNATSContainer creates and starts a NATS server with JetStream.
//
// Example:
//
//	ctx := context.Background()
//	srv, err := NewNATSContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer srv.Terminate(ctx)
//
//	nc, err := nats.Connect(srv.URL)
func NewNATSContainer(ctx context.Context, opts ...NATSOption) (*NATSContainer, error) {
	cfg := &natsConfig{
		image:        DefaultNATSImage,
		startTimeout: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultNATSPort + "/tcp"},
		Cmd:          []string{"--jetstream"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(DefaultNATSPort+"/tcp"),
			wait.ForLog("Server is ready"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create nats container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, DefaultNATSPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &NATSContainer{
		Container: container,
		URL:       fmt.Sprintf("nats://%s:%s", host, port.Port()),
	}, nil
}

// Terminate stops and removes the NATS container.
func (c *NATSContainer) Terminate(ctx context.Context) error {
	return c.Container.Terminate(ctx)
}

// Logs returns the container logs for debugging.
func (c *NATSContainer) Logs(ctx context.Context) (string, error) {
	reader, err := c.Container.Logs(ctx)
	if err != nil {
		return "", fmt.Errorf("get logs: %w", err)
	}
	defer reader.Close()

	var logs []byte
	buf := make([]byte, 1024)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			logs = append(logs, buf[:n]...)
		}
		if err != nil {
			break
		}
	}

	return string(logs), nil
}
