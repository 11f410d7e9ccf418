// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

//go:build nats

package events

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/tomtom215/somnus/internal/config"
)

// serverReadyTimeout bounds embedded server startup.
const serverReadyTimeout = 30 * time.Second

// EmbeddedServer wraps an in-process NATS JetStream server for
// single-instance deployments that should not require external
// infrastructure. It listens on a real TCP port so external consumers
// can still attach to the stream.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer creates and starts an embedded NATS server listening
// on the host and port of cfg.URL. Returns an error if the server is not
// ready for connections within 30 seconds.
func NewEmbeddedServer(cfg *config.NATSConfig) (*EmbeddedServer, error) {
	host, port := listenAddr(cfg.URL)

	opts := &server.Options{
		ServerName:         "somnus-events",
		Host:               host,
		Port:               port,
		JetStream:          true,
		StoreDir:           cfg.StoreDir,
		JetStreamMaxMemory: cfg.MaxMemory,
		JetStreamMaxStore:  cfg.MaxStore,
		DontListen:         false,
		Debug:              false,
		Trace:              false,
		NoLog:              false,
		// Completion events carry a session snapshot; 1MB is an order of
		// magnitude above the largest observed payload.
		MaxPayload: 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	ns.ConfigureLogger()

	go ns.Start()

	if !ns.ReadyForConnections(serverReadyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within %s", serverReadyTimeout)
	}

	return &EmbeddedServer{
		server:    ns,
		clientURL: ns.ClientURL(),
	}, nil
}

// ClientURL returns the connection URL clients should use. This is the
// actual bound address, which matters when the configured port is 0.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// Shutdown stops the server, waiting for in-flight messages unless the
// context is already canceled.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	s.server.Shutdown()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.server.WaitForShutdown()
		return nil
	}
}

// IsRunning reports server health.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// listenAddr extracts the bind host and port from a nats:// URL,
// defaulting to 127.0.0.1:4222 for anything unparseable.
func listenAddr(raw string) (string, int) {
	const (
		defaultHost = "127.0.0.1"
		defaultPort = 4222
	)

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return defaultHost, defaultPort
	}

	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return u.Host, defaultPort
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, defaultPort
	}
	return host, port
}
