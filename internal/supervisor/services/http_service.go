// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package services

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// defaultShutdownTimeout bounds graceful HTTP shutdown when the caller
// does not supply a timeout.
const defaultShutdownTimeout = 10 * time.Second

// HTTPServer is the subset of *http.Server the supervisor needs.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService adapts a blocking HTTP server to suture's
// context-driven lifecycle. When the supervisor cancels the context the
// service shuts the server down gracefully, waiting up to shutdownTimeout
// for in-flight requests (including open WebSocket upgrades) to drain.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
}

// NewHTTPServerService wraps server for supervision. A non-positive
// shutdownTimeout falls back to defaultShutdownTimeout.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
	}
}

// Serve implements suture.Service. It runs ListenAndServe in a goroutine
// and waits for either a server error or supervisor cancellation.
// http.ErrServerClosed is the expected result of a graceful shutdown and
// is not treated as a failure.
func (s *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		// ListenAndServe returns ErrServerClosed once Shutdown begins;
		// drain it so the goroutine exits before we do.
		<-errCh
		return ctx.Err()
	}
}

// String names the service in supervisor logs.
func (s *HTTPServerService) String() string {
	return s.name
}
