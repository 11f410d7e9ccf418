// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package services

import (
	"context"
	"time"

	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/metrics"
)

// defaultSweepInterval is used when the configured cleanup interval is
// missing or non-positive.
const defaultSweepInterval = 5 * time.Minute

// SessionStore is the slice of the experiment store the sweeper needs.
type SessionStore interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// SessionSweeper periodically removes expired experiment sessions from
// the store. Sessions carry a TTL so an abandoned browser tab does not
// hold its pair assignments forever; the sweeper is what enforces it.
type SessionSweeper struct {
	store    SessionStore
	interval time.Duration
}

// NewSessionSweeper builds a sweeper over store. A non-positive interval
// falls back to defaultSweepInterval.
func NewSessionSweeper(store SessionStore, interval time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &SessionSweeper{store: store, interval: interval}
}

// Serve implements suture.Service. It sweeps on every tick until the
// supervisor cancels the context. A failed sweep is logged and retried on
// the next tick rather than crashing the service.
func (s *SessionSweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := s.store.CleanupExpired(ctx)
			if err != nil {
				logging.Warn().Err(err).Msg("Session cleanup sweep failed")
				continue
			}
			if n > 0 {
				metrics.SessionsExpired.Add(float64(n))
				logging.Debug().Int("removed", n).Msg("Removed expired sessions")
			}
		}
	}
}

// String names the service in supervisor logs.
func (s *SessionSweeper) String() string {
	return "session-sweeper"
}
