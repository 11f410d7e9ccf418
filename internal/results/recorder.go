// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package results

import (
	"context"
	"time"

	"github.com/tomtom215/somnus/internal/experiment"
	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/metrics"
)

const (
	defaultQueueSize = 64
	ingestTimeout    = 30 * time.Second
)

// Recorder bridges experiment lifecycle notifications into the warehouse.
// Notification callbacks run on the submission path and must not block, so
// completed sessions are handed to a queue and ingested by Serve. When the
// queue is full the session is dropped with a metric; the warehouse is an
// analytics sink, never an arbiter of the experiment protocol.
type Recorder struct {
	warehouse *Warehouse
	queue     chan *experiment.Session
}

// NewRecorder creates a Recorder over the warehouse. queueSize <= 0 applies
// the default.
func NewRecorder(w *Warehouse, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Recorder{
		warehouse: w,
		queue:     make(chan *experiment.Session, queueSize),
	}
}

// ChoiceRecorded implements experiment.Notifier. Individual choices are not
// warehoused until their session completes.
func (r *Recorder) ChoiceRecorded(*experiment.Session, experiment.Choice) {}

// SessionCompleted implements experiment.Notifier. The manager hands over
// its own copy of the session, so the queued pointer is never mutated by
// later requests.
func (r *Recorder) SessionCompleted(s *experiment.Session) {
	select {
	case r.queue <- s:
	default:
		metrics.ResultsIngestDropped.Inc()
		logging.Warn().
			Str("session_id", s.SessionID).
			Int("queue_size", cap(r.queue)).
			Msg("Results ingest queue full, session dropped")
	}
}

// Serve drains the queue into the warehouse until the context is canceled.
// Implements suture.Service.
func (r *Recorder) Serve(ctx context.Context) error {
	logging.Info().Int("queue_size", cap(r.queue)).Msg("Results recorder started")

	for {
		select {
		case <-ctx.Done():
			r.drain()
			logging.Info().Msg("Results recorder stopped")
			return ctx.Err()
		case s := <-r.queue:
			r.ingest(s)
		}
	}
}

// drain makes a best effort to flush queued sessions during shutdown.
func (r *Recorder) drain() {
	for {
		select {
		case s := <-r.queue:
			r.ingest(s)
		default:
			return
		}
	}
}

// ingest runs on its own deadline, detached from the service context, so a
// shutdown mid-write still lands a consistent row.
func (r *Recorder) ingest(s *experiment.Session) {
	ingestCtx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	if err := r.warehouse.IngestSession(ingestCtx, s); err != nil {
		logging.Err(err).
			Str("session_id", s.SessionID).
			Msg("Failed to ingest completed session")
	}
}
