// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package pipeline

import "time"

// StageRun is the pseudo-stage used in progress events for whole-run
// boundaries. It never appears in stage metrics.
const StageRun = "run"

// Progress event statuses.
const (
	ProgressStarted   = "started"
	ProgressCompleted = "completed"
	ProgressFailed    = "failed"
)

// ProgressEvent is one run progress update. Synthesis dominates run time,
// so clients use these to show which stage a run is waiting on.
type ProgressEvent struct {
	RunID   string    `json:"run_id"`
	Stage   string    `json:"stage"`
	Status  string    `json:"status"`
	Elapsed float64   `json:"elapsed_seconds,omitempty"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

// ProgressSink receives progress events. Publish must not block; slow
// consumers drop or buffer internally.
type ProgressSink interface {
	Publish(event ProgressEvent)
}
