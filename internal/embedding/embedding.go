// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package embedding provides the audio-embedding collaborator that turns a
// synthesized reference clip into a fixed-dimension vector for similarity
// ranking. Corpus vectors are precomputed offline with the same model; only
// the per-run reference clip is embedded live.
package embedding

import (
	"context"
	"errors"

	"github.com/tomtom215/somnus/internal/synthesis"
)

// ErrUpstream marks any failed, timed-out, or rejected embedding call,
// including responses with the wrong vector dimension. Every error returned
// by this package wraps it.
var ErrUpstream = errors.New("embedding call failed")

// ErrNotConfigured is returned when no embedding endpoint is configured.
var ErrNotConfigured = errors.New("embedding endpoint not configured")

// Embedder is the audio-embedding collaborator interface.
//
// Thread Safety: implementations must be safe for concurrent use across
// pipeline runs.
type Embedder interface {
	// Embed produces the embedding vector for one audio clip. The returned
	// slice always has the deployment-fixed dimension; errors wrap
	// ErrUpstream.
	Embed(ctx context.Context, clip *synthesis.AudioClip) ([]float32, error)
}
