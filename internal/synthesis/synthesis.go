// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package synthesis provides the reference-audio generation collaborator.
// A generation instruction goes in; a short audio clip (the "reference
// track" the ranker embeds) comes out. The collaborator is external,
// slow, and fallible: calls carry explicit timeouts, fail through a
// circuit breaker, and are retried at most once with backoff before the
// run is declared a generation failure.
package synthesis

import (
	"context"
	"errors"
	"time"
)

// ErrGeneration marks a failed music generation. Every error returned
// by this package wraps it; the API layer maps it to GENERATION_ERROR.
var ErrGeneration = errors.New("music generation failed")

// ErrNotConfigured is returned when no synthesis endpoint is configured.
var ErrNotConfigured = errors.New("synthesis endpoint not configured")

// AudioClip is one generated reference clip.
type AudioClip struct {
	// Data is the raw encoded audio.
	Data []byte

	// Format is the container format (currently always "wav").
	Format string

	// Duration is the requested clip length after clamping.
	Duration time.Duration

	// SampleRate is the sample rate in Hz.
	SampleRate int
}

// Synthesizer generates a reference clip for a generation instruction.
//
// maxDuration is the caller's requested length; implementations clamp
// it to their configured ceiling. Implementations must be safe for
// concurrent use.
type Synthesizer interface {
	Synthesize(ctx context.Context, instruction string, maxDuration time.Duration) (*AudioClip, error)
}
