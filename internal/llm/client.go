// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package llm provides the language-model collaborator used by the
// requirement analysis agents. The production implementation speaks the
// OpenAI-compatible chat completion protocol; tests substitute fakes
// through the Client interface.
package llm

import (
	"context"
	"errors"
)

// ErrUpstream marks any failed, timed-out, or rejected language model
// call. Every error returned by this package wraps it, so callers can
// classify collaborator failures with errors.Is.
var ErrUpstream = errors.New("language model call failed")

// ErrNotConfigured is returned when no model endpoint is configured.
// It wraps ErrUpstream: an absent collaborator is an unavailable one.
var ErrNotConfigured = errors.New("language model endpoint not configured")

// Request is a single chat completion call. The system prompt fixes the
// agent persona; the user prompt carries the questionnaire fields.
type Request struct {
	System string
	Prompt string
}

// Client is the language-model collaborator interface.
//
// Thread Safety: implementations must be safe for concurrent use; the
// three analysis agents call Complete in parallel.
type Client interface {
	// Complete performs one chat completion and returns the assistant
	// message content. Errors wrap ErrUpstream.
	Complete(ctx context.Context, req Request) (string, error)
}
