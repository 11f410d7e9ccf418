// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package experiment

import (
	"errors"
	"fmt"
)

// Experiment protocol errors. Protocol violations are rejected with a
// specific error, never silently ignored or overwritten; the API layer maps
// them onto distinct response codes so out-of-order submission is
// recoverable by the caller without restarting the session.
var (
	// ErrSessionNotFound is returned when a session does not exist or has
	// expired.
	ErrSessionNotFound = errors.New("experiment session not found")

	// ErrSessionClosed is returned when submitting a choice to a completed
	// session.
	ErrSessionClosed = errors.New("experiment session already completed")

	// ErrStaleSubmission is returned when the submitted pair is not the
	// pair at the current index. Duplicates and out-of-order submissions
	// both land here; idempotency is enforced by index, not pair id alone.
	ErrStaleSubmission = errors.New("stale choice submission")

	// ErrInvalidChoice is returned for a chosen side other than A or B.
	ErrInvalidChoice = errors.New("invalid choice")

	// ErrSessionNotCompleted is returned when unblinded results are
	// requested before every pair has a recorded choice. Revealing
	// recommended positions early would break blinding.
	ErrSessionNotCompleted = errors.New("experiment session not completed")

	// ErrInsufficientCorpus is returned when fewer eligible control tracks
	// exist than pairs requested. No partial pair list is ever produced.
	ErrInsufficientCorpus = errors.New("insufficient corpus for experiment")
)

// StaleSubmissionError reports which pair a stale submission carried and
// which pair the session expects, so the caller can resubmit correctly.
type StaleSubmissionError struct {
	Index int    // current pair index
	Got   string // submitted pair id
	Want  string // pair id at the current index
}

func (e *StaleSubmissionError) Error() string {
	return fmt.Sprintf("stale choice submission: got pair %s, session at pair %s (index %d)",
		e.Got, e.Want, e.Index)
}

func (e *StaleSubmissionError) Unwrap() error { return ErrStaleSubmission }

// InsufficientCorpusError reports how many control tracks were needed
// against how many were eligible.
type InsufficientCorpusError struct {
	Need int
	Have int
}

func (e *InsufficientCorpusError) Error() string {
	return fmt.Sprintf("insufficient corpus for experiment: need %d control tracks, have %d eligible",
		e.Need, e.Have)
}

func (e *InsufficientCorpusError) Unwrap() error { return ErrInsufficientCorpus }
