// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package experiment implements the blind paired-comparison experiment: the
// builder that turns a ranked recommendation list into comparison pairs, the
// session state machine that records choices strictly in order, session
// stores (in-memory and Badger), and per-session result summaries.
//
// Blinding is a data-model property. Each pair records which side holds the
// recommended track, but the blinded wire view built from a session carries
// no such field; the assignment is only disclosed in the results payload of
// a completed session.
package experiment

import (
	"time"

	"github.com/tomtom215/somnus/internal/form"
	"github.com/tomtom215/somnus/internal/models"
)

// Status is the session lifecycle state.
type Status string

const (
	// StatusCreated means pairs are built and no choice has been recorded.
	StatusCreated Status = "CREATED"

	// StatusInProgress means at least one choice is recorded and at least
	// one pair remains.
	StatusInProgress Status = "IN_PROGRESS"

	// StatusCompleted means every pair has a choice and the completion
	// timestamp is set. Completed sessions are never reopened.
	StatusCompleted Status = "COMPLETED"
)

// Comparison sides.
const (
	SideA = "A"
	SideB = "B"
)

// TrackRef is the track snapshot embedded in a pair. Sessions must stay
// playable even if the corpus is re-encoded later, so pairs carry copies,
// not corpus references.
type TrackRef struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	AudioURL string `json:"audio_url"`
}

// Pair is one blind comparison. RecommendedPosition records which side the
// recommended track was coin-flipped onto; it is persisted but never copied
// into the blinded view.
type Pair struct {
	ID                  string   `json:"id"`
	Index               int      `json:"index"`
	TrackA              TrackRef `json:"track_a"`
	TrackB              TrackRef `json:"track_b"`
	RecommendedPosition string   `json:"recommended_position"`
}

// Choice is one recorded comparison decision with its client-side listening
// instrumentation.
type Choice struct {
	PairID         string    `json:"pair_id"`
	ChosenSide     string    `json:"chosen_side"`
	DecisionTimeMS int64     `json:"decision_time_ms"`
	PlayCountA     int       `json:"play_count_a"`
	PlayCountB     int       `json:"play_count_b"`
	ListenMSA      int64     `json:"listen_ms_a"`
	ListenMSB      int64     `json:"listen_ms_b"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// ChoseRecommended reports whether this choice picked the recommended side
// of the given pair.
func (c Choice) ChoseRecommended(p Pair) bool {
	return c.ChosenSide == p.RecommendedPosition
}

// Session is one experiment run: the pairs built from a recommendation list
// and the choices recorded against them. History is append-only; a session
// mutates only by appending a Choice and advancing the index.
type Session struct {
	SessionID       string              `json:"session_id"`
	RunID           string              `json:"run_id,omitempty"`
	UserID          string              `json:"user_id"`
	FormData        form.FormSubmission `json:"form_data"`
	ReferenceDigest string              `json:"reference_digest,omitempty"`
	Pairs           []Pair              `json:"pairs"`
	Choices         []Choice            `json:"choices"`
	CurrentIndex    int                 `json:"current_index"`
	Status          Status              `json:"status"`
	StartTime       time.Time           `json:"start_time"`
	CompletionTime  time.Time           `json:"completion_time,omitempty"`
	ExpiresAt       time.Time           `json:"expires_at"`
}

// IsExpired reports whether the session has outlived its TTL.
func (s *Session) IsExpired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// CurrentPair returns the pair awaiting a choice.
func (s *Session) CurrentPair() (Pair, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Pairs) {
		return Pair{}, false
	}
	return s.Pairs[s.CurrentIndex], true
}

// SubmitChoice applies one choice to the session state machine.
//
// The submission must name the pair at the current index; anything else is
// a StaleSubmissionError. On success the choice is appended, the index
// advances by exactly one, and the final submission sets Status to
// COMPLETED with a completion timestamp. Completed sessions reject all
// further submissions with ErrSessionClosed.
//
// Not safe for concurrent use; the Manager serializes submissions per
// session.
func (s *Session) SubmitChoice(choice Choice) error {
	if s.Status == StatusCompleted || s.CurrentIndex >= len(s.Pairs) {
		return ErrSessionClosed
	}

	if choice.ChosenSide != SideA && choice.ChosenSide != SideB {
		return ErrInvalidChoice
	}

	current := s.Pairs[s.CurrentIndex]
	if choice.PairID != current.ID {
		return &StaleSubmissionError{
			Index: s.CurrentIndex,
			Got:   choice.PairID,
			Want:  current.ID,
		}
	}

	if choice.RecordedAt.IsZero() {
		choice.RecordedAt = time.Now()
	}

	s.Choices = append(s.Choices, choice)
	s.CurrentIndex++

	if s.CurrentIndex == len(s.Pairs) {
		s.Status = StatusCompleted
		s.CompletionTime = time.Now()
	} else {
		s.Status = StatusInProgress
	}

	return nil
}

// Clone returns a deep copy. Stores hand out clones so callers can never
// mutate stored state behind the manager's lock.
func (s *Session) Clone() *Session {
	c := *s
	if s.Pairs != nil {
		c.Pairs = make([]Pair, len(s.Pairs))
		copy(c.Pairs, s.Pairs)
	}
	if s.Choices != nil {
		c.Choices = make([]Choice, len(s.Choices))
		copy(c.Choices, s.Choices)
	}
	c.FormData = s.FormData.Normalized()
	return &c
}

// View returns the blinded wire representation: pairs carry both tracks but
// no recommended-position assignment.
func (s *Session) View() models.SessionView {
	pairs := make([]models.PairView, len(s.Pairs))
	for i, p := range s.Pairs {
		pairs[i] = models.PairView{
			ID:     p.ID,
			Index:  p.Index,
			TrackA: trackView(p.TrackA),
			TrackB: trackView(p.TrackB),
		}
	}

	return models.SessionView{
		SessionID:    s.SessionID,
		UserID:       s.UserID,
		Status:       string(s.Status),
		CurrentIndex: s.CurrentIndex,
		TotalPairs:   len(s.Pairs),
		Pairs:        pairs,
		StartTime:    s.StartTime,
	}
}

// ResultsView returns the unblinded record of a completed session,
// including the per-session summary.
func (s *Session) ResultsView() models.SessionResultsView {
	pairs := make([]models.ResultPairView, len(s.Pairs))
	for i, p := range s.Pairs {
		pairs[i] = models.ResultPairView{
			ID:                  p.ID,
			TrackA:              trackView(p.TrackA),
			TrackB:              trackView(p.TrackB),
			RecommendedPosition: p.RecommendedPosition,
		}
	}

	choices := make([]models.ChoiceView, len(s.Choices))
	for i, c := range s.Choices {
		choices[i] = models.ChoiceView{
			PairID:         c.PairID,
			ChosenSide:     c.ChosenSide,
			DecisionTimeMS: c.DecisionTimeMS,
			PlayCountA:     c.PlayCountA,
			PlayCountB:     c.PlayCountB,
			ListenMSA:      c.ListenMSA,
			ListenMSB:      c.ListenMSB,
		}
	}

	return models.SessionResultsView{
		SessionID:      s.SessionID,
		UserID:         s.UserID,
		Pairs:          pairs,
		Choices:        choices,
		StartTime:      s.StartTime,
		CompletionTime: s.CompletionTime,
		Summary:        Summarize(s),
	}
}

func trackView(t TrackRef) models.TrackView {
	return models.TrackView{
		ID:       t.ID,
		Title:    t.Title,
		Artist:   t.Artist,
		AudioURL: t.AudioURL,
	}
}
