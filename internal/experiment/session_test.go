// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package experiment

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func testSession(t *testing.T, n int) *Session {
	t.Helper()

	pairs := make([]Pair, n)
	for i := range pairs {
		pos := SideA
		if i%2 == 1 {
			pos = SideB
		}
		pairs[i] = Pair{
			ID:    fmt.Sprintf("pair-%d", i),
			Index: i,
			TrackA: TrackRef{
				ID:       fmt.Sprintf("track-a-%d", i),
				Title:    fmt.Sprintf("Track A%d", i),
				AudioURL: fmt.Sprintf("http://audio.local/a%d.wav", i),
			},
			TrackB: TrackRef{
				ID:       fmt.Sprintf("track-b-%d", i),
				Title:    fmt.Sprintf("Track B%d", i),
				AudioURL: fmt.Sprintf("http://audio.local/b%d.wav", i),
			},
			RecommendedPosition: pos,
		}
	}

	now := time.Now()
	return &Session{
		SessionID:    "sess-1",
		UserID:       "user-1",
		Pairs:        pairs,
		Choices:      make([]Choice, 0, n),
		CurrentIndex: 0,
		Status:       StatusCreated,
		StartTime:    now,
		ExpiresAt:    now.Add(time.Hour),
	}
}

func choiceFor(s *Session, side string) Choice {
	return Choice{
		PairID:         s.Pairs[s.CurrentIndex].ID,
		ChosenSide:     side,
		DecisionTimeMS: 2500,
		PlayCountA:     1,
		PlayCountB:     1,
		ListenMSA:      12000,
		ListenMSB:      9000,
		RecordedAt:     time.Now(),
	}
}

func TestSubmitChoiceAdvancesThroughSession(t *testing.T) {
	s := testSession(t, 3)

	if err := s.SubmitChoice(choiceFor(s, SideA)); err != nil {
		t.Fatalf("SubmitChoice(0) error = %v", err)
	}
	if s.Status != StatusInProgress {
		t.Errorf("Status after first choice = %s, want %s", s.Status, StatusInProgress)
	}
	if s.CurrentIndex != 1 {
		t.Errorf("CurrentIndex = %d, want 1", s.CurrentIndex)
	}
	if len(s.Choices) != s.CurrentIndex {
		t.Errorf("len(Choices) = %d, want %d", len(s.Choices), s.CurrentIndex)
	}

	if err := s.SubmitChoice(choiceFor(s, SideB)); err != nil {
		t.Fatalf("SubmitChoice(1) error = %v", err)
	}
	if s.Status != StatusInProgress {
		t.Errorf("Status after second choice = %s, want %s", s.Status, StatusInProgress)
	}

	if err := s.SubmitChoice(choiceFor(s, SideA)); err != nil {
		t.Fatalf("SubmitChoice(2) error = %v", err)
	}
	if s.Status != StatusCompleted {
		t.Errorf("Status after final choice = %s, want %s", s.Status, StatusCompleted)
	}
	if s.CurrentIndex != 3 {
		t.Errorf("CurrentIndex = %d, want 3", s.CurrentIndex)
	}
	if s.CompletionTime.IsZero() {
		t.Error("CompletionTime not set on completion")
	}
}

func TestSubmitChoiceOutOfOrder(t *testing.T) {
	s := testSession(t, 3)

	choice := choiceFor(s, SideA)
	choice.PairID = s.Pairs[2].ID // skip ahead

	err := s.SubmitChoice(choice)
	if !errors.Is(err, ErrStaleSubmission) {
		t.Fatalf("SubmitChoice() error = %v, want ErrStaleSubmission", err)
	}

	var stale *StaleSubmissionError
	if !errors.As(err, &stale) {
		t.Fatalf("error %v is not a *StaleSubmissionError", err)
	}
	if stale.Index != 0 || stale.Got != s.Pairs[2].ID || stale.Want != s.Pairs[0].ID {
		t.Errorf("StaleSubmissionError = %+v, want index 0, got %s, want %s",
			stale, s.Pairs[2].ID, s.Pairs[0].ID)
	}

	if s.CurrentIndex != 0 || len(s.Choices) != 0 || s.Status != StatusCreated {
		t.Error("rejected submission must not change session state")
	}
}

func TestSubmitChoiceDuplicateRejected(t *testing.T) {
	s := testSession(t, 3)

	first := choiceFor(s, SideA)
	if err := s.SubmitChoice(first); err != nil {
		t.Fatalf("SubmitChoice() error = %v", err)
	}

	// Resubmitting the already-answered pair is stale, not idempotent-ok.
	err := s.SubmitChoice(first)
	if !errors.Is(err, ErrStaleSubmission) {
		t.Fatalf("duplicate SubmitChoice() error = %v, want ErrStaleSubmission", err)
	}
	if s.CurrentIndex != 1 || len(s.Choices) != 1 {
		t.Error("duplicate submission must not advance the session")
	}
}

func TestSubmitChoiceSessionClosed(t *testing.T) {
	s := testSession(t, 2)

	for i := 0; i < 2; i++ {
		if err := s.SubmitChoice(choiceFor(s, SideA)); err != nil {
			t.Fatalf("SubmitChoice(%d) error = %v", i, err)
		}
	}
	if s.Status != StatusCompleted {
		t.Fatalf("Status = %s, want %s", s.Status, StatusCompleted)
	}

	err := s.SubmitChoice(Choice{PairID: s.Pairs[1].ID, ChosenSide: SideA})
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("SubmitChoice() after completion error = %v, want ErrSessionClosed", err)
	}
	if len(s.Choices) != 2 {
		t.Error("closed session must not record further choices")
	}
}

func TestSubmitChoiceInvalidSide(t *testing.T) {
	s := testSession(t, 2)

	for _, side := range []string{"", "C", "a", "AB"} {
		choice := choiceFor(s, side)
		if err := s.SubmitChoice(choice); !errors.Is(err, ErrInvalidChoice) {
			t.Errorf("SubmitChoice(side=%q) error = %v, want ErrInvalidChoice", side, err)
		}
	}
	if s.CurrentIndex != 0 {
		t.Error("invalid submissions must not advance the session")
	}
}

func TestSubmitChoiceStampsRecordedAt(t *testing.T) {
	s := testSession(t, 1)

	choice := choiceFor(s, SideA)
	choice.RecordedAt = time.Time{}
	if err := s.SubmitChoice(choice); err != nil {
		t.Fatalf("SubmitChoice() error = %v", err)
	}
	if s.Choices[0].RecordedAt.IsZero() {
		t.Error("RecordedAt not stamped on submission")
	}
}

func TestCurrentPair(t *testing.T) {
	s := testSession(t, 2)

	pair, ok := s.CurrentPair()
	if !ok || pair.ID != s.Pairs[0].ID {
		t.Fatalf("CurrentPair() = %v, %v; want pair-0, true", pair.ID, ok)
	}

	for i := 0; i < 2; i++ {
		if err := s.SubmitChoice(choiceFor(s, SideB)); err != nil {
			t.Fatalf("SubmitChoice(%d) error = %v", i, err)
		}
	}

	if _, ok := s.CurrentPair(); ok {
		t.Error("CurrentPair() on completed session = true, want false")
	}
}

func TestIsExpired(t *testing.T) {
	s := testSession(t, 1)
	if s.IsExpired() {
		t.Error("fresh session reported expired")
	}

	s.ExpiresAt = time.Now().Add(-time.Minute)
	if !s.IsExpired() {
		t.Error("session past ExpiresAt not reported expired")
	}

	s.ExpiresAt = time.Time{}
	if s.IsExpired() {
		t.Error("session without TTL reported expired")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := testSession(t, 2)
	if err := s.SubmitChoice(choiceFor(s, SideA)); err != nil {
		t.Fatalf("SubmitChoice() error = %v", err)
	}

	clone := s.Clone()
	clone.Pairs[0].TrackA.Title = "mutated"
	clone.Choices[0].ChosenSide = SideB
	clone.Status = StatusCompleted

	if s.Pairs[0].TrackA.Title == "mutated" {
		t.Error("mutating clone pairs changed the original")
	}
	if s.Choices[0].ChosenSide != SideA {
		t.Error("mutating clone choices changed the original")
	}
	if s.Status != StatusInProgress {
		t.Error("mutating clone status changed the original")
	}
}

func TestViewIsBlinded(t *testing.T) {
	s := testSession(t, 3)
	view := s.View()

	if view.TotalPairs != 3 || len(view.Pairs) != 3 {
		t.Fatalf("view pairs = %d/%d, want 3/3", view.TotalPairs, len(view.Pairs))
	}

	data, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	payload := string(data)

	if strings.Contains(payload, "recommended_position") {
		t.Error("blinded session view leaks recommended_position")
	}
	if !strings.Contains(payload, "track_a") || !strings.Contains(payload, "track_b") {
		t.Error("blinded view missing pair tracks")
	}
}

func TestResultsViewIsUnblinded(t *testing.T) {
	s := testSession(t, 2)
	for i := 0; i < 2; i++ {
		if err := s.SubmitChoice(choiceFor(s, SideA)); err != nil {
			t.Fatalf("SubmitChoice(%d) error = %v", i, err)
		}
	}

	results := s.ResultsView()
	if len(results.Pairs) != 2 || len(results.Choices) != 2 {
		t.Fatalf("results pairs/choices = %d/%d, want 2/2", len(results.Pairs), len(results.Choices))
	}
	for i, p := range results.Pairs {
		if p.RecommendedPosition != s.Pairs[i].RecommendedPosition {
			t.Errorf("pair %d RecommendedPosition = %q, want %q",
				i, p.RecommendedPosition, s.Pairs[i].RecommendedPosition)
		}
	}
	if results.CompletionTime.IsZero() {
		t.Error("results missing completion time")
	}
	if results.Summary.TotalPairs != 2 {
		t.Errorf("summary TotalPairs = %d, want 2", results.Summary.TotalPairs)
	}
}
