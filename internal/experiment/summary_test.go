// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package experiment

import (
	"math"
	"testing"
)

// answer records a choice for the current pair, picking the recommended
// side when preferRecommended is true and the control side otherwise.
func answer(t *testing.T, s *Session, preferRecommended bool, decisionMS int64) {
	t.Helper()

	pair, ok := s.CurrentPair()
	if !ok {
		t.Fatal("no current pair to answer")
	}

	side := pair.RecommendedPosition
	if !preferRecommended {
		if side == SideA {
			side = SideB
		} else {
			side = SideA
		}
	}

	choice := choiceFor(s, side)
	choice.DecisionTimeMS = decisionMS
	if err := s.SubmitChoice(choice); err != nil {
		t.Fatalf("SubmitChoice() error = %v", err)
	}
}

func TestSummarizeUnanimousPreference(t *testing.T) {
	s := testSession(t, 4)
	for i := 0; i < 4; i++ {
		answer(t, s, true, 2000)
	}

	summary := Summarize(s)
	if summary.TotalPairs != 4 || summary.RecommendedChosen != 4 {
		t.Errorf("pairs/chosen = %d/%d, want 4/4", summary.TotalPairs, summary.RecommendedChosen)
	}
	if summary.PreferenceRate != 1.0 {
		t.Errorf("PreferenceRate = %v, want 1.0", summary.PreferenceRate)
	}
	if !summary.HypothesisSupported {
		t.Error("HypothesisSupported = false, want true")
	}
	if summary.Confidence != 1.0 {
		t.Errorf("Confidence = %v, want 1.0", summary.Confidence)
	}
	if summary.AvgDecisionTimeMS != 2000 {
		t.Errorf("AvgDecisionTimeMS = %v, want 2000", summary.AvgDecisionTimeMS)
	}
}

func TestSummarizeEvenSplit(t *testing.T) {
	s := testSession(t, 4)
	answer(t, s, true, 1000)
	answer(t, s, false, 2000)
	answer(t, s, true, 3000)
	answer(t, s, false, 4000)

	summary := Summarize(s)
	if summary.RecommendedChosen != 2 {
		t.Errorf("RecommendedChosen = %d, want 2", summary.RecommendedChosen)
	}
	if summary.PreferenceRate != 0.5 {
		t.Errorf("PreferenceRate = %v, want 0.5", summary.PreferenceRate)
	}
	// A coin-flip outcome supports nothing.
	if summary.HypothesisSupported {
		t.Error("HypothesisSupported = true at chance level")
	}
	if summary.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", summary.Confidence)
	}
	if summary.AvgDecisionTimeMS != 2500 {
		t.Errorf("AvgDecisionTimeMS = %v, want 2500", summary.AvgDecisionTimeMS)
	}
}

func TestSummarizeControlPreferred(t *testing.T) {
	s := testSession(t, 4)
	answer(t, s, true, 1000)
	for i := 0; i < 3; i++ {
		answer(t, s, false, 1000)
	}

	summary := Summarize(s)
	if summary.PreferenceRate != 0.25 {
		t.Errorf("PreferenceRate = %v, want 0.25", summary.PreferenceRate)
	}
	if summary.HypothesisSupported {
		t.Error("HypothesisSupported = true with the control winning")
	}
	if summary.Confidence != 0.5 {
		t.Errorf("Confidence = %v, want 0.5", summary.Confidence)
	}
}

func TestSummarizeEmptySession(t *testing.T) {
	s := testSession(t, 3)

	summary := Summarize(s)
	if summary.TotalPairs != 3 || summary.RecommendedChosen != 0 {
		t.Errorf("pairs/chosen = %d/%d, want 3/0", summary.TotalPairs, summary.RecommendedChosen)
	}
	if summary.PreferenceRate != 0 || summary.Confidence != 0 || summary.AvgDecisionTimeMS != 0 {
		t.Errorf("empty session summary has non-zero rates: %+v", summary)
	}
	if math.IsNaN(summary.PreferenceRate) || math.IsNaN(summary.AvgDecisionTimeMS) {
		t.Error("summary produced NaN for a session without choices")
	}
}

func TestSummarizeListenTotals(t *testing.T) {
	s := testSession(t, 2)
	answer(t, s, true, 1500)
	answer(t, s, true, 1500)

	// choiceFor records 12000ms on A and 9000ms on B per choice.
	summary := Summarize(s)
	if want := int64(2 * (12000 + 9000)); summary.TotalListenMS != want {
		t.Errorf("TotalListenMS = %d, want %d", summary.TotalListenMS, want)
	}
}
