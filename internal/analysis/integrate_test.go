// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package analysis

import (
	"reflect"
	"strings"
	"testing"

	"github.com/tomtom215/somnus/internal/form"
)

func calmRecords() (StateAnalysis, EmotionAnalysis, PreferenceAnalysis) {
	state := StateAnalysis{
		StressAssessment: "mild",
		UrgencyLevel:     "low",
		PhysicalSummary:  "No significant symptoms.",
		Recommendations:  []string{"Deep breathing"},
	}
	emotion := EmotionAnalysis{
		PrimaryEmotion:     "calm",
		EmotionIntensity:   "low",
		RegulationStrategy: "maintain relaxation",
		TargetMood:         "peaceful",
	}
	pref := PreferenceAnalysis{
		PreferredGenres:      []string{"nature sounds", "ambient"},
		PreferredInstruments: []string{"flute", "harp", "piano"},
		TempoPreference:      "slow",
		ForbiddenElements:    []string{"sudden changes"},
		PreferenceWeights:    map[string]float64{"nature sounds": 0.9, "ambient": 0.6},
	}
	return state, emotion, pref
}

func TestIntegrateMergeCompleteness(t *testing.T) {
	state, emotion, pref := calmRecords()

	got := NewIntegrator().Integrate(state, emotion, pref, []string{form.SensitivityVocals})

	// Every hard constraint from both sources survives the merge.
	wantConstraints := map[string]bool{form.SensitivityVocals: false, "sudden changes": false}
	for _, c := range got.HardConstraints {
		if _, ok := wantConstraints[c]; ok {
			wantConstraints[c] = true
		}
	}
	for c, seen := range wantConstraints {
		if !seen {
			t.Errorf("hard constraint %q dropped during merge", c)
		}
	}

	// Source records pass through unchanged.
	if !reflect.DeepEqual(got.State, state) || !reflect.DeepEqual(got.Emotion, emotion) || !reflect.DeepEqual(got.Preference, pref) {
		t.Error("source records modified during merge")
	}

	// All four tiers applied in order.
	wantTiers := []string{"physical safety", "sleep goal", "sound preferences", "personalization"}
	if !reflect.DeepEqual(got.PriorityRanking, wantTiers) {
		t.Errorf("PriorityRanking = %v, want %v", got.PriorityRanking, wantTiers)
	}

	if got.UnifiedRequirements == "" {
		t.Error("UnifiedRequirements empty")
	}
}

func TestIntegrateSpecFromPreferences(t *testing.T) {
	state, emotion, pref := calmRecords()

	got := NewIntegrator().Integrate(state, emotion, pref, nil)

	want := FinalSpec{
		Genre:       "nature sounds",
		Tempo:       "slow",
		Mood:        "peaceful",
		Instruments: []string{"flute", "harp"},
	}
	if !reflect.DeepEqual(got.FinalSpec, want) {
		t.Errorf("FinalSpec = %+v, want %+v", got.FinalSpec, want)
	}

	// Calm state, no collisions: nothing to resolve.
	if len(got.ConflictResolutions) != 0 {
		t.Errorf("ConflictResolutions = %v, want none", got.ConflictResolutions)
	}
}

func TestIntegrateUrgentStateForcesTempo(t *testing.T) {
	state, emotion, pref := calmRecords()
	state.StressAssessment = "extreme"
	state.UrgencyLevel = "high"
	pref.TempoPreference = "medium"

	got := NewIntegrator().Integrate(state, emotion, pref, nil)

	if got.FinalSpec.Tempo != "very slow" {
		t.Errorf("Tempo = %q, want forced very slow", got.FinalSpec.Tempo)
	}

	foundNote := false
	for _, note := range got.ConflictResolutions {
		if strings.Contains(note, "medium") && strings.Contains(note, "very slow") {
			foundNote = true
		}
	}
	if !foundNote {
		t.Errorf("ConflictResolutions = %v, want tempo override note", got.ConflictResolutions)
	}

	if len(got.SoftPreferences) == 0 || got.SoftPreferences[0] != "gentle dynamics" {
		t.Errorf("SoftPreferences = %v, want gentle dynamics ranked first", got.SoftPreferences)
	}
}

func TestIntegrateHardConstraintExcludesGenre(t *testing.T) {
	state, emotion, pref := calmRecords()
	pref.PreferredGenres = []string{"vocal chant", "ambient"}

	got := NewIntegrator().Integrate(state, emotion, pref, []string{"vocal"})

	if got.FinalSpec.Genre != "ambient" {
		t.Errorf("Genre = %q, want ambient after constraint excluded vocal chant", got.FinalSpec.Genre)
	}

	foundNote := false
	for _, note := range got.ConflictResolutions {
		if strings.Contains(note, "vocal chant") {
			foundNote = true
		}
	}
	if !foundNote {
		t.Errorf("ConflictResolutions = %v, want genre exclusion note", got.ConflictResolutions)
	}
}

func TestIntegratePersonalizationFillsGenre(t *testing.T) {
	state, emotion, _ := calmRecords()
	pref := PreferenceAnalysis{
		PreferenceWeights: map[string]float64{"classical": 0.7, "ambient": 0.9},
	}

	got := NewIntegrator().Integrate(state, emotion, pref, nil)

	if got.FinalSpec.Genre != "ambient" {
		t.Errorf("Genre = %q, want highest-weight ambient", got.FinalSpec.Genre)
	}
}

func TestIntegrateEmptyRecordsGetDefaults(t *testing.T) {
	got := NewIntegrator().Integrate(StateAnalysis{}, EmotionAnalysis{}, PreferenceAnalysis{}, nil)

	want := FinalSpec{
		Genre:       "ambient",
		Tempo:       "slow",
		Mood:        "calm",
		Instruments: []string{"piano", "strings"},
	}
	if !reflect.DeepEqual(got.FinalSpec, want) {
		t.Errorf("FinalSpec = %+v, want defaults %+v", got.FinalSpec, want)
	}
}

func TestIntegrateDeterministic(t *testing.T) {
	state, emotion, pref := calmRecords()

	first := NewIntegrator().Integrate(state, emotion, pref, []string{form.SensitivityLowFreq})
	for i := 0; i < 10; i++ {
		again := NewIntegrator().Integrate(state, emotion, pref, []string{form.SensitivityLowFreq})
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, again, first)
		}
	}
}
