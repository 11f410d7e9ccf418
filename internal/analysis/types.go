// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package analysis turns a sleep questionnaire into a bounded music
// generation instruction.
//
// Three agents (state, emotion, preference) each consume a disjoint
// subset of the questionnaire and query the language model concurrently.
// Their records are merged by a deterministic integrator whose conflict
// resolution is a fixed ordered rule list: physical safety outranks the
// sleep goal, which outranks sound preferences, which outrank learned
// personalization weights. Hard constraints (must-avoid sounds) survive
// every merge step. The instruction agent then produces the final
// generation instruction under a closed length budget.
package analysis

import "errors"

// ErrMissingField marks a required questionnaire field absent for an
// agent. Missing-field failures are input errors and are never retried.
var ErrMissingField = errors.New("required field missing")

// StateAnalysis is the physiological state agent's record.
type StateAnalysis struct {
	// StressAssessment is the normalized stress reading
	// (none, mild, moderate, high, extreme).
	StressAssessment string `json:"stress_assessment"`

	// UrgencyLevel grades how quickly intervention matters
	// (low, medium, high).
	UrgencyLevel string `json:"urgency_level"`

	// PhysicalSummary is a one-line reading of the reported symptoms.
	PhysicalSummary string `json:"physical_summary"`

	// Recommendations are suggested relaxation techniques.
	Recommendations []string `json:"recommendations"`
}

// Urgent reports whether the state demands the most conservative
// musical treatment regardless of stated preferences.
func (s StateAnalysis) Urgent() bool {
	if s.UrgencyLevel == "high" {
		return true
	}
	switch s.StressAssessment {
	case "high", "extreme":
		return true
	}
	return false
}

// EmotionAnalysis is the emotion recognition agent's record.
type EmotionAnalysis struct {
	// PrimaryEmotion is the dominant emotion driving the session.
	PrimaryEmotion string `json:"primary_emotion"`

	// EmotionIntensity grades the emotion (low, medium, high).
	EmotionIntensity string `json:"emotion_intensity"`

	// RegulationStrategy is the suggested path from the current
	// emotion to the target mood.
	RegulationStrategy string `json:"regulation_strategy"`

	// TargetMood is the mood the music should induce.
	TargetMood string `json:"target_mood"`
}

// PreferenceAnalysis is the sound preference agent's record.
type PreferenceAnalysis struct {
	// PreferredGenres are candidate genres, most preferred first.
	PreferredGenres []string `json:"preferred_genres"`

	// PreferredInstruments are candidate instruments, most preferred
	// first.
	PreferredInstruments []string `json:"preferred_instruments"`

	// TempoPreference is the preferred tempo character.
	TempoPreference string `json:"tempo_preference"`

	// ForbiddenElements are sounds the participant cannot tolerate.
	// These become hard constraints during integration.
	ForbiddenElements []string `json:"forbidden_elements"`

	// PreferenceWeights maps genre to affinity in [0,1].
	PreferenceWeights map[string]float64 `json:"preference_weights"`
}

// FinalSpec is the resolved musical specification the instruction is
// composed from.
type FinalSpec struct {
	Genre       string   `json:"genre"`
	Tempo       string   `json:"tempo"`
	Mood        string   `json:"mood"`
	Instruments []string `json:"instruments"`
}

// IntegratedRequirement is the merged output of the three agents after
// conflict resolution.
type IntegratedRequirement struct {
	// State, Emotion and Preference are the source records, unchanged.
	State      StateAnalysis      `json:"state"`
	Emotion    EmotionAnalysis    `json:"emotion"`
	Preference PreferenceAnalysis `json:"preference"`

	// UnifiedRequirements is a one-line summary of the resolved intent.
	UnifiedRequirements string `json:"unified_requirements"`

	// PriorityRanking lists the resolution tiers in the order they were
	// applied.
	PriorityRanking []string `json:"priority_ranking"`

	// ConflictResolutions notes every place a lower tier was overridden.
	ConflictResolutions []string `json:"conflict_resolutions"`

	// HardConstraints are must-avoid sounds. They are never dropped or
	// weakened during merging.
	HardConstraints []string `json:"hard_constraints"`

	// SoftPreferences are negotiable desires ranked by priority; the
	// instruction composer may truncate from the tail.
	SoftPreferences []string `json:"soft_preferences"`

	// FinalSpec is the resolved specification.
	FinalSpec FinalSpec `json:"final_spec"`
}
