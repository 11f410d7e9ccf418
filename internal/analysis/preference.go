// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/somnus/internal/form"
	"github.com/tomtom215/somnus/internal/llm"
)

const preferenceSystemPrompt = `You are a music therapy specialist translating sleep survey answers into musical preferences. Answer using exactly the requested lines and nothing else.`

const defaultTempoPreference = "very slow"

var (
	defaultPreferredGenres      = []string{"ambient", "classical"}
	defaultPreferredInstruments = []string{"piano", "strings"}
	defaultPreferenceWeights    = map[string]float64{"ambient": 0.8, "classical": 0.7}
)

// PreferenceAgent derives musical preferences from the sound, rhythm,
// sensitivity, and theme answers.
type PreferenceAgent struct {
	client llm.Client
}

// NewPreferenceAgent creates the sound preference agent.
func NewPreferenceAgent(client llm.Client) *PreferenceAgent {
	return &PreferenceAgent{client: client}
}

// Analyze queries the model with the preference answers. Forbidden
// elements default to the raw must-avoid sensitivities so a hard
// constraint never disappears when the model omits the line.
func (a *PreferenceAgent) Analyze(ctx context.Context, in form.PreferenceFields) (PreferenceAnalysis, error) {
	if in.SleepTheme == "" {
		return PreferenceAnalysis{}, fmt.Errorf("preference agent: sleep_theme: %w", ErrMissingField)
	}

	prompt := fmt.Sprintf(`Translate the user's sleep survey answers into musical preferences.

Preferred sound categories (survey answers): %s
Rhythm preference (survey answer): %s
Sound sensitivities to avoid (survey answers): %s
Sleep theme (survey answer): %s

Respond with exactly these lines:
Preferred Genres: comma-separated genres in English, most preferred first
Preferred Instruments: comma-separated instruments in English, most preferred first
Tempo Preference: a tempo description in English
Forbidden Elements: comma-separated sounds that must not appear
Preference Matrix: genre:weight pairs, comma-separated, weights 0.0-1.0`,
		listOrNone(in.SoundPreferences),
		valueOrNone(in.RhythmPreference),
		listOrNone(mustAvoid(in.SoundSensitivities)),
		in.SleepTheme)

	resp, err := a.client.Complete(ctx, llm.Request{System: preferenceSystemPrompt, Prompt: prompt})
	if err != nil {
		return PreferenceAnalysis{}, fmt.Errorf("preference agent: %w", err)
	}

	return parsePreferenceAnalysis(resp, in), nil
}

// parsePreferenceAnalysis extracts the record from the model response.
func parsePreferenceAnalysis(resp string, in form.PreferenceFields) PreferenceAnalysis {
	fields := parseFields(resp)

	return PreferenceAnalysis{
		PreferredGenres:      parseList(fields["preferred genres"], defaultPreferredGenres),
		PreferredInstruments: parseList(fields["preferred instruments"], defaultPreferredInstruments),
		TempoPreference:      strings.ToLower(fieldOrDefault(fields, "tempo preference", defaultTempoPreference)),
		ForbiddenElements:    parseList(fields["forbidden elements"], mustAvoid(in.SoundSensitivities)),
		PreferenceWeights:    parseWeights(fields["preference matrix"], defaultPreferenceWeights),
	}
}

// mustAvoid filters the explicit "no sensitivities" answer, leaving the
// values that translate into hard constraints.
func mustAvoid(sensitivities []string) []string {
	out := make([]string, 0, len(sensitivities))
	for _, s := range sensitivities {
		if s != form.SensitivityNone {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func listOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}

func valueOrNone(value string) string {
	if value == "" {
		return "none"
	}
	return value
}
