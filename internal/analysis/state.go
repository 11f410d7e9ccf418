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

const stateSystemPrompt = `You are a sleep health specialist assessing a user's physical and stress state before bedtime. Answer using exactly the requested lines and nothing else.`

// Per-field defaults applied when the model omits a line.
const (
	defaultStressAssessment = "moderate"
	defaultUrgencyLevel     = "medium"
	defaultPhysicalSummary  = "Mixed physical symptoms reported"
)

var defaultStateRecommendations = []string{
	"Deep breathing",
	"Muscle relaxation",
	"Calming environment",
}

// StateAgent derives a physiological state record from the stress and
// symptom answers.
type StateAgent struct {
	client llm.Client
}

// NewStateAgent creates the physiological state agent.
func NewStateAgent(client llm.Client) *StateAgent {
	return &StateAgent{client: client}
}

// Analyze queries the model with the stress answers and parses its
// response. Omitted response fields fall back to conservative defaults;
// a failed model call is an upstream failure and aborts the run.
func (a *StateAgent) Analyze(ctx context.Context, in form.StateFields) (StateAnalysis, error) {
	if in.StressLevel == "" {
		return StateAnalysis{}, fmt.Errorf("state agent: stress_level: %w", ErrMissingField)
	}

	symptoms := "none reported"
	if len(in.PhysicalSymptoms) > 0 {
		symptoms = strings.Join(in.PhysicalSymptoms, ", ")
	}

	prompt := fmt.Sprintf(`Assess the user's pre-sleep physical state.

Stress level (survey answer): %s
Physical symptoms (survey answers): %s

Respond with exactly these lines:
Stress Assessment: one of none, mild, moderate, high, extreme
Urgency Level: one of low, medium, high
Physical State Summary: one short sentence in English
Recommendations: comma-separated relaxation techniques`, in.StressLevel, symptoms)

	resp, err := a.client.Complete(ctx, llm.Request{System: stateSystemPrompt, Prompt: prompt})
	if err != nil {
		return StateAnalysis{}, fmt.Errorf("state agent: %w", err)
	}

	return parseStateAnalysis(resp), nil
}

// parseStateAnalysis extracts the record from the model response,
// substituting defaults for omitted fields.
func parseStateAnalysis(resp string) StateAnalysis {
	fields := parseFields(resp)

	return StateAnalysis{
		StressAssessment: strings.ToLower(fieldOrDefault(fields, "stress assessment", defaultStressAssessment)),
		UrgencyLevel:     strings.ToLower(fieldOrDefault(fields, "urgency level", defaultUrgencyLevel)),
		PhysicalSummary:  fieldOrDefault(fields, "physical state summary", defaultPhysicalSummary),
		Recommendations:  parseList(fields["recommendations"], defaultStateRecommendations),
	}
}
