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

const emotionSystemPrompt = `You are an emotion recognition specialist preparing a user for sleep. Answer using exactly the requested lines and nothing else.`

const (
	defaultEmotionIntensity   = "medium"
	defaultRegulationStrategy = "relaxation techniques"
	defaultTargetMood         = "calm"
)

// EmotionAgent derives an emotional state record from the emotion and
// sleep goal answers.
type EmotionAgent struct {
	client llm.Client
}

// NewEmotionAgent creates the emotion recognition agent.
func NewEmotionAgent(client llm.Client) *EmotionAgent {
	return &EmotionAgent{client: client}
}

// Analyze queries the model with the emotional answers and parses its
// response. The primary emotion defaults to the raw survey answer when
// the model omits it.
func (a *EmotionAgent) Analyze(ctx context.Context, in form.EmotionFields) (EmotionAnalysis, error) {
	if in.EmotionalState == "" {
		return EmotionAnalysis{}, fmt.Errorf("emotion agent: emotional_state: %w", ErrMissingField)
	}
	if in.SleepGoal == "" {
		return EmotionAnalysis{}, fmt.Errorf("emotion agent: sleep_goal: %w", ErrMissingField)
	}

	prompt := fmt.Sprintf(`Identify the user's emotional needs for falling asleep.

Current emotional state (survey answer): %s
Sleep goal (survey answer): %s

Respond with exactly these lines:
Primary Emotion: the dominant emotion in English
Emotion Intensity: one of low, medium, high
Regulation Strategy: a short strategy to reach the target mood
Target Mood: the mood the music should induce, in English`, in.EmotionalState, in.SleepGoal)

	resp, err := a.client.Complete(ctx, llm.Request{System: emotionSystemPrompt, Prompt: prompt})
	if err != nil {
		return EmotionAnalysis{}, fmt.Errorf("emotion agent: %w", err)
	}

	return parseEmotionAnalysis(resp, in.EmotionalState), nil
}

// parseEmotionAnalysis extracts the record from the model response.
// rawEmotion is the survey answer used as the primary-emotion default.
func parseEmotionAnalysis(resp, rawEmotion string) EmotionAnalysis {
	fields := parseFields(resp)

	return EmotionAnalysis{
		PrimaryEmotion:     fieldOrDefault(fields, "primary emotion", rawEmotion),
		EmotionIntensity:   strings.ToLower(fieldOrDefault(fields, "emotion intensity", defaultEmotionIntensity)),
		RegulationStrategy: fieldOrDefault(fields, "regulation strategy", defaultRegulationStrategy),
		TargetMood:         strings.ToLower(fieldOrDefault(fields, "target mood", defaultTargetMood)),
	}
}
