// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package analysis

import (
	"context"
	"errors"
	"sync"

	"github.com/tomtom215/somnus/internal/form"
	"github.com/tomtom215/somnus/internal/llm"
)

// Analyzer fans the questionnaire out to the three agents and merges
// their records into one integrated requirement.
type Analyzer struct {
	state      *StateAgent
	emotion    *EmotionAgent
	preference *PreferenceAgent
	integrator *Integrator
}

// NewAnalyzer wires the three agents and the integrator to one model
// client.
func NewAnalyzer(client llm.Client) *Analyzer {
	return &Analyzer{
		state:      NewStateAgent(client),
		emotion:    NewEmotionAgent(client),
		preference: NewPreferenceAgent(client),
		integrator: NewIntegrator(),
	}
}

// Analyze runs the three agents concurrently over their disjoint field
// subsets, waits for all of them (fan-in barrier, not first-to-finish),
// and integrates the records. Any agent failure fails the whole
// analysis; partial results are discarded.
func (a *Analyzer) Analyze(ctx context.Context, sub form.FormSubmission) (IntegratedRequirement, error) {
	var (
		wg sync.WaitGroup

		state      StateAnalysis
		emotion    EmotionAnalysis
		preference PreferenceAnalysis

		stateErr, emotionErr, preferenceErr error
	)

	wg.Add(3)

	go func() {
		defer wg.Done()
		state, stateErr = a.state.Analyze(ctx, sub.StateInput())
	}()
	go func() {
		defer wg.Done()
		emotion, emotionErr = a.emotion.Analyze(ctx, sub.EmotionInput())
	}()
	go func() {
		defer wg.Done()
		preference, preferenceErr = a.preference.Analyze(ctx, sub.PreferenceInput())
	}()

	wg.Wait()

	if err := errors.Join(stateErr, emotionErr, preferenceErr); err != nil {
		return IntegratedRequirement{}, err
	}
	if err := ctx.Err(); err != nil {
		return IntegratedRequirement{}, err
	}

	return a.integrator.Integrate(state, emotion, preference, sub.MustAvoid()), nil
}
