// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package analysis

import (
	"fmt"
	"sort"
	"strings"
)

// Integrator merges the three agent records into one requirement.
//
// Conflict resolution is a fixed ordered rule list, not scattered
// conditionals: each tier may claim unset specification slots and
// records a conflict note whenever it overrides a lower tier's desire.
// Hard constraints are collected by the highest tier and are never
// dropped or weakened by later tiers.
type Integrator struct{}

// NewIntegrator creates the deterministic requirement integrator.
func NewIntegrator() *Integrator {
	return &Integrator{}
}

// mergeInput bundles the agent records and the questionnaire's raw
// must-avoid answers for the rule list.
type mergeInput struct {
	state     StateAnalysis
	emotion   EmotionAnalysis
	pref      PreferenceAnalysis
	mustAvoid []string
}

// mergeRule is one conflict-resolution tier.
type mergeRule struct {
	tier  string
	apply func(in mergeInput, req *IntegratedRequirement)
}

// mergeRules is the resolution order. Earlier tiers win.
var mergeRules = []mergeRule{
	{tier: "physical safety", apply: applySafety},
	{tier: "sleep goal", apply: applySleepGoal},
	{tier: "sound preferences", apply: applySoundPreferences},
	{tier: "personalization", apply: applyPersonalization},
}

// Integrate resolves the three records and the questionnaire's hard
// constraints into a single requirement. Pure and deterministic.
func (Integrator) Integrate(state StateAnalysis, emotion EmotionAnalysis, pref PreferenceAnalysis, mustAvoid []string) IntegratedRequirement {
	req := IntegratedRequirement{
		State:      state,
		Emotion:    emotion,
		Preference: pref,
	}

	in := mergeInput{state: state, emotion: emotion, pref: pref, mustAvoid: mustAvoid}

	for _, rule := range mergeRules {
		rule.apply(in, &req)
		req.PriorityRanking = append(req.PriorityRanking, rule.tier)
	}

	finalizeSpec(in, &req)
	req.UnifiedRequirements = summarize(req)

	return req
}

// applySafety is the highest tier. It fixes the hard constraints (form
// must-avoid answers united with the preference agent's forbidden
// elements) and forces the most conservative tempo when the physical
// state is urgent.
func applySafety(in mergeInput, req *IntegratedRequirement) {
	req.HardConstraints = dedupe(append(append([]string{}, in.mustAvoid...), in.pref.ForbiddenElements...))

	if in.state.Urgent() {
		req.FinalSpec.Tempo = "very slow"
		req.SoftPreferences = append(req.SoftPreferences, "gentle dynamics")

		if t := in.pref.TempoPreference; t != "" && t != "very slow" {
			req.ConflictResolutions = append(req.ConflictResolutions,
				fmt.Sprintf("physical state overrides tempo preference (%s -> very slow)", t))
		}
	}
}

// applySleepGoal claims the mood slot from the emotion record (the
// emotion agent derived the target mood from the sleep goal) and ranks
// the regulation strategy as a negotiable desire.
func applySleepGoal(in mergeInput, req *IntegratedRequirement) {
	if req.FinalSpec.Mood == "" {
		req.FinalSpec.Mood = in.emotion.TargetMood
	}

	if s := in.emotion.RegulationStrategy; s != "" {
		req.SoftPreferences = append(req.SoftPreferences, s)
	}
}

// applySoundPreferences claims genre, instruments, and (unless safety
// already forced it) tempo from the preference record, skipping values
// that collide with a hard constraint.
func applySoundPreferences(in mergeInput, req *IntegratedRequirement) {
	for _, g := range in.pref.PreferredGenres {
		if conflicts(g, req.HardConstraints) {
			req.ConflictResolutions = append(req.ConflictResolutions,
				fmt.Sprintf("hard constraint excludes genre %q", g))
			continue
		}
		if req.FinalSpec.Genre == "" {
			req.FinalSpec.Genre = g
		} else {
			req.SoftPreferences = append(req.SoftPreferences, "genre "+g)
		}
	}

	for _, inst := range in.pref.PreferredInstruments {
		if conflicts(inst, req.HardConstraints) {
			req.ConflictResolutions = append(req.ConflictResolutions,
				fmt.Sprintf("hard constraint excludes instrument %q", inst))
			continue
		}
		if len(req.FinalSpec.Instruments) < 2 {
			req.FinalSpec.Instruments = append(req.FinalSpec.Instruments, inst)
		} else {
			req.SoftPreferences = append(req.SoftPreferences, "instrument "+inst)
		}
	}

	if req.FinalSpec.Tempo == "" {
		req.FinalSpec.Tempo = in.pref.TempoPreference
	}
}

// applyPersonalization is the lowest tier: learned genre weights fill
// the genre slot only when nothing above claimed it, and rank the
// remaining negotiable desires.
func applyPersonalization(in mergeInput, req *IntegratedRequirement) {
	for _, g := range rankedWeights(in.pref.PreferenceWeights) {
		if conflicts(g, req.HardConstraints) {
			continue
		}
		if req.FinalSpec.Genre == "" {
			req.FinalSpec.Genre = g
			continue
		}
		if !strings.EqualFold(g, req.FinalSpec.Genre) {
			req.SoftPreferences = append(req.SoftPreferences,
				fmt.Sprintf("leans %s (%.1f)", g, in.pref.PreferenceWeights[g]))
		}
	}

	req.SoftPreferences = dedupe(req.SoftPreferences)
}

// finalizeSpec fills any slot no tier claimed with the conservative
// defaults every sleep session can tolerate.
func finalizeSpec(in mergeInput, req *IntegratedRequirement) {
	if req.FinalSpec.Genre == "" {
		req.FinalSpec.Genre = "ambient"
	}
	if req.FinalSpec.Tempo == "" {
		req.FinalSpec.Tempo = "slow"
	}
	if req.FinalSpec.Mood == "" {
		req.FinalSpec.Mood = "calm"
	}
	if len(req.FinalSpec.Instruments) == 0 {
		for _, inst := range defaultPreferredInstruments {
			if !conflicts(inst, req.HardConstraints) {
				req.FinalSpec.Instruments = append(req.FinalSpec.Instruments, inst)
			}
		}
	}
}

// summarize renders the resolved requirement as one line.
func summarize(req IntegratedRequirement) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s music, %s tempo", req.FinalSpec.Mood, req.FinalSpec.Genre, req.FinalSpec.Tempo)
	if len(req.FinalSpec.Instruments) > 0 {
		fmt.Fprintf(&b, ", featuring %s", strings.Join(req.FinalSpec.Instruments, " and "))
	}
	if len(req.HardConstraints) > 0 {
		fmt.Fprintf(&b, ", avoiding %s", strings.Join(req.HardConstraints, ", "))
	}
	fmt.Fprintf(&b, "; stress %s (%s urgency)", req.State.StressAssessment, req.State.UrgencyLevel)

	return b.String()
}

// conflicts reports whether value collides with any hard constraint.
// Matching is case-insensitive containment in either direction, which
// catches "vocals" against "vocal chant" without a token dictionary.
func conflicts(value string, constraints []string) bool {
	v := strings.ToLower(value)
	for _, c := range constraints {
		c = strings.ToLower(c)
		if strings.Contains(v, c) || strings.Contains(c, v) {
			return true
		}
	}
	return false
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// rankedWeights returns genres by descending weight, ties by name, so
// personalization is deterministic across runs.
func rankedWeights(weights map[string]float64) []string {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		if weights[names[i]] != weights[names[j]] {
			return weights[names[i]] > weights[names[j]]
		}
		return names[i] < names[j]
	})

	return names
}
