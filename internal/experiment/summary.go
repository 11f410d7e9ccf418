// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package experiment

import (
	"math"

	"github.com/tomtom215/somnus/internal/models"
)

// Summarize aggregates a session's recorded choices.
//
// PreferenceRate is computed over recorded choices, so a partial session
// summarizes what has been answered so far. Confidence scales the distance
// from chance to [0,1]; a 50/50 split yields 0, unanimity yields 1.
func Summarize(s *Session) models.SessionSummaryView {
	pairByID := make(map[string]Pair, len(s.Pairs))
	for _, p := range s.Pairs {
		pairByID[p.ID] = p
	}

	recommendedChosen := 0
	var decisionSum int64
	var listenTotal int64
	for _, c := range s.Choices {
		if pair, ok := pairByID[c.PairID]; ok && c.ChoseRecommended(pair) {
			recommendedChosen++
		}
		decisionSum += c.DecisionTimeMS
		listenTotal += c.ListenMSA + c.ListenMSB
	}

	summary := models.SessionSummaryView{
		TotalPairs:        len(s.Pairs),
		RecommendedChosen: recommendedChosen,
		TotalListenMS:     listenTotal,
	}

	if len(s.Choices) > 0 {
		rate := float64(recommendedChosen) / float64(len(s.Choices))
		summary.PreferenceRate = rate
		summary.HypothesisSupported = rate > 0.5
		summary.Confidence = math.Abs(rate-0.5) * 2
		summary.AvgDecisionTimeMS = float64(decisionSum) / float64(len(s.Choices))
	}

	return summary
}
