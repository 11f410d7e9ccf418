// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package pipeline

import (
	"fmt"
	"time"

	"github.com/tomtom215/somnus/internal/analysis"
	"github.com/tomtom215/somnus/internal/corpus"
	"github.com/tomtom215/somnus/internal/experiment"
	"github.com/tomtom215/somnus/internal/models"
)

// Recommendation is one ranked corpus track with its similarity score and
// a human-readable reason.
type Recommendation struct {
	Track  corpus.Track
	Score  float64
	Rank   int
	Reason string
}

// Result is the outcome of one successful pipeline run.
//
// Session is nil when ranking was degenerate (empty corpus or no usable
// vectors): an empty recommendation list is a valid outcome and cannot
// seed a comparison session.
type Result struct {
	RunID           string
	Instruction     string
	Requirement     analysis.IntegratedRequirement
	ReferenceDigest string
	Recommendations []Recommendation
	Session         *experiment.Session
	Elapsed         time.Duration
}

// RecommendedTracks returns the recommended tracks in rank order.
func (r *Result) RecommendedTracks() []corpus.Track {
	tracks := make([]corpus.Track, len(r.Recommendations))
	for i, rec := range r.Recommendations {
		tracks[i] = rec.Track
	}
	return tracks
}

// View assembles the wire payload: ranked recommendations plus the blinded
// session view.
func (r *Result) View() models.RecommendationRunView {
	recs := make([]models.RecommendationView, len(r.Recommendations))
	for i, rec := range r.Recommendations {
		recs[i] = models.RecommendationView{
			Track: models.TrackView{
				ID:       rec.Track.ID,
				Title:    rec.Track.Title,
				Artist:   rec.Track.Artist,
				AudioURL: rec.Track.AudioURL,
			},
			Score:  rec.Score,
			Reason: rec.Reason,
		}
	}

	view := models.RecommendationRunView{
		RunID:           r.RunID,
		Instruction:     r.Instruction,
		Recommendations: recs,
	}
	if r.Session != nil {
		view.Session = r.Session.View()
	}
	return view
}

// reason renders the recommendation reason. The top rank is explained by
// the participant's analyzed state; lower ranks by similarity strength.
func reason(rank int, score float64, req analysis.IntegratedRequirement) string {
	stress := req.State.StressAssessment
	if stress == "" {
		stress = "moderate"
	}
	mood := req.Emotion.TargetMood
	if mood == "" {
		mood = "calm"
	}

	switch {
	case rank == 1:
		return fmt.Sprintf("Top match for your %s stress level and desire for %s mood", stress, mood)
	case score > 0.8:
		return fmt.Sprintf("Highly similar to your preferences with %.1f%% match", score*100)
	case score > 0.6:
		return fmt.Sprintf("Good match for %s mood with %.1f%% similarity", mood, score*100)
	default:
		return fmt.Sprintf("Alternative option that may help achieve %s state", mood)
	}
}
