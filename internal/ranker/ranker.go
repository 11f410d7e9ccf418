// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package ranker implements similarity ranking of corpus tracks against a
// reference embedding.
//
// Ranking is pure and deterministic: cosine similarity over L2 norms,
// descending order, ties broken by corpus insertion order. Zero-norm vectors
// carry no direction and are excluded rather than divided by. A degenerate
// corpus (empty, or nothing usable) ranks to an empty list, not an error;
// an unhelpful corpus is still a valid one.
package ranker

import (
	"math"
	"sort"
)

// Vector is one fixed-dimension audio embedding. Corpus vectors are
// precomputed offline; the reference vector is produced per run by the
// embedding collaborator.
type Vector []float32

// Norm returns the L2 norm.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Candidate pairs a corpus track with its precomputed embedding.
type Candidate struct {
	TrackID string
	Vector  Vector
}

// Ranked is one scored ranking entry. Rank is 1-based.
type Ranked struct {
	TrackID string
	Score   float64
	Rank    int
}

// Rank scores every usable candidate against the reference and returns the
// top k in descending score order.
//
// Output length is min(k, usable candidates), never padded. Candidates whose
// vector has zero norm (or a dimension mismatching the reference) are skipped.
// A zero-norm reference makes every similarity undefined and ranks to an
// empty list.
//
// Calling Rank twice with the same inputs yields identical output: scoring is
// a single pass in corpus order and ties keep that order.
func Rank(reference Vector, corpus []Candidate, k int) []Ranked {
	if k <= 0 || len(corpus) == 0 {
		return []Ranked{}
	}

	refNorm := reference.Norm()
	if refNorm == 0 {
		return []Ranked{}
	}

	type scored struct {
		pos   int
		score float64
	}

	entries := make([]scored, 0, len(corpus))
	for pos, c := range corpus {
		if len(c.Vector) != len(reference) {
			continue
		}

		var dot, norm float64
		for i, x := range c.Vector {
			dot += float64(x) * float64(reference[i])
			norm += float64(x) * float64(x)
		}
		if norm == 0 {
			continue
		}

		entries = append(entries, scored{
			pos:   pos,
			score: dot / (math.Sqrt(norm) * refNorm),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		return entries[i].pos < entries[j].pos
	})

	if len(entries) > k {
		entries = entries[:k]
	}

	ranked := make([]Ranked, len(entries))
	for i, e := range entries {
		ranked[i] = Ranked{
			TrackID: corpus[e.pos].TrackID,
			Score:   e.score,
			Rank:    i + 1,
		}
	}
	return ranked
}
