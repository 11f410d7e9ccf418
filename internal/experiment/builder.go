// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package experiment

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/somnus/internal/config"
	"github.com/tomtom215/somnus/internal/corpus"
	"github.com/tomtom215/somnus/internal/form"
	"github.com/tomtom215/somnus/internal/logging"
)

const defaultPairs = 5

// ControlSource is the corpus subset the builder draws control tracks from.
type ControlSource interface {
	// Sample returns up to n distinct tracks whose IDs are not in exclude.
	Sample(rng *rand.Rand, n int, exclude map[string]bool) []corpus.Track

	// Size returns the number of usable tracks in the corpus.
	Size() int
}

var _ ControlSource = (*corpus.Store)(nil)

// Builder turns a ranked recommendation list into a blind comparison
// session. Each pair carries one recommended track and one control track
// drawn from the corpus minus the full recommended set, with side
// assignment decided by a fair coin.
//
// The coin and the control draw share one seeded source, so a fixed
// experiment seed reproduces the exact pair layout for the same corpus and
// recommendation list. A zero seed draws a fresh random seed at startup.
type Builder struct {
	source ControlSource
	pairs  int
	ttl    time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewBuilder creates a Builder from experiment configuration.
func NewBuilder(cfg config.ExperimentConfig, source ControlSource) *Builder {
	pairs := cfg.Pairs
	if pairs <= 0 {
		pairs = defaultPairs
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = cryptoSeed()
	}

	return &Builder{
		source: source,
		pairs:  pairs,
		ttl:    cfg.SessionTTL,
		rng:    rand.New(rand.NewSource(seed)), //nolint:gosec // math/rand is fine for pair assignment; the seed is configurable so experiments can be replayed
	}
}

// Pairs returns the number of comparison pairs per session.
func (b *Builder) Pairs() int {
	return b.pairs
}

// Build constructs a new session from a ranked recommendation list.
//
// recommended must be in rank order. Every recommended track is excluded
// from the control draw, not just the ones used in pairs, so a control can
// never be a track the ranker also surfaced. When the list is shorter than
// the pair count, recommended tracks repeat in rank order against fresh
// controls.
//
// Returns InsufficientCorpusError when the corpus cannot supply enough
// distinct controls.
func (b *Builder) Build(userID string, submission form.FormSubmission, recommended []corpus.Track) (*Session, error) {
	if len(recommended) == 0 {
		return nil, fmt.Errorf("%w: no recommended tracks", ErrInsufficientCorpus)
	}

	exclude := make(map[string]bool, len(recommended))
	for _, t := range recommended {
		exclude[t.ID] = true
	}

	available := b.source.Size() - len(exclude)
	if available < b.pairs {
		return nil, &InsufficientCorpusError{Need: b.pairs, Have: available}
	}

	b.rngMu.Lock()
	controls := b.source.Sample(b.rng, b.pairs, exclude)
	flips := make([]int, b.pairs)
	for i := range flips {
		flips[i] = b.rng.Intn(2)
	}
	b.rngMu.Unlock()

	if len(controls) < b.pairs {
		return nil, &InsufficientCorpusError{Need: b.pairs, Have: len(controls)}
	}

	pairs := make([]Pair, b.pairs)
	for i := 0; i < b.pairs; i++ {
		rec := trackRef(recommended[i%len(recommended)])
		ctl := trackRef(controls[i])

		p := Pair{
			ID:    uuid.New().String(),
			Index: i,
		}
		if flips[i] == 0 {
			p.TrackA = rec
			p.TrackB = ctl
			p.RecommendedPosition = SideA
		} else {
			p.TrackA = ctl
			p.TrackB = rec
			p.RecommendedPosition = SideB
		}
		pairs[i] = p
	}

	now := time.Now()
	session := &Session{
		SessionID:    uuid.New().String(),
		UserID:       userID,
		FormData:     submission.Normalized(),
		Pairs:        pairs,
		Choices:      make([]Choice, 0, b.pairs),
		CurrentIndex: 0,
		Status:       StatusCreated,
		StartTime:    now,
		ExpiresAt:    now.Add(b.ttl),
	}

	logging.Debug().
		Str("session_id", session.SessionID).
		Int("pairs", len(pairs)).
		Int("recommended", len(recommended)).
		Msg("Built experiment session")

	return session, nil
}

func trackRef(t corpus.Track) TrackRef {
	return TrackRef{
		ID:       t.ID,
		Title:    t.Title,
		Artist:   t.Artist,
		AudioURL: t.AudioURL,
	}
}

// cryptoSeed returns a random seed for the unseeded (seed 0) case.
func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(buf[:])) //nolint:gosec // intentional wraparound conversion
}
