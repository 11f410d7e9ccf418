// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package corpus loads and serves the static track corpus.
//
// The corpus is two JSON files produced by the offline encoding tool: a
// manifest of track records and an embeddings sidecar with one precomputed
// vector per track id. Both are read once at startup; after Load the store
// is immutable and shared lock-free across all pipeline runs. Only the
// browse-sampling RNG is internally synchronized.
//
// Integrity: sidecar entries may carry a BLAKE2b-256 digest of their vector
// bytes, recomputed and compared at load, and an audio digest cross-checked
// against the manifest so a stale sidecar (encoded from different audio than
// the manifest lists) fails loudly instead of ranking against wrong vectors.
package corpus

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/somnus/internal/config"
	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/metrics"
	"github.com/tomtom215/somnus/internal/ranker"
)

// Track is one corpus entry. AudioURL is resolved at load from the
// configured base URL and is what the comparison widget streams.
type Track struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	File        string  `json:"file"`
	DurationS   float64 `json:"duration_s"`
	AudioDigest string  `json:"audio_digest,omitempty"`
	AudioURL    string  `json:"-"`
}

// sidecar is the embeddings file layout.
type sidecar struct {
	Model      string         `json:"model"`
	Dimension  int            `json:"dimension"`
	Embeddings []sidecarEntry `json:"embeddings"`
}

// sidecarEntry carries one precomputed vector. Digest covers the vector's
// little-endian float32 encoding; AudioDigest covers the source audio.
type sidecarEntry struct {
	TrackID     string        `json:"track_id"`
	Vector      ranker.Vector `json:"vector"`
	Digest      string        `json:"digest,omitempty"`
	AudioDigest string        `json:"audio_digest,omitempty"`
}

// Store holds the loaded corpus. Tracks keep manifest order, which is the
// insertion order the ranker's tie-break refers to.
//
// Thread Safety: all accessors are safe for concurrent use. The track and
// candidate slices are never mutated after Load; callers must treat the
// slice returned by Candidates as read-only.
type Store struct {
	tracks     []Track
	byID       map[string]int
	candidates []ranker.Candidate
	dimension  int

	// Browse sampling only; experiment control sampling uses the
	// builder's seeded RNG passed into Sample.
	rng   *rand.Rand
	rngMu sync.Mutex
}

// Load reads the manifest and embeddings sidecar and pairs them strictly:
// a track enters the corpus only with a usable vector. An empty manifest is
// a valid (if unhelpful) corpus; unreadable files and integrity failures
// are fatal.
func Load(cfg *config.CorpusConfig) (*Store, error) {
	manifestData, err := os.ReadFile(cfg.ManifestPath)
	if err != nil {
		return nil, fmt.Errorf("read corpus manifest: %w", err)
	}

	var manifest []Track
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, fmt.Errorf("parse corpus manifest: %w", err)
	}

	sidecarData, err := os.ReadFile(cfg.EmbeddingsPath)
	if err != nil {
		return nil, fmt.Errorf("read corpus embeddings: %w", err)
	}

	var sc sidecar
	if err := json.Unmarshal(sidecarData, &sc); err != nil {
		return nil, fmt.Errorf("parse corpus embeddings: %w", err)
	}

	vectors := make(map[string]sidecarEntry, len(sc.Embeddings))
	for _, entry := range sc.Embeddings {
		if entry.TrackID == "" {
			return nil, fmt.Errorf("corpus embeddings: entry with empty track_id")
		}
		if _, dup := vectors[entry.TrackID]; dup {
			return nil, fmt.Errorf("corpus embeddings: duplicate track_id %q", entry.TrackID)
		}
		vectors[entry.TrackID] = entry
	}

	s := &Store{
		byID:      make(map[string]int, len(manifest)),
		dimension: sc.Dimension,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // browse sampling needs no crypto quality
	}

	base := strings.TrimSuffix(cfg.AudioBaseURL, "/")
	missingVectors := 0

	for _, track := range manifest {
		if track.ID == "" {
			return nil, fmt.Errorf("corpus manifest: track with empty id")
		}
		if _, dup := s.byID[track.ID]; dup {
			return nil, fmt.Errorf("corpus manifest: duplicate track id %q", track.ID)
		}

		entry, ok := vectors[track.ID]
		if !ok || len(entry.Vector) == 0 {
			missingVectors++
			logging.Warn().Str("track_id", track.ID).Msg("Corpus track has no embedding, excluded")
			continue
		}
		delete(vectors, track.ID)

		if s.dimension == 0 {
			s.dimension = len(entry.Vector)
		}
		if len(entry.Vector) != s.dimension {
			return nil, fmt.Errorf("corpus embeddings: track %q has dimension %d, want %d",
				track.ID, len(entry.Vector), s.dimension)
		}

		if cfg.VerifyDigests {
			if err := verifyEntry(track, entry); err != nil {
				return nil, err
			}
		}

		track.AudioURL = base + "/" + strings.TrimPrefix(track.File, "/")
		s.byID[track.ID] = len(s.tracks)
		s.tracks = append(s.tracks, track)
		s.candidates = append(s.candidates, ranker.Candidate{TrackID: track.ID, Vector: entry.Vector})
	}

	for trackID := range vectors {
		logging.Warn().Str("track_id", trackID).Msg("Corpus embedding has no manifest track, ignored")
	}

	usable := 0
	for _, c := range s.candidates {
		if c.Vector.Norm() > 0 {
			usable++
		}
	}

	metrics.CorpusTracks.Set(float64(len(s.tracks)))
	metrics.CorpusUsableVectors.Set(float64(usable))

	logging.Info().
		Int("tracks", len(s.tracks)).
		Int("usable_vectors", usable).
		Int("missing_vectors", missingVectors).
		Int("dimension", s.dimension).
		Str("model", sc.Model).
		Msg("Corpus loaded")

	return s, nil
}

// verifyEntry checks the sidecar entry's integrity digests.
func verifyEntry(track Track, entry sidecarEntry) error {
	if entry.Digest != "" {
		if got := Digest(vectorBytes(entry.Vector)); got != entry.Digest {
			return fmt.Errorf("corpus embeddings: vector digest mismatch for track %q", track.ID)
		}
	}
	if entry.AudioDigest != "" && track.AudioDigest != "" && entry.AudioDigest != track.AudioDigest {
		return fmt.Errorf("corpus embeddings: track %q encoded from different audio than the manifest lists",
			track.ID)
	}
	return nil
}

// Size returns the number of tracks in the corpus.
func (s *Store) Size() int {
	return len(s.tracks)
}

// Dimension returns the embedding dimension, 0 for an empty corpus.
func (s *Store) Dimension() int {
	if len(s.candidates) == 0 {
		return 0
	}
	return s.dimension
}

// Track returns the track with the given id.
func (s *Store) Track(id string) (Track, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Track{}, false
	}
	return s.tracks[i], true
}

// Candidates returns the ranking candidates in corpus insertion order.
// The returned slice is shared and must not be mutated.
func (s *Store) Candidates() []ranker.Candidate {
	return s.candidates
}

// Sample draws up to n distinct tracks whose ids are not in exclude, using
// the caller's RNG so experiment control selection stays reproducible under
// a fixed seed. Returns fewer than n when not enough tracks are eligible.
func (s *Store) Sample(rng *rand.Rand, n int, exclude map[string]bool) []Track {
	if n <= 0 {
		return nil
	}

	eligible := make([]int, 0, len(s.tracks))
	for i, t := range s.tracks {
		if !exclude[t.ID] {
			eligible = append(eligible, i)
		}
	}

	return s.drawTracks(rng, eligible, n)
}

// RandomTracks draws up to n distinct tracks for pre-experiment browsing.
func (s *Store) RandomTracks(n int) []Track {
	if n <= 0 {
		return nil
	}

	indexes := make([]int, len(s.tracks))
	for i := range indexes {
		indexes[i] = i
	}

	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.drawTracks(s.rng, indexes, n)
}

// drawTracks partially shuffles the index slice and returns the first
// min(n, len) tracks. The slice is consumed.
func (s *Store) drawTracks(rng *rand.Rand, indexes []int, n int) []Track {
	if n > len(indexes) {
		n = len(indexes)
	}

	picked := make([]Track, n)
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(indexes)-i)
		indexes[i], indexes[j] = indexes[j], indexes[i]
		picked[i] = s.tracks[indexes[i]]
	}
	return picked
}
