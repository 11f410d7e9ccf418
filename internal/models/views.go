// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package models

import (
	"time"
)

// TrackView is the wire representation of a corpus track. It carries only
// what the playback widget needs: identity, display metadata, and the audio
// location. Descriptive metadata (genre, tempo, mood) stays server-side so
// it cannot hint at which side of a pair was recommended.
type TrackView struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	AudioURL string `json:"audio_url"`
}

// RandomTracksView is the payload of the random-sampling endpoint used for
// pre-experiment browsing.
type RandomTracksView struct {
	Tracks []TrackView `json:"tracks"`
	Count  int         `json:"count"`
}

// PairView is the blinded wire representation of one comparison pair.
//
// It deliberately has no recommended-position field: blinding is a property
// of this type, not of the UI. The assignment lives only in the internal
// pair record and in the post-completion results payload (ResultPairView).
type PairView struct {
	ID     string    `json:"id"`
	Index  int       `json:"index"`
	TrackA TrackView `json:"track_a"`
	TrackB TrackView `json:"track_b"`
}

// SessionView is the wire representation of an experiment session before and
// during the comparison phase. Pairs are blinded (PairView).
//
// Status values: CREATED, IN_PROGRESS, COMPLETED.
type SessionView struct {
	SessionID    string     `json:"session_id"`
	UserID       string     `json:"user_id"`
	Status       string     `json:"status"`
	CurrentIndex int        `json:"current_index"`
	TotalPairs   int        `json:"total_pairs"`
	Pairs        []PairView `json:"pairs"`
	StartTime    time.Time  `json:"start_time"`
}

// RecommendationView is one ranked track with its similarity score and a
// human-readable reason string.
type RecommendationView struct {
	Track  TrackView `json:"track"`
	Score  float64   `json:"score"`
	Reason string    `json:"reason,omitempty"`
}

// RecommendationRunView is the payload returned by a successful pipeline run:
// the ranked recommendations plus the experiment session built from them.
type RecommendationRunView struct {
	RunID           string               `json:"run_id"`
	Instruction     string               `json:"instruction"`
	Recommendations []RecommendationView `json:"recommendations"`
	Session         SessionView          `json:"session"`
	Token           string               `json:"token,omitempty"`
}

// SubmitChoiceRequest is the request body for recording one comparison choice.
// Instrumentation counters are client-measured while audio is actively playing.
type SubmitChoiceRequest struct {
	PairID         string `json:"pair_id" validate:"required"`
	ChosenSide     string `json:"chosen_side" validate:"required,oneof=A B"`
	DecisionTimeMS int64  `json:"decision_time_ms" validate:"gte=0"`
	PlayCountA     int    `json:"play_count_a" validate:"gte=0"`
	PlayCountB     int    `json:"play_count_b" validate:"gte=0"`
	ListenMSA      int64  `json:"listen_ms_a" validate:"gte=0"`
	ListenMSB      int64  `json:"listen_ms_b" validate:"gte=0"`
}

// ChoiceView is the wire representation of one recorded choice.
type ChoiceView struct {
	PairID         string `json:"pair_id"`
	ChosenSide     string `json:"chosen_side"`
	DecisionTimeMS int64  `json:"decision_time_ms"`
	PlayCountA     int    `json:"play_count_a"`
	PlayCountB     int    `json:"play_count_b"`
	ListenMSA      int64  `json:"listen_ms_a"`
	ListenMSB      int64  `json:"listen_ms_b"`
}

// ResultPairView is the unblinded pair record returned only for completed
// sessions. RecommendedPosition is "A" or "B".
type ResultPairView struct {
	ID                  string    `json:"id"`
	TrackA              TrackView `json:"track_a"`
	TrackB              TrackView `json:"track_b"`
	RecommendedPosition string    `json:"recommended_position"`
}

// SessionSummaryView aggregates one completed session's choices.
//
// PreferenceRate is the fraction of choices that picked the recommended side.
// HypothesisSupported is PreferenceRate > 0.5; Confidence scales the distance
// from chance to [0,1] as |rate-0.5|*2.
type SessionSummaryView struct {
	TotalPairs          int     `json:"total_pairs"`
	RecommendedChosen   int     `json:"recommended_chosen"`
	PreferenceRate      float64 `json:"preference_rate"`
	HypothesisSupported bool    `json:"hypothesis_supported"`
	Confidence          float64 `json:"confidence"`
	AvgDecisionTimeMS   float64 `json:"avg_decision_time_ms"`
	TotalListenMS       int64   `json:"total_listen_ms"`
}

// SessionResultsView is the full unblinded record of a completed session.
// Only available once the session has reached COMPLETED.
type SessionResultsView struct {
	SessionID      string             `json:"session_id"`
	UserID         string             `json:"user_id"`
	Pairs          []ResultPairView   `json:"pairs"`
	Choices        []ChoiceView       `json:"choices"`
	StartTime      time.Time          `json:"start_time"`
	CompletionTime time.Time          `json:"completion_time"`
	Summary        SessionSummaryView `json:"summary"`
}

// CollaboratorStatus reports one external collaborator's configuration state.
type CollaboratorStatus struct {
	Name      string `json:"name"`
	Endpoint  string `json:"endpoint,omitempty"`
	Available bool   `json:"available"`
}

// StatusView is the payload of the service status endpoint.
type StatusView struct {
	Status         string               `json:"status"`
	Version        string               `json:"version"`
	CorpusSize     int                  `json:"corpus_size"`
	EmbeddingDim   int                  `json:"embedding_dim"`
	ActiveSessions int                  `json:"active_sessions"`
	Collaborators  []CollaboratorStatus `json:"collaborators"`
	UptimeSeconds  int64                `json:"uptime_seconds"`
}
