// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package events

import (
	"fmt"
	"time"

	"github.com/tomtom215/somnus/internal/experiment"
)

// SchemaVersion is the current event schema version. Increment on breaking
// changes to the event payloads so consumers can branch on it.
const SchemaVersion = 1

// JetStream layout. All lifecycle events share one stream; subjects encode
// the event kind so consumers can subscribe to a subset.
const (
	StreamName     = "SOMNUS_EXPERIMENT"
	StreamSubjects = "experiment.>"

	TopicChoiceRecorded   = "experiment.choice.recorded"
	TopicSessionCompleted = "experiment.session.completed"
)

// EventHeader carries the fields common to every lifecycle event.
//
// EventID doubles as the Nats-Msg-Id, so it must be deterministic for a
// given fact: republishing the same choice or completion lands in the
// JetStream duplicate window instead of producing a second event.
type EventHeader struct {
	SchemaVersion int       `json:"schema_version"`
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	OccurredAt    time.Time `json:"occurred_at"`
	SessionID     string    `json:"session_id"`
	RunID         string    `json:"run_id"`
	UserID        string    `json:"user_id"`
}

// ChoiceRecordedEvent is published after each blinded choice is accepted.
type ChoiceRecordedEvent struct {
	EventHeader

	PairID           string `json:"pair_id"`
	PairIndex        int    `json:"pair_index"`
	ChosenSide       string `json:"chosen_side"`
	ChoseRecommended bool   `json:"chose_recommended"`
	DecisionTimeMS   int64  `json:"decision_time_ms"`
	ChoicesRecorded  int    `json:"choices_recorded"`
	TotalPairs       int    `json:"total_pairs"`
}

// SessionCompletedEvent is published once when the final choice closes a
// session. It carries the full session snapshot so downstream consumers
// (the results warehouse in particular) can ingest without reading the
// session store, and so the stream can replay completed sessions into a
// rebuilt warehouse.
type SessionCompletedEvent struct {
	EventHeader

	SleepTheme          string  `json:"sleep_theme"`
	TotalPairs          int     `json:"total_pairs"`
	RecommendedChosen   int     `json:"recommended_chosen"`
	PreferenceRate      float64 `json:"preference_rate"`
	HypothesisSupported bool    `json:"hypothesis_supported"`
	Confidence          float64 `json:"confidence"`
	AvgDecisionTimeMS   float64 `json:"avg_decision_time_ms"`
	TotalListenMS       int64   `json:"total_listen_ms"`

	Session *experiment.Session `json:"session"`
}

// NewChoiceRecordedEvent builds the event for one accepted choice.
// Returns an error when the choice references a pair the session does not
// contain, which means the caller handed over mismatched arguments.
func NewChoiceRecordedEvent(s *experiment.Session, c experiment.Choice) (*ChoiceRecordedEvent, error) {
	var pair *experiment.Pair
	for i := range s.Pairs {
		if s.Pairs[i].ID == c.PairID {
			pair = &s.Pairs[i]
			break
		}
	}
	if pair == nil {
		return nil, fmt.Errorf("choice references unknown pair %s in session %s", c.PairID, s.SessionID)
	}

	return &ChoiceRecordedEvent{
		EventHeader: EventHeader{
			SchemaVersion: SchemaVersion,
			EventID:       fmt.Sprintf("choice.%s.%s", s.SessionID, c.PairID),
			EventType:     TopicChoiceRecorded,
			OccurredAt:    c.RecordedAt,
			SessionID:     s.SessionID,
			RunID:         s.RunID,
			UserID:        s.UserID,
		},
		PairID:           pair.ID,
		PairIndex:        pair.Index,
		ChosenSide:       c.ChosenSide,
		ChoseRecommended: c.ChoseRecommended(*pair),
		DecisionTimeMS:   c.DecisionTimeMS,
		ChoicesRecorded:  len(s.Choices),
		TotalPairs:       len(s.Pairs),
	}, nil
}

// NewSessionCompletedEvent builds the completion event with the summary
// statistics and the session snapshot.
func NewSessionCompletedEvent(s *experiment.Session) *SessionCompletedEvent {
	summary := experiment.Summarize(s)

	return &SessionCompletedEvent{
		EventHeader: EventHeader{
			SchemaVersion: SchemaVersion,
			EventID:       fmt.Sprintf("completed.%s", s.SessionID),
			EventType:     TopicSessionCompleted,
			OccurredAt:    s.CompletionTime,
			SessionID:     s.SessionID,
			RunID:         s.RunID,
			UserID:        s.UserID,
		},
		SleepTheme:          s.FormData.SleepTheme,
		TotalPairs:          summary.TotalPairs,
		RecommendedChosen:   summary.RecommendedChosen,
		PreferenceRate:      summary.PreferenceRate,
		HypothesisSupported: summary.HypothesisSupported,
		Confidence:          summary.Confidence,
		AvgDecisionTimeMS:   summary.AvgDecisionTimeMS,
		TotalListenMS:       summary.TotalListenMS,
		Session:             s,
	}
}
