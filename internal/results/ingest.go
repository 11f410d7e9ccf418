// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package results

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/somnus/internal/experiment"
	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/metrics"
)

// IngestSession writes one completed session and its choices into the
// warehouse. Ingestion is idempotent: a session id that is already present
// is skipped without error, so replayed lifecycle events cannot double
// count. Sessions that have not reached COMPLETED are rejected.
func (w *Warehouse) IngestSession(ctx context.Context, s *experiment.Session) error {
	if s.Status != experiment.StatusCompleted {
		return fmt.Errorf("%w: session %s is %s", experiment.ErrSessionNotCompleted, s.SessionID, s.Status)
	}

	ctx, cancel := w.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	inserted, err := w.ingest(ctx, s)
	metrics.RecordDBQuery("ingest", "experiment_sessions", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("ingest session %s: %w", s.SessionID, err)
	}

	if !inserted {
		logging.Debug().
			Str("session_id", s.SessionID).
			Msg("Session already in warehouse, skipped")
		return nil
	}

	metrics.ResultsSessionsIngested.Inc()
	logging.Info().
		Str("session_id", s.SessionID).
		Str("run_id", s.RunID).
		Int("choices", len(s.Choices)).
		Msg("Session ingested into results warehouse")

	return nil
}

func (w *Warehouse) ingest(ctx context.Context, s *experiment.Session) (bool, error) {
	pairByID := make(map[string]experiment.Pair, len(s.Pairs))
	for _, p := range s.Pairs {
		pairByID[p.ID] = p
	}

	summary := experiment.Summarize(s)
	controlChosen := len(s.Choices) - summary.RecommendedChosen

	tx, err := w.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `INSERT INTO experiment_sessions (
			session_id, run_id, user_id, reference_digest,
			stress_level, emotional_state, sleep_goal, sleep_theme,
			pairs, choices, recommended_chosen, control_chosen,
			preference_rate, hypothesis_supported, confidence,
			avg_decision_time_ms, total_listen_ms,
			started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		s.SessionID, s.RunID, s.UserID, s.ReferenceDigest,
		s.FormData.StressLevel, s.FormData.EmotionalState,
		s.FormData.SleepGoal, s.FormData.SleepTheme,
		len(s.Pairs), len(s.Choices), summary.RecommendedChosen, controlChosen,
		summary.PreferenceRate, summary.HypothesisSupported, summary.Confidence,
		summary.AvgDecisionTimeMS, summary.TotalListenMS,
		nullTime(s.StartTime), nullTime(s.CompletionTime),
	)
	if err != nil {
		return false, fmt.Errorf("insert session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		// Already ingested; the choices from the first ingest stand.
		return false, nil
	}

	for i, c := range s.Choices {
		pair, ok := pairByID[c.PairID]
		if !ok {
			return false, fmt.Errorf("choice %d references unknown pair %s", i, c.PairID)
		}

		recommendedID, controlID := pair.TrackA.ID, pair.TrackB.ID
		if pair.RecommendedPosition == experiment.SideB {
			recommendedID, controlID = pair.TrackB.ID, pair.TrackA.ID
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO experiment_choices (
				session_id, pair_id, pair_index,
				recommended_track_id, control_track_id,
				chosen_side, chose_recommended, decision_time_ms,
				play_count_a, play_count_b, listen_ms_a, listen_ms_b,
				recorded_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING`,
			s.SessionID, c.PairID, pair.Index,
			recommendedID, controlID,
			c.ChosenSide, c.ChoseRecommended(pair), c.DecisionTimeMS,
			c.PlayCountA, c.PlayCountB, c.ListenMSA, c.ListenMSB,
			nullTime(c.RecordedAt),
		); err != nil {
			return false, fmt.Errorf("insert choice %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	return true, nil
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
