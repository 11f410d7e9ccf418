// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package results

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/somnus/internal/metrics"
)

// Effectiveness is the cross-session test of the core hypothesis: do
// participants prefer recommended tracks over controls? Rates are computed
// over every recorded choice in the warehouse.
type Effectiveness struct {
	SessionsAnalyzed     int64   `json:"sessions_analyzed"`
	TotalChoices         int64   `json:"total_choices"`
	RecommendedChosen    int64   `json:"recommended_chosen"`
	ControlChosen        int64   `json:"control_chosen"`
	PreferenceRate       float64 `json:"recommendation_preference_rate"`
	HypothesisSupported  bool    `json:"hypothesis_supported"`
	Confidence           float64 `json:"confidence_level"`
	AvgDecisionTimeMS    float64 `json:"avg_decision_time_ms"`
	MedianDecisionTimeMS float64 `json:"median_decision_time_ms"`
	P95DecisionTimeMS    float64 `json:"p95_decision_time_ms"`
}

// SessionDetail is one completed session's contribution to the analysis.
type SessionDetail struct {
	SessionID         string    `json:"session_id"`
	UserID            string    `json:"user_id"`
	TotalChoices      int64     `json:"total_choices"`
	RecommendedChosen int64     `json:"recommended_chosen"`
	ControlChosen     int64     `json:"control_chosen"`
	PreferenceRate    float64   `json:"preference_rate"`
	CompletedAt       time.Time `json:"completed_at"`
}

// ThemePreference aggregates preference by requested sleep theme.
type ThemePreference struct {
	SleepTheme        string  `json:"sleep_theme"`
	Sessions          int64   `json:"sessions"`
	TotalChoices      int64   `json:"total_choices"`
	RecommendedChosen int64   `json:"recommended_chosen"`
	PreferenceRate    float64 `json:"preference_rate"`
}

// Analytics is the composite payload for the analytics endpoint.
type Analytics struct {
	Effectiveness
	SessionDetails []SessionDetail   `json:"session_details"`
	Themes         []ThemePreference `json:"theme_preferences"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

// Analytics assembles the full cross-session analytics payload. detailLimit
// bounds the per-session breakdown; <= 0 applies the default of 5.
func (w *Warehouse) Analytics(ctx context.Context, detailLimit int) (*Analytics, error) {
	effectiveness, err := w.Effectiveness(ctx)
	if err != nil {
		return nil, err
	}
	details, err := w.SessionDetails(ctx, detailLimit)
	if err != nil {
		return nil, err
	}
	themes, err := w.ThemeBreakdown(ctx)
	if err != nil {
		return nil, err
	}

	return &Analytics{
		Effectiveness:  *effectiveness,
		SessionDetails: details,
		Themes:         themes,
		GeneratedAt:    time.Now().UTC(),
	}, nil
}

// Effectiveness computes the overall recommended-vs-control preference and
// decision-time statistics. An empty warehouse yields zeros, never NaN.
func (w *Warehouse) Effectiveness(ctx context.Context) (*Effectiveness, error) {
	ctx, cancel := w.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	e := &Effectiveness{}

	err := w.conn.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			CAST(COALESCE(SUM(choices), 0) AS BIGINT),
			CAST(COALESCE(SUM(recommended_chosen), 0) AS BIGINT),
			CAST(COALESCE(SUM(control_chosen), 0) AS BIGINT)
		FROM experiment_sessions`,
	).Scan(&e.SessionsAnalyzed, &e.TotalChoices, &e.RecommendedChosen, &e.ControlChosen)
	metrics.RecordDBQuery("select", "experiment_sessions", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query effectiveness totals: %w", err)
	}

	if e.TotalChoices > 0 {
		e.PreferenceRate = float64(e.RecommendedChosen) / float64(e.TotalChoices)
		e.HypothesisSupported = e.PreferenceRate > 0.5
		e.Confidence = math.Abs(e.PreferenceRate-0.5) * 2
	}

	start = time.Now()
	err = w.conn.QueryRowContext(ctx, `
		SELECT
			CAST(COALESCE(AVG(decision_time_ms), 0) AS DOUBLE),
			CAST(COALESCE(quantile_cont(decision_time_ms, 0.5), 0) AS DOUBLE),
			CAST(COALESCE(quantile_cont(decision_time_ms, 0.95), 0) AS DOUBLE)
		FROM experiment_choices`,
	).Scan(&e.AvgDecisionTimeMS, &e.MedianDecisionTimeMS, &e.P95DecisionTimeMS)
	metrics.RecordDBQuery("select", "experiment_choices", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query decision time stats: %w", err)
	}

	return e, nil
}

// SessionDetails returns the most recently completed sessions, newest
// first. limit <= 0 applies the default of 5, matching the bounded detail
// list of the analytics payload.
func (w *Warehouse) SessionDetails(ctx context.Context, limit int) ([]SessionDetail, error) {
	ctx, cancel := w.ensureContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 5
	}

	start := time.Now()
	rows, err := w.conn.QueryContext(ctx, `
		SELECT
			session_id, user_id, choices, recommended_chosen, control_chosen,
			preference_rate, completed_at
		FROM experiment_sessions
		ORDER BY completed_at DESC
		LIMIT ?`, limit)
	metrics.RecordDBQuery("select", "experiment_sessions", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query session details: %w", err)
	}
	defer rows.Close()

	// Empty slice, not nil, for consistent JSON serialization.
	details := []SessionDetail{}
	for rows.Next() {
		var d SessionDetail
		var completedAt sql.NullTime
		if err := rows.Scan(
			&d.SessionID, &d.UserID, &d.TotalChoices, &d.RecommendedChosen,
			&d.ControlChosen, &d.PreferenceRate, &completedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session detail: %w", err)
		}
		if completedAt.Valid {
			d.CompletedAt = completedAt.Time
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session details: %w", err)
	}

	return details, nil
}

// ThemeBreakdown aggregates preference rates by requested sleep theme,
// busiest themes first.
func (w *Warehouse) ThemeBreakdown(ctx context.Context) ([]ThemePreference, error) {
	ctx, cancel := w.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := w.conn.QueryContext(ctx, `
		SELECT
			sleep_theme,
			COUNT(*),
			CAST(COALESCE(SUM(choices), 0) AS BIGINT),
			CAST(COALESCE(SUM(recommended_chosen), 0) AS BIGINT)
		FROM experiment_sessions
		GROUP BY sleep_theme
		ORDER BY COUNT(*) DESC, sleep_theme`)
	metrics.RecordDBQuery("select", "experiment_sessions", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query theme breakdown: %w", err)
	}
	defer rows.Close()

	themes := []ThemePreference{}
	for rows.Next() {
		var t ThemePreference
		if err := rows.Scan(&t.SleepTheme, &t.Sessions, &t.TotalChoices, &t.RecommendedChosen); err != nil {
			return nil, fmt.Errorf("scan theme breakdown: %w", err)
		}
		if t.TotalChoices > 0 {
			t.PreferenceRate = float64(t.RecommendedChosen) / float64(t.TotalChoices)
		}
		themes = append(themes, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate theme breakdown: %w", err)
	}

	return themes, nil
}
