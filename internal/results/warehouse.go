// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package results is the DuckDB warehouse for completed experiment sessions.
//
// The experiment protocol itself never reads from here: sessions live in
// the session store until they complete, then a denormalized copy lands in
// the warehouse for cross-session effectiveness analytics. Ingestion is
// idempotent on session id, so replayed lifecycle events are harmless.
//
// Two tables: experiment_sessions holds one row per completed session with
// its precomputed summary, experiment_choices holds one row per recorded
// comparison choice keyed by (session_id, pair_index).
package results

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/somnus/internal/config"
	"github.com/tomtom215/somnus/internal/logging"
)

// Warehouse wraps the DuckDB connection and provides ingest and analytics
// methods. Safe for concurrent use; DuckDB serializes writers internally.
type Warehouse struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens (or creates) the warehouse database and initializes the schema.
func New(cfg *config.DatabaseConfig) (*Warehouse, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// 0750 per gosec G301.
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create warehouse directory %s: %w", dir, err)
		}
	}

	// Auto-install/auto-load stay disabled: the schema uses no extensions,
	// and extension resolution can hang in restricted network environments.
	connStr := fmt.Sprintf(
		"%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}

	w := &Warehouse{conn: conn, cfg: cfg}
	w.configureConnectionPool()

	if err := w.createSchema(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("initialize warehouse schema: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Str("max_memory", cfg.MaxMemory).
		Int("threads", numThreads).
		Msg("Results warehouse opened")

	return w, nil
}

func (w *Warehouse) configureConnectionPool() {
	w.conn.SetMaxOpenConns(runtime.NumCPU())
	w.conn.SetMaxIdleConns(2)
	w.conn.SetConnMaxLifetime(time.Hour)
	w.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createSchema creates the warehouse tables and indexes.
func (w *Warehouse) createSchema() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS experiment_sessions (
			session_id TEXT PRIMARY KEY,
			run_id TEXT,
			user_id TEXT NOT NULL,
			reference_digest TEXT,
			stress_level TEXT,
			emotional_state TEXT,
			sleep_goal TEXT,
			sleep_theme TEXT,
			pairs INTEGER NOT NULL,
			choices INTEGER NOT NULL,
			recommended_chosen INTEGER NOT NULL,
			control_chosen INTEGER NOT NULL,
			preference_rate DOUBLE NOT NULL,
			hypothesis_supported BOOLEAN NOT NULL,
			confidence DOUBLE NOT NULL,
			avg_decision_time_ms DOUBLE NOT NULL,
			total_listen_ms BIGINT NOT NULL,
			started_at TIMESTAMP,
			completed_at TIMESTAMP,
			ingested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS experiment_choices (
			session_id TEXT NOT NULL,
			pair_id TEXT NOT NULL,
			pair_index INTEGER NOT NULL,
			recommended_track_id TEXT NOT NULL,
			control_track_id TEXT NOT NULL,
			chosen_side TEXT NOT NULL,
			chose_recommended BOOLEAN NOT NULL,
			decision_time_ms BIGINT NOT NULL,
			play_count_a INTEGER NOT NULL,
			play_count_b INTEGER NOT NULL,
			listen_ms_a BIGINT NOT NULL,
			listen_ms_b BIGINT NOT NULL,
			recorded_at TIMESTAMP,
			PRIMARY KEY (session_id, pair_index)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_completed_at
			ON experiment_sessions(completed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_sleep_theme
			ON experiment_sessions(sleep_theme)`,
		`CREATE INDEX IF NOT EXISTS idx_choices_session
			ON experiment_choices(session_id)`,
	}

	for _, query := range queries {
		if _, err := w.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}

// Ping checks that the warehouse connection is alive.
func (w *Warehouse) Ping(ctx context.Context) error {
	if w.conn == nil {
		return fmt.Errorf("warehouse connection is nil")
	}
	return w.conn.PingContext(ctx)
}

// Close checkpoints the WAL and closes the connection. The checkpoint is
// best effort; skipping it only slows the next startup's WAL replay.
func (w *Warehouse) Close() error {
	if w.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := w.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint warehouse before close")
	}

	return w.conn.Close()
}

// ensureContext attaches a default timeout when the caller's context has no
// deadline of its own.
func (w *Warehouse) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), 30*time.Second)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, 30*time.Second)
	}
	return ctx, func() {}
}

// closeQuietly closes a resource and explicitly ignores any error. For
// cleanup in error paths where Close errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
