// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

/*
Package metrics provides Prometheus metrics collection and export for observability.

This package implements application instrumentation using the Prometheus client
library, exposing metrics for monitoring pipeline performance, collaborator
health, experiment progress, and system state.

# Overview

The package provides metrics for:
  - Recommendation pipeline runs and per-stage latency
  - External collaborator calls (LLM, synthesis, embedding) and retries
  - Circuit breaker state transitions
  - Experiment session lifecycle, choices, and protocol rejections
  - HTTP request latency and throughput
  - Results warehouse (DuckDB) query performance
  - NATS event publishing and WebSocket progress connections

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8080/metrics

# Key Metrics

Pipeline:
  - pipeline_runs_total{outcome}: Run outcomes (success, validation_error,
    upstream_error, generation_error, canceled)
  - pipeline_run_duration_seconds: End-to-end run latency (synthesis dominates)
  - pipeline_stage_duration_seconds{stage}: Per-stage latency
  - instruction_fallbacks_total: Fallback instruction substitutions

Collaborators:
  - collaborator_calls_total{collaborator,result}: Call outcomes
  - collaborator_call_duration_seconds{collaborator}: Call latency
  - circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open

Experiment:
  - experiment_sessions_created_total / experiment_sessions_completed_total
  - experiment_choices_recorded_total
  - experiment_choice_rejections_total{reason}: stale_submission, session_closed
  - experiment_choice_decision_time_seconds: Participant decision latency

# Usage

Metrics are package-level variables registered via promauto at init time.
Record helpers wrap the common multi-metric updates:

	start := time.Now()
	result, err := client.Complete(ctx, prompt)
	metrics.RecordCollaboratorCall("llm", resultLabel(err), time.Since(start))

# Cardinality

Label values are drawn from small closed sets (stage names, outcome strings,
collaborator names). Free-form strings never become label values, except
DB error types which are truncated to 50 characters.
*/
package metrics
