// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Recommendation pipeline runs and per-stage latency
// - External collaborator calls (LLM, synthesis, embedding)
// - Experiment session lifecycle and choice recording
// - API endpoint latency and throughput
// - Results warehouse (DuckDB) query performance
// - Event publishing (NATS) and WebSocket progress feed

var (
	// Pipeline Metrics
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of recommendation pipeline runs",
		},
		[]string{"outcome"}, // "success", "validation_error", "upstream_error", "generation_error", "internal_error", "canceled"
	)

	PipelineRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "End-to-end duration of recommendation pipeline runs in seconds",
			Buckets: []float64{1, 5, 10, 20, 30, 45, 60, 90, 120, 180}, // Synthesis dominates; runs take tens of seconds
		},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Duration of individual pipeline stages in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"}, // "analysis", "instruction", "synthesis", "embedding", "ranking", "experiment"
	)

	PipelineActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_active_runs",
			Help: "Current number of in-flight pipeline runs",
		},
	)

	InstructionFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "instruction_fallbacks_total",
			Help: "Total number of times the fallback generation instruction was substituted",
		},
	)

	// Collaborator Metrics (LLM, synthesis, embedding)
	CollaboratorCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collaborator_call_duration_seconds",
			Help:    "Duration of external collaborator calls in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"collaborator"}, // "llm", "synthesis", "embedding"
	)

	CollaboratorCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collaborator_calls_total",
			Help: "Total number of external collaborator calls",
		},
		[]string{"collaborator", "result"}, // result: "success", "error", "timeout"
	)

	CollaboratorRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collaborator_retries_total",
			Help: "Total number of bounded retries against collaborators",
		},
		[]string{"collaborator"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Corpus & Ranking Metrics
	CorpusTracks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "corpus_tracks",
			Help: "Number of tracks in the loaded corpus",
		},
	)

	CorpusUsableVectors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "corpus_usable_vectors",
			Help: "Number of corpus embeddings with non-zero norm (eligible for ranking)",
		},
	)

	RankingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ranking_duration_seconds",
			Help:    "Duration of similarity ranking over the corpus in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Experiment Session Metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "experiment_sessions_created_total",
			Help: "Total number of experiment sessions created",
		},
	)

	SessionsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "experiment_sessions_completed_total",
			Help: "Total number of experiment sessions completed",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "experiment_sessions_active",
			Help: "Current number of sessions created but not yet completed",
		},
	)

	SessionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "experiment_sessions_expired_total",
			Help: "Total number of sessions removed by the TTL cleanup sweep",
		},
	)

	ChoicesRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "experiment_choices_recorded_total",
			Help: "Total number of comparison choices recorded",
		},
	)

	ChoiceRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "experiment_choice_rejections_total",
			Help: "Total number of rejected choice submissions",
		},
		[]string{"reason"}, // "stale_submission", "session_closed"
	)

	ChoiceDecisionTime = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "experiment_choice_decision_time_seconds",
			Help:    "Participant decision time per pair in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		},
	)

	SessionStoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_store_operations_total",
			Help: "Total number of session store operations",
		},
		[]string{"operation", "result"}, // operation: "get", "put", "delete", "list"
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Results Warehouse (DuckDB) Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	ResultsSessionsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "results_sessions_ingested_total",
			Help: "Total number of completed sessions ingested into the results warehouse",
		},
	)

	ResultsIngestDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "results_ingest_dropped_total",
			Help: "Total number of completed sessions dropped because the ingest queue was full",
		},
	)

	// NATS Event Metrics
	NATSMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_published_total",
			Help: "Total number of messages published to NATS",
		},
	)

	NATSPublishDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_publish_dropped_total",
			Help: "Total number of lifecycle events dropped because the publish queue was full",
		},
	)

	NATSMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_consumed_total",
			Help: "Total number of messages consumed from NATS",
		},
	)

	NATSMessagesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_processed_total",
			Help: "Total number of messages successfully processed",
		},
	)

	NATSMessagesDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_deduplicated_total",
			Help: "Total number of messages skipped due to deduplication",
		},
	)

	NATSMessagesParseFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nats_messages_parse_failed_total",
			Help: "Total number of messages that failed to parse",
		},
	)

	NATSProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nats_processing_duration_seconds",
			Help:    "Duration of NATS message processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// WebSocket Progress Feed Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordPipelineRun records the outcome and total duration of one pipeline run.
func RecordPipelineRun(outcome string, duration time.Duration) {
	PipelineRunsTotal.WithLabelValues(outcome).Inc()
	PipelineRunDuration.Observe(duration.Seconds())
}

// RecordPipelineStage records the duration of one pipeline stage.
func RecordPipelineStage(stage string, duration time.Duration) {
	PipelineStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// TrackActiveRun tracks in-flight pipeline runs.
func TrackActiveRun(inc bool) {
	if inc {
		PipelineActiveRuns.Inc()
	} else {
		PipelineActiveRuns.Dec()
	}
}

// RecordCollaboratorCall records one call to an external collaborator.
// Result should be "success", "error", or "timeout".
func RecordCollaboratorCall(collaborator, result string, duration time.Duration) {
	CollaboratorCallDuration.WithLabelValues(collaborator).Observe(duration.Seconds())
	CollaboratorCallsTotal.WithLabelValues(collaborator, result).Inc()
}

// RecordCollaboratorRetry records a bounded retry against a collaborator.
func RecordCollaboratorRetry(collaborator string) {
	CollaboratorRetries.WithLabelValues(collaborator).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordDBQuery records a results warehouse query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordSessionCreated records a new experiment session.
func RecordSessionCreated() {
	SessionsCreated.Inc()
	SessionsActive.Inc()
}

// RecordSessionCompleted records a session reaching COMPLETED.
func RecordSessionCompleted() {
	SessionsCompleted.Inc()
	SessionsActive.Dec()
}

// RecordChoice records a successfully recorded choice and its decision time.
func RecordChoice(decisionTime time.Duration) {
	ChoicesRecorded.Inc()
	ChoiceDecisionTime.Observe(decisionTime.Seconds())
}

// RecordChoiceRejection records a rejected submission.
// Reason should be "stale_submission" or "session_closed".
func RecordChoiceRejection(reason string) {
	ChoiceRejections.WithLabelValues(reason).Inc()
}

// RecordSessionStoreOperation records a session store operation outcome.
func RecordSessionStoreOperation(operation string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	SessionStoreOperations.WithLabelValues(operation, result).Inc()
}

// RecordNATSPublish records a message being published to NATS.
func RecordNATSPublish() {
	NATSMessagesPublished.Inc()
}

// RecordNATSConsume records a message being consumed from NATS.
func RecordNATSConsume() {
	NATSMessagesConsumed.Inc()
}

// RecordNATSProcessed records a message being successfully processed.
func RecordNATSProcessed() {
	NATSMessagesProcessed.Inc()
}

// RecordNATSDeduplicated records a message being skipped due to deduplication.
func RecordNATSDeduplicated() {
	NATSMessagesDeduplicated.Inc()
}

// RecordNATSParseFailed records a message that failed to parse.
func RecordNATSParseFailed() {
	NATSMessagesParseFailed.Inc()
}

// RecordNATSProcessingDuration records the duration of message processing.
func RecordNATSProcessingDuration(duration time.Duration) {
	NATSProcessingDuration.Observe(duration.Seconds())
}
