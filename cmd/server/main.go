// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package main is the entry point for the Somnus server application.
//
// Somnus recommends sleep music from a questionnaire: three LLM analysis
// agents distill the submission into a musical requirement, a text-to-music
// model synthesizes a short reference clip, and the corpus is ranked by
// embedding similarity against it. Each run also builds a blind paired
// listening session so recommendations can be validated against controls
// instead of taken on faith.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Corpus: Load the track manifest and embedding matrix into memory
//  3. Collaborators: HTTP clients for the LLM, synthesis, and embedding models
//  4. Session Store: BadgerDB or in-memory store for experiment sessions
//  5. Results Warehouse (optional): DuckDB ingestion of completed sessions
//  6. Events (optional): NATS JetStream publisher and warehouse consumer
//  7. Progress Hub: WebSocket fan-out of pipeline stage updates
//  8. HTTP Server: REST API with session-scoped JWT auth
//
// Long-running components run under a suture supervisor tree (data,
// messaging, and API layers) so a panicking service restarts with backoff
// instead of taking the process down.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (see .env.example)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// # Degraded Mode
//
// The three collaborator endpoints are optional at startup. With any of them
// unconfigured the server still starts and serves the experiment read path
// (session retrieval, choice submission, results); recommendation runs that
// need the missing collaborator fail, and GET /api/v1/status reports
// "degraded". This keeps an ongoing experiment reachable while a model
// endpoint is being moved or rebuilt.
//
//   - LLM_ENDPOINT: OpenAI-compatible chat completions server
//   - SYNTHESIS_ENDPOINT: MusicGen-style text-to-music server
//   - EMBEDDING_ENDPOINT: CLAP-style audio embedding server
//
// # Build Tags
//
// NATS JetStream event publishing is optional:
//
//	go build ./cmd/server              # direct warehouse recording
//	go build -tags nats ./cmd/server   # JetStream publisher + consumer
//
// Without the tag, NATS_ENABLED=true logs a warning and completed sessions
// are recorded directly.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Flushes pending events and warehouse writes
//   - Closes the session store and warehouse
//
// # Example Usage
//
// Development with in-memory sessions and no collaborators:
//
//	export EXPERIMENT_SESSION_STORE=memory
//	export RESULTS_ENABLED=false
//	export JWT_SECRET=$(openssl rand -base64 32)
//	./somnus
//
// Production with all three collaborators:
//
//	export LLM_ENDPOINT=http://llm:8000
//	export SYNTHESIS_ENDPOINT=http://musicgen:8001
//	export EMBEDDING_ENDPOINT=http://clap:8002
//	export CORPUS_MANIFEST_PATH=/data/corpus/manifest.json
//	export CORPUS_EMBEDDINGS_PATH=/data/corpus/embeddings.bin
//	export JWT_SECRET=$(openssl rand -base64 32)
//	./somnus
//
// Docker:
//
//	docker run -d \
//	  -e LLM_ENDPOINT=http://llm:8000 \
//	  -e SYNTHESIS_ENDPOINT=http://musicgen:8001 \
//	  -e EMBEDDING_ENDPOINT=http://clap:8002 \
//	  -e JWT_SECRET=change-me-32-characters-minimum \
//	  -v somnus-data:/data \
//	  -p 8390:8390 \
//	  ghcr.io/tomtom215/somnus
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/somnus/internal/analysis"
	"github.com/tomtom215/somnus/internal/api"
	"github.com/tomtom215/somnus/internal/auth"
	"github.com/tomtom215/somnus/internal/config"
	"github.com/tomtom215/somnus/internal/corpus"
	"github.com/tomtom215/somnus/internal/embedding"
	"github.com/tomtom215/somnus/internal/events"
	"github.com/tomtom215/somnus/internal/experiment"
	"github.com/tomtom215/somnus/internal/llm"
	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/pipeline"
	"github.com/tomtom215/somnus/internal/progress"
	"github.com/tomtom215/somnus/internal/results"
	"github.com/tomtom215/somnus/internal/supervisor"
	"github.com/tomtom215/somnus/internal/supervisor/services"
	"github.com/tomtom215/somnus/internal/synthesis"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Somnus with supervisor tree")
	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("session_store", cfg.Experiment.SessionStore).
		Bool("results_enabled", cfg.Database.Enabled).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Msg("Configuration loaded")

	// Load the track corpus. Everything downstream needs it: the ranker
	// scores against its embeddings and the experiment builder samples
	// controls from it.
	catalog, err := corpus.Load(&cfg.Corpus)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load track corpus")
	}
	logging.Info().
		Int("tracks", catalog.Size()).
		Int("dimension", catalog.Dimension()).
		Str("manifest", cfg.Corpus.ManifestPath).
		Msg("Track corpus loaded")

	// Collaborator clients. Empty endpoints are allowed: the experiment
	// read path works without them and /api/v1/status reports degraded.
	llmClient := llm.NewHTTPClient(&cfg.LLM)
	if cfg.LLM.Endpoint == "" {
		logging.Warn().Msg("LLM_ENDPOINT not configured - recommendation runs will fail")
	}
	synthesizer := synthesis.NewHTTPSynthesizer(&cfg.Synthesis)
	if cfg.Synthesis.Endpoint == "" {
		logging.Warn().Msg("SYNTHESIS_ENDPOINT not configured - reference clip generation disabled")
	}
	embedder := embedding.NewHTTPEmbedder(&cfg.Embedding)
	if cfg.Embedding.Endpoint == "" {
		logging.Warn().Msg("EMBEDDING_ENDPOINT not configured - similarity ranking disabled")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create structured logger for supervisor using our slog adapter
	// This bridges zerolog to slog for sutureslog compatibility
	slogLogger := logging.NewSlogLogger()

	// Create supervisor tree
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Session store, memory or badger per EXPERIMENT_SESSION_STORE
	store, err := experiment.NewStore(cfg.Experiment)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()

	builder := experiment.NewBuilder(cfg.Experiment, catalog)
	manager := experiment.NewManager(store, builder)

	// Expired-session sweeps run as a supervised service so a panicking
	// sweep restarts instead of silently stopping
	tree.AddDataService(services.NewSessionSweeper(store, cfg.Experiment.CleanupInterval))

	// Results warehouse (optional). Failure to open is not fatal: the
	// experiment still runs, completed sessions just go unrecorded.
	var warehouse *results.Warehouse
	if cfg.Database.Enabled {
		warehouse, err = results.New(&cfg.Database)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to open results warehouse - continuing without analytics")
			warehouse = nil
		} else {
			defer func() {
				if err := warehouse.Close(); err != nil {
					logging.Error().Err(err).Msg("Error closing results warehouse")
				}
			}()
			logging.Info().Str("path", cfg.Database.Path).Msg("Results warehouse ready")
		}
	}

	// Completed sessions reach the warehouse either directly (recorder)
	// or through NATS JetStream (publisher -> consumer) when events are
	// enabled. Exactly one path gets the manager's notifier, never both.
	eventsWired := false
	if cfg.NATS.Enabled {
		svc, err := events.New(&cfg.NATS)
		switch {
		case errors.Is(err, events.ErrNotBuilt):
			logging.Warn().Msg("NATS_ENABLED=true but binary built without -tags nats - falling back to direct recording")
		case err != nil:
			logging.Warn().Err(err).Msg("Failed to initialize event service - falling back to direct recording")
		default:
			defer func() {
				if err := svc.Close(context.Background()); err != nil {
					logging.Error().Err(err).Msg("Error closing event service")
				}
			}()
			manager.SetNotifier(svc)
			tree.AddMessagingService(services.NewEventPublisherService(svc))
			if warehouse != nil {
				consumer, err := svc.Consumer(warehouse)
				if err != nil {
					logging.Warn().Err(err).Msg("Failed to create event consumer - completed sessions will not reach the warehouse")
				} else {
					tree.AddMessagingService(services.NewEventConsumerService(consumer))
				}
			}
			eventsWired = true
			logging.Info().Str("url", cfg.NATS.URL).Msg("Event service wired")
		}
	}
	if !eventsWired && warehouse != nil {
		recorder := results.NewRecorder(warehouse, 0)
		manager.SetNotifier(recorder)
		tree.AddDataService(services.NewResultsRecorderService(recorder))
	}

	// Progress hub for WebSocket updates during pipeline runs
	hub := progress.NewHub()
	tree.AddMessagingService(services.NewProgressHubService(hub))

	pl := pipeline.New(cfg.Pipeline, pipeline.Deps{
		Analyzer:    analysis.NewAnalyzer(llmClient),
		Instruction: analysis.NewInstructionAgent(llmClient),
		Synthesizer: synthesizer,
		Embedder:    embedder,
		Corpus:      catalog,
		Experiments: manager,
	})
	pl.SetProgressSink(hub)

	tokens, err := auth.NewTokenManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize token manager")
	}
	middleware := auth.NewMiddleware(tokens, &cfg.API, cfg.API.TrustedProxies)

	// AnalyticsProvider must stay a true nil when the warehouse is off; a
	// typed nil *results.Warehouse would pass the interface's nil check
	var analytics api.AnalyticsProvider
	if warehouse != nil {
		analytics = warehouse
	}

	handler := api.NewHandler(cfg, pl, manager, catalog, analytics, tokens, hub)
	router := api.NewRouter(handler, middleware)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// API layer services
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
