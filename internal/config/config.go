// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package config

import (
	"time"
)

// Config holds all application configuration loaded from environment variables and config files.
// Provides centralized configuration management for the recommendation pipeline, the external
// model collaborators (LLM, synthesis, embedding), the corpus, the experiment engine, and the
// surrounding HTTP service.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Collaborators:
//     - LLM: Language-model endpoint used by the three analysis agents
//     - Synthesis: Text-to-audio endpoint producing the reference clip
//     - Embedding: Audio-embedding endpoint producing fixed-dimension vectors
//
//  2. Core Engine:
//     - Corpus: Track manifest and precomputed embeddings
//     - Pipeline: Fan-out analysis and ranking parameters (top-K)
//     - Experiment: Pair count, control sampling seed, session store
//
//  3. Infrastructure:
//     - Database: DuckDB results warehouse (optional)
//     - NATS: Experiment lifecycle events with Watermill/NATS JetStream (optional)
//     - Server: HTTP server configuration (port, host, timeout)
//
//  4. API & Security:
//     - API: Rate limiting, CORS
//     - Security: Session token signing
//
//  5. Observability:
//     - Logging: Log levels and output formats
//
// Example - Load configuration from environment:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	// cfg.LLM.Endpoint, cfg.Corpus.ManifestPath, etc. are now populated
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access from multiple goroutines.
type Config struct {
	LLM        LLMConfig        `koanf:"llm"`
	Synthesis  SynthesisConfig  `koanf:"synthesis"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Corpus     CorpusConfig     `koanf:"corpus"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Experiment ExperimentConfig `koanf:"experiment"`
	Database   DatabaseConfig   `koanf:"database"`
	NATS       NATSConfig       `koanf:"nats"`
	Server     ServerConfig     `koanf:"server"`
	API        APIConfig        `koanf:"api"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// LLMConfig holds settings for the language-model collaborator used by the
// requirement-analysis agents. The endpoint is expected to speak an
// OpenAI-compatible chat-completions protocol; the client treats it as an
// opaque text-in/text-out service.
//
// Environment Variables:
//   - LLM_ENDPOINT: Base URL of the completions service (required)
//   - LLM_API_KEY: Bearer token for the service (optional for local deployments)
//   - LLM_MODEL: Model identifier sent with each request (default: gpt-4o-mini)
//   - LLM_TIMEOUT: Per-call timeout (default: 30s)
//   - LLM_MAX_TOKENS: Completion token budget per call (default: 512)
//   - LLM_RATE_LIMIT_RPS: Sustained requests per second (default: 5)
//   - LLM_RATE_LIMIT_BURST: Burst allowance (default: 10)
type LLMConfig struct {
	Endpoint       string        `koanf:"endpoint"`         // Base URL (e.g., https://api.openai.com)
	APIKey         string        `koanf:"api_key"`          // Bearer token; empty for unauthenticated local endpoints
	Model          string        `koanf:"model"`            // Model identifier
	Timeout        time.Duration `koanf:"timeout"`          // Per-call timeout; timeout => typed upstream failure
	MaxTokens      int           `koanf:"max_tokens"`       // Completion budget
	Temperature    float64       `koanf:"temperature"`      // Sampling temperature (analysis wants low variance)
	RateLimitRPS   float64       `koanf:"rate_limit_rps"`   // Sustained request rate
	RateLimitBurst int           `koanf:"rate_limit_burst"` // Burst allowance
}

// SynthesisConfig holds settings for the text-to-audio collaborator that
// produces the short reference clip. Calls routinely take tens of seconds;
// the timeout must cover a full generation.
//
// Environment Variables:
//   - SYNTHESIS_ENDPOINT: Base URL of the synthesis service (required)
//   - SYNTHESIS_API_KEY: Bearer token (optional)
//   - SYNTHESIS_TIMEOUT: Per-call timeout (default: 120s)
//   - SYNTHESIS_MAX_CLIP_SECONDS: Clip duration ceiling (default: 15)
//   - SYNTHESIS_SAMPLE_RATE: Requested sample rate in Hz (default: 32000)
//   - SYNTHESIS_GUIDANCE_SCALE: Classifier-free guidance scale (default: 3.0)
type SynthesisConfig struct {
	Endpoint       string        `koanf:"endpoint"`
	APIKey         string        `koanf:"api_key"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxClipSeconds int           `koanf:"max_clip_seconds"` // Requested durations are clamped to this ceiling
	SampleRate     int           `koanf:"sample_rate"`
	GuidanceScale  float64       `koanf:"guidance_scale"`
}

// EmbeddingConfig holds settings for the audio-embedding collaborator.
// The dimension is fixed at deployment; vectors of any other length are
// rejected rather than silently truncated or padded.
//
// Environment Variables:
//   - EMBEDDING_ENDPOINT: Base URL of the embedding service (required)
//   - EMBEDDING_API_KEY: Bearer token (optional)
//   - EMBEDDING_TIMEOUT: Per-call timeout (default: 60s)
//   - EMBEDDING_DIMENSION: Expected vector dimension (default: 512)
type EmbeddingConfig struct {
	Endpoint  string        `koanf:"endpoint"`
	APIKey    string        `koanf:"api_key"`
	Timeout   time.Duration `koanf:"timeout"`
	Dimension int           `koanf:"dimension"`
}

// CorpusConfig holds settings for the static track corpus. The manifest is a
// JSON array of track records; the embeddings sidecar carries one precomputed
// vector per track id. Both are read once at startup and shared read-only
// across all pipeline runs.
//
// Environment Variables:
//   - CORPUS_MANIFEST_PATH: Path to the track manifest JSON (default: /data/corpus/manifest.json)
//   - CORPUS_EMBEDDINGS_PATH: Path to the embeddings sidecar JSON (default: /data/corpus/embeddings.json)
//   - CORPUS_AUDIO_BASE_URL: Base URL prepended to track file references (default: /audio)
//   - CORPUS_VERIFY_DIGESTS: Verify BLAKE2b content digests when present (default: true)
type CorpusConfig struct {
	ManifestPath   string `koanf:"manifest_path"`
	EmbeddingsPath string `koanf:"embeddings_path"`
	AudioBaseURL   string `koanf:"audio_base_url"`
	VerifyDigests  bool   `koanf:"verify_digests"`
}

// PipelineConfig holds settings for the requirement-analysis pipeline and the
// similarity ranker.
//
// Environment Variables:
//   - PIPELINE_TOP_K: Number of ranked recommendations (default: 5)
//   - PIPELINE_RUN_TIMEOUT: End-to-end budget for one pipeline run (default: 5m)
type PipelineConfig struct {
	TopK       int           `koanf:"top_k"`       // Size of the recommended set
	RunTimeout time.Duration `koanf:"run_timeout"` // Whole-run ceiling; individual stages carry their own timeouts
}

// ExperimentConfig holds settings for the blind comparison experiment.
//
// Control sampling is seedable for reproducible experiments: a non-zero Seed
// fixes the control-track selection and position coin flips for every session
// built by this process; Seed=0 derives a fresh crypto-random seed at startup.
//
// Environment Variables:
//   - EXPERIMENT_PAIRS: Comparison pairs per session (default: 5)
//   - EXPERIMENT_SEED: RNG seed, 0 = random (default: 0)
//   - EXPERIMENT_SESSION_TTL: Lifetime of an unfinished session (default: 24h)
//   - EXPERIMENT_SESSION_STORE: Session store backend: memory or badger (default: badger)
//   - EXPERIMENT_SESSION_STORE_PATH: Badger data directory (default: /data/sessions)
//   - EXPERIMENT_CLEANUP_INTERVAL: Expired-session sweep interval (default: 1h)
type ExperimentConfig struct {
	Pairs            int           `koanf:"pairs"`
	Seed             int64         `koanf:"seed"`
	SessionTTL       time.Duration `koanf:"session_ttl"`
	SessionStore     string        `koanf:"session_store"`      // "memory" or "badger"
	SessionStorePath string        `koanf:"session_store_path"` // Badger directory (ignored for memory)
	CleanupInterval  time.Duration `koanf:"cleanup_interval"`
}

// DatabaseConfig holds DuckDB settings for the results warehouse. The
// warehouse ingests completed sessions for cross-session effectiveness
// analytics; the experiment protocol itself never depends on it.
//
// Environment Variables:
//   - RESULTS_ENABLED: Enable the results warehouse (default: true)
//   - DUCKDB_PATH: Database file path (default: /data/somnus.duckdb)
//   - DUCKDB_MAX_MEMORY: Memory limit (default: 1GB)
//   - DUCKDB_THREADS: Thread count, 0 = runtime.NumCPU() (default: 0)
type DatabaseConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// NATSConfig holds NATS JetStream settings for experiment lifecycle events.
// The events package is build-tag gated (-tags nats); with the tag absent
// these settings are parsed but unused.
//
// Environment Variables:
//   - NATS_ENABLED: Enable event publication (default: false)
//   - NATS_URL: NATS server URL (default: nats://127.0.0.1:4222)
//   - NATS_EMBEDDED: Run an embedded NATS server (default: true)
//   - NATS_STORE_DIR: JetStream storage directory (default: /data/nats/jetstream)
//   - NATS_MAX_MEMORY: JetStream memory ceiling in bytes (default: 256MB)
//   - NATS_MAX_STORE: JetStream disk ceiling in bytes (default: 2GB)
//   - NATS_RETENTION_DAYS: Stream retention in days (default: 30)
//   - NATS_DURABLE_NAME: Durable consumer name (default: results-warehouse)
//   - NATS_QUEUE_GROUP: Queue group for consumers (default: processors)
type NATSConfig struct {
	Enabled             bool   `koanf:"enabled"`
	URL                 string `koanf:"url"`
	EmbeddedServer      bool   `koanf:"embedded_server"`
	StoreDir            string `koanf:"store_dir"`
	MaxMemory           int64  `koanf:"max_memory"`
	MaxStore            int64  `koanf:"max_store"`
	StreamRetentionDays int    `koanf:"stream_retention_days"`
	DurableName         string `koanf:"durable_name"`
	QueueGroup          string `koanf:"queue_group"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_HOST: Bind address (default: 0.0.0.0)
//   - HTTP_PORT: Listen port (default: 8390)
//   - HTTP_TIMEOUT: Read/write timeout (default: 180s; must cover a synthesis call)
//   - ENVIRONMENT: development or production (default: development)
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// APIConfig holds API behavior settings.
//
// Environment Variables:
//   - API_RATE_LIMIT_REQUESTS: Requests per window per client (default: 60)
//   - API_RATE_LIMIT_WINDOW: Rate limit window (default: 1m)
//   - API_RATE_LIMIT_DISABLED: Disable rate limiting (default: false)
//   - CORS_ORIGINS: Comma-separated allowed origins (default: *)
//   - TRUSTED_PROXIES: Comma-separated proxy IPs whose X-Forwarded-For
//     headers are honored for client identification (default: none)
type APIConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	TrustedProxies    []string      `koanf:"trusted_proxies"`
}

// SecurityConfig holds session token settings. Each pipeline run issues a
// short-lived JWT scoped to its experiment session; choice submission
// requires it so one participant cannot answer another's pairs.
//
// Environment Variables:
//   - JWT_SECRET: HMAC signing secret, min 32 chars (required in production)
//   - SESSION_TOKEN_TTL: Token lifetime (default: 24h; should cover SessionTTL)
type SecurityConfig struct {
	JWTSecret       string        `koanf:"jwt_secret"`
	SessionTokenTTL time.Duration `koanf:"session_token_ttl"`
}

// LoggingConfig holds logging settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: Include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
