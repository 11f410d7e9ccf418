// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/somnus/config.yaml",
	"/etc/somnus/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Endpoint:       "",
			APIKey:         "",
			Model:          "gpt-4o-mini",
			Timeout:        30 * time.Second,
			MaxTokens:      512,
			Temperature:    0.3, // Analysis output feeds a parser; keep variance low
			RateLimitRPS:   5,
			RateLimitBurst: 10,
		},
		Synthesis: SynthesisConfig{
			Endpoint:       "",
			APIKey:         "",
			Timeout:        120 * time.Second, // A MusicGen-class model takes tens of seconds per clip
			MaxClipSeconds: 15,
			SampleRate:     32000,
			GuidanceScale:  3.0,
		},
		Embedding: EmbeddingConfig{
			Endpoint:  "",
			APIKey:    "",
			Timeout:   60 * time.Second,
			Dimension: 512, // CLAP-class embedding width
		},
		Corpus: CorpusConfig{
			ManifestPath:   "/data/corpus/manifest.json",
			EmbeddingsPath: "/data/corpus/embeddings.json",
			AudioBaseURL:   "/audio",
			VerifyDigests:  true,
		},
		Pipeline: PipelineConfig{
			TopK:       5,
			RunTimeout: 5 * time.Minute,
		},
		Experiment: ExperimentConfig{
			Pairs:            5,
			Seed:             0, // 0 = fresh crypto-random seed at startup
			SessionTTL:       24 * time.Hour,
			SessionStore:     "badger",
			SessionStorePath: "/data/sessions",
			CleanupInterval:  time.Hour,
		},
		Database: DatabaseConfig{
			Enabled:   true,
			Path:      "/data/somnus.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		NATS: NATSConfig{
			Enabled:             false, // Opt-in: listening experiments run fine without an event bus
			URL:                 "nats://127.0.0.1:4222",
			EmbeddedServer:      true,
			StoreDir:            "/data/nats/jetstream",
			MaxMemory:           256 << 20, // 256MB
			MaxStore:            2 << 30,   // 2GB
			StreamRetentionDays: 30,
			DurableName:         "results-warehouse",
			QueueGroup:          "processors",
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8390,
			Timeout:     180 * time.Second, // Must outlive one full synthesis call
			Environment: "development",
		},
		API: APIConfig{
			RateLimitReqs:     60,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			SessionTokenTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// This function is the preferred way to load configuration and provides:
//   - Type-safe configuration unmarshaling
//   - Clear precedence: ENV > File > Defaults
//   - Support for nested configuration via koanf struct tags
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// LLM_ENDPOINT -> llm.endpoint
	// EXPERIMENT_PAIRS -> experiment.pairs
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"api.cors_origins",
	"api.trusted_proxies",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - LLM_ENDPOINT -> llm.endpoint
//   - SYNTHESIS_MAX_CLIP_SECONDS -> synthesis.max_clip_seconds
//   - EXPERIMENT_SESSION_STORE -> experiment.session_store
//   - DUCKDB_PATH -> database.path
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// LLM collaborator mappings
		"llm_endpoint":         "llm.endpoint",
		"llm_api_key":          "llm.api_key",
		"llm_model":            "llm.model",
		"llm_timeout":          "llm.timeout",
		"llm_max_tokens":       "llm.max_tokens",
		"llm_temperature":      "llm.temperature",
		"llm_rate_limit_rps":   "llm.rate_limit_rps",
		"llm_rate_limit_burst": "llm.rate_limit_burst",

		// Synthesis collaborator mappings
		"synthesis_endpoint":         "synthesis.endpoint",
		"synthesis_api_key":          "synthesis.api_key",
		"synthesis_timeout":          "synthesis.timeout",
		"synthesis_max_clip_seconds": "synthesis.max_clip_seconds",
		"synthesis_sample_rate":      "synthesis.sample_rate",
		"synthesis_guidance_scale":   "synthesis.guidance_scale",

		// Embedding collaborator mappings
		"embedding_endpoint":  "embedding.endpoint",
		"embedding_api_key":   "embedding.api_key",
		"embedding_timeout":   "embedding.timeout",
		"embedding_dimension": "embedding.dimension",

		// Corpus mappings
		"corpus_manifest_path":   "corpus.manifest_path",
		"corpus_embeddings_path": "corpus.embeddings_path",
		"corpus_audio_base_url":  "corpus.audio_base_url",
		"corpus_verify_digests":  "corpus.verify_digests",

		// Pipeline mappings
		"pipeline_top_k":       "pipeline.top_k",
		"pipeline_run_timeout": "pipeline.run_timeout",

		// Experiment mappings
		"experiment_pairs":              "experiment.pairs",
		"experiment_seed":               "experiment.seed",
		"experiment_session_ttl":        "experiment.session_ttl",
		"experiment_session_store":      "experiment.session_store",
		"experiment_session_store_path": "experiment.session_store_path",
		"experiment_cleanup_interval":   "experiment.cleanup_interval",

		// Database mappings
		"results_enabled":   "database.enabled",
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// NATS mappings
		"nats_enabled":        "nats.enabled",
		"nats_url":            "nats.url",
		"nats_embedded":       "nats.embedded_server",
		"nats_store_dir":      "nats.store_dir",
		"nats_max_memory":     "nats.max_memory",
		"nats_max_store":      "nats.max_store",
		"nats_retention_days": "nats.stream_retention_days",
		"nats_durable_name":   "nats.durable_name",
		"nats_queue_group":    "nats.queue_group",

		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// API mappings
		"api_rate_limit_requests": "api.rate_limit_reqs",
		"api_rate_limit_window":   "api.rate_limit_window",
		"disable_rate_limit":      "api.rate_limit_disabled",
		"cors_origins":            "api.cors_origins",
		"trusted_proxies":         "api.trusted_proxies",

		// Security mappings
		"jwt_secret":        "security.jwt_secret",
		"session_token_ttl": "security.session_token_ttl",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// Note: The caller is responsible for mutex protection when accessing
// configuration during reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
