// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	// Collaborator defaults (endpoints empty - deployment-specific)
	if cfg.LLM.Endpoint != "" {
		t.Errorf("LLM.Endpoint should be empty by default, got %q", cfg.LLM.Endpoint)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM.Model = %q, want gpt-4o-mini", cfg.LLM.Model)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("LLM.Timeout = %v, want 30s", cfg.LLM.Timeout)
	}
	if cfg.Synthesis.Timeout != 120*time.Second {
		t.Errorf("Synthesis.Timeout = %v, want 120s", cfg.Synthesis.Timeout)
	}
	if cfg.Synthesis.MaxClipSeconds != 15 {
		t.Errorf("Synthesis.MaxClipSeconds = %d, want 15", cfg.Synthesis.MaxClipSeconds)
	}
	if cfg.Synthesis.SampleRate != 32000 {
		t.Errorf("Synthesis.SampleRate = %d, want 32000", cfg.Synthesis.SampleRate)
	}
	if cfg.Embedding.Dimension != 512 {
		t.Errorf("Embedding.Dimension = %d, want 512", cfg.Embedding.Dimension)
	}

	// Pipeline defaults
	if cfg.Pipeline.TopK != 5 {
		t.Errorf("Pipeline.TopK = %d, want 5", cfg.Pipeline.TopK)
	}
	if cfg.Pipeline.RunTimeout != 5*time.Minute {
		t.Errorf("Pipeline.RunTimeout = %v, want 5m", cfg.Pipeline.RunTimeout)
	}

	// Experiment defaults
	if cfg.Experiment.Pairs != 5 {
		t.Errorf("Experiment.Pairs = %d, want 5", cfg.Experiment.Pairs)
	}
	if cfg.Experiment.Seed != 0 {
		t.Errorf("Experiment.Seed = %d, want 0 (random)", cfg.Experiment.Seed)
	}
	if cfg.Experiment.SessionStore != "badger" {
		t.Errorf("Experiment.SessionStore = %q, want badger", cfg.Experiment.SessionStore)
	}
	if cfg.Experiment.SessionTTL != 24*time.Hour {
		t.Errorf("Experiment.SessionTTL = %v, want 24h", cfg.Experiment.SessionTTL)
	}

	// Database defaults
	if !cfg.Database.Enabled {
		t.Errorf("Database.Enabled should be true by default")
	}
	if cfg.Database.Path != "/data/somnus.duckdb" {
		t.Errorf("Database.Path = %q, want /data/somnus.duckdb", cfg.Database.Path)
	}
	if cfg.Database.MaxMemory != "1GB" {
		t.Errorf("Database.MaxMemory = %q, want 1GB", cfg.Database.MaxMemory)
	}

	// NATS defaults (disabled - opt-in)
	if cfg.NATS.Enabled {
		t.Errorf("NATS.Enabled should be false by default")
	}
	if cfg.NATS.URL != "nats://127.0.0.1:4222" {
		t.Errorf("NATS.URL = %q, want nats://127.0.0.1:4222", cfg.NATS.URL)
	}

	// Server defaults
	if cfg.Server.Port != 8390 {
		t.Errorf("Server.Port = %d, want 8390", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Environment != "development" {
		t.Errorf("Server.Environment = %q, want development", cfg.Server.Environment)
	}

	// API defaults
	if cfg.API.RateLimitReqs != 60 {
		t.Errorf("API.RateLimitReqs = %d, want 60", cfg.API.RateLimitReqs)
	}
	if len(cfg.API.CORSOrigins) != 1 || cfg.API.CORSOrigins[0] != "*" {
		t.Errorf("API.CORSOrigins = %v, want [*]", cfg.API.CORSOrigins)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

// TestDefaultConfigValidates ensures the shipped defaults pass validation as-is
func TestDefaultConfigValidates(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

// TestEnvTransformFunc verifies environment variable name transformations
func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// LLM
		{"LLM_ENDPOINT", "llm.endpoint"},
		{"LLM_API_KEY", "llm.api_key"},
		{"LLM_MODEL", "llm.model"},
		{"LLM_TIMEOUT", "llm.timeout"},
		{"LLM_RATE_LIMIT_RPS", "llm.rate_limit_rps"},

		// Synthesis
		{"SYNTHESIS_ENDPOINT", "synthesis.endpoint"},
		{"SYNTHESIS_MAX_CLIP_SECONDS", "synthesis.max_clip_seconds"},
		{"SYNTHESIS_SAMPLE_RATE", "synthesis.sample_rate"},
		{"SYNTHESIS_GUIDANCE_SCALE", "synthesis.guidance_scale"},

		// Embedding
		{"EMBEDDING_ENDPOINT", "embedding.endpoint"},
		{"EMBEDDING_DIMENSION", "embedding.dimension"},

		// Corpus
		{"CORPUS_MANIFEST_PATH", "corpus.manifest_path"},
		{"CORPUS_EMBEDDINGS_PATH", "corpus.embeddings_path"},
		{"CORPUS_VERIFY_DIGESTS", "corpus.verify_digests"},

		// Pipeline / Experiment
		{"PIPELINE_TOP_K", "pipeline.top_k"},
		{"EXPERIMENT_PAIRS", "experiment.pairs"},
		{"EXPERIMENT_SEED", "experiment.seed"},
		{"EXPERIMENT_SESSION_STORE", "experiment.session_store"},

		// Database
		{"RESULTS_ENABLED", "database.enabled"},
		{"DUCKDB_PATH", "database.path"},
		{"DUCKDB_MAX_MEMORY", "database.max_memory"},

		// NATS
		{"NATS_ENABLED", "nats.enabled"},
		{"NATS_URL", "nats.url"},
		{"NATS_EMBEDDED", "nats.embedded_server"},
		{"NATS_RETENTION_DAYS", "nats.stream_retention_days"},

		// Server
		{"HTTP_PORT", "server.port"},
		{"HTTP_HOST", "server.host"},
		{"ENVIRONMENT", "server.environment"},

		// Security
		{"JWT_SECRET", "security.jwt_secret"},
		{"SESSION_TOKEN_TTL", "security.session_token_ttl"},

		// API
		{"API_RATE_LIMIT_REQUESTS", "api.rate_limit_reqs"},
		{"CORS_ORIGINS", "api.cors_origins"},
		{"TRUSTED_PROXIES", "api.trusted_proxies"},

		// Logging
		{"LOG_LEVEL", "logging.level"},
		{"LOG_FORMAT", "logging.format"},

		// Unknown (should return empty to avoid env pollution)
		{"PATH", ""},
		{"HOME", ""},
		{"RANDOM_VAR", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := envTransformFunc(tt.input)
			if got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// TestLoadEnvOverrides verifies that environment variables override defaults
func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LLM_ENDPOINT", "http://llm.local:8080")
	t.Setenv("PIPELINE_TOP_K", "10")
	t.Setenv("EXPERIMENT_PAIRS", "3")
	t.Setenv("EXPERIMENT_SESSION_STORE", "memory")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1,10.0.0.2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LLM.Endpoint != "http://llm.local:8080" {
		t.Errorf("LLM.Endpoint = %q, want http://llm.local:8080", cfg.LLM.Endpoint)
	}
	if cfg.Pipeline.TopK != 10 {
		t.Errorf("Pipeline.TopK = %d, want 10", cfg.Pipeline.TopK)
	}
	if cfg.Experiment.Pairs != 3 {
		t.Errorf("Experiment.Pairs = %d, want 3", cfg.Experiment.Pairs)
	}
	if cfg.Experiment.SessionStore != "memory" {
		t.Errorf("Experiment.SessionStore = %q, want memory", cfg.Experiment.SessionStore)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.API.CORSOrigins) != 2 || cfg.API.CORSOrigins[0] != want[0] || cfg.API.CORSOrigins[1] != want[1] {
		t.Errorf("API.CORSOrigins = %v, want %v", cfg.API.CORSOrigins, want)
	}
	proxies := []string{"10.0.0.1", "10.0.0.2"}
	if len(cfg.API.TrustedProxies) != 2 || cfg.API.TrustedProxies[0] != proxies[0] || cfg.API.TrustedProxies[1] != proxies[1] {
		t.Errorf("API.TrustedProxies = %v, want %v", cfg.API.TrustedProxies, proxies)
	}
}

// TestLoadConfigFile verifies YAML config file loading and env precedence
func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
llm:
  endpoint: "http://file-llm:8080"
  model: "local-model"
pipeline:
  top_k: 7
experiment:
  pairs: 4
  session_store: memory
server:
  port: 9999
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	// Env beats file
	t.Setenv("HTTP_PORT", "8100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LLM.Endpoint != "http://file-llm:8080" {
		t.Errorf("LLM.Endpoint = %q, want http://file-llm:8080", cfg.LLM.Endpoint)
	}
	if cfg.LLM.Model != "local-model" {
		t.Errorf("LLM.Model = %q, want local-model", cfg.LLM.Model)
	}
	if cfg.Pipeline.TopK != 7 {
		t.Errorf("Pipeline.TopK = %d, want 7", cfg.Pipeline.TopK)
	}
	if cfg.Experiment.Pairs != 4 {
		t.Errorf("Experiment.Pairs = %d, want 4", cfg.Experiment.Pairs)
	}
	if cfg.Server.Port != 8100 {
		t.Errorf("Server.Port = %d, want 8100 (env should override file)", cfg.Server.Port)
	}
}

// TestValidate exercises the validation rules section by section
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"bad llm endpoint scheme", func(c *Config) { c.LLM.Endpoint = "ftp://llm" }, true},
		{"llm endpoint with path ok", func(c *Config) { c.LLM.Endpoint = "https://api.example.com/v1" }, false},
		{"zero llm timeout", func(c *Config) { c.LLM.Timeout = 0 }, true},
		{"zero max tokens", func(c *Config) { c.LLM.MaxTokens = 0 }, true},
		{"clip ceiling too high", func(c *Config) { c.Synthesis.MaxClipSeconds = 120 }, true},
		{"clip ceiling zero", func(c *Config) { c.Synthesis.MaxClipSeconds = 0 }, true},
		{"sample rate too low", func(c *Config) { c.Synthesis.SampleRate = 4000 }, true},
		{"zero embedding dimension", func(c *Config) { c.Embedding.Dimension = 0 }, true},
		{"zero top k", func(c *Config) { c.Pipeline.TopK = 0 }, true},
		{"empty manifest path", func(c *Config) { c.Corpus.ManifestPath = "" }, true},
		{"zero pairs", func(c *Config) { c.Experiment.Pairs = 0 }, true},
		{"unknown session store", func(c *Config) { c.Experiment.SessionStore = "redis" }, true},
		{"memory store without path ok", func(c *Config) {
			c.Experiment.SessionStore = "memory"
			c.Experiment.SessionStorePath = ""
		}, false},
		{"badger store without path", func(c *Config) {
			c.Experiment.SessionStore = "badger"
			c.Experiment.SessionStorePath = ""
		}, true},
		{"tiny session ttl", func(c *Config) { c.Experiment.SessionTTL = time.Second }, true},
		{"nats enabled with bad url", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.URL = "http://wrong-scheme:4222"
		}, true},
		{"nats enabled valid", func(c *Config) { c.NATS.Enabled = true }, false},
		{"nats memory too small", func(c *Config) {
			c.NATS.Enabled = true
			c.NATS.MaxMemory = 1024
		}, true},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, true},
		{"unknown environment", func(c *Config) { c.Server.Environment = "staging" }, true},
		{"production without jwt secret", func(c *Config) { c.Server.Environment = "production" }, true},
		{"production with jwt secret", func(c *Config) {
			c.Server.Environment = "production"
			c.Security.JWTSecret = "0123456789abcdef0123456789abcdef"
		}, false},
		{"short jwt secret", func(c *Config) { c.Security.JWTSecret = "short" }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "text" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

// TestFindConfigFileEnvOverride verifies CONFIG_PATH takes priority
func TestFindConfigFileEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8400\n"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile() = %q, want %q", got, path)
	}
}

// TestFindConfigFileMissing verifies a nonexistent CONFIG_PATH falls through
func TestFindConfigFileMissing(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "/nonexistent/config.yaml")
	// Falls back to default path search; must not return the bogus env path
	got := findConfigFile()
	if got == "/nonexistent/config.yaml" {
		t.Errorf("findConfigFile() returned a nonexistent path")
	}
}
