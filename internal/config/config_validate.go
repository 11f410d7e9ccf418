// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package config

import (
	"fmt"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateCollaborators(); err != nil {
		return err
	}

	if err := c.validatePipeline(); err != nil {
		return err
	}

	if err := c.validateExperiment(); err != nil {
		return err
	}

	if err := c.validateNATS(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateCollaborators validates the three external model endpoints.
// Endpoints may be empty (the service then reports itself degraded rather
// than refusing to start: the experiment read path works without them),
// but a configured endpoint must be a well-formed base URL.
func (c *Config) validateCollaborators() error {
	if c.LLM.Endpoint != "" {
		if err := validateHTTPURL(c.LLM.Endpoint, "LLM_ENDPOINT"); err != nil {
			return fmt.Errorf("LLM_ENDPOINT is invalid: %w", err)
		}
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive")
	}
	if c.LLM.RateLimitRPS <= 0 {
		return fmt.Errorf("LLM_RATE_LIMIT_RPS must be positive")
	}

	if c.Synthesis.Endpoint != "" {
		if err := validateHTTPURL(c.Synthesis.Endpoint, "SYNTHESIS_ENDPOINT"); err != nil {
			return fmt.Errorf("SYNTHESIS_ENDPOINT is invalid: %w", err)
		}
	}
	if c.Synthesis.Timeout <= 0 {
		return fmt.Errorf("SYNTHESIS_TIMEOUT must be positive")
	}
	if c.Synthesis.MaxClipSeconds < 1 || c.Synthesis.MaxClipSeconds > 60 {
		return fmt.Errorf("SYNTHESIS_MAX_CLIP_SECONDS must be between 1 and 60")
	}
	if c.Synthesis.SampleRate < 8000 || c.Synthesis.SampleRate > 96000 {
		return fmt.Errorf("SYNTHESIS_SAMPLE_RATE must be between 8000 and 96000")
	}

	if c.Embedding.Endpoint != "" {
		if err := validateHTTPURL(c.Embedding.Endpoint, "EMBEDDING_ENDPOINT"); err != nil {
			return fmt.Errorf("EMBEDDING_ENDPOINT is invalid: %w", err)
		}
	}
	if c.Embedding.Timeout <= 0 {
		return fmt.Errorf("EMBEDDING_TIMEOUT must be positive")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive")
	}

	return nil
}

// validatePipeline validates ranking and run-budget settings
func (c *Config) validatePipeline() error {
	if c.Pipeline.TopK < 1 {
		return fmt.Errorf("PIPELINE_TOP_K must be at least 1")
	}
	if c.Pipeline.RunTimeout <= 0 {
		return fmt.Errorf("PIPELINE_RUN_TIMEOUT must be positive")
	}
	if c.Corpus.ManifestPath == "" {
		return fmt.Errorf("CORPUS_MANIFEST_PATH is required")
	}
	if c.Corpus.EmbeddingsPath == "" {
		return fmt.Errorf("CORPUS_EMBEDDINGS_PATH is required")
	}
	return nil
}

// validateExperiment validates experiment-engine settings
func (c *Config) validateExperiment() error {
	if c.Experiment.Pairs < 1 {
		return fmt.Errorf("EXPERIMENT_PAIRS must be at least 1")
	}
	if c.Experiment.SessionTTL < time.Minute {
		return fmt.Errorf("EXPERIMENT_SESSION_TTL must be at least 1m")
	}
	switch c.Experiment.SessionStore {
	case "memory":
		// No path required
	case "badger":
		if c.Experiment.SessionStorePath == "" {
			return fmt.Errorf("EXPERIMENT_SESSION_STORE_PATH is required when EXPERIMENT_SESSION_STORE=badger")
		}
	default:
		return fmt.Errorf("EXPERIMENT_SESSION_STORE must be 'memory' or 'badger', got: %s", c.Experiment.SessionStore)
	}
	if c.Experiment.CleanupInterval < time.Minute {
		return fmt.Errorf("EXPERIMENT_CLEANUP_INTERVAL must be at least 1m")
	}
	return nil
}

// NATS limit constants
const (
	natsMinMemory    = 64 * 1024 * 1024  // 64MB
	natsMinStore     = 100 * 1024 * 1024 // 100MB
	natsMinRetention = 1
	natsMaxRetention = 365
)

// validateNATS validates NATS configuration (only if enabled)
func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}

	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}

	if c.NATS.MaxMemory < natsMinMemory {
		return fmt.Errorf("NATS_MAX_MEMORY must be at least 64MB (67108864 bytes)")
	}
	if c.NATS.MaxStore < natsMinStore {
		return fmt.Errorf("NATS_MAX_STORE must be at least 100MB (104857600 bytes)")
	}
	if c.NATS.StreamRetentionDays < natsMinRetention || c.NATS.StreamRetentionDays > natsMaxRetention {
		return fmt.Errorf("NATS_RETENTION_DAYS must be between %d and %d", natsMinRetention, natsMaxRetention)
	}

	return nil
}

// validateServer validates HTTP server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout < time.Second {
		return fmt.Errorf("HTTP_TIMEOUT must be at least 1s")
	}
	switch c.Server.Environment {
	case "development", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be 'development' or 'production', got: %s", c.Server.Environment)
	}
	return nil
}

// jwtSecretMinLength is the minimum accepted HMAC secret length.
// Shorter secrets make brute-forcing session tokens practical.
const jwtSecretMinLength = 32

// validateSecurity validates session token configuration.
// A missing secret is tolerated in development (a random one is generated at
// startup) but refused in production, where restarts must not invalidate
// outstanding sessions silently.
func (c *Config) validateSecurity() error {
	if c.Security.JWTSecret == "" {
		if c.Server.Environment == "production" {
			return fmt.Errorf("JWT_SECRET is required when ENVIRONMENT=production")
		}
		return nil
	}
	if len(c.Security.JWTSecret) < jwtSecretMinLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", jwtSecretMinLength)
	}
	if c.Security.SessionTokenTTL < time.Minute {
		return fmt.Errorf("SESSION_TOKEN_TTL must be at least 1m")
	}
	return nil
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, disabled; got: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'console', got: %s", c.Logging.Format)
	}
	return nil
}
