// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

/*
Package config provides centralized configuration management for Somnus.

Configuration is loaded with Koanf v2 from three layered sources, later
layers overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML config file (config.yaml, or CONFIG_PATH)
 3. Environment variables

# Configuration Structure

The Config tree groups settings by concern:

  - LLMConfig / SynthesisConfig / EmbeddingConfig: the three external model
    collaborators (endpoints, timeouts, call parameters)
  - CorpusConfig: track manifest and precomputed embedding sidecar
  - PipelineConfig: top-K and the whole-run time budget
  - ExperimentConfig: pair count, control-sampling seed, session store
  - DatabaseConfig: DuckDB results warehouse
  - NATSConfig: experiment lifecycle events (build-tag gated)
  - ServerConfig / APIConfig / SecurityConfig: HTTP surface
  - LoggingConfig: log level and format

# Usage

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(cfg.Pipeline.TopK, cfg.Experiment.Pairs)

Load validates the assembled configuration and fails fast with a message
naming the offending environment variable, so a bad deployment never starts
half-configured.
*/
package config
