// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

/*
http_embedder.go - Audio Embedding HTTP Client

This file provides the HTTP implementation of the Embedder interface for a
CLAP-class audio-embedding service. The clip is POSTed as a raw audio body;
the service answers with a JSON object carrying one fixed-dimension vector.

Client Features:
  - HTTP client with configurable timeout
  - Bearer token authentication
  - Circuit breaker protection
  - Strict dimension validation (never truncate or pad)
  - JSON parsing via goccy/go-json

Resilience Mechanisms:
  - Circuit Breaker: opens at 60% failure rate over 10+ requests
  - Retries: one bounded retry with backoff, skipped when the breaker
    rejects or the context is done
  - Context: Embed honors cancellation during waits and requests
*/
package embedding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/somnus/internal/config"
	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/metrics"
	"github.com/tomtom215/somnus/internal/resilience"
	"github.com/tomtom215/somnus/internal/synthesis"
)

const (
	// embedPath is appended to the configured endpoint base URL.
	embedPath = "/v1/embed"

	// maxResponseSize bounds the JSON response read. A 512-dimension float
	// vector is a few KB; anything near this limit is a misbehaving server.
	maxResponseSize = 4 * 1024 * 1024 // 4MB

	// maxErrorBodySize limits how much of an error response body is read
	// for diagnostics, preventing unbounded allocation.
	maxErrorBodySize = 64 * 1024 // 64KB

	maxAttempts = 2
	retryDelay  = time.Second
)

// embedResponse is the embedding service response body.
type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// HTTPEmbedder implements Embedder against an HTTP embedding service.
//
// Thread Safety: safe for concurrent use. Each request creates its own
// HTTP request; the breaker is internally synchronized.
type HTTPEmbedder struct {
	endpoint  string
	apiKey    string
	dimension int
	client    *http.Client
	breaker   *resilience.Breaker[[]float32]
}

// NewHTTPEmbedder creates an embedding client from configuration. An empty
// endpoint yields a client whose calls fail with ErrNotConfigured; the
// service still starts in degraded mode.
func NewHTTPEmbedder(cfg *config.EmbeddingConfig) *HTTPEmbedder {
	return &HTTPEmbedder{
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: cfg.Timeout},
		breaker:   resilience.NewBreaker[[]float32]("embedding"),
	}
}

// Configured reports whether an endpoint has been set.
func (e *HTTPEmbedder) Configured() bool {
	return e.endpoint != ""
}

// Embed sends the clip to the embedding service and returns its vector.
// Transient failures get one bounded retry; breaker rejections and context
// cancellation do not. All failure modes wrap ErrUpstream.
func (e *HTTPEmbedder) Embed(ctx context.Context, clip *synthesis.AudioClip) ([]float32, error) {
	if !e.Configured() {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, ErrNotConfigured)
	}
	if clip == nil || len(clip.Data) == 0 {
		return nil, fmt.Errorf("%w: empty audio clip", ErrUpstream)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.RecordCollaboratorRetry("embedding")
			logging.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Msg("Retrying embedding call")

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrUpstream, ctx.Err())
			case <-time.After(retryDelay):
			}
		}

		start := time.Now()
		vec, err := e.breaker.Execute(func() ([]float32, error) {
			return e.embed(ctx, clip)
		})
		metrics.RecordCollaboratorCall("embedding", callResult(err), time.Since(start))

		if err == nil {
			return vec, nil
		}
		lastErr = err

		// A rejecting breaker means the service is already known bad;
		// retrying immediately would only feed the failure counter.
		if resilience.IsRejection(err) || ctx.Err() != nil {
			break
		}
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, ctx.Err())
	}
	return nil, fmt.Errorf("%w: %w", ErrUpstream, lastErr)
}

// embed performs one embedding request without retry handling.
func (e *HTTPEmbedder) embed(ctx context.Context, clip *synthesis.AudioClip) ([]float32, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.endpoint+embedPath, bytes.NewReader(clip.Data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", clipContentType(clip))
	httpReq.Header.Set("Accept", "application/json")
	if e.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned status %d: %s",
			resp.StatusCode, readBodyForError(resp.Body))
	}

	var parsed embedResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("embedding service error: %s", parsed.Error)
	}
	if len(parsed.Embedding) == 0 {
		return nil, errors.New("embedding service returned an empty vector")
	}
	if e.dimension > 0 && len(parsed.Embedding) != e.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d",
			len(parsed.Embedding), e.dimension)
	}

	return parsed.Embedding, nil
}

// clipContentType maps the clip container format to a MIME type.
func clipContentType(clip *synthesis.AudioClip) string {
	if clip.Format == "" {
		return "application/octet-stream"
	}
	return "audio/" + clip.Format
}

// callResult classifies an error outcome for the collaborator metrics.
func callResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// readBodyForError reads a bounded prefix of an error response body.
func readBodyForError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
	if err != nil || len(data) == 0 {
		return "(no response body)"
	}
	return string(data)
}
