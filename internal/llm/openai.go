// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

/*
openai.go - OpenAI-Compatible Chat Completion Client

This file provides the HTTP implementation of the Client interface for
any endpoint speaking the OpenAI chat completion protocol (OpenAI itself,
Azure OpenAI, vLLM, Ollama in compatible mode).

Client Features:
  - HTTP client with configurable timeout
  - Bearer token authentication
  - Client-side request rate limiting (token bucket)
  - Circuit breaker protection shared across all agents
  - Automatic HTTP 429 handling with exponential backoff
  - JSON parsing via goccy/go-json

Resilience Mechanisms:
  - Circuit Breaker: opens at 60% failure rate over 10+ requests
  - Rate Limiting: limiter.Wait blocks until a token is available
  - Retries: max 2 attempts for rate-limited requests (1s, 2s backoff)
  - Context: Complete honors cancellation during waits and requests
*/
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/somnus/internal/config"
	"github.com/tomtom215/somnus/internal/metrics"
	"github.com/tomtom215/somnus/internal/resilience"
)

const (
	// completionPath is appended to the configured endpoint base URL.
	completionPath = "/v1/chat/completions"

	// maxErrorBodySize limits how much of an error response body is read
	// for diagnostics, preventing unbounded allocation.
	maxErrorBodySize = 64 * 1024 // 64KB

	maxRateLimitRetries = 2
	retryBaseDelay      = time.Second
)

// chatMessage is one message in the completion conversation.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the OpenAI chat completion request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

// chatResponse is the subset of the completion response we consume.
type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// HTTPClient implements Client against an OpenAI-compatible endpoint.
//
// Thread Safety: safe for concurrent use. Each request creates its own
// HTTP request; the limiter and breaker are internally synchronized.
type HTTPClient struct {
	endpoint    string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
	limiter     *rate.Limiter
	breaker     *resilience.Breaker[string]
}

// NewHTTPClient creates a chat completion client from configuration.
// An empty endpoint yields a client whose calls fail with
// ErrNotConfigured; the service still starts in degraded mode.
func NewHTTPClient(cfg *config.LLMConfig) *HTTPClient {
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	return &HTTPClient{
		endpoint:    strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: limiter,
		breaker: resilience.NewBreaker[string]("llm"),
	}
}

// Configured reports whether a model endpoint is set. Used by the status
// endpoint to distinguish "degraded by configuration" from failures.
func (c *HTTPClient) Configured() bool {
	return c.endpoint != ""
}

// Complete performs one chat completion under rate limiting and circuit
// breaker protection. All failure modes wrap ErrUpstream.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("%w: %w", ErrUpstream, ErrNotConfigured)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: rate limiter wait: %w", ErrUpstream, err)
		}
	}

	start := time.Now()

	content, err := c.breaker.Execute(func() (string, error) {
		return c.complete(ctx, req)
	})

	metrics.RecordCollaboratorCall("llm", callResult(err), time.Since(start))

	if err != nil {
		if resilience.IsRejection(err) {
			return "", fmt.Errorf("%w: circuit open: %w", ErrUpstream, err)
		}
		return "", err
	}

	return content, nil
}

// complete performs the HTTP exchange with 429 backoff handling.
func (c *HTTPClient) complete(ctx context.Context, req Request) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %w", ErrUpstream, err)
	}

	resp, err := c.doRequestWithRateLimit(ctx, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := readBodyForError(resp.Body)
		return "", fmt.Errorf("%w: completion failed with status %d: %s", ErrUpstream, resp.StatusCode, string(errBody))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
	}

	if parsed.Error != nil {
		return "", fmt.Errorf("%w: api error: %s", ErrUpstream, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: response contained no choices", ErrUpstream)
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// doRequestWithRateLimit performs the POST with automatic HTTP 429
// handling. Implements exponential backoff (1s, 2s) honoring Retry-After.
// The context is used for cancellation during backoff waits.
func (c *HTTPClient) doRequestWithRateLimit(ctx context.Context, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRateLimitRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrUpstream, ctx.Err())
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+completionPath, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: create request: %w", ErrUpstream, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: http request: %w", ErrUpstream, err)
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Rate limited - close body and retry with backoff
		_ = resp.Body.Close()

		if attempt == maxRateLimitRetries {
			lastErr = fmt.Errorf("%w: rate limit exceeded after %d retries (HTTP 429)", ErrUpstream, maxRateLimitRetries)
			break
		}

		delay := retryBaseDelay * time.Duration(1<<uint(attempt))

		// Honor Retry-After (RFC 6585) when the server provides one
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrUpstream, ctx.Err())
		}
	}

	return nil, lastErr
}

// callResult classifies an error for the collaborator call metric.
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

// readBodyForError reads at most maxErrorBodySize bytes of a response
// body for error reporting.
func readBodyForError(r io.Reader) []byte {
	limitedReader := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}
