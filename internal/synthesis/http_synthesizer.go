// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package synthesis

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

	"github.com/tomtom215/somnus/internal/config"
	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/metrics"
	"github.com/tomtom215/somnus/internal/resilience"
)

const (
	generatePath = "/v1/generate"

	// maxAudioBytes caps how much generated audio is read. A 60s clip
	// at 96kHz/16-bit stereo is ~23MB; anything past this is a
	// misbehaving collaborator.
	maxAudioBytes = 64 * 1024 * 1024 // 64MB

	maxErrorBodySize = 64 * 1024 // 64KB

	// One bounded retry with backoff, then the run fails.
	maxAttempts = 2
	retryDelay  = 2 * time.Second
)

// generateRequest is the synthesis request body.
type generateRequest struct {
	Prompt        string  `json:"prompt"`
	Duration      float64 `json:"duration"`
	SampleRate    int     `json:"sample_rate"`
	GuidanceScale float64 `json:"guidance_scale"`
}

// HTTPSynthesizer implements Synthesizer against a model-serving
// endpoint that answers with raw WAV bytes.
//
// Thread Safety: safe for concurrent use.
type HTTPSynthesizer struct {
	endpoint      string
	apiKey        string
	maxClip       time.Duration
	sampleRate    int
	guidanceScale float64
	client        *http.Client
	breaker       *resilience.Breaker[*AudioClip]
}

// NewHTTPSynthesizer creates a synthesis client from configuration. An
// empty endpoint yields a client whose calls fail with ErrNotConfigured.
func NewHTTPSynthesizer(cfg *config.SynthesisConfig) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		endpoint:      strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:        cfg.APIKey,
		maxClip:       time.Duration(cfg.MaxClipSeconds) * time.Second,
		sampleRate:    cfg.SampleRate,
		guidanceScale: cfg.GuidanceScale,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: resilience.NewBreaker[*AudioClip]("synthesis"),
	}
}

// Configured reports whether a synthesis endpoint is set.
func (s *HTTPSynthesizer) Configured() bool {
	return s.endpoint != ""
}

// Synthesize generates one reference clip. The requested duration is
// clamped to the configured ceiling. A transient failure is retried
// once after a short backoff; the second failure is final.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, instruction string, maxDuration time.Duration) (*AudioClip, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, ErrNotConfigured)
	}
	if instruction == "" {
		return nil, fmt.Errorf("%w: empty instruction", ErrGeneration)
	}

	duration := clampDuration(maxDuration, s.maxClip)

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			metrics.RecordCollaboratorRetry("synthesis")
			logging.Warn().Err(lastErr).Msg("Retrying music generation")

			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrGeneration, ctx.Err())
			}
		}

		start := time.Now()
		clip, err := s.breaker.Execute(func() (*AudioClip, error) {
			return s.generate(ctx, instruction, duration)
		})
		metrics.RecordCollaboratorCall("synthesis", callResult(err), time.Since(start))

		if err == nil {
			return clip, nil
		}

		lastErr = err

		// Breaker rejections and caller cancellation are not retried:
		// the first is already a known-down collaborator, the second is
		// the caller giving up.
		if resilience.IsRejection(err) || ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrGeneration, lastErr)
}

// generate performs one HTTP exchange.
func (s *HTTPSynthesizer) generate(ctx context.Context, instruction string, duration time.Duration) (*AudioClip, error) {
	body, err := json.Marshal(generateRequest{
		Prompt:        instruction,
		Duration:      duration.Seconds(),
		SampleRate:    s.sampleRate,
		GuidanceScale: s.guidanceScale,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+generatePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := readBodyForError(resp.Body)
		return nil, fmt.Errorf("generation failed with status %d: %s", resp.StatusCode, string(errBody))
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio response")
	}
	if len(audio) > maxAudioBytes {
		return nil, fmt.Errorf("audio response exceeds %d bytes", maxAudioBytes)
	}

	return &AudioClip{
		Data:       audio,
		Format:     "wav",
		Duration:   duration,
		SampleRate: s.sampleRate,
	}, nil
}

// clampDuration bounds the requested clip length to (0, ceiling].
func clampDuration(requested, ceiling time.Duration) time.Duration {
	if requested <= 0 || requested > ceiling {
		return ceiling
	}
	return requested
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
