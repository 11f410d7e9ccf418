// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package synthesis

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/somnus/internal/config"
)

// fakeWAV is a stand-in payload; the client treats audio as opaque.
var fakeWAV = append([]byte("RIFF"), bytes.Repeat([]byte{0x01}, 128)...)

func testConfig(endpoint string) *config.SynthesisConfig {
	return &config.SynthesisConfig{
		Endpoint:       endpoint,
		APIKey:         "test-key",
		Timeout:        5 * time.Second,
		MaxClipSeconds: 15,
		SampleRate:     32000,
		GuidanceScale:  3.0,
	}
}

func TestSynthesizeSuccess(t *testing.T) {
	var gotReq generateRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/generate" {
			t.Errorf("path = %s, want /v1/generate", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(fakeWAV)
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(testConfig(srv.URL))

	clip, err := s.Synthesize(context.Background(), "ambient piano, very slow, calm", 30*time.Second)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	if !bytes.Equal(clip.Data, fakeWAV) {
		t.Error("clip data differs from server payload")
	}
	if clip.Format != "wav" {
		t.Errorf("Format = %q, want wav", clip.Format)
	}
	if clip.SampleRate != 32000 {
		t.Errorf("SampleRate = %d, want 32000", clip.SampleRate)
	}

	// 30s request clamped to the 15s ceiling.
	if clip.Duration != 15*time.Second {
		t.Errorf("Duration = %v, want clamped 15s", clip.Duration)
	}
	if gotReq.Duration != 15 {
		t.Errorf("request duration = %v, want 15", gotReq.Duration)
	}
	if gotReq.SampleRate != 32000 || gotReq.GuidanceScale != 3.0 {
		t.Errorf("request = %+v, want configured sample rate and guidance", gotReq)
	}
}

func TestSynthesizeRetriesOnceThenFails(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	s := NewHTTPSynthesizer(cfg)

	start := time.Now()
	_, err := s.Synthesize(context.Background(), "ambient", 10*time.Second)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("error = %v, want wrapped ErrGeneration", err)
	}
	if n := attempts.Load(); n != 2 {
		t.Errorf("attempts = %d, want exactly 2 (one retry)", n)
	}
	if elapsed < retryDelay {
		t.Errorf("elapsed = %v, want backoff before the retry", elapsed)
	}
}

func TestSynthesizeRecoversOnRetry(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, "transient", http.StatusBadGateway)
			return
		}
		_, _ = w.Write(fakeWAV)
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(testConfig(srv.URL))

	clip, err := s.Synthesize(context.Background(), "ambient", 10*time.Second)
	if err != nil {
		t.Fatalf("Synthesize() error = %v, want recovery on retry", err)
	}
	if len(clip.Data) == 0 {
		t.Error("clip empty after recovery")
	}
}

func TestSynthesizeEmptyInstruction(t *testing.T) {
	s := NewHTTPSynthesizer(testConfig("http://localhost:1"))

	if _, err := s.Synthesize(context.Background(), "", time.Second); !errors.Is(err, ErrGeneration) {
		t.Fatalf("error = %v, want ErrGeneration", err)
	}
}

func TestSynthesizeNotConfigured(t *testing.T) {
	s := NewHTTPSynthesizer(&config.SynthesisConfig{Timeout: time.Second})

	if s.Configured() {
		t.Error("Configured() = true with empty endpoint")
	}

	_, err := s.Synthesize(context.Background(), "ambient", time.Second)
	if !errors.Is(err, ErrNotConfigured) || !errors.Is(err, ErrGeneration) {
		t.Fatalf("error = %v, want ErrNotConfigured wrapped in ErrGeneration", err)
	}
}

func TestSynthesizeEmptyAudioRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(testConfig(srv.URL))

	if _, err := s.Synthesize(context.Background(), "ambient", time.Second); !errors.Is(err, ErrGeneration) {
		t.Fatalf("error = %v, want ErrGeneration for empty audio", err)
	}
}

func TestClampDuration(t *testing.T) {
	ceiling := 15 * time.Second

	tests := []struct {
		name      string
		requested time.Duration
		want      time.Duration
	}{
		{"zero uses ceiling", 0, ceiling},
		{"negative uses ceiling", -time.Second, ceiling},
		{"below ceiling kept", 10 * time.Second, 10 * time.Second},
		{"at ceiling kept", ceiling, ceiling},
		{"above ceiling clamped", 30 * time.Second, ceiling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampDuration(tt.requested, ceiling); got != tt.want {
				t.Errorf("clampDuration(%v) = %v, want %v", tt.requested, got, tt.want)
			}
		})
	}
}
