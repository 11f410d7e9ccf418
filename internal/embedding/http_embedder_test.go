// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package embedding

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/somnus/internal/config"
	"github.com/tomtom215/somnus/internal/synthesis"
)

func testClip() *synthesis.AudioClip {
	return &synthesis.AudioClip{
		Data:       append([]byte("RIFF"), bytes.Repeat([]byte{0x02}, 64)...),
		Format:     "wav",
		Duration:   10 * time.Second,
		SampleRate: 32000,
	}
}

func testConfig(endpoint string, dimension int) *config.EmbeddingConfig {
	return &config.EmbeddingConfig{
		Endpoint:  endpoint,
		APIKey:    "test-key",
		Timeout:   5 * time.Second,
		Dimension: dimension,
	}
}

func vector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(i) * 0.01
	}
	return v
}

func TestEmbedSuccess(t *testing.T) {
	want := vector(8)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embed" {
			t.Errorf("path = %s, want /v1/embed", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "audio/wav" {
			t.Errorf("Content-Type = %q, want audio/wav", got)
		}

		body, _ := io.ReadAll(r.Body)
		if !bytes.Equal(body, testClip().Data) {
			t.Error("request body differs from clip data")
		}

		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: want})
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(testConfig(srv.URL, 8))

	got, err := e.Embed(context.Background(), testClip())
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("vector length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("vector[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: vector(7)})
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(testConfig(srv.URL, 8))

	_, err := e.Embed(context.Background(), testClip())
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("error = %v, want wrapped ErrUpstream", err)
	}
}

func TestEmbedRetriesOnceThenFails(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(testConfig(srv.URL, 8))

	_, err := e.Embed(context.Background(), testClip())
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("error = %v, want wrapped ErrUpstream", err)
	}
	if n := attempts.Load(); n != 2 {
		t.Errorf("attempts = %d, want exactly 2 (one retry)", n)
	}
}

func TestEmbedRecoversOnRetry(t *testing.T) {
	var attempts atomic.Int32
	want := vector(8)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, "transient", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: want})
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(testConfig(srv.URL, 8))

	got, err := e.Embed(context.Background(), testClip())
	if err != nil {
		t.Fatalf("Embed() error = %v, want recovery on retry", err)
	}
	if len(got) != 8 {
		t.Errorf("vector length = %d, want 8", len(got))
	}
}

func TestEmbedServiceErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Error: "unsupported codec"})
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(testConfig(srv.URL, 8))

	_, err := e.Embed(context.Background(), testClip())
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("error = %v, want wrapped ErrUpstream", err)
	}
}

func TestEmbedEmptyVectorRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(testConfig(srv.URL, 8))

	if _, err := e.Embed(context.Background(), testClip()); !errors.Is(err, ErrUpstream) {
		t.Fatalf("error = %v, want wrapped ErrUpstream", err)
	}
}

func TestEmbedNotConfigured(t *testing.T) {
	e := NewHTTPEmbedder(&config.EmbeddingConfig{Timeout: time.Second})

	if e.Configured() {
		t.Error("Configured() = true with empty endpoint")
	}

	_, err := e.Embed(context.Background(), testClip())
	if !errors.Is(err, ErrNotConfigured) || !errors.Is(err, ErrUpstream) {
		t.Fatalf("error = %v, want ErrNotConfigured wrapped in ErrUpstream", err)
	}
}

func TestEmbedEmptyClip(t *testing.T) {
	e := NewHTTPEmbedder(testConfig("http://localhost:1", 8))

	if _, err := e.Embed(context.Background(), nil); !errors.Is(err, ErrUpstream) {
		t.Fatalf("nil clip error = %v, want ErrUpstream", err)
	}
	if _, err := e.Embed(context.Background(), &synthesis.AudioClip{}); !errors.Is(err, ErrUpstream) {
		t.Fatalf("empty clip error = %v, want ErrUpstream", err)
	}
}

func TestEmbedContextCancelled(t *testing.T) {
	started := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(testConfig(srv.URL, 8))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := e.Embed(ctx, testClip())
	if !errors.Is(err, ErrUpstream) || !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want ErrUpstream wrapping context.Canceled", err)
	}
}
