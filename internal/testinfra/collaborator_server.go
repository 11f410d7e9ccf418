// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

//go:build integration

package testinfra

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// Collaborator API paths as the production clients dial them.
const (
	ChatCompletionsPath = "/v1/chat/completions"
	GeneratePath        = "/v1/generate"
	EmbedPath           = "/v1/embed"
)

// RequestCapture is one recorded collaborator request.
type RequestCapture struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
}

// CollaboratorServer fakes the upstream collaborators behind one
// httptest server. Point all three client endpoints at URL(), register a
// handler per path, and inspect Captures afterwards.
type CollaboratorServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	captures []RequestCapture
	handlers map[string]http.HandlerFunc
}

// NewCollaboratorServer starts a capture server with no routes. Requests
// to unregistered paths get 404, which surfaces a client dialing the
// wrong path as a visible test failure.
func NewCollaboratorServer(t *testing.T) *CollaboratorServer {
	t.Helper()

	cs := &CollaboratorServer{
		handlers: make(map[string]http.HandlerFunc),
	}

	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body.Close()
		}

		cs.mu.Lock()
		cs.captures = append(cs.captures, RequestCapture{
			Method:  r.Method,
			Path:    r.URL.Path,
			Headers: r.Header.Clone(),
			Body:    body,
		})
		handler := cs.handlers[r.URL.Path]
		cs.mu.Unlock()

		if handler == nil {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))

	t.Cleanup(cs.Server.Close)
	return cs
}

// URL returns the server base URL, usable as all three endpoints.
func (cs *CollaboratorServer) URL() string {
	return cs.Server.URL
}

// Handle registers a handler for one path.
func (cs *CollaboratorServer) Handle(path string, fn http.HandlerFunc) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.handlers[path] = fn
}

// Captures returns a copy of all recorded requests.
func (cs *CollaboratorServer) Captures() []RequestCapture {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]RequestCapture, len(cs.captures))
	copy(out, cs.captures)
	return out
}

// CapturesFor returns the recorded requests for one path.
func (cs *CollaboratorServer) CapturesFor(path string) []RequestCapture {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	var out []RequestCapture
	for _, c := range cs.captures {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// ClearCaptures discards all recorded requests.
func (cs *CollaboratorServer) ClearCaptures() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.captures = nil
}

// WaitForCaptures blocks until at least n requests are recorded or the
// timeout expires.
func (cs *CollaboratorServer) WaitForCaptures(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		cs.mu.Lock()
		count := len(cs.captures)
		cs.mu.Unlock()
		if count >= n {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// RespondChatCompletion answers in the chat-completion shape the
// narrative analysis client parses.
func RespondChatCompletion(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}
}

// RespondAudio answers with raw audio bytes the way the music generation
// service does.
func RespondAudio(wav []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wav) //nolint:errcheck
	}
}

// RespondEmbedding answers with an embedding vector.
func RespondEmbedding(vec []float32) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"embedding": vec}) //nolint:errcheck
	}
}
