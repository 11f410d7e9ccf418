// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/somnus/internal/auth"
	"github.com/tomtom215/somnus/internal/config"
	"github.com/tomtom215/somnus/internal/corpus"
	"github.com/tomtom215/somnus/internal/experiment"
	"github.com/tomtom215/somnus/internal/form"
	"github.com/tomtom215/somnus/internal/llm"
	"github.com/tomtom215/somnus/internal/models"
	"github.com/tomtom215/somnus/internal/pipeline"
	"github.com/tomtom215/somnus/internal/results"
	"github.com/tomtom215/somnus/internal/synthesis"
)

// ---- fakes ----

type fakePipeline struct {
	result *pipeline.Result
	err    error
	lastIn form.FormSubmission
}

func (f *fakePipeline) Run(_ context.Context, sub form.FormSubmission) (*pipeline.Result, error) {
	f.lastIn = sub
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeSessions struct {
	getFn     func(ctx context.Context, id string) (*experiment.Session, error)
	submitFn  func(ctx context.Context, id string, req models.SubmitChoiceRequest) (*experiment.Session, error)
	resultsFn func(ctx context.Context, id string) (models.SessionResultsView, error)
	activeFn  func(ctx context.Context) (int, error)
}

func (f *fakeSessions) GetSession(ctx context.Context, id string) (*experiment.Session, error) {
	if f.getFn == nil {
		return nil, experiment.ErrSessionNotFound
	}
	return f.getFn(ctx, id)
}

func (f *fakeSessions) SubmitChoice(ctx context.Context, id string, req models.SubmitChoiceRequest) (*experiment.Session, error) {
	if f.submitFn == nil {
		return nil, experiment.ErrSessionNotFound
	}
	return f.submitFn(ctx, id, req)
}

func (f *fakeSessions) Results(ctx context.Context, id string) (models.SessionResultsView, error) {
	if f.resultsFn == nil {
		return models.SessionResultsView{}, experiment.ErrSessionNotFound
	}
	return f.resultsFn(ctx, id)
}

func (f *fakeSessions) ActiveSessions(ctx context.Context) (int, error) {
	if f.activeFn == nil {
		return 0, nil
	}
	return f.activeFn(ctx)
}

type fakeCatalog struct {
	tracks []corpus.Track
	dim    int
}

func (f *fakeCatalog) RandomTracks(n int) []corpus.Track {
	if n > len(f.tracks) {
		n = len(f.tracks)
	}
	return f.tracks[:n]
}

func (f *fakeCatalog) Size() int      { return len(f.tracks) }
func (f *fakeCatalog) Dimension() int { return f.dim }

type fakeAnalytics struct {
	analytics *results.Analytics
	err       error
	lastLimit int
}

func (f *fakeAnalytics) Analytics(_ context.Context, detailLimit int) (*results.Analytics, error) {
	f.lastLimit = detailLimit
	if f.err != nil {
		return nil, f.err
	}
	return f.analytics, nil
}

// ---- fixtures ----

func testAPIConfig() *config.Config {
	return &config.Config{
		LLM:       config.LLMConfig{Endpoint: "http://llm.local"},
		Synthesis: config.SynthesisConfig{Endpoint: "http://synth.local"},
		Embedding: config.EmbeddingConfig{Endpoint: "http://embed.local"},
		API: config.APIConfig{
			RateLimitReqs:     1000,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: true,
			CORSOrigins:       []string{"*"},
		},
		Security: config.SecurityConfig{
			JWTSecret:       "0123456789abcdef0123456789abcdef",
			SessionTokenTTL: time.Hour,
		},
	}
}

func testTracks(n int) []corpus.Track {
	tracks := make([]corpus.Track, n)
	for i := range tracks {
		tracks[i] = corpus.Track{
			ID:       fmt.Sprintf("track-%d", i+1),
			Title:    fmt.Sprintf("Track %d", i+1),
			Artist:   "Test Artist",
			AudioURL: fmt.Sprintf("/audio/track-%d.mp3", i+1),
		}
	}
	return tracks
}

func testSession(id string, status experiment.Status) *experiment.Session {
	tracks := testTracks(4)
	return &experiment.Session{
		SessionID:    id,
		RunID:        "run-" + id,
		UserID:       "participant@example.com",
		Status:       status,
		CurrentIndex: 0,
		Pairs: []experiment.Pair{
			{
				ID:                  id + "-pair-0",
				Index:               0,
				TrackA:              experiment.TrackRef{ID: tracks[0].ID, Title: tracks[0].Title, AudioURL: tracks[0].AudioURL},
				TrackB:              experiment.TrackRef{ID: tracks[1].ID, Title: tracks[1].Title, AudioURL: tracks[1].AudioURL},
				RecommendedPosition: experiment.SideA,
			},
			{
				ID:                  id + "-pair-1",
				Index:               1,
				TrackA:              experiment.TrackRef{ID: tracks[2].ID, Title: tracks[2].Title, AudioURL: tracks[2].AudioURL},
				TrackB:              experiment.TrackRef{ID: tracks[3].ID, Title: tracks[3].Title, AudioURL: tracks[3].AudioURL},
				RecommendedPosition: experiment.SideB,
			},
		},
		StartTime: time.Now().UTC(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func testPipelineResult(sessionID string) *pipeline.Result {
	tracks := testTracks(3)
	recs := make([]pipeline.Recommendation, len(tracks))
	for i, tr := range tracks {
		recs[i] = pipeline.Recommendation{
			Track: tr,
			Score: 0.9 - float64(i)*0.1,
			Rank:  i + 1,
		}
	}
	return &pipeline.Result{
		RunID:           "run-" + sessionID,
		Instruction:     "Slow ambient pads, 50 BPM, no percussion",
		Recommendations: recs,
		Session:         testSession(sessionID, experiment.StatusCreated),
		Elapsed:         1250 * time.Millisecond,
	}
}

func newTestHandler(t *testing.T) (*Handler, *fakePipeline, *fakeSessions, *fakeCatalog, *fakeAnalytics) {
	t.Helper()

	cfg := testAPIConfig()
	tokens, err := auth.NewTokenManager(&cfg.Security)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	pl := &fakePipeline{result: testPipelineResult("sess-1")}
	sessions := &fakeSessions{}
	catalog := &fakeCatalog{tracks: testTracks(10), dim: 128}
	analytics := &fakeAnalytics{analytics: &results.Analytics{GeneratedAt: time.Now()}}

	h := NewHandler(cfg, pl, sessions, catalog, analytics, tokens, nil)
	return h, pl, sessions, catalog, analytics
}

func validSubmission() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         "participant@example.com",
		"stress_level":    "中度壓力",
		"emotional_state": "焦慮",
		"sleep_goal":      "快速入眠",
		"sleep_theme":     "平靜如水（穩定神經）",
	}
}

func postJSON(t *testing.T, target string, payload interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return envelope
}

func envelopeErrorCode(t *testing.T, envelope map[string]interface{}) string {
	t.Helper()
	errObj, ok := envelope["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object, got %v", envelope["error"])
	}
	code, _ := errObj["code"].(string)
	return code
}

// ---- recommendations ----

func TestRecommendations_Success(t *testing.T) {
	t.Parallel()

	h, _, _, _, _ := newTestHandler(t)

	req := postJSON(t, "/api/v1/recommendations", validSubmission())
	rec := httptest.NewRecorder()
	h.Recommendations(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	envelope := decodeEnvelope(t, rec)
	if envelope["status"] != "success" {
		t.Errorf("Expected status 'success', got %v", envelope["status"])
	}

	data, ok := envelope["data"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected data object")
	}
	if data["run_id"] != "run-sess-1" {
		t.Errorf("Expected run_id run-sess-1, got %v", data["run_id"])
	}
	if data["token"] == "" || data["token"] == nil {
		t.Error("Expected a session token in the payload")
	}
	recs, ok := data["recommendations"].([]interface{})
	if !ok || len(recs) != 3 {
		t.Errorf("Expected 3 recommendations, got %v", data["recommendations"])
	}

	session, ok := data["session"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected session object")
	}
	if session["session_id"] != "sess-1" {
		t.Errorf("Expected session_id sess-1, got %v", session["session_id"])
	}

	meta, ok := envelope["metadata"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected metadata object")
	}
	if _, ok := meta["timestamp"]; !ok {
		t.Error("Expected metadata timestamp")
	}
}

func TestRecommendations_PassesSubmissionThrough(t *testing.T) {
	t.Parallel()

	h, pl, _, _, _ := newTestHandler(t)

	req := postJSON(t, "/api/v1/recommendations", validSubmission())
	rec := httptest.NewRecorder()
	h.Recommendations(rec, req)

	if pl.lastIn.UserID != "participant@example.com" {
		t.Errorf("Expected submission to reach the pipeline, got user %q", pl.lastIn.UserID)
	}
	if pl.lastIn.SleepTheme != "平靜如水（穩定神經）" {
		t.Errorf("Unexpected sleep theme %q", pl.lastIn.SleepTheme)
	}
}

func TestRecommendations_InvalidJSON(t *testing.T) {
	t.Parallel()

	h, _, _, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.Recommendations(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if code := envelopeErrorCode(t, decodeEnvelope(t, rec)); code != models.ErrCodeValidation {
		t.Errorf("Expected %s, got %s", models.ErrCodeValidation, code)
	}
}

func TestRecommendations_ValidationFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(m map[string]interface{})
	}{
		{name: "missing_user", mutate: func(m map[string]interface{}) { delete(m, "user_id") }},
		{name: "bad_email", mutate: func(m map[string]interface{}) { m["user_id"] = "not-an-email" }},
		{name: "unknown_stress_level", mutate: func(m map[string]interface{}) { m["stress_level"] = "very stressed" }},
		{name: "missing_theme", mutate: func(m map[string]interface{}) { delete(m, "sleep_theme") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, _, _, _, _ := newTestHandler(t)
			payload := validSubmission()
			tt.mutate(payload)

			rec := httptest.NewRecorder()
			h.Recommendations(rec, postJSON(t, "/api/v1/recommendations", payload))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("Expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
			if code := envelopeErrorCode(t, decodeEnvelope(t, rec)); code != models.ErrCodeValidation {
				t.Errorf("Expected %s, got %s", models.ErrCodeValidation, code)
			}
		})
	}
}

func TestRecommendations_PipelineErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "llm_upstream",
			err:        fmt.Errorf("stage analyzing: %w", llm.ErrUpstream),
			wantStatus: http.StatusBadGateway,
			wantCode:   models.ErrCodeUpstream,
		},
		{
			name:       "generation_failed",
			err:        fmt.Errorf("stage generating: %w", synthesis.ErrGeneration),
			wantStatus: http.StatusBadGateway,
			wantCode:   models.ErrCodeGeneration,
		},
		{
			name:       "collaborator_not_configured",
			err:        fmt.Errorf("stage generating: %w", synthesis.ErrNotConfigured),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   models.ErrCodeUpstream,
		},
		{
			name:       "insufficient_corpus",
			err:        fmt.Errorf("stage session: %w", experiment.ErrInsufficientCorpus),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   models.ErrCodeInsufficientCorpus,
		},
		{
			name:       "pipeline_timeout",
			err:        fmt.Errorf("stage embedding: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   models.ErrCodeUpstream,
		},
		{
			name:       "unknown",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   models.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, pl, _, _, _ := newTestHandler(t)
			pl.err = tt.err

			rec := httptest.NewRecorder()
			h.Recommendations(rec, postJSON(t, "/api/v1/recommendations", validSubmission()))

			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if code := envelopeErrorCode(t, decodeEnvelope(t, rec)); code != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, code)
			}
		})
	}
}

func TestRecommendations_NoSessionNoToken(t *testing.T) {
	t.Parallel()

	h, pl, _, _, _ := newTestHandler(t)
	pl.result.Session = nil

	rec := httptest.NewRecorder()
	h.Recommendations(rec, postJSON(t, "/api/v1/recommendations", validSubmission()))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rec.Code)
	}

	data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	if token, ok := data["token"]; ok && token != "" {
		t.Errorf("Expected no token without a session, got %v", token)
	}
}

// ---- random tracks ----

func TestRandomTracks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		query     string
		wantCount int
	}{
		{name: "default", query: "", wantCount: 5},
		{name: "explicit", query: "?count=3", wantCount: 3},
		{name: "zero_uses_default", query: "?count=0", wantCount: 5},
		{name: "negative_uses_default", query: "?count=-2", wantCount: 5},
		{name: "clamped_to_corpus", query: "?count=40", wantCount: 10},
		{name: "non_numeric_uses_default", query: "?count=abc", wantCount: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, _, _, _, _ := newTestHandler(t)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/tracks/random"+tt.query, nil)
			rec := httptest.NewRecorder()
			h.RandomTracks(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("Expected status %d, got %d", http.StatusOK, rec.Code)
			}

			data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
			tracks, ok := data["tracks"].([]interface{})
			if !ok {
				t.Fatalf("Expected tracks array, got %v", data["tracks"])
			}
			if len(tracks) != tt.wantCount {
				t.Errorf("Expected %d tracks, got %d", tt.wantCount, len(tracks))
			}
			if int(data["count"].(float64)) != tt.wantCount {
				t.Errorf("Expected count %d, got %v", tt.wantCount, data["count"])
			}
		})
	}
}

func TestRandomTracks_NoCaching(t *testing.T) {
	t.Parallel()

	h, _, _, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tracks/random", nil)
	rec := httptest.NewRecorder()
	h.RandomTracks(rec, req)

	if cc := rec.Header().Get("Cache-Control"); cc != "" {
		t.Errorf("Random sampling must not be cacheable, got Cache-Control %q", cc)
	}
}

// ---- status and health ----

func TestStatus(t *testing.T) {
	t.Parallel()

	h, _, sessions, _, _ := newTestHandler(t)
	sessions.activeFn = func(context.Context) (int, error) { return 7, nil }

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rec.Code)
	}

	data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	if data["status"] != "ok" {
		t.Errorf("Expected ok, got %v", data["status"])
	}
	if int(data["corpus_size"].(float64)) != 10 {
		t.Errorf("Expected corpus_size 10, got %v", data["corpus_size"])
	}
	if int(data["embedding_dim"].(float64)) != 128 {
		t.Errorf("Expected embedding_dim 128, got %v", data["embedding_dim"])
	}
	if int(data["active_sessions"].(float64)) != 7 {
		t.Errorf("Expected active_sessions 7, got %v", data["active_sessions"])
	}

	collaborators, ok := data["collaborators"].([]interface{})
	if !ok || len(collaborators) != 3 {
		t.Fatalf("Expected 3 collaborators, got %v", data["collaborators"])
	}
	for _, c := range collaborators {
		entry := c.(map[string]interface{})
		if entry["available"] != true {
			t.Errorf("Expected collaborator %v available", entry["name"])
		}
	}
}

func TestStatus_DegradedWhenCollaboratorMissing(t *testing.T) {
	t.Parallel()

	h, _, _, _, _ := newTestHandler(t)
	h.config.Synthesis.Endpoint = ""

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	if data["status"] != "degraded" {
		t.Errorf("Expected degraded, got %v", data["status"])
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	h, _, _, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rec.Code)
	}
	data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	if data["alive"] != true {
		t.Errorf("Expected alive true, got %v", data["alive"])
	}
}

// ---- analytics ----

func TestExperimentAnalytics(t *testing.T) {
	t.Parallel()

	h, _, _, _, analytics := newTestHandler(t)
	analytics.analytics = &results.Analytics{
		Effectiveness: results.Effectiveness{
			SessionsAnalyzed: 12,
			TotalChoices:     60,
			PreferenceRate:   0.65,
		},
		GeneratedAt: time.Now(),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/experiment/analytics", nil)
	rec := httptest.NewRecorder()
	h.ExperimentAnalytics(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if analytics.lastLimit != defaultDetailLimit {
		t.Errorf("Expected default limit %d, got %d", defaultDetailLimit, analytics.lastLimit)
	}

	data := decodeEnvelope(t, rec)["data"].(map[string]interface{})
	if int(data["sessions_analyzed"].(float64)) != 12 {
		t.Errorf("Expected sessions_analyzed 12, got %v", data["sessions_analyzed"])
	}
}

func TestExperimentAnalytics_LimitClamping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		query     string
		wantLimit int
	}{
		{name: "explicit", query: "?limit=50", wantLimit: 50},
		{name: "zero_uses_default", query: "?limit=0", wantLimit: defaultDetailLimit},
		{name: "above_max_clamped", query: "?limit=9999", wantLimit: maxDetailLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, _, _, _, analytics := newTestHandler(t)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/experiment/analytics"+tt.query, nil)
			rec := httptest.NewRecorder()
			h.ExperimentAnalytics(rec, req)

			if analytics.lastLimit != tt.wantLimit {
				t.Errorf("Expected limit %d, got %d", tt.wantLimit, analytics.lastLimit)
			}
		})
	}
}

func TestExperimentAnalytics_WarehouseUnavailable(t *testing.T) {
	t.Parallel()

	h, _, _, _, _ := newTestHandler(t)
	h.analytics = nil

	req := httptest.NewRequest(http.MethodGet, "/api/v1/experiment/analytics", nil)
	rec := httptest.NewRecorder()
	h.ExperimentAnalytics(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
}

func TestExperimentAnalytics_Cacheable(t *testing.T) {
	t.Parallel()

	h, _, _, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/experiment/analytics", nil)
	rec := httptest.NewRecorder()
	h.ExperimentAnalytics(rec, req)

	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=60" {
		t.Errorf("Expected cache headers on analytics, got %q", cc)
	}
	if rec.Header().Get("ETag") == "" {
		t.Error("Expected an ETag on analytics")
	}
}
