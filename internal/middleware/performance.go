// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package middleware

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/somnus/internal/logging"
)

// RequestMetrics is one observed request.
type RequestMetrics struct {
	Path       string
	Method     string
	DurationMS int64
	StatusCode int
	Timestamp  time.Time
}

// PerformanceMonitor keeps a sliding window of request timings and flags
// slow requests. Pipeline runs legitimately take tens of seconds while the
// collaborators synthesize and embed, so the slow threshold is configurable
// instead of assuming sub-second handlers.
type PerformanceMonitor struct {
	mu            sync.RWMutex
	metrics       []RequestMetrics
	maxMetrics    int
	slowThreshold time.Duration
}

// EndpointStats aggregates one endpoint's observations.
type EndpointStats struct {
	Path         string
	RequestCount int64
	AvgDuration  float64
	P50Duration  int64
	P95Duration  int64
	P99Duration  int64
	MinDuration  int64
	MaxDuration  int64
}

// NewPerformanceMonitor creates a monitor keeping at most maxMetrics
// observations. A zero slowThreshold defaults to one second.
func NewPerformanceMonitor(maxMetrics int, slowThreshold time.Duration) *PerformanceMonitor {
	if slowThreshold <= 0 {
		slowThreshold = time.Second
	}
	return &PerformanceMonitor{
		metrics:       make([]RequestMetrics, 0, maxMetrics),
		maxMetrics:    maxMetrics,
		slowThreshold: slowThreshold,
	}
}

// RecordRequest adds an observation to the sliding window.
func (pm *PerformanceMonitor) RecordRequest(metric *RequestMetrics) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.metrics = append(pm.metrics, *metric)
	if len(pm.metrics) > pm.maxMetrics {
		pm.metrics = pm.metrics[1:]
	}
}

// GetStats aggregates the current window per endpoint, ordered by request
// count descending.
func (pm *PerformanceMonitor) GetStats() []EndpointStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	endpointMetrics := make(map[string][]int64)
	for _, m := range pm.metrics {
		key := m.Method + " " + m.Path
		endpointMetrics[key] = append(endpointMetrics[key], m.DurationMS)
	}

	stats := make([]EndpointStats, 0, len(endpointMetrics))
	for endpoint, durations := range endpointMetrics {
		if len(durations) == 0 {
			continue
		}

		sorted := make([]int64, len(durations))
		copy(sorted, durations)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, d := range sorted {
			sum += d
		}

		stats = append(stats, EndpointStats{
			Path:         endpoint,
			RequestCount: int64(len(sorted)),
			AvgDuration:  float64(sum) / float64(len(sorted)),
			P50Duration:  percentile(sorted, 0.50),
			P95Duration:  percentile(sorted, 0.95),
			P99Duration:  percentile(sorted, 0.99),
			MinDuration:  sorted[0],
			MaxDuration:  sorted[len(sorted)-1],
		})
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].RequestCount > stats[j].RequestCount
	})

	return stats
}

// GetRecentMetrics returns the most recent n observations.
func (pm *PerformanceMonitor) GetRecentMetrics(n int) []RequestMetrics {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if n > len(pm.metrics) {
		n = len(pm.metrics)
	}

	recent := make([]RequestMetrics, n)
	copy(recent, pm.metrics[len(pm.metrics)-n:])
	return recent
}

// Middleware records each request and warns when one exceeds the slow
// threshold.
func (pm *PerformanceMonitor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapper, r)

		elapsed := time.Since(start)
		pm.RecordRequest(&RequestMetrics{
			Path:       r.URL.Path,
			Method:     r.Method,
			DurationMS: elapsed.Milliseconds(),
			StatusCode: wrapper.statusCode,
			Timestamp:  time.Now(),
		})

		if elapsed > pm.slowThreshold {
			logging.Warn().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int64("duration_ms", elapsed.Milliseconds()).
				Int64("threshold_ms", pm.slowThreshold.Milliseconds()).
				Msg("Slow request detected")
		}
	})
}

// percentile picks the percentile value from a sorted slice.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	index := int(float64(len(sorted)-1) * p)
	return sorted[index]
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
