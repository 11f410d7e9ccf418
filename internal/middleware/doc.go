// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package middleware provides cross-cutting HTTP concerns for the API
// router: request IDs for tracing, Prometheus request instrumentation,
// a sliding-window performance monitor with slow-request logging, and
// pooled gzip compression.
//
// Authentication, rate limiting and CORS live in internal/auth; this
// package holds only concerns that apply identically to every route.
package middleware
