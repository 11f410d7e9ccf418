// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package api implements the HTTP surface of the engine: the recommendation
// endpoint that runs the full pipeline, the blind-experiment session
// endpoints, cross-session analytics, the WebSocket progress feed, and the
// operational status/health/metrics routes.
//
// Every JSON endpoint answers with the same envelope:
//
//	{
//	  "status":   "success" | "error",
//	  "data":     <payload>,
//	  "metadata": {"timestamp": ..., "query_time_ms": ...},
//	  "error":    {"code": ..., "message": ...}
//	}
//
// Handlers translate domain sentinel errors (session lifecycle, collaborator
// failures, corpus exhaustion) into stable machine-readable error codes so
// the survey frontend can branch without parsing messages.
//
// Routing is chi. Cross-cutting request concerns (request IDs, metrics,
// compression, rate limiting, CORS, session-token auth) come from the
// middleware and auth packages; this package owns only handlers and route
// wiring.
package api
