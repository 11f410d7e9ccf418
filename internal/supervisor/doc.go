// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package supervisor builds the suture supervision tree that keeps the
// engine's long-running services alive.
//
// The tree has three layers with failure isolation between them:
//
//   - data: the results recorder draining completed sessions into the
//     warehouse, and the session sweeper expiring stale experiment state.
//   - messaging: the progress hub fanning pipeline events out to WebSocket
//     subscribers, and the event publisher/consumer pair when the NATS
//     build is enabled.
//   - api: the HTTP server.
//
// A crash loop in the messaging layer restarts only that layer's services;
// the API keeps serving recommendations, and a crashing HTTP server never
// tears down warehouse ingestion.
//
// Supervisor lifecycle events are logged through zerolog via the
// logging.NewSlogLogger adapter, since sutureslog speaks slog.
package supervisor
