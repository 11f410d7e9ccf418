// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package services wraps the engine's long-running components as
// suture.Service implementations for the supervision tree.
//
// Components that already expose Serve(ctx) error (progress hub, results
// recorder, event publisher and consumer) are wrapped only to give them a
// stable supervisor name. The HTTP server wrapper additionally translates
// net/http's blocking ListenAndServe into suture's context-driven lifecycle
// with graceful shutdown. The session sweeper owns its loop: it ticks and
// expires stale experiment sessions from the store.
//
// Wrappers depend on small local interfaces rather than the wrapped
// packages, so this package never imports the components it supervises.
package services
