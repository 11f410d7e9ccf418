// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package events publishes experiment lifecycle events to NATS JetStream
// using Watermill, and consumes completion events into the results
// warehouse.
//
// Two events flow through one stream:
//
//	experiment.choice.recorded    one per accepted blinded choice
//	experiment.session.completed  one per finished session, with snapshot
//
//	┌────────────────┐    ChoiceRecorded /    ┌─────────────────────┐
//	│ experiment.    │    SessionCompleted    │   NATS JetStream    │
//	│ Manager        │ ─────────────────────► │  SOMNUS_EXPERIMENT  │
//	└────────────────┘    (events.Service)    └──────────┬──────────┘
//	                                                     │
//	                                          ┌──────────▼──────────┐
//	                                          │   events.Consumer   │
//	                                          │ (results warehouse) │
//	                                          └─────────────────────┘
//
// When the stream is enabled the warehouse is a materialized view of the
// completion events: session.completed carries the full session snapshot,
// ingestion is idempotent on session id, and stream retention means a
// rebuilt warehouse can be repopulated by replaying the stream. Without
// NATS the in-process results.Recorder bridges the manager to the
// warehouse directly and this package is inert.
//
// # Build Tags
//
// The NATS server, Watermill publisher and consumer compile only with
// -tags=nats. Default builds get stubs whose constructors return
// ErrNotBuilt, keeping the heavy NATS dependency tree out of deployments
// that never enable events. Event payload types are untagged so any build
// can decode an exported stream.
//
// # Delivery Semantics
//
// Event IDs are deterministic (derived from session and pair ids) and are
// used as the Nats-Msg-Id, so republishing after a reconnect deduplicates
// inside the JetStream duplicate window. The consumer acks only after the
// warehouse transaction commits; redelivery after a crash re-runs an
// ingest that is a no-op for already-stored sessions.
package events
