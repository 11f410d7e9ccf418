// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

/*
Package models defines the wire-level data structures of the Somnus API.

This package contains the standardized response envelope and the view types
serialized to clients. It is a leaf package: domain packages (form, analysis,
experiment, ranker) own their internal representations, and the API layer
converts them into these views.

Key Components:

  - APIResponse / APIError / Metadata: Standard response envelope
  - TrackView / PairView / SessionView: Blinded experiment payloads
  - ResultPairView / SessionResultsView: Unblinded post-completion record
  - SubmitChoiceRequest: Choice submission body with instrumentation
  - StatusView: Service status payload

Blinding Contract:

PairView and SessionView intentionally carry no recommended-position field.
The recommended/control assignment of a pair exists only in the internal
experiment record and in ResultPairView, which is serialized exclusively for
sessions that have completed. Tests in this package pin that contract at the
serialization level.

Design Principles:

  - snake_case JSON tags across the entire wire surface
  - Views are plain structs with no behavior; conversion lives in the API layer
  - omitempty only where absence is meaningful (optional display metadata)
*/
package models
