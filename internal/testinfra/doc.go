// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package testinfra provides shared infrastructure for integration tests.
//
// All of it is behind the integration build tag; unit tests never pay for
// Docker or network setup.
//
// # NATS Container
//
// NATSContainer runs a real NATS server with JetStream enabled, for tests
// that exercise the event fabric end to end:
//
//	func TestEventRoundTrip(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    nats, err := testinfra.NewNATSContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, nats.Container)
//
//	    // Point the events service at nats.URL
//	}
//
// # Collaborator Server
//
// CollaboratorServer is an httptest-backed stand-in for the three upstream
// collaborators (narrative analysis, music generation, audio embedding).
// It captures every request and answers from a per-path response table, so
// a pipeline test can run against real HTTP clients and then assert what
// went over the wire.
package testinfra
