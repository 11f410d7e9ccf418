// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package events

import "errors"

// ErrNotBuilt is returned by constructors in binaries compiled without the
// nats build tag. Callers should treat it as "events permanently
// unavailable", not as a transient failure.
var ErrNotBuilt = errors.New("events not available: build with -tags=nats")
