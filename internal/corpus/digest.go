// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package corpus

import (
	"encoding/binary"
	"encoding/hex"
	"math"

	"golang.org/x/crypto/blake2b"

	"github.com/tomtom215/somnus/internal/ranker"
)

// Digest returns the BLAKE2b-256 hex digest of data. The offline encoding
// tool writes these into the manifest and sidecar; the pipeline also digests
// each reference clip so a run can be tied to the exact audio it ranked with.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// vectorBytes is the canonical byte encoding of a vector for digesting:
// little-endian IEEE 754 float32s in order.
func vectorBytes(v ranker.Vector) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}
