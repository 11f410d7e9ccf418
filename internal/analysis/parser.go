// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package analysis

import (
	"strconv"
	"strings"
)

// parseFields extracts "Key: value" lines from a model response into a
// map keyed by lowercased field name. Lines without a colon are ignored;
// the first occurrence of a key wins. Values keep any colons after the
// first ("Preference Matrix: ambient:0.8" parses intact).
func parseFields(text string) map[string]string {
	fields := make(map[string]string)

	for _, line := range strings.Split(text, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}

		key = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(key), "-")))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}

		if _, exists := fields[key]; !exists {
			fields[key] = value
		}
	}

	return fields
}

// fieldOrDefault returns the field value for key, or fallback when the
// model omitted it.
func fieldOrDefault(fields map[string]string, key, fallback string) string {
	if v, ok := fields[key]; ok {
		return v
	}
	return fallback
}

// parseList splits a comma-separated value into trimmed entries,
// dropping empties. Returns fallback when no entries survive.
func parseList(value string, fallback []string) []string {
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	if len(out) == 0 {
		return fallback
	}

	return out
}

// parseWeights parses a "name:weight, name:weight" matrix. Weights are
// clamped to [0,1]; malformed entries are skipped. Returns fallback when
// nothing parses.
func parseWeights(value string, fallback map[string]float64) map[string]float64 {
	if value == "" {
		return fallback
	}

	out := make(map[string]float64)
	for _, entry := range strings.Split(value, ",") {
		name, weight, found := strings.Cut(entry, ":")
		if !found {
			continue
		}

		name = strings.TrimSpace(name)
		w, err := strconv.ParseFloat(strings.TrimSpace(weight), 64)
		if name == "" || err != nil {
			continue
		}

		if w < 0 {
			w = 0
		} else if w > 1 {
			w = 1
		}
		out[name] = w
	}

	if len(out) == 0 {
		return fallback
	}

	return out
}
