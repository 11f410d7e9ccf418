// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package analysis

import (
	"reflect"
	"testing"
)

func TestParseFields(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]string
	}{
		{
			name: "typical agent response",
			text: "Stress Assessment: high\nUrgency Level: medium\nPhysical State Summary: Racing heart with insomnia.",
			want: map[string]string{
				"stress assessment":      "high",
				"urgency level":          "medium",
				"physical state summary": "Racing heart with insomnia.",
			},
		},
		{
			name: "keeps colons after the first",
			text: "Preference Matrix: ambient:0.8, classical:0.7",
			want: map[string]string{"preference matrix": "ambient:0.8, classical:0.7"},
		},
		{
			name: "first occurrence wins",
			text: "Target Mood: calm\nTarget Mood: serene",
			want: map[string]string{"target mood": "calm"},
		},
		{
			name: "ignores prose and blank lines",
			text: "Here is my analysis.\n\nUrgency Level: low\nHope this helps!",
			want: map[string]string{"urgency level": "low"},
		},
		{
			name: "strips bullet prefix",
			text: "- Primary Emotion: anxious",
			want: map[string]string{"primary emotion": "anxious"},
		},
		{
			name: "empty value dropped",
			text: "Recommendations:\nTarget Mood: calm",
			want: map[string]string{"target mood": "calm"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseFields(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseFields() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseList(t *testing.T) {
	fallback := []string{"ambient", "classical"}

	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"plain list", "piano, strings, flute", []string{"piano", "strings", "flute"}},
		{"extra whitespace", "  piano ,  strings  ", []string{"piano", "strings"}},
		{"empty value falls back", "", fallback},
		{"only commas falls back", ", ,", fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseList(tt.value, fallback); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseList(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseWeights(t *testing.T) {
	fallback := map[string]float64{"ambient": 0.8}

	tests := []struct {
		name  string
		value string
		want  map[string]float64
	}{
		{
			name:  "typical matrix",
			value: "ambient:0.8, classical:0.7",
			want:  map[string]float64{"ambient": 0.8, "classical": 0.7},
		},
		{
			name:  "clamps out of range",
			value: "ambient:1.7, noise:-0.2",
			want:  map[string]float64{"ambient": 1, "noise": 0},
		},
		{
			name:  "skips malformed entries",
			value: "ambient:0.8, broken, nature:abc",
			want:  map[string]float64{"ambient": 0.8},
		},
		{
			name:  "empty falls back",
			value: "",
			want:  fallback,
		},
		{
			name:  "all malformed falls back",
			value: "nonsense, more nonsense",
			want:  fallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseWeights(tt.value, fallback); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseWeights(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
