// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package form defines the sleep questionnaire submission and its closed
// answer vocabulary. Answer values carry the original Traditional-Chinese
// survey wording; they are treated as opaque enum tokens everywhere else
// in the pipeline.
//
// A submission is immutable once validated. The three analysis agents each
// consume a disjoint subset of its fields, exposed via StateInput,
// EmotionInput and PreferenceInput.
package form

import (
	"strings"

	"github.com/tomtom215/somnus/internal/validation"
)

// Stress level answers (stress_level).
const (
	StressNone     = "無壓力"
	StressSlight   = "稍微有點壓力"
	StressModerate = "中度壓力"
	StressHigh     = "高度壓力"
	StressExtreme  = "極度壓力"
)

// Physical symptom answers (physical_symptoms). SymptomNone is the explicit
// "no symptoms" answer and is filtered out by ReportedSymptoms.
const (
	SymptomRacingHeart  = "心跳加速"
	SymptomTenseMuscles = "肌肉緊繃"
	SymptomHeadache     = "頭痛"
	SymptomShortBreath  = "呼吸急促"
	SymptomInsomnia     = "失眠"
	SymptomNone         = "無"
)

// Emotional state answers (emotional_state).
const (
	EmotionCalm      = "平靜"
	EmotionAnxious   = "焦慮"
	EmotionDepressed = "憂鬱"
	EmotionExcited   = "興奮"
	EmotionExhausted = "疲憊"
	EmotionIrritable = "煩躁"
)

// Sleep goal answers (sleep_goal).
const (
	GoalFallAsleepFast = "快速入眠"
	GoalStayAsleep     = "維持整夜好眠"
	GoalImproveQuality = "改善睡眠品質"
	GoalRelax          = "放鬆身心"
)

// Sound preference answers (sound_preferences).
const (
	SoundNature     = "自然聲音"
	SoundWhiteNoise = "白噪音"
	SoundInstrument = "樂器演奏"
	SoundElectronic = "電子音樂"
	SoundVocal      = "人聲吟唱"
)

// Rhythm preference answers (rhythm_preference).
const (
	RhythmUltraSlow    = "超慢（冥想般，幾乎無節奏）"
	RhythmSlowSteady   = "緩慢穩定（放鬆心跳）"
	RhythmMedium       = "中等節奏"
	RhythmNoPreference = "無偏好"
)

// Sound sensitivity answers (sound_sensitivities). Every selected value
// except SensitivityNone becomes a hard must-avoid constraint downstream.
const (
	SensitivityHighFreq = "高頻聲音"
	SensitivityLowFreq  = "低頻聲音"
	SensitivitySudden   = "突然的聲音變化"
	SensitivityVocals   = "人聲"
	SensitivityNone     = "無特別敏感"
)

// Playback mode answers (playback_mode).
const (
	PlaybackLoop         = "循環播放"
	PlaybackFadeOut      = "逐漸淡出（10~20分鐘入睡）"
	PlaybackTimedStop    = "定時關閉"
	PlaybackNoPreference = "無偏好"
)

// Guided voice answers (guided_voice).
const (
	GuidedVoiceYes = "是，需要引導冥想"
	GuidedVoiceNo  = "否，只需要純音樂"
)

// Sleep theme answers (sleep_theme). ThemeAuto delegates theme selection
// to the recommendation pipeline.
const (
	ThemeCalmWater = "平靜如水（穩定神經）"
	ThemeForest    = "森林自然（回歸原始）"
	ThemeCosmos    = "宇宙深邃（無限想像）"
	ThemeEmbrace   = "溫暖懷抱（安全感）"
	ThemeAuto      = "AI自動推薦"
)

// FormSubmission is one completed sleep questionnaire. Wire names follow
// the original survey payload; set-valued answers arrive as JSON arrays.
//
// The struct is immutable after Normalized/Validate: downstream stages
// receive copies of the relevant field subsets, never the submission
// itself.
type FormSubmission struct {
	// UserID identifies the participant (email address).
	UserID string `json:"user_id" validate:"required,email"`

	// StressLevel is the self-reported stress answer.
	StressLevel string `json:"stress_level" validate:"required,oneof=無壓力 稍微有點壓力 中度壓力 高度壓力 極度壓力"`

	// PhysicalSymptoms is the set of reported physical symptoms.
	PhysicalSymptoms []string `json:"physical_symptoms" validate:"omitempty,dive,oneof=心跳加速 肌肉緊繃 頭痛 呼吸急促 失眠 無"`

	// EmotionalState is the dominant self-reported emotion.
	EmotionalState string `json:"emotional_state" validate:"required,oneof=平靜 焦慮 憂鬱 興奮 疲憊 煩躁"`

	// SleepGoal is what the participant wants the music to achieve.
	SleepGoal string `json:"sleep_goal" validate:"required,oneof=快速入眠 維持整夜好眠 改善睡眠品質 放鬆身心"`

	// SoundPreferences is the set of preferred sound categories.
	SoundPreferences []string `json:"sound_preferences" validate:"omitempty,dive,oneof=自然聲音 白噪音 樂器演奏 電子音樂 人聲吟唱"`

	// RhythmPreference is the preferred tempo character.
	RhythmPreference string `json:"rhythm_preference" validate:"omitempty,oneof=超慢（冥想般，幾乎無節奏） 緩慢穩定（放鬆心跳） 中等節奏 無偏好"`

	// SoundSensitivities is the set of sounds the participant cannot
	// tolerate. Each selected value except SensitivityNone is a hard
	// constraint for the generated music.
	SoundSensitivities []string `json:"sound_sensitivities" validate:"omitempty,dive,oneof=高頻聲音 低頻聲音 突然的聲音變化 人聲 無特別敏感"`

	// PlaybackMode is the desired playback behavior.
	PlaybackMode string `json:"playback_mode" validate:"omitempty,oneof=循環播放 逐漸淡出（10~20分鐘入睡） 定時關閉 無偏好"`

	// GuidedVoice selects between guided meditation and pure music.
	GuidedVoice string `json:"guided_voice" validate:"omitempty,oneof=是，需要引導冥想 否，只需要純音樂"`

	// SleepTheme is the requested atmosphere, or ThemeAuto.
	SleepTheme string `json:"sleep_theme" validate:"required,oneof=平靜如水（穩定神經） 森林自然（回歸原始） 宇宙深邃（無限想像） 溫暖懷抱（安全感） AI自動推薦"`
}

// Normalized returns a copy with surrounding whitespace stripped from every
// answer and empty entries removed from set-valued answers. Survey clients
// occasionally pad values or send empty strings for unchecked boxes.
func (f FormSubmission) Normalized() FormSubmission {
	out := f
	out.UserID = strings.TrimSpace(f.UserID)
	out.StressLevel = strings.TrimSpace(f.StressLevel)
	out.EmotionalState = strings.TrimSpace(f.EmotionalState)
	out.SleepGoal = strings.TrimSpace(f.SleepGoal)
	out.RhythmPreference = strings.TrimSpace(f.RhythmPreference)
	out.PlaybackMode = strings.TrimSpace(f.PlaybackMode)
	out.GuidedVoice = strings.TrimSpace(f.GuidedVoice)
	out.SleepTheme = strings.TrimSpace(f.SleepTheme)
	out.PhysicalSymptoms = normalizeSet(f.PhysicalSymptoms)
	out.SoundPreferences = normalizeSet(f.SoundPreferences)
	out.SoundSensitivities = normalizeSet(f.SoundSensitivities)

	return out
}

// normalizeSet trims each entry, drops empties, and removes duplicates
// while preserving first-seen order.
func normalizeSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	if len(out) == 0 {
		return nil
	}

	return out
}

// Validate checks the submission against the survey vocabulary. An unknown
// answer value or a missing required field fails validation.
func (f *FormSubmission) Validate() error {
	if err := validation.ValidateStruct(f); err != nil {
		return err
	}

	return nil
}

// ReportedSymptoms returns the physical symptoms with the explicit "none"
// answer filtered out. An empty result means no symptoms were reported.
func (f *FormSubmission) ReportedSymptoms() []string {
	return without(f.PhysicalSymptoms, SymptomNone)
}

// MustAvoid returns the sound sensitivities that act as hard constraints,
// excluding the explicit "no sensitivities" answer.
func (f *FormSubmission) MustAvoid() []string {
	return without(f.SoundSensitivities, SensitivityNone)
}

// WantsGuidedVoice reports whether the participant asked for guided
// meditation narration.
func (f *FormSubmission) WantsGuidedVoice() bool {
	return f.GuidedVoice == GuidedVoiceYes
}

// AutoTheme reports whether theme selection is delegated to the pipeline.
func (f *FormSubmission) AutoTheme() bool {
	return f.SleepTheme == ThemeAuto
}

// without returns values minus every occurrence of excluded. The input
// slice is never mutated.
func without(values []string, excluded string) []string {
	if len(values) == 0 {
		return nil
	}

	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != excluded {
			out = append(out, v)
		}
	}

	if len(out) == 0 {
		return nil
	}

	return out
}

// StateFields is the field subset consumed by the physiological state
// agent.
type StateFields struct {
	StressLevel      string
	PhysicalSymptoms []string
}

// EmotionFields is the field subset consumed by the emotion recognition
// agent.
type EmotionFields struct {
	EmotionalState string
	SleepGoal      string
}

// PreferenceFields is the field subset consumed by the sound preference
// agent.
type PreferenceFields struct {
	SoundPreferences   []string
	RhythmPreference   string
	SoundSensitivities []string
	SleepTheme         string
}

// StateInput extracts the state agent's field subset.
func (f *FormSubmission) StateInput() StateFields {
	return StateFields{
		StressLevel:      f.StressLevel,
		PhysicalSymptoms: append([]string(nil), f.PhysicalSymptoms...),
	}
}

// EmotionInput extracts the emotion agent's field subset.
func (f *FormSubmission) EmotionInput() EmotionFields {
	return EmotionFields{
		EmotionalState: f.EmotionalState,
		SleepGoal:      f.SleepGoal,
	}
}

// PreferenceInput extracts the preference agent's field subset.
func (f *FormSubmission) PreferenceInput() PreferenceFields {
	return PreferenceFields{
		SoundPreferences:   append([]string(nil), f.SoundPreferences...),
		RhythmPreference:   f.RhythmPreference,
		SoundSensitivities: append([]string(nil), f.SoundSensitivities...),
		SleepTheme:         f.SleepTheme,
	}
}
