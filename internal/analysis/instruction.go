// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/somnus/internal/llm"
	"github.com/tomtom215/somnus/internal/logging"
)

// Generation instruction length budget. Instructions shorter than the
// floor are replaced by the deterministic fallback; instructions longer
// than the cap are truncated at a word boundary. The model is asked to
// stay under the target.
const (
	instructionMinLen = 10
	instructionTarget = 150
	instructionMaxLen = 200

	// wordBoundaryFloor is how far back truncation will look for a
	// space before giving up and cutting mid-word.
	wordBoundaryFloor = 160
)

// FallbackInstruction is the deterministic instruction substituted when
// composition yields something below the length floor. It is never empty
// and always safe for sleep.
const FallbackInstruction = "ambient music, slow tempo, peaceful, relaxing"

const instructionSystemPrompt = `You are a music generation prompt engineer. Produce a single English text-to-music prompt for sleep music. Answer with exactly one line starting with "MusicGen Prompt:".`

// InstructionAgent turns an integrated requirement into a bounded
// generation instruction.
type InstructionAgent struct {
	client llm.Client
}

// NewInstructionAgent creates the instruction synthesis agent.
func NewInstructionAgent(client llm.Client) *InstructionAgent {
	return &InstructionAgent{client: client}
}

// Generate produces the generation instruction for the requirement.
//
// The model is tried first; if it fails or returns nothing usable, the
// instruction is composed deterministically from the final spec. Either
// way the closed length budget is enforced, so the result is never
// empty and never exceeds the cap. Only caller cancellation aborts.
func (a *InstructionAgent) Generate(ctx context.Context, req IntegratedRequirement) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	instruction := ""

	resp, err := a.client.Complete(ctx, llm.Request{
		System: instructionSystemPrompt,
		Prompt: buildInstructionPrompt(req),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		logging.Warn().Err(err).Msg("Instruction model call failed, composing from final spec")
	} else {
		instruction = parseInstruction(resp)
	}

	if instruction == "" {
		instruction = ComposeInstruction(req.FinalSpec)
	}

	return EnforceBudget(instruction), nil
}

// buildInstructionPrompt renders the requirement for the model.
func buildInstructionPrompt(req IntegratedRequirement) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Requirement: %s\n", req.UnifiedRequirements)
	fmt.Fprintf(&b, "Genre: %s\nTempo: %s\nMood: %s\n", req.FinalSpec.Genre, req.FinalSpec.Tempo, req.FinalSpec.Mood)
	if len(req.FinalSpec.Instruments) > 0 {
		fmt.Fprintf(&b, "Instruments: %s\n", strings.Join(req.FinalSpec.Instruments, ", "))
	}
	if len(req.HardConstraints) > 0 {
		fmt.Fprintf(&b, "Must avoid: %s\n", strings.Join(req.HardConstraints, ", "))
	}
	fmt.Fprintf(&b, "\nKeep the prompt under %d characters. Respond with one line:\nMusicGen Prompt: <the prompt>", instructionTarget)

	return b.String()
}

// parseInstruction extracts the prompt line from the model response.
// Falls back to the whole trimmed response when the line is missing but
// the response looks like a bare prompt (single line, no field markers).
func parseInstruction(resp string) string {
	if v, ok := parseFields(resp)["musicgen prompt"]; ok {
		return v
	}

	trimmed := strings.TrimSpace(resp)
	if trimmed != "" && !strings.Contains(trimmed, "\n") && !strings.Contains(trimmed, ":") {
		return trimmed
	}

	return ""
}

// ComposeInstruction builds the deterministic instruction from a final
// spec: genre, up to two instruments, tempo, mood, then the fixed sleep
// qualities.
func ComposeInstruction(spec FinalSpec) string {
	instruments := spec.Instruments
	if len(instruments) > 2 {
		instruments = instruments[:2]
	}

	parts := make([]string, 0, 5)
	if len(instruments) > 0 {
		parts = append(parts, fmt.Sprintf("%s %s", spec.Genre, strings.Join(instruments, " and ")))
	} else {
		parts = append(parts, spec.Genre)
	}
	parts = append(parts, spec.Tempo, spec.Mood, "soft", "peaceful")

	return strings.Join(parts, ", ")
}

// EnforceBudget applies the closed length budget: below the floor the
// deterministic fallback is substituted; above the cap the instruction
// is truncated, at the last space past the word-boundary floor when one
// exists. Lengths are measured in runes.
func EnforceBudget(instruction string) string {
	instruction = strings.TrimSpace(instruction)

	runes := []rune(instruction)
	if len(runes) < instructionMinLen {
		return FallbackInstruction
	}

	if len(runes) <= instructionMaxLen {
		return instruction
	}

	truncated := runes[:instructionMaxLen]
	if idx := lastSpace(truncated); idx > wordBoundaryFloor {
		truncated = truncated[:idx]
	}

	return strings.TrimSpace(string(truncated))
}

// lastSpace returns the index of the last space rune, or -1.
func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}
