// Somnus - Sleep Music Recommendation and Listening Experiment Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/somnus

// Package pipeline orchestrates one recommendation run: questionnaire
// analysis, instruction synthesis, reference-audio generation, embedding,
// similarity ranking, and construction of the blind comparison session.
//
// A run is request-scoped. The three analysis agents fan out inside the
// analyzer; every other stage is strictly sequential because each consumes
// the full output of the previous one. Stage failures abort the run and
// surface one typed error; partial results are discarded, never persisted
// as if complete. The shared corpus is read-only, so any number of runs may
// execute concurrently.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/somnus/internal/analysis"
	"github.com/tomtom215/somnus/internal/config"
	"github.com/tomtom215/somnus/internal/corpus"
	"github.com/tomtom215/somnus/internal/embedding"
	"github.com/tomtom215/somnus/internal/experiment"
	"github.com/tomtom215/somnus/internal/form"
	"github.com/tomtom215/somnus/internal/llm"
	"github.com/tomtom215/somnus/internal/logging"
	"github.com/tomtom215/somnus/internal/metrics"
	"github.com/tomtom215/somnus/internal/ranker"
	"github.com/tomtom215/somnus/internal/synthesis"
	"github.com/tomtom215/somnus/internal/validation"
)

// Pipeline stage names, as reported in metrics and progress events.
const (
	StageAnalysis    = "analysis"
	StageInstruction = "instruction"
	StageSynthesis   = "synthesis"
	StageEmbedding   = "embedding"
	StageRanking     = "ranking"
	StageExperiment  = "experiment"
)

const defaultTopK = 5

// Analyzer produces the integrated requirement for a questionnaire.
type Analyzer interface {
	Analyze(ctx context.Context, sub form.FormSubmission) (analysis.IntegratedRequirement, error)
}

// InstructionGenerator produces the generation instruction for an
// integrated requirement.
type InstructionGenerator interface {
	Generate(ctx context.Context, req analysis.IntegratedRequirement) (string, error)
}

var (
	_ Analyzer             = (*analysis.Analyzer)(nil)
	_ InstructionGenerator = (*analysis.InstructionAgent)(nil)
)

// Deps are the pipeline's collaborators.
type Deps struct {
	Analyzer    Analyzer
	Instruction InstructionGenerator
	Synthesizer synthesis.Synthesizer
	Embedder    embedding.Embedder
	Corpus      *corpus.Store
	Experiments *experiment.Manager
}

// Pipeline runs recommendation requests end to end.
type Pipeline struct {
	analyzer    Analyzer
	instruction InstructionGenerator
	synthesizer synthesis.Synthesizer
	embedder    embedding.Embedder
	corpus      *corpus.Store
	experiments *experiment.Manager

	topK       int
	runTimeout time.Duration

	progress ProgressSink
}

// New creates a Pipeline from configuration and collaborators.
func New(cfg config.PipelineConfig, deps Deps) *Pipeline {
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	return &Pipeline{
		analyzer:    deps.Analyzer,
		instruction: deps.Instruction,
		synthesizer: deps.Synthesizer,
		embedder:    deps.Embedder,
		corpus:      deps.Corpus,
		experiments: deps.Experiments,
		topK:        topK,
		runTimeout:  cfg.RunTimeout,
	}
}

// SetProgressSink installs a progress event consumer. Pass nil to disable.
func (p *Pipeline) SetProgressSink(sink ProgressSink) {
	p.progress = sink
}

// TopK returns the configured recommendation list size.
func (p *Pipeline) TopK() int {
	return p.topK
}

// Run executes one recommendation run for a questionnaire submission.
//
// On success the result carries the ranked recommendations and, unless the
// corpus was degenerate, the blind comparison session built from them. An
// empty corpus or all-zero-norm embeddings rank to an empty list, which is
// a valid (if unhelpful) outcome, not an error.
func (p *Pipeline) Run(ctx context.Context, sub form.FormSubmission) (*Result, error) {
	start := time.Now()

	sub = sub.Normalized()
	if err := sub.Validate(); err != nil {
		metrics.RecordPipelineRun("validation_error", time.Since(start))
		return nil, fmt.Errorf("form validation: %w", err)
	}

	if p.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.runTimeout)
		defer cancel()
	}

	runID := uuid.New().String()
	metrics.PipelineActiveRuns.Inc()
	defer metrics.PipelineActiveRuns.Dec()

	logging.Info().
		Str("run_id", runID).
		Str("user_id", sub.UserID).
		Msg("Pipeline run started")
	p.publish(ProgressEvent{RunID: runID, Stage: StageRun, Status: ProgressStarted, Time: time.Now()})

	result := &Result{RunID: runID}

	// Analysis: three agents fan out over disjoint questionnaire subsets
	// and merge at a barrier.
	done := p.stageStart(runID, StageAnalysis)
	requirement, err := p.analyzer.Analyze(ctx, sub)
	done(err)
	if err != nil {
		return nil, p.fail(runID, StageAnalysis, start, err)
	}
	result.Requirement = requirement

	done = p.stageStart(runID, StageInstruction)
	instruction, err := p.instruction.Generate(ctx, requirement)
	done(err)
	if err != nil {
		return nil, p.fail(runID, StageInstruction, start, err)
	}
	result.Instruction = instruction

	done = p.stageStart(runID, StageSynthesis)
	clip, err := p.synthesizer.Synthesize(ctx, instruction, 0) // 0 = service duration ceiling
	done(err)
	if err != nil {
		return nil, p.fail(runID, StageSynthesis, start, err)
	}
	result.ReferenceDigest = corpus.Digest(clip.Data)

	done = p.stageStart(runID, StageEmbedding)
	vector, err := p.embedder.Embed(ctx, clip)
	done(err)
	if err != nil {
		return nil, p.fail(runID, StageEmbedding, start, err)
	}

	done = p.stageStart(runID, StageRanking)
	rankStart := time.Now()
	ranked := ranker.Rank(ranker.Vector(vector), p.corpus.Candidates(), p.topK)
	metrics.RankingDuration.Observe(time.Since(rankStart).Seconds())
	result.Recommendations = p.buildRecommendations(ranked, requirement)
	done(nil)

	if len(result.Recommendations) == 0 {
		logging.Warn().
			Str("run_id", runID).
			Int("corpus_size", p.corpus.Size()).
			Msg("Ranking produced no candidates; run completes without an experiment session")
	} else {
		done = p.stageStart(runID, StageExperiment)
		session, err := p.experiments.CreateSession(ctx, experiment.CreateParams{
			UserID:          sub.UserID,
			Form:            sub,
			Recommended:     result.RecommendedTracks(),
			RunID:           runID,
			ReferenceDigest: result.ReferenceDigest,
		})
		done(err)
		if err != nil {
			return nil, p.fail(runID, StageExperiment, start, err)
		}
		result.Session = session
	}

	result.Elapsed = time.Since(start)
	metrics.RecordPipelineRun("success", result.Elapsed)
	p.publish(ProgressEvent{
		RunID:   runID,
		Stage:   StageRun,
		Status:  ProgressCompleted,
		Elapsed: result.Elapsed.Seconds(),
		Time:    time.Now(),
	})
	logging.Info().
		Str("run_id", runID).
		Int("recommendations", len(result.Recommendations)).
		Dur("elapsed", result.Elapsed).
		Msg("Pipeline run completed")

	return result, nil
}

// buildRecommendations resolves ranked candidates to corpus tracks and
// attaches reason strings.
func (p *Pipeline) buildRecommendations(ranked []ranker.Ranked, req analysis.IntegratedRequirement) []Recommendation {
	recs := make([]Recommendation, 0, len(ranked))
	for _, r := range ranked {
		track, ok := p.corpus.Track(r.TrackID)
		if !ok {
			// Candidates come from the corpus, so a miss means the store
			// changed under us, which it never should.
			logging.Error().Str("track_id", r.TrackID).Msg("Ranked track missing from corpus")
			continue
		}
		recs = append(recs, Recommendation{
			Track:  track,
			Score:  r.Score,
			Rank:   r.Rank,
			Reason: reason(r.Rank, r.Score, req),
		})
	}
	return recs
}

// stageStart emits the started event and returns the completion callback
// that records the stage metric and the completed/failed event.
func (p *Pipeline) stageStart(runID, stage string) func(error) {
	p.publish(ProgressEvent{RunID: runID, Stage: stage, Status: ProgressStarted, Time: time.Now()})
	start := time.Now()

	return func(err error) {
		elapsed := time.Since(start)
		metrics.RecordPipelineStage(stage, elapsed)

		event := ProgressEvent{
			RunID:   runID,
			Stage:   stage,
			Status:  ProgressCompleted,
			Elapsed: elapsed.Seconds(),
			Time:    time.Now(),
		}
		if err != nil {
			event.Status = ProgressFailed
			event.Error = err.Error()
		}
		p.publish(event)
	}
}

func (p *Pipeline) fail(runID, stage string, start time.Time, err error) error {
	elapsed := time.Since(start)
	metrics.RecordPipelineRun(outcome(err), elapsed)
	p.publish(ProgressEvent{
		RunID:   runID,
		Stage:   StageRun,
		Status:  ProgressFailed,
		Elapsed: elapsed.Seconds(),
		Error:   err.Error(),
		Time:    time.Now(),
	})
	logging.Err(err).
		Str("run_id", runID).
		Str("stage", stage).
		Dur("elapsed", elapsed).
		Msg("Pipeline run failed")

	return fmt.Errorf("%s stage: %w", stage, err)
}

func (p *Pipeline) publish(event ProgressEvent) {
	if p.progress != nil {
		p.progress.Publish(event)
	}
}

// outcome classifies a run error for the pipeline_runs_total metric.
func outcome(err error) string {
	var invalid *validation.RequestValidationError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, analysis.ErrMissingField), errors.As(err, &invalid):
		return "validation_error"
	case errors.Is(err, synthesis.ErrGeneration):
		return "generation_error"
	case errors.Is(err, llm.ErrUpstream), errors.Is(err, embedding.ErrUpstream):
		return "upstream_error"
	default:
		return "internal_error"
	}
}
