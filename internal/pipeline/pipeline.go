/*-------------------------------------------------------------------------
 *
 * mcp-sqlify Text-to-SQL Agent
 *
 * Copyright (c) 2025, the mcp-sqlify authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"mcp-sqlify/internal/executor"
	"mcp-sqlify/internal/generate"
	"mcp-sqlify/internal/logging"
	"mcp-sqlify/internal/nlu"
	"mcp-sqlify/internal/schema"
)

// StrategyMode selects how the generation strategy is chosen per run
type StrategyMode string

const (
	// StrategyAuto uses template assembly when linking confidence is
	// high and falls back to the LLM otherwise
	StrategyAuto     StrategyMode = "auto"
	StrategyTemplate StrategyMode = "template"
	StrategyLLM      StrategyMode = "llm"
)

// Options tune one pipeline instance
type Options struct {
	// MaxAttempts bounds the generate-execute retry loop (total
	// candidates executed, not extra retries)
	MaxAttempts int

	// ConfidenceThreshold is the minimum linking confidence for the
	// template strategy under StrategyAuto
	ConfidenceThreshold float64

	// Strategy forces a generation strategy, or StrategyAuto
	Strategy StrategyMode
}

// DefaultConfidenceThreshold gates template assembly under auto mode
const DefaultConfidenceThreshold = 0.85

// Pipeline wires the five stages together. One Pipeline may serve many
// concurrent runs; it holds no per-run state.
type Pipeline struct {
	linker   *nlu.Linker
	template generate.Strategy
	llm      generate.Strategy // nil when no LLM is configured
	exec     *executor.Executor
	opts     Options
}

// New assembles a pipeline. The llm strategy may be nil; auto mode
// then always uses template assembly.
func New(linker *nlu.Linker, template, llm generate.Strategy, exec *executor.Executor, opts Options) *Pipeline {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = generate.DefaultMaxAttempts
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyAuto
	}
	return &Pipeline{
		linker:   linker,
		template: template,
		llm:      llm,
		exec:     exec,
		opts:     opts,
	}
}

// Run takes one question end to end against one target. All taxonomy
// errors come back inside the RunResult as well as the error value;
// the result is never nil.
func (p *Pipeline) Run(ctx context.Context, question string, target Target) (*RunResult, error) {
	result := &RunResult{
		RunID:  uuid.NewString(),
		Status: StatusError,
		State:  StateFailed,
	}

	logging.Info("pipeline run started", "run_id", result.RunID)

	// LOADED
	s, err := target.LoadSchema(ctx)
	if err != nil {
		return p.fail(result, StageLoad, err)
	}
	result.State = StateLoaded
	if err := runCancelled(ctx); err != nil {
		return p.fail(result, StageLoad, err)
	}

	// LINKED
	q, err := nlu.Normalize(question)
	if err != nil {
		return p.fail(result, StageLink, err)
	}
	mapping, err := p.linker.Link(ctx, q, s, target.Values(ctx))
	if err != nil {
		return p.fail(result, StageLink, err)
	}
	result.State = StateLinked
	if err := runCancelled(ctx); err != nil {
		return p.fail(result, StageLink, err)
	}

	strategy, err := p.chooseStrategy(mapping)
	if err != nil {
		return p.fail(result, StageGenerate, err)
	}
	result.Strategy = strategy.Name()

	db, cleanup, err := target.OpenDatabase(ctx)
	if err != nil {
		return p.fail(result, StageLoad, err)
	}
	defer cleanup()

	// GENERATED -> EXECUTED, with bounded retry on execution failure
	var (
		candidate   *generate.CandidateQuery
		lastFailure *executor.Failure
	)
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		if err := runCancelled(ctx); err != nil {
			return p.fail(result, StageGenerate, err)
		}

		if candidate == nil {
			candidate, err = strategy.Generate(ctx, mapping, s)
		} else {
			candidate, err = strategy.Repair(ctx, mapping, s, candidate, lastFailure)
		}
		if err != nil {
			return p.fail(result, StageGenerate, err)
		}
		result.State = StateGenerated
		result.SQL = candidate.SQL
		result.Attempts = attempt

		logging.Debug("candidate generated",
			"run_id", result.RunID,
			"attempt", attempt,
			"strategy", strategy.Name(),
			"sql", candidate.SQL)

		execResult, failure := p.exec.Execute(ctx, db, candidate.SQL)
		if failure == nil {
			result.State = StateExecutedOK
			result.Status = StatusSuccess
			result.Columns = execResult.Columns
			result.Rows = execResult.Rows
			// An empty row set is a successful execution, not a
			// failure; it is surfaced to the caller but never fed
			// back into the repair loop
			result.Empty = execResult.Empty()
			result.Error = nil
			logging.Info("pipeline run succeeded",
				"run_id", result.RunID,
				"attempts", attempt,
				"rows", len(execResult.Rows))
			return result, nil
		}

		result.State = StateExecutedFail
		lastFailure = failure
		logging.Warn("candidate execution failed",
			"run_id", result.RunID,
			"attempt", attempt,
			"kind", string(failure.Kind),
			"message", failure.Message)

		// Timeouts are terminal; only execution errors feed back
		if failure.Kind == executor.FailTimeout {
			break
		}
	}

	// Retries exhausted: surface the last execution failure plus the
	// attempt count
	res, err := p.fail(result, StageExecute, lastFailure)
	return res, fmt.Errorf("after %d attempts: %w", result.Attempts, err)
}

// chooseStrategy applies the strategy mode to one run's mapping
func (p *Pipeline) chooseStrategy(mapping *nlu.EntityMapping) (generate.Strategy, error) {
	switch p.opts.Strategy {
	case StrategyTemplate:
		return p.template, nil
	case StrategyLLM:
		if p.llm == nil {
			return nil, &generate.GenerationError{Strategy: "llm", Message: "no LLM configured"}
		}
		return p.llm, nil
	default:
		if mapping.Confidence >= p.opts.ConfidenceThreshold || p.llm == nil {
			return p.template, nil
		}
		return p.llm, nil
	}
}

// fail finalizes an error outcome: classify the error, record it in
// the result contract, and wrap it with its stage
func (p *Pipeline) fail(result *RunResult, stage Stage, err error) (*RunResult, error) {
	result.Status = StatusError
	result.State = StateFailed
	result.Error = &ResultError{
		Kind:    classifyError(err),
		Message: err.Error(),
	}

	logging.Error("pipeline run failed",
		"run_id", result.RunID,
		"stage", string(stage),
		"kind", result.Error.Kind,
		"message", result.Error.Message)

	return result, &StageError{Stage: stage, Err: err}
}

// classifyError maps an error to the taxonomy kind in the result
// contract
func classifyError(err error) string {
	var (
		schemaErr  *schema.Error
		ambiguous  *nlu.AmbiguityError
		genErr     *generate.GenerationError
		genTimeout *generate.TimeoutError
		execFail   *executor.Failure
	)
	switch {
	case errors.Is(err, nlu.ErrEmptyInput):
		return KindEmptyIn
	case errors.As(err, &schemaErr):
		return KindSchema
	case errors.As(err, &ambiguous):
		return KindAmbiguous
	case errors.As(err, &genTimeout):
		return KindTimeout
	case errors.As(err, &genErr):
		return KindGenerate
	case errors.As(err, &execFail):
		if execFail.Kind == executor.FailTimeout {
			return KindTimeout
		}
		return KindExecution
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindExecution
	}
}

// runCancelled implements cooperative cancellation between stages
func runCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}
