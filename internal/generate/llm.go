/*-------------------------------------------------------------------------
 *
 * mcp-sqlify Text-to-SQL Agent
 *
 * Copyright (c) 2025, the mcp-sqlify authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package generate

import (
	"context"
	"errors"
	"time"

	"mcp-sqlify/internal/executor"
	"mcp-sqlify/internal/llm"
	"mcp-sqlify/internal/logging"
	"mcp-sqlify/internal/nlu"
	"mcp-sqlify/internal/schema"
)

// DefaultLLMTimeout bounds one model call
const DefaultLLMTimeout = 10 * time.Second

// LLMStrategy produces SQL by prompting a large model with the schema
// text and question. Not deterministic; the candidate is validated for
// parseability before it leaves the strategy.
type LLMStrategy struct {
	client  *llm.Client
	timeout time.Duration
}

// NewLLMStrategy wraps an LLM client as a generation strategy.
// A non-positive timeout falls back to the default.
func NewLLMStrategy(client *llm.Client, timeout time.Duration) *LLMStrategy {
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	return &LLMStrategy{client: client, timeout: timeout}
}

func (l *LLMStrategy) Name() string {
	return "llm"
}

// Generate prompts the model with the schema and question
func (l *LLMStrategy) Generate(ctx context.Context, m *nlu.EntityMapping, s *schema.Schema) (*CandidateQuery, error) {
	if m == nil || m.Question == nil {
		return nil, &GenerationError{Strategy: l.Name(), Message: "no entity mapping"}
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	sqlText, err := l.client.GenerateSQL(ctx, m.Question.Raw, s.CreateStatements())
	if err != nil {
		return nil, l.wrapError(ctx, err)
	}
	if err := ValidateSQL(sqlText); err != nil {
		return nil, &GenerationError{Strategy: l.Name(), Message: err.Error()}
	}

	logging.Debug("llm generation complete", "sql", sqlText)
	return &CandidateQuery{SQL: sqlText, Strategy: l.Name(), Attempt: 1}, nil
}

// Repair prompts the model again with the failed SQL and its error
func (l *LLMStrategy) Repair(ctx context.Context, m *nlu.EntityMapping, s *schema.Schema,
	prior *CandidateQuery, failure *executor.Failure) (*CandidateQuery, error) {

	if m == nil || m.Question == nil || prior == nil || failure == nil {
		return nil, &GenerationError{Strategy: l.Name(), Message: "no failure context to repair from"}
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	sqlText, err := l.client.RepairSQL(ctx, m.Question.Raw, s.CreateStatements(),
		prior.SQL, string(failure.Kind), failure.Message)
	if err != nil {
		return nil, l.wrapError(ctx, err)
	}
	if err := ValidateSQL(sqlText); err != nil {
		return nil, &GenerationError{Strategy: l.Name(), Message: err.Error()}
	}

	logging.Debug("llm repair complete", "attempt", prior.Attempt+1, "sql", sqlText)
	return &CandidateQuery{SQL: sqlText, Strategy: l.Name(), Attempt: prior.Attempt + 1}, nil
}

// wrapError converts a model-call failure into the taxonomy: a context
// deadline becomes TimeoutError, anything else a GenerationError
func (l *LLMStrategy) wrapError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Strategy: l.Name(), Limit: l.timeout}
	}
	return &GenerationError{Strategy: l.Name(), Message: err.Error()}
}
