/*-------------------------------------------------------------------------
 *
 * mcp-sqlify Text-to-SQL Agent
 *
 * Copyright (c) 2025, the mcp-sqlify authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package evaluate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"mcp-sqlify/internal/executor"
	"mcp-sqlify/internal/logging"
	"mcp-sqlify/internal/pipeline"
	"mcp-sqlify/internal/wikisql"
)

// Outcome records how one example fared
type Outcome struct {
	Index          int
	Question       string
	GoldSQL        string
	PredictedSQL   string
	ExactMatch     bool
	GoldExecutable bool
	ExecutionMatch bool
	ErrorKind      string // empty on pipeline success
}

// Report aggregates an evaluation run over one split
type Report struct {
	Total            int
	Succeeded        int
	ExactMatches     int
	GoldExecutable   int
	ExecutionMatches int
	FailuresByKind   map[string]int
	Outcomes         []Outcome
	Duration         time.Duration
}

// ExactAccuracy is the fraction of examples whose predicted SQL
// normalizes to the gold SQL
func (r *Report) ExactAccuracy() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.ExactMatches) / float64(r.Total)
}

// ExecutionAccuracy is the fraction of gold-executable examples whose
// predicted result set matches the gold result set
func (r *Report) ExecutionAccuracy() float64 {
	if r.GoldExecutable == 0 {
		return 0
	}
	return float64(r.ExecutionMatches) / float64(r.GoldExecutable)
}

// Evaluator runs the pipeline over a WikiSQL split. Runs are
// independent, so examples execute in parallel across workers.
type Evaluator struct {
	pipe    *pipeline.Pipeline
	exec    *executor.Executor
	workers int
}

// New creates an Evaluator. A non-positive worker count serializes
// the run.
func New(pipe *pipeline.Pipeline, exec *executor.Executor, workers int) *Evaluator {
	if workers <= 0 {
		workers = 1
	}
	return &Evaluator{pipe: pipe, exec: exec, workers: workers}
}

// Evaluate scores every example and aggregates the report. Pipeline
// failures on single examples are recorded, not fatal; only context
// cancellation aborts the evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, examples []wikisql.Example) (*Report, error) {
	start := time.Now()
	outcomes := make([]Outcome, len(examples))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := range examples {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = e.scoreExample(gctx, i, &examples[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("evaluation aborted: %w", err)
	}

	report := &Report{
		Total:          len(examples),
		FailuresByKind: make(map[string]int),
		Outcomes:       outcomes,
		Duration:       time.Since(start),
	}
	for _, o := range outcomes {
		if o.ErrorKind == "" {
			report.Succeeded++
		} else {
			report.FailuresByKind[o.ErrorKind]++
		}
		if o.ExactMatch {
			report.ExactMatches++
		}
		if o.GoldExecutable {
			report.GoldExecutable++
			if o.ExecutionMatch {
				report.ExecutionMatches++
			}
		}
	}

	logging.Info("evaluation finished",
		"total", report.Total,
		"succeeded", report.Succeeded,
		"exact_matches", report.ExactMatches,
		"execution_matches", report.ExecutionMatches,
		"duration_ms", report.Duration.Milliseconds())

	return report, nil
}

// scoreExample runs one example end to end and compares against gold
func (e *Evaluator) scoreExample(ctx context.Context, index int, ex *wikisql.Example) Outcome {
	outcome := Outcome{
		Index:    index,
		Question: ex.Question,
		GoldSQL:  ex.GoldSQL(),
	}

	target := pipeline.DescriptionTarget{Description: ex.Description()}
	result, _ := e.pipe.Run(ctx, ex.Question, target)
	outcome.PredictedSQL = result.SQL
	if result.Error != nil {
		outcome.ErrorKind = result.Error.Kind
	}

	if outcome.GoldSQL != "" && outcome.PredictedSQL != "" {
		outcome.ExactMatch = NormalizeSQL(outcome.PredictedSQL) == NormalizeSQL(outcome.GoldSQL)
	}

	// Execution accuracy: run the gold query against a fresh copy of
	// the example database and compare result sets
	if outcome.GoldSQL != "" && result.Status == pipeline.StatusSuccess {
		db, cleanup, err := target.OpenDatabase(ctx)
		if err != nil {
			return outcome
		}
		defer cleanup()

		goldResult, failure := e.exec.Execute(ctx, db, outcome.GoldSQL)
		if failure != nil {
			// Gold annotations reference display column names and are
			// not always executable; skip them for this metric
			return outcome
		}
		outcome.GoldExecutable = true
		outcome.ExecutionMatch = rowsEqual(result.Rows, goldResult.Rows)
	}

	return outcome
}

// NormalizeSQL folds a query for exact-match comparison: lowercased,
// whitespace collapsed, quoting and trailing semicolons ignored
func NormalizeSQL(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "\n", " "))
	s = strings.ReplaceAll(s, `"`, "")
	s = strings.TrimSuffix(strings.TrimSpace(s), ";")
	return strings.Join(strings.Fields(s), " ")
}

// rowsEqual compares two result sets as multisets, since queries
// without ORDER BY fix no row order
func rowsEqual(a, b [][]interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	ka, kb := rowKeys(a), rowKeys(b)
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
	}
	return true
}

func rowKeys(rows [][]interface{}) []string {
	keys := make([]string, len(rows))
	for i, row := range rows {
		parts := make([]string, len(row))
		for j, v := range row {
			parts[j] = fmt.Sprintf("%v", v)
		}
		keys[i] = strings.Join(parts, "\x1f")
	}
	sort.Strings(keys)
	return keys
}
