/*-------------------------------------------------------------------------
 *
 * mcp-sqlify Text-to-SQL Agent
 *
 * Copyright (c) 2025, the mcp-sqlify authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"mcp-sqlify/internal/evaluate"
	"mcp-sqlify/internal/wikisql"
)

var (
	evalInput   string
	evalLimit   int
	evalWorkers int
	evalVerbose bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score the pipeline against a WikiSQL split",
	RunE:  runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evalInput, "input", "", "Path to the JSONL split (required)")
	evaluateCmd.Flags().IntVar(&evalLimit, "limit", 0, "Max examples to evaluate, 0 = config default")
	evaluateCmd.Flags().IntVar(&evalWorkers, "workers", 0, "Parallel workers, 0 = config default")
	evaluateCmd.Flags().BoolVar(&evalVerbose, "verbose", false, "Print per-example mismatches")
	_ = evaluateCmd.MarkFlagRequired("input")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	limit := evalLimit
	if limit == 0 {
		limit = cfg.Evaluate.Limit
	}
	workers := evalWorkers
	if workers == 0 {
		workers = cfg.Evaluate.Workers
	}

	examples, err := wikisql.ReadSplit(evalInput, limit)
	if err != nil {
		return err
	}
	if len(examples) == 0 {
		return fmt.Errorf("no examples in %s", evalInput)
	}

	pipe, exec, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	report, err := evaluate.New(pipe, exec, workers).Evaluate(cmd.Context(), examples)
	if err != nil {
		return err
	}

	fmt.Printf("Examples:            %d\n", report.Total)
	fmt.Printf("Pipeline succeeded:  %d\n", report.Succeeded)
	fmt.Printf("Exact match:         %d (%.1f%%)\n", report.ExactMatches, report.ExactAccuracy()*100)
	fmt.Printf("Execution match:     %d of %d executable gold queries (%.1f%%)\n",
		report.ExecutionMatches, report.GoldExecutable, report.ExecutionAccuracy()*100)
	fmt.Printf("Duration:            %s\n", report.Duration.Round(time.Millisecond))

	if len(report.FailuresByKind) > 0 {
		fmt.Println("\nFailures by kind:")
		kinds := make([]string, 0, len(report.FailuresByKind))
		for kind := range report.FailuresByKind {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Printf("  %-20s %d\n", kind, report.FailuresByKind[kind])
		}
	}

	if evalVerbose {
		fmt.Println()
		for _, o := range report.Outcomes {
			if o.ErrorKind == "" && o.ExactMatch {
				continue
			}
			fmt.Printf("[%d] %s\n", o.Index, o.Question)
			fmt.Printf("  gold:      %s\n", o.GoldSQL)
			fmt.Printf("  predicted: %s\n", o.PredictedSQL)
			if o.ErrorKind != "" {
				fmt.Printf("  error:     %s\n", o.ErrorKind)
			}
		}
	}

	return nil
}
