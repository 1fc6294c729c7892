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
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"mcp-sqlify/internal/pipeline"
	"mcp-sqlify/internal/tsv"
)

var (
	askDB     string
	askFormat string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer one natural language question against a SQLite database",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askDB, "db", "", "Path to the SQLite database (required)")
	askCmd.Flags().StringVar(&askFormat, "format", "json", "Output format: json or tsv")
	_ = askCmd.MarkFlagRequired("db")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	pipe, _, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	db, err := openSQLite(askDB)
	if err != nil {
		return err
	}
	defer db.Close()

	question := strings.Join(args, " ")
	target := pipeline.DatabaseTarget{DB: db, SampleLimit: cfg.Linker.SampleValues}

	result, runErr := pipe.Run(cmd.Context(), question, target)

	switch askFormat {
	case "json":
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	case "tsv":
		if result.Status == pipeline.StatusSuccess {
			fmt.Println(tsv.FormatResults(result.Columns, result.Rows))
		}
	default:
		return fmt.Errorf("unknown output format %q (supported: json, tsv)", askFormat)
	}

	return runErr
}

// openSQLite opens an existing SQLite database file read-write; the
// executor enforces read-only execution separately
func openSQLite(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database file %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return db, nil
}
