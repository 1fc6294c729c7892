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
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"mcp-sqlify/internal/config"
	"mcp-sqlify/internal/pipeline"
	"mcp-sqlify/internal/schema"
	"mcp-sqlify/internal/tsv"
)

var (
	replDB         string
	replNoColor    bool
	replNoMarkdown bool
	replHistory    string
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive question session against a SQLite database",
	RunE:  runRepl,
}

func init() {
	replCmd.Flags().StringVar(&replDB, "db", "", "Path to the SQLite database (required)")
	replCmd.Flags().BoolVar(&replNoColor, "no-color", false, "Disable colored output")
	replCmd.Flags().BoolVar(&replNoMarkdown, "no-markdown", false, "Disable markdown table rendering")
	replCmd.Flags().StringVar(&replHistory, "history-file", "", "Path to the history file (default: ~/.sqlify_history)")
	_ = replCmd.MarkFlagRequired("db")
}

func runRepl(cmd *cobra.Command, _ []string) error {
	cfg, cliFlags, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := openSQLite(replDB)
	if err != nil {
		return err
	}
	defer db.Close()

	// Reloadable configuration so threshold and strategy edits apply
	// without restarting the session
	configPath := flagConfig
	if configPath == "" {
		configPath = config.GetDefaultConfigPath(os.Args[0])
	}
	rc := config.NewReloadableConfig(cfg, configPath, cliFlags)

	if config.ConfigFileExists(configPath) {
		watcher, err := config.NewFileWatcher(configPath, rc.Reload)
		if err == nil {
			watcher.Start()
			defer watcher.Stop()
		}
	}

	ui := NewUI(replNoColor, !replNoMarkdown)
	ui.PrintWelcome()

	historyFile := replHistory
	if historyFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			historyFile = filepath.Join(home, ".sqlify_history")
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 ui.GetPrompt(),
		HistoryFile:            historyFile,
		HistoryLimit:           1000,
		DisableAutoSaveHistory: false,
		InterruptPrompt:        "^C",
		EOFPrompt:              "exit",
		HistorySearchFold:      true, // Enable case-insensitive history search
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	ctx := cmd.Context()

	// Closing readline causes Readline() to return an error
	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	showSQL := true

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF || ctx.Err() != nil {
				fmt.Println()
				ui.PrintSystemMessage("Goodbye!")
				return nil
			}
			return fmt.Errorf("readline error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "quit", "exit":
			ui.PrintSystemMessage("Goodbye!")
			return nil
		case "help":
			ui.PrintHelp()
			continue
		case "clear":
			ui.ClearScreen()
			continue
		case "sql":
			showSQL = !showSQL
			if showSQL {
				ui.PrintSystemMessage("Generated SQL will be shown.")
			} else {
				ui.PrintSystemMessage("Generated SQL is hidden.")
			}
			continue
		case "schema":
			if err := printTargetSchema(ctx, ui, db); err != nil {
				ui.PrintError(err.Error())
			}
			continue
		}

		answerQuestion(ctx, ui, rc.Get(), db, input, showSQL)
		ui.PrintSeparator()
	}
}

// answerQuestion runs one question through the pipeline and renders
// the outcome
func answerQuestion(ctx context.Context, ui *UI, cfg *config.Config, db *sql.DB, question string, showSQL bool) {
	pipe, _, err := buildPipeline(cfg)
	if err != nil {
		ui.PrintError(err.Error())
		return
	}

	target := pipeline.DatabaseTarget{DB: db, SampleLimit: cfg.Linker.SampleValues}
	result, _ := pipe.Run(ctx, question, target)

	if result.Status != pipeline.StatusSuccess {
		if result.Error != nil {
			ui.PrintError(fmt.Sprintf("%s: %s", result.Error.Kind, result.Error.Message))
		} else {
			ui.PrintError("run failed")
		}
		return
	}

	if showSQL {
		ui.PrintSQL(result.SQL, result.Strategy, result.Attempts)
	}
	ui.PrintResult(tsv.FormatMarkdown(result.Columns, result.Rows))
}

// printTargetSchema renders the session database schema as JSON
func printTargetSchema(ctx context.Context, ui *UI, db *sql.DB) error {
	s, err := schema.LoadSQLite(ctx, db)
	if err != nil {
		return err
	}
	out, err := s.JSON(true)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
