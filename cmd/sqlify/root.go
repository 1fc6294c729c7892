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
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mcp-sqlify/internal/config"
	"mcp-sqlify/internal/embedding"
	"mcp-sqlify/internal/executor"
	"mcp-sqlify/internal/generate"
	"mcp-sqlify/internal/llm"
	"mcp-sqlify/internal/logging"
	"mcp-sqlify/internal/nlu"
	"mcp-sqlify/internal/pipeline"
)

const version = "1.0.0-alpha1"

var rootCmd = &cobra.Command{
	Use:     "sqlify",
	Short:   "Translate natural language questions into verified SQL",
	Version: version,
	Long: `sqlify answers natural language questions against SQLite databases.

Questions are linked to schema elements, compiled into SQL by either a
deterministic template assembler or an LLM, and executed read-only with
automatic repair of failing queries.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Persistent flag storage. Cobra's Changed() tells us which were
// explicitly set, which config merging needs.
var (
	flagConfig       string
	flagStrategy     string
	flagMaxAttempts  int
	flagLLM          bool
	flagLLMProvider  string
	flagLLMModel     string
	flagQueryTimeout int
	flagLogLevel     string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "Path to configuration file")
	pf.StringVar(&flagStrategy, "strategy", "auto", "Generation strategy: auto, template, or llm")
	pf.IntVar(&flagMaxAttempts, "max-attempts", 3, "Generate/execute attempts before giving up")
	pf.BoolVar(&flagLLM, "llm", false, "Enable the LLM generation strategy")
	pf.StringVar(&flagLLMProvider, "llm-provider", "", "LLM provider: anthropic or ollama")
	pf.StringVar(&flagLLMModel, "llm-model", "", "LLM model name")
	pf.IntVar(&flagQueryTimeout, "query-timeout", 5, "Query execution timeout in seconds")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warning, error")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(datasetCmd)
	rootCmd.AddCommand(evaluateCmd)
}

// Execute runs the CLI with interrupt-aware context cancellation
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// collectCLIFlags maps explicitly-set cobra flags onto config overrides
func collectCLIFlags(cmd *cobra.Command) config.CLIFlags {
	pf := cmd.Root().PersistentFlags()
	return config.CLIFlags{
		ConfigFile:      flagConfig,
		ConfigFileSet:   pf.Changed("config"),
		Strategy:        flagStrategy,
		StrategySet:     pf.Changed("strategy"),
		MaxAttempts:     flagMaxAttempts,
		MaxAttemptsSet:  pf.Changed("max-attempts"),
		LLMEnabled:      flagLLM,
		LLMEnabledSet:   pf.Changed("llm"),
		LLMProvider:     flagLLMProvider,
		LLMProvSet:      pf.Changed("llm-provider"),
		LLMModel:        flagLLMModel,
		LLMModelSet:     pf.Changed("llm-model"),
		QueryTimeout:    flagQueryTimeout,
		QueryTimeoutSet: pf.Changed("query-timeout"),
	}
}

// loadConfig resolves the effective configuration for a command
func loadConfig(cmd *cobra.Command) (*config.Config, config.CLIFlags, error) {
	if flagLogLevel != "" {
		logging.SetLevel(logging.ParseLevel(flagLogLevel))
	}

	flags := collectCLIFlags(cmd)
	path := flagConfig
	if path == "" {
		path = config.GetDefaultConfigPath(os.Args[0])
	}

	cfg, err := config.LoadConfig(path, flags)
	if err != nil {
		return nil, flags, err
	}
	return cfg, flags, nil
}

// buildPipeline assembles the run pipeline from configuration
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, *executor.Executor, error) {
	linker := nlu.NewLinker(nlu.LinkerConfig{
		Epsilon:            cfg.Linker.Epsilon,
		FuzzyThreshold:     cfg.Linker.FuzzyThreshold,
		EmbeddingThreshold: cfg.Linker.EmbeddingThreshold,
	})

	if cfg.Embedding.Enabled {
		provider, err := embedding.NewProvider(embedding.Config{
			Provider:     cfg.Embedding.Provider,
			Model:        cfg.Embedding.Model,
			OpenAIAPIKey: cfg.Embedding.OpenAIAPIKey,
			OllamaURL:    cfg.Embedding.OllamaURL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("embedding provider: %w", err)
		}
		linker.WithEmbeddings(provider)
	}

	var llmStrategy generate.Strategy
	if cfg.LLM.Enabled {
		client := llm.NewClient(cfg.LLM.Provider, cfg.LLM.AnthropicAPIKey, llmBaseURL(cfg), cfg.LLM.Model)
		if !client.IsConfigured() {
			return nil, nil, fmt.Errorf("LLM strategy enabled but provider %q is not configured", cfg.LLM.Provider)
		}
		llmStrategy = generate.NewLLMStrategy(client, time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)
	}

	exec := executor.New(time.Duration(cfg.Executor.TimeoutSeconds) * time.Second)

	p := pipeline.New(linker, generate.NewTemplateStrategy(), llmStrategy, exec, pipeline.Options{
		MaxAttempts:         cfg.Generator.MaxAttempts,
		ConfidenceThreshold: cfg.Generator.ConfidenceThreshold,
		Strategy:            pipeline.StrategyMode(cfg.Generator.Strategy),
	})
	return p, exec, nil
}

// llmBaseURL picks the endpoint the LLM client talks to. The config's
// ollama_url always carries its default, so it must never reach the
// anthropic path or the client would post to the local Ollama socket.
func llmBaseURL(cfg *config.Config) string {
	if cfg.LLM.Provider == "ollama" {
		return cfg.LLM.OllamaURL
	}
	return ""
}
