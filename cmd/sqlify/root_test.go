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
	"testing"

	"mcp-sqlify/internal/config"
)

func TestLLMBaseURL(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.OllamaURL = "http://localhost:11434"

	// The ollama default is always populated; it must never become the
	// anthropic endpoint
	if got := llmBaseURL(cfg); got != "" {
		t.Errorf("anthropic base URL = %q, want empty for the API default", got)
	}

	cfg.LLM.Provider = "ollama"
	if got := llmBaseURL(cfg); got != "http://localhost:11434" {
		t.Errorf("ollama base URL = %q", got)
	}
}

func TestBuildPipeline_LLMDisabled(t *testing.T) {
	cfg := &config.Config{}
	cfg.Generator.Strategy = "auto"
	cfg.Generator.MaxAttempts = 3
	cfg.Executor.TimeoutSeconds = 5

	pipe, exec, err := buildPipeline(cfg)
	if err != nil {
		t.Fatalf("buildPipeline: %v", err)
	}
	if pipe == nil || exec == nil {
		t.Fatal("pipeline or executor missing")
	}
}

func TestBuildPipeline_AnthropicWithoutKey(t *testing.T) {
	cfg := &config.Config{}
	cfg.Generator.Strategy = "auto"
	cfg.Generator.MaxAttempts = 3
	cfg.Executor.TimeoutSeconds = 5
	cfg.LLM.Enabled = true
	cfg.LLM.Provider = "anthropic"

	if _, _, err := buildPipeline(cfg); err == nil {
		t.Error("expected error for anthropic provider without an API key")
	}
}
