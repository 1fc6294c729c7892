/*-------------------------------------------------------------------------
 *
 * mcp-sqlify Text-to-SQL Agent
 *
 * Copyright (c) 2025, the mcp-sqlify authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package embedding

import (
	"context"
	"fmt"
	"math"
)

// Provider defines the interface for embedding generation
type Provider interface {
	// Embed generates an embedding vector for the given text
	Embed(ctx context.Context, text string) ([]float64, error)

	// ModelName returns the name of the model being used
	ModelName() string

	// ProviderName returns the name of the provider ("ollama" or "openai")
	ProviderName() string
}

// Config holds configuration for embedding providers
type Config struct {
	Provider string // "ollama" or "openai"
	Model    string // Model name (provider-specific)

	// OpenAI-specific
	OpenAIAPIKey string

	// Ollama-specific
	OllamaURL string
}

// NewProvider creates a new embedding provider based on configuration
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required when provider is 'openai'")
		}
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.Model), nil

	case "ollama":
		return NewOllamaProvider(cfg.OllamaURL, cfg.Model), nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (supported: ollama, openai)", cfg.Provider)
	}
}

// CosineSimilarity computes the cosine similarity of two vectors.
// Returns 0 for mismatched or zero-length vectors.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
