/*-------------------------------------------------------------------------
 *
 * mcp-sqlify Text-to-SQL Agent
 *
 * Copyright (c) 2025, the mcp-sqlify authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client handles interactions with LLM APIs (Anthropic or Ollama)
type Client struct {
	provider string // "anthropic" or "ollama"
	apiKey   string // Only for Anthropic
	baseURL  string
	model    string
	http     *http.Client
}

const (
	defaultAnthropicURL   = "https://api.anthropic.com/v1"
	defaultAnthropicModel = "claude-sonnet-4-5"
	defaultOllamaURL      = "http://localhost:11434"
)

// NewClient creates a new LLM client with the specified provider
func NewClient(provider, apiKey, baseURL, model string) *Client {
	switch provider {
	case "anthropic":
		if baseURL == "" {
			baseURL = defaultAnthropicURL
		}
		if model == "" {
			model = defaultAnthropicModel
		}
	case "ollama":
		if baseURL == "" {
			baseURL = defaultOllamaURL
		}
	}
	return &Client{
		provider: provider,
		apiKey:   apiKey,
		baseURL:  baseURL,
		model:    model,
		http:     &http.Client{},
	}
}

// IsConfigured returns whether the client is properly configured
func (c *Client) IsConfigured() bool {
	switch c.provider {
	case "anthropic":
		return c.apiKey != ""
	case "ollama":
		return c.baseURL != "" && c.model != ""
	default:
		return false
	}
}

// generatePrompt asks for a fresh SQL query for a question
const generatePrompt = `You are a SQLite expert. Based on the table schema below, write a SQL query that would answer the user's question.

Schema:
%s

Question:
%s

Requirements:
1. Output the SQL query ONLY, without any explanation or markdown formatting
2. Do not query for columns that are not in the schema
3. Pay attention to the type of columns
4. Use proper SQLite syntax and double-quoted identifiers
5. Include WHERE clauses, GROUP BY and ORDER BY only as needed
6. Do NOT include a semicolon at the end

SQL Query:`

// repairPrompt asks for a corrected SQL query after an execution failure
const repairPrompt = `You are a SQLite expert. A SQL query generated for the user's question failed to execute. Write a corrected SQL query.

Schema:
%s

Question:
%s

Failed SQL:
%s

Error (%s):
%s

Requirements:
1. Output the corrected SQL query ONLY, without any explanation or markdown formatting
2. Fix the cause of the error; do not repeat the failing query
3. Do not query for columns that are not in the schema
4. Use proper SQLite syntax and double-quoted identifiers
5. Do NOT include a semicolon at the end

SQL Query:`

// GenerateSQL converts a natural language question to SQL using the
// configured LLM, given the schema rendered as CREATE TABLE text
func (c *Client) GenerateSQL(ctx context.Context, question, schemaText string) (string, error) {
	prompt := fmt.Sprintf(generatePrompt, schemaText, question)
	return c.complete(ctx, prompt)
}

// RepairSQL asks the LLM for a corrected query given the failure
// context of a previous attempt
func (c *Client) RepairSQL(ctx context.Context, question, schemaText, failedSQL, errorKind, errorMessage string) (string, error) {
	prompt := fmt.Sprintf(repairPrompt, schemaText, question, failedSQL, errorKind, errorMessage)
	return c.complete(ctx, prompt)
}

// complete routes a prompt to the configured provider
func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("LLM client not configured")
	}

	switch c.provider {
	case "anthropic":
		return c.completeWithAnthropic(ctx, prompt)
	case "ollama":
		return c.completeWithOllama(ctx, prompt)
	default:
		return "", fmt.Errorf("unsupported LLM provider: %s", c.provider)
	}
}

// claudeRequest is the Anthropic messages API request body
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the Anthropic messages API response body
type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// completeWithAnthropic uses Anthropic's Claude API
func (c *Client) completeWithAnthropic(ctx context.Context, prompt string) (string, error) {
	reqBody := claudeRequest{
		Model:     c.model,
		MaxTokens: 2048,
		Messages: []claudeMessage{
			{Role: "user", Content: prompt},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	body, err := c.send(req)
	if err != nil {
		return "", err
	}

	var claudeResp claudeResponse
	if err := json.Unmarshal(body, &claudeResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(claudeResp.Content) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	sqlQuery := CleanSQL(claudeResp.Content[0].Text)
	if sqlQuery == "" {
		return "", fmt.Errorf("no valid SQL found in response")
	}
	return sqlQuery, nil
}

// ollamaRequest is the Ollama OpenAI-compatible chat request body
type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaResponse is the Ollama OpenAI-compatible chat response body
type ollamaResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// completeWithOllama uses Ollama's OpenAI-compatible API
func (c *Client) completeWithOllama(ctx context.Context, prompt string) (string, error) {
	reqBody := ollamaRequest{
		Model: c.model,
		Messages: []ollamaMessage{
			{Role: "user", Content: prompt},
		},
		Stream: false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.send(req)
	if err != nil {
		return "", err
	}

	var ollamaResp ollamaResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(ollamaResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	sqlQuery := CleanSQL(ollamaResp.Choices[0].Message.Content)
	if sqlQuery == "" {
		return "", fmt.Errorf("no valid SQL found in response")
	}
	return sqlQuery, nil
}

// send executes a request and returns the response body
func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// CleanSQL removes markdown formatting, comments, and explanatory text
// from a model response, leaving the first SQL statement
func CleanSQL(input string) string {
	input = strings.TrimSpace(input)

	// Remove markdown code fences
	if after, found := strings.CutPrefix(input, "```sql"); found {
		input = after
	} else if after, found := strings.CutPrefix(input, "```"); found {
		input = after
	}
	input = strings.TrimSuffix(input, "```")
	input = strings.TrimSpace(input)

	// Strip multi-line comments first, before splitting lines
	for {
		start := strings.Index(input, "/*")
		if start == -1 {
			break
		}
		end := strings.Index(input[start:], "*/")
		if end == -1 {
			break
		}
		end += start + 2
		input = input[:start] + " " + input[end:]
	}

	lines := strings.Split(input, "\n")
	var sqlLines []string
	foundSQL := false

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		if idx := strings.Index(line, "--"); idx > 0 {
			line = strings.TrimSpace(line[:idx])
		}

		hitSemicolon := false
		if strings.Contains(line, ";") {
			parts := strings.SplitN(line, ";", 2)
			line = strings.TrimSpace(parts[0])
			hitSemicolon = true
		}

		upperLine := strings.ToUpper(line)
		isSQLStart := strings.HasPrefix(upperLine, "SELECT") ||
			strings.HasPrefix(upperLine, "WITH")

		if isSQLStart {
			foundSQL = true
		}

		if foundSQL {
			// Explanatory prose after the SQL means the statement ended
			if !isSQLStart && (strings.HasPrefix(upperLine, "THIS ") ||
				strings.HasPrefix(upperLine, "THE ") ||
				strings.HasPrefix(upperLine, "NOTE")) {
				break
			}
			if line != "" {
				sqlLines = append(sqlLines, line)
			}
			if hitSemicolon {
				break
			}
		}
	}

	return strings.TrimSpace(strings.Join(sqlLines, "\n"))
}
