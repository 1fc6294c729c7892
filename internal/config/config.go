/*-------------------------------------------------------------------------
 *
 * mcp-sqlify Text-to-SQL Agent
 *
 * Copyright (c) 2025, the mcp-sqlify authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete agent configuration
type Config struct {
	// LLM configuration for the model-backed generation strategy
	LLM LLMConfig `yaml:"llm"`

	// Embedding configuration for semantic entity linking
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Linker configuration
	Linker LinkerConfig `yaml:"linker"`

	// Generator configuration
	Generator GeneratorConfig `yaml:"generator"`

	// Executor configuration
	Executor ExecutorConfig `yaml:"executor"`

	// Database connection configuration (for Postgres schema ingestion)
	Database DatabaseConfig `yaml:"database"`

	// Evaluate configuration
	Evaluate EvaluateConfig `yaml:"evaluate"`
}

// LLMConfig holds settings for the LLM generation strategy
type LLMConfig struct {
	Enabled             bool   `yaml:"enabled"`                // Whether LLM generation is enabled (default: false)
	Provider            string `yaml:"provider"`               // "anthropic" or "ollama"
	Model               string `yaml:"model"`                  // Provider-specific model name
	AnthropicAPIKey     string `yaml:"anthropic_api_key"`      // API key for Anthropic (direct - discouraged, use api_key_file or env var instead)
	AnthropicAPIKeyFile string `yaml:"anthropic_api_key_file"` // Path to file containing Anthropic API key
	OllamaURL           string `yaml:"ollama_url"`             // URL for Ollama service (default: http://localhost:11434)
	TimeoutSeconds      int    `yaml:"timeout_seconds"`        // Per-request generation timeout (default: 10)
}

// EmbeddingConfig holds settings for the optional embedding match tier
type EmbeddingConfig struct {
	Enabled          bool   `yaml:"enabled"`             // Whether embedding-based linking is enabled (default: false)
	Provider         string `yaml:"provider"`            // "openai" or "ollama"
	Model            string `yaml:"model"`               // Provider-specific model name
	OpenAIAPIKey     string `yaml:"openai_api_key"`      // API key for OpenAI (direct - discouraged, use api_key_file or env var)
	OpenAIAPIKeyFile string `yaml:"openai_api_key_file"` // Path to file containing OpenAI API key
	OllamaURL        string `yaml:"ollama_url"`          // URL for Ollama service (default: http://localhost:11434)
}

// LinkerConfig holds entity linking thresholds
type LinkerConfig struct {
	Epsilon            float64 `yaml:"epsilon"`             // Ambiguity margin between competing candidates (default: 0.05)
	FuzzyThreshold     float64 `yaml:"fuzzy_threshold"`     // Minimum fuzzy similarity to accept (default: 0.6)
	EmbeddingThreshold float64 `yaml:"embedding_threshold"` // Minimum cosine similarity to accept (default: 0.8)
	SampleValues       int     `yaml:"sample_values"`       // Distinct values sampled per text column for value grounding (default: 64)
}

// GeneratorConfig holds SQL generation settings
type GeneratorConfig struct {
	Strategy            string  `yaml:"strategy"`             // "auto", "template", or "llm" (default: auto)
	MaxAttempts         int     `yaml:"max_attempts"`         // Generate/execute attempts before giving up (default: 3)
	ConfidenceThreshold float64 `yaml:"confidence_threshold"` // Minimum linking confidence for the template path in auto mode (default: 0.85)
}

// ExecutorConfig holds query execution settings
type ExecutorConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"` // Per-query execution timeout (default: 5)
}

// DatabaseConfig holds PostgreSQL connection settings for schema ingestion
type DatabaseConfig struct {
	Host     string `yaml:"host"`     // Database host (default: localhost)
	Port     int    `yaml:"port"`     // Database port (default: 5432)
	Database string `yaml:"database"` // Database name (default: postgres)
	User     string `yaml:"user"`     // Database user
	Password string `yaml:"password"` // Database password (optional, will use SQLIFY_DB_PASSWORD env var or .pgpass if not set)
	SSLMode  string `yaml:"sslmode"`  // SSL mode: disable, require, verify-ca, verify-full (default: prefer)
}

// EvaluateConfig holds evaluation harness settings
type EvaluateConfig struct {
	Workers int `yaml:"workers"` // Parallel evaluation workers (default: 4)
	Limit   int `yaml:"limit"`   // Max examples per split, 0 = all (default: 0)
}

// CLIFlags represents command line flag values and whether they were explicitly set
type CLIFlags struct {
	ConfigFileSet bool
	ConfigFile    string

	// Generator flags
	Strategy       string
	StrategySet    bool
	MaxAttempts    int
	MaxAttemptsSet bool

	// LLM flags
	LLMEnabled    bool
	LLMEnabledSet bool
	LLMProvider   string
	LLMProvSet    bool
	LLMModel      string
	LLMModelSet   bool

	// Executor flags
	QueryTimeout    int
	QueryTimeoutSet bool

	// Database flags
	DBHost     string
	DBHostSet  bool
	DBPort     int
	DBPortSet  bool
	DBName     string
	DBNameSet  bool
	DBUser     string
	DBUserSet  bool
	DBPassword string
	DBPassSet  bool
	DBSSLMode  string
	DBSSLSet   bool
}

// LoadConfig loads configuration with proper priority:
// 1. Command line flags (highest priority)
// 2. Environment variables
// 3. Configuration file
// 4. Hard-coded defaults (lowest priority)
func LoadConfig(configPath string, cliFlags CLIFlags) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Load config file if it exists
	if configPath != "" {
		fileCfg, err := loadConfigFile(configPath)
		if err != nil {
			// If file was explicitly specified, error out
			if cliFlags.ConfigFileSet {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
			// Otherwise just use defaults (file may not exist and that's ok)
		} else {
			// Merge file config into defaults
			mergeConfig(cfg, fileCfg)
		}
	}

	// Override with environment variables
	applyEnvironmentVariables(cfg)

	// Override with command line flags (highest priority)
	applyCLIFlags(cfg, cliFlags)

	// Validate final configuration
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns configuration with hard-coded defaults
func defaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Enabled:         false,                    // Disabled by default (opt-in)
			Provider:        "anthropic",              // Default provider
			Model:           "claude-sonnet-4-5",      // Default Anthropic model
			AnthropicAPIKey: "",                       // Must be provided if using Anthropic
			OllamaURL:       "http://localhost:11434", // Default Ollama URL
			TimeoutSeconds:  10,                       // Default generation timeout
		},
		Embedding: EmbeddingConfig{
			Enabled:      false,                    // Disabled by default (opt-in)
			Provider:     "ollama",                 // Default provider
			Model:        "nomic-embed-text",       // Default Ollama model
			OpenAIAPIKey: "",                       // Must be provided if using OpenAI
			OllamaURL:    "http://localhost:11434", // Default Ollama URL
		},
		Linker: LinkerConfig{
			Epsilon:            0.05,
			FuzzyThreshold:     0.6,
			EmbeddingThreshold: 0.8,
			SampleValues:       64,
		},
		Generator: GeneratorConfig{
			Strategy:            "auto",
			MaxAttempts:         3,
			ConfidenceThreshold: 0.85,
		},
		Executor: ExecutorConfig{
			TimeoutSeconds: 5,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "postgres",
			User:     "",       // Required for the schema verb against Postgres
			Password: "",       // Optional - will use env var or .pgpass
			SSLMode:  "prefer", // Default SSL mode
		},
		Evaluate: EvaluateConfig{
			Workers: 4,
			Limit:   0,
		},
	}
}

// loadConfigFile loads configuration from a YAML file
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &cfg, nil
}

// mergeConfig merges source config into dest, only overriding non-zero values
func mergeConfig(dest, src *Config) {
	// LLM - merge if any LLM fields are set
	if src.LLM.Provider != "" || src.LLM.Enabled {
		dest.LLM.Enabled = src.LLM.Enabled
		if src.LLM.Provider != "" {
			dest.LLM.Provider = src.LLM.Provider
		}
		if src.LLM.Model != "" {
			dest.LLM.Model = src.LLM.Model
		}
		if src.LLM.AnthropicAPIKey != "" {
			dest.LLM.AnthropicAPIKey = src.LLM.AnthropicAPIKey
		}
		if src.LLM.AnthropicAPIKeyFile != "" {
			dest.LLM.AnthropicAPIKeyFile = src.LLM.AnthropicAPIKeyFile
		}
		if src.LLM.OllamaURL != "" {
			dest.LLM.OllamaURL = src.LLM.OllamaURL
		}
		if src.LLM.TimeoutSeconds != 0 {
			dest.LLM.TimeoutSeconds = src.LLM.TimeoutSeconds
		}
	}

	// Embedding - merge if any embedding fields are set
	if src.Embedding.Provider != "" || src.Embedding.Enabled {
		dest.Embedding.Enabled = src.Embedding.Enabled
		if src.Embedding.Provider != "" {
			dest.Embedding.Provider = src.Embedding.Provider
		}
		if src.Embedding.Model != "" {
			dest.Embedding.Model = src.Embedding.Model
		}
		if src.Embedding.OpenAIAPIKey != "" {
			dest.Embedding.OpenAIAPIKey = src.Embedding.OpenAIAPIKey
		}
		if src.Embedding.OpenAIAPIKeyFile != "" {
			dest.Embedding.OpenAIAPIKeyFile = src.Embedding.OpenAIAPIKeyFile
		}
		if src.Embedding.OllamaURL != "" {
			dest.Embedding.OllamaURL = src.Embedding.OllamaURL
		}
	}

	// Linker
	if src.Linker.Epsilon != 0 {
		dest.Linker.Epsilon = src.Linker.Epsilon
	}
	if src.Linker.FuzzyThreshold != 0 {
		dest.Linker.FuzzyThreshold = src.Linker.FuzzyThreshold
	}
	if src.Linker.EmbeddingThreshold != 0 {
		dest.Linker.EmbeddingThreshold = src.Linker.EmbeddingThreshold
	}
	if src.Linker.SampleValues != 0 {
		dest.Linker.SampleValues = src.Linker.SampleValues
	}

	// Generator
	if src.Generator.Strategy != "" {
		dest.Generator.Strategy = src.Generator.Strategy
	}
	if src.Generator.MaxAttempts != 0 {
		dest.Generator.MaxAttempts = src.Generator.MaxAttempts
	}
	if src.Generator.ConfidenceThreshold != 0 {
		dest.Generator.ConfidenceThreshold = src.Generator.ConfidenceThreshold
	}

	// Executor
	if src.Executor.TimeoutSeconds != 0 {
		dest.Executor.TimeoutSeconds = src.Executor.TimeoutSeconds
	}

	// Database
	if src.Database.Host != "" {
		dest.Database.Host = src.Database.Host
	}
	if src.Database.Port != 0 {
		dest.Database.Port = src.Database.Port
	}
	if src.Database.Database != "" {
		dest.Database.Database = src.Database.Database
	}
	if src.Database.User != "" {
		dest.Database.User = src.Database.User
	}
	if src.Database.Password != "" {
		dest.Database.Password = src.Database.Password
	}
	if src.Database.SSLMode != "" {
		dest.Database.SSLMode = src.Database.SSLMode
	}

	// Evaluate
	if src.Evaluate.Workers != 0 {
		dest.Evaluate.Workers = src.Evaluate.Workers
	}
	if src.Evaluate.Limit != 0 {
		dest.Evaluate.Limit = src.Evaluate.Limit
	}
}

// setStringFromEnv sets a string config value from an environment variable if it exists
func setStringFromEnv(dest *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val
	}
}

// setStringFromEnvWithFallback sets a string config value from an environment variable,
// checking multiple environment variable names in priority order
func setStringFromEnvWithFallback(dest *string, keys ...string) {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			*dest = val
			return
		}
	}
}

// setBoolFromEnv sets a boolean config value from an environment variable if it exists
// Accepts "true", "1", or "yes" as true values
func setBoolFromEnv(dest *bool, key string) {
	if val := os.Getenv(key); val != "" {
		*dest = val == "true" || val == "1" || val == "yes"
	}
}

// setIntFromEnv sets an integer config value from an environment variable if it exists
func setIntFromEnv(dest *int, key string) {
	if val := os.Getenv(key); val != "" {
		var intVal int
		_, err := fmt.Sscanf(val, "%d", &intVal)
		if err == nil {
			*dest = intVal
		}
	}
}

// applyEnvironmentVariables overrides config with environment variables if they exist
// All environment variables use the SQLIFY_ prefix to avoid collisions
func applyEnvironmentVariables(cfg *Config) {
	// LLM
	setBoolFromEnv(&cfg.LLM.Enabled, "SQLIFY_LLM_ENABLED")
	setStringFromEnv(&cfg.LLM.Provider, "SQLIFY_LLM_PROVIDER")
	setStringFromEnv(&cfg.LLM.Model, "SQLIFY_LLM_MODEL")
	// API key loading priority: env vars > api_key_file > direct config value
	setStringFromEnvWithFallback(&cfg.LLM.AnthropicAPIKey, "SQLIFY_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	if cfg.LLM.AnthropicAPIKey == "" && cfg.LLM.AnthropicAPIKeyFile != "" {
		if key, err := readAPIKeyFromFile(cfg.LLM.AnthropicAPIKeyFile); err == nil && key != "" {
			cfg.LLM.AnthropicAPIKey = key
		}
		// Note: errors are silently ignored - file may not exist and that's ok
	}
	setStringFromEnv(&cfg.LLM.OllamaURL, "SQLIFY_OLLAMA_URL")
	setIntFromEnv(&cfg.LLM.TimeoutSeconds, "SQLIFY_LLM_TIMEOUT_SECONDS")

	// Embedding
	setBoolFromEnv(&cfg.Embedding.Enabled, "SQLIFY_EMBEDDING_ENABLED")
	setStringFromEnv(&cfg.Embedding.Provider, "SQLIFY_EMBEDDING_PROVIDER")
	setStringFromEnv(&cfg.Embedding.Model, "SQLIFY_EMBEDDING_MODEL")
	setStringFromEnvWithFallback(&cfg.Embedding.OpenAIAPIKey, "SQLIFY_OPENAI_API_KEY", "OPENAI_API_KEY")
	if cfg.Embedding.OpenAIAPIKey == "" && cfg.Embedding.OpenAIAPIKeyFile != "" {
		if key, err := readAPIKeyFromFile(cfg.Embedding.OpenAIAPIKeyFile); err == nil && key != "" {
			cfg.Embedding.OpenAIAPIKey = key
		}
		// Note: errors are silently ignored - file may not exist and that's ok
	}
	setStringFromEnv(&cfg.Embedding.OllamaURL, "SQLIFY_OLLAMA_URL")

	// Generator
	setStringFromEnv(&cfg.Generator.Strategy, "SQLIFY_STRATEGY")
	setIntFromEnv(&cfg.Generator.MaxAttempts, "SQLIFY_MAX_ATTEMPTS")

	// Executor
	setIntFromEnv(&cfg.Executor.TimeoutSeconds, "SQLIFY_QUERY_TIMEOUT_SECONDS")

	// Database
	setStringFromEnv(&cfg.Database.Host, "SQLIFY_DB_HOST")
	setIntFromEnv(&cfg.Database.Port, "SQLIFY_DB_PORT")
	setStringFromEnv(&cfg.Database.Database, "SQLIFY_DB_NAME")
	setStringFromEnv(&cfg.Database.User, "SQLIFY_DB_USER")
	setStringFromEnv(&cfg.Database.Password, "SQLIFY_DB_PASSWORD")
	setStringFromEnv(&cfg.Database.SSLMode, "SQLIFY_DB_SSLMODE")

	// Also support standard PostgreSQL environment variables for convenience
	if cfg.Database.Host == "localhost" {
		setStringFromEnv(&cfg.Database.Host, "PGHOST")
	}
	if cfg.Database.Port == 5432 {
		setIntFromEnv(&cfg.Database.Port, "PGPORT")
	}
	if cfg.Database.Database == "postgres" {
		setStringFromEnv(&cfg.Database.Database, "PGDATABASE")
	}
	if cfg.Database.User == "" {
		setStringFromEnv(&cfg.Database.User, "PGUSER")
	}
	if cfg.Database.Password == "" {
		setStringFromEnv(&cfg.Database.Password, "PGPASSWORD")
	}
	if cfg.Database.SSLMode == "prefer" {
		setStringFromEnv(&cfg.Database.SSLMode, "PGSSLMODE")
	}

	// Evaluate
	setIntFromEnv(&cfg.Evaluate.Workers, "SQLIFY_EVAL_WORKERS")
	setIntFromEnv(&cfg.Evaluate.Limit, "SQLIFY_EVAL_LIMIT")
}

// applyCLIFlags overrides config with CLI flags if they were explicitly set
func applyCLIFlags(cfg *Config, flags CLIFlags) {
	// Generator
	if flags.StrategySet {
		cfg.Generator.Strategy = flags.Strategy
	}
	if flags.MaxAttemptsSet {
		cfg.Generator.MaxAttempts = flags.MaxAttempts
	}

	// LLM
	if flags.LLMEnabledSet {
		cfg.LLM.Enabled = flags.LLMEnabled
	}
	if flags.LLMProvSet {
		cfg.LLM.Provider = flags.LLMProvider
	}
	if flags.LLMModelSet {
		cfg.LLM.Model = flags.LLMModel
	}

	// Executor
	if flags.QueryTimeoutSet {
		cfg.Executor.TimeoutSeconds = flags.QueryTimeout
	}

	// Database
	if flags.DBHostSet {
		cfg.Database.Host = flags.DBHost
	}
	if flags.DBPortSet {
		cfg.Database.Port = flags.DBPort
	}
	if flags.DBNameSet {
		cfg.Database.Database = flags.DBName
	}
	if flags.DBUserSet {
		cfg.Database.User = flags.DBUser
	}
	if flags.DBPassSet {
		cfg.Database.Password = flags.DBPassword
	}
	if flags.DBSSLSet {
		cfg.Database.SSLMode = flags.DBSSLMode
	}
}

// validateConfig checks if the configuration is valid
func validateConfig(cfg *Config) error {
	switch cfg.Generator.Strategy {
	case "auto", "template", "llm":
	default:
		return fmt.Errorf("generator strategy must be auto, template, or llm (got %q)", cfg.Generator.Strategy)
	}

	if cfg.Generator.Strategy == "llm" && !cfg.LLM.Enabled {
		return fmt.Errorf("generator strategy llm requires llm.enabled")
	}

	if cfg.Generator.MaxAttempts < 1 {
		return fmt.Errorf("generator max_attempts must be at least 1 (got %d)", cfg.Generator.MaxAttempts)
	}

	if cfg.Generator.ConfidenceThreshold < 0 || cfg.Generator.ConfidenceThreshold > 1 {
		return fmt.Errorf("generator confidence_threshold must be between 0 and 1 (got %g)", cfg.Generator.ConfidenceThreshold)
	}

	if cfg.Linker.Epsilon < 0 {
		return fmt.Errorf("linker epsilon must not be negative (got %g)", cfg.Linker.Epsilon)
	}

	if cfg.Executor.TimeoutSeconds < 1 {
		return fmt.Errorf("executor timeout_seconds must be at least 1 (got %d)", cfg.Executor.TimeoutSeconds)
	}

	if cfg.LLM.Enabled {
		switch cfg.LLM.Provider {
		case "anthropic":
			if cfg.LLM.AnthropicAPIKey == "" && cfg.LLM.AnthropicAPIKeyFile == "" {
				return fmt.Errorf("llm provider anthropic requires an API key (set ANTHROPIC_API_KEY, llm.anthropic_api_key, or llm.anthropic_api_key_file)")
			}
		case "ollama":
		default:
			return fmt.Errorf("llm provider must be anthropic or ollama (got %q)", cfg.LLM.Provider)
		}
	}

	if cfg.Embedding.Enabled {
		switch cfg.Embedding.Provider {
		case "openai":
			if cfg.Embedding.OpenAIAPIKey == "" && cfg.Embedding.OpenAIAPIKeyFile == "" {
				return fmt.Errorf("embedding provider openai requires an API key (set OPENAI_API_KEY, embedding.openai_api_key, or embedding.openai_api_key_file)")
			}
		case "ollama":
		default:
			return fmt.Errorf("embedding provider must be openai or ollama (got %q)", cfg.Embedding.Provider)
		}
	}

	return nil
}

// readAPIKeyFromFile reads an API key from a file
// Returns the key with whitespace trimmed, or empty string if file doesn't exist or is empty
func readAPIKeyFromFile(filePath string) (string, error) {
	if filePath == "" {
		return "", nil
	}

	// Expand tilde to home directory
	if filePath[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(homeDir, filePath[1:])
	}

	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return "", nil // File doesn't exist, return empty (not an error)
	}

	// Read file contents
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read API key file %s: %w", filePath, err)
	}

	// Return trimmed contents (remove whitespace/newlines)
	key := strings.TrimSpace(string(data))
	return key, nil
}

// GetDefaultConfigPath returns the default config file path
// Searches /etc/sqlify/ first, then binary directory
func GetDefaultConfigPath(binaryPath string) string {
	systemPath := "/etc/sqlify/sqlify.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}

	dir := filepath.Dir(binaryPath)
	return filepath.Join(dir, "sqlify.yaml")
}

// BuildConnectionString creates a PostgreSQL connection string from DatabaseConfig
// If password is not set, pgx will automatically look it up from .pgpass file
func (cfg *DatabaseConfig) BuildConnectionString() string {
	connStr := fmt.Sprintf("postgres://%s", cfg.User)

	// Add password only if explicitly set
	// If not set, pgx will use .pgpass file automatically
	if cfg.Password != "" {
		connStr += ":" + cfg.Password
	}

	connStr += fmt.Sprintf("@%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)

	if cfg.SSLMode != "" {
		connStr += "?sslmode=" + cfg.SSLMode
	}

	return connStr
}

// ConfigFileExists checks if a config file exists at the given path
func ConfigFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
