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
	"sync"

	"mcp-sqlify/internal/logging"
)

// ReloadableConfig wraps a Config with thread-safe access and reload capability
type ReloadableConfig struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	cliFlags CLIFlags
	onReload []func(*Config)
}

// NewReloadableConfig creates a new reloadable configuration
func NewReloadableConfig(config *Config, path string, cliFlags CLIFlags) *ReloadableConfig {
	return &ReloadableConfig{
		config:   config,
		path:     path,
		cliFlags: cliFlags,
		onReload: make([]func(*Config), 0),
	}
}

// Get returns the current configuration (read-only access)
func (rc *ReloadableConfig) Get() *Config {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.config
}

// Reload reloads the configuration from the file
// Returns an error if the reload fails, but keeps the old config
func (rc *ReloadableConfig) Reload() error {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.path == "" {
		return fmt.Errorf("no configuration file path set")
	}

	// LoadConfig applies CLI flags and validation internally
	newConfig, err := LoadConfig(rc.path, rc.cliFlags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	rc.logChangedSettings(newConfig)
	rc.config = newConfig

	// Notify all registered callbacks
	for _, callback := range rc.onReload {
		callback(newConfig)
	}

	logging.Info("configuration reloaded", "path", rc.path)
	return nil
}

// logChangedSettings logs settings whose change affects how the next
// run behaves
func (rc *ReloadableConfig) logChangedSettings(newConfig *Config) {
	old := rc.config

	if old.Generator.Strategy != newConfig.Generator.Strategy {
		logging.Info("generator.strategy changed", "strategy", newConfig.Generator.Strategy)
	}
	if old.Generator.MaxAttempts != newConfig.Generator.MaxAttempts {
		logging.Info("generator.max_attempts changed", "max_attempts", newConfig.Generator.MaxAttempts)
	}
	if old.LLM.Provider != newConfig.LLM.Provider {
		logging.Info("llm.provider changed", "provider", newConfig.LLM.Provider)
	}
	if old.LLM.Model != newConfig.LLM.Model {
		logging.Info("llm.model changed", "model", newConfig.LLM.Model)
	}
	if old.Embedding.Provider != newConfig.Embedding.Provider {
		logging.Info("embedding.provider changed", "provider", newConfig.Embedding.Provider)
	}
}

// OnReload registers a callback to be called when configuration is reloaded
// The callback receives the new configuration
func (rc *ReloadableConfig) OnReload(fn func(*Config)) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.onReload = append(rc.onReload, fn)
}

// GetPath returns the configuration file path
func (rc *ReloadableConfig) GetPath() string {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.path
}
