// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigDir is the default configuration directory
	DefaultConfigDir = ".engram/configs"
	// DefaultAssistantID is the partition used when none is configured
	DefaultAssistantID = "default"
)

// Load reads configuration from ~/.engram/configs/config.json
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, DefaultConfigDir)

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(configPath)

	// Set defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, use defaults
			return loadFromDefaults(v)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromPath loads configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.type", "sqlite")
	homeDir, _ := os.UserHomeDir()
	v.SetDefault("database.sqlite_path", filepath.Join(homeDir, ".engram/db/engram.db"))

	// Memory defaults
	v.SetDefault("memory.global_enabled", false)
	v.SetDefault("memory.auto_analyze_enabled", false)
	v.SetDefault("memory.memory_tool_enabled", true)
	v.SetDefault("memory.default_assistant_id", DefaultAssistantID)
	v.SetDefault("memory.dedup_threshold", 0.85)
	v.SetDefault("memory.search_threshold", 0.5)
	v.SetDefault("memory.search_limit", 10)

	// Model defaults
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("embedding.cache_entries", 4096)
}

// loadFromDefaults creates a config from default values
func loadFromDefaults(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	// Validate database type
	if cfg.Database.Type != "sqlite" && cfg.Database.Type != "postgres" {
		return fmt.Errorf("database.type must be 'sqlite' or 'postgres', got '%s'", cfg.Database.Type)
	}

	// Validate database connection info
	if cfg.Database.Type == "sqlite" && cfg.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required when type is 'sqlite'")
	}
	if cfg.Database.Type == "postgres" && cfg.Database.PostgresDSN == "" {
		return fmt.Errorf("database.postgres_dsn is required when type is 'postgres'")
	}

	// Thresholds are similarities in [0, 1]
	if cfg.Memory.DedupThreshold < 0 || cfg.Memory.DedupThreshold > 1 {
		return fmt.Errorf("memory.dedup_threshold must be in [0, 1], got %v", cfg.Memory.DedupThreshold)
	}
	if cfg.Memory.SearchThreshold < 0 || cfg.Memory.SearchThreshold > 1 {
		return fmt.Errorf("memory.search_threshold must be in [0, 1], got %v", cfg.Memory.SearchThreshold)
	}

	if cfg.Memory.SearchLimit <= 0 {
		return fmt.Errorf("memory.search_limit must be positive, got %d", cfg.Memory.SearchLimit)
	}

	if cfg.Memory.DefaultAssistantID == "" {
		cfg.Memory.DefaultAssistantID = DefaultAssistantID
	}

	return nil
}

// APIKey resolves the API key for a model config from its environment
// variable. Empty when unset.
func APIKey(keyEnv string) string {
	if keyEnv == "" {
		return ""
	}
	return os.Getenv(keyEnv)
}
