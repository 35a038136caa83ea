// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	LLM       ModelConfig     `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Type        string `mapstructure:"type"` // "sqlite" or "postgres"
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// MemoryConfig holds the memory subsystem settings: global toggle,
// per-feature toggles, and tuning thresholds. Settings UI writes it, every
// memory operation reads it.
type MemoryConfig struct {
	GlobalEnabled      bool    `mapstructure:"global_enabled"`       // Master switch for the whole subsystem
	AutoAnalyzeEnabled bool    `mapstructure:"auto_analyze_enabled"` // Extract facts after each assistant reply
	MemoryToolEnabled  bool    `mapstructure:"memory_tool_enabled"`  // Expose create/edit/delete memory tools to the model
	DefaultAssistantID string  `mapstructure:"default_assistant_id"` // Partition used when no assistant is specified
	DedupThreshold     float64 `mapstructure:"dedup_threshold"`      // Similarity at or above which a new memory is a duplicate
	SearchThreshold    float64 `mapstructure:"search_threshold"`     // Minimum similarity for search results
	SearchLimit        int     `mapstructure:"search_limit"`         // Default result cap for search/list
	CustomFactPrompt   string  `mapstructure:"custom_fact_prompt"`   // Optional override for the fact-extraction system prompt
}

// ModelConfig holds settings for the chat-completion model used for fact
// extraction and update decisions.
type ModelConfig struct {
	BaseURL   string `mapstructure:"base_url"`    // OpenAI-compatible API base URL
	Model     string `mapstructure:"model"`       // Model name
	APIKeyEnv string `mapstructure:"api_key_env"` // Environment variable holding the API key
}

// EmbeddingConfig holds settings for the embedding model.
type EmbeddingConfig struct {
	BaseURL      string `mapstructure:"base_url"`      // OpenAI-compatible API base URL
	Model        string `mapstructure:"model"`         // Model name (e.g. "text-embedding-3-small")
	APIKeyEnv    string `mapstructure:"api_key_env"`   // Environment variable holding the API key
	Dimensions   int    `mapstructure:"dimensions"`    // Target vector dimensions; 0 = unified default
	CacheEntries int64  `mapstructure:"cache_entries"` // Max texts kept in the embedding cache
}

// LLMConfigured reports whether a chat-completion model is configured.
func (c *Config) LLMConfigured() bool {
	return c.LLM.Model != "" && c.LLM.BaseURL != ""
}

// EmbeddingConfigured reports whether an embedding model is configured.
func (c *Config) EmbeddingConfigured() bool {
	return c.Embedding.Model != "" && c.Embedding.BaseURL != ""
}

// MemoryEnabled reports whether the memory subsystem is operational: the
// global toggle is on and both models are configured.
func (c *Config) MemoryEnabled() bool {
	return c.Memory.GlobalEnabled && c.LLMConfigured() && c.EmbeddingConfigured()
}
