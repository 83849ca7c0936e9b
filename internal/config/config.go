// Package config loads the JSON configuration file and applies defaults
// and environment fallbacks.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"coderag/internal/embedder"
	"coderag/internal/retriever"
)

// Config is the full application configuration.
type Config struct {
	// StorageDir holds per-repository index artifacts.
	StorageDir string          `json:"storage_dir"`
	LogLevel   string          `json:"log_level"`
	Embedding  EmbeddingConfig `json:"embedding"`
	LLM        LLMConfig       `json:"llm"`
	Retrieval  RetrievalConfig `json:"retrieval"`
}

type EmbeddingConfig struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	CacheSize int    `json:"cache_size"`
}

type LLMConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

type RetrievalConfig struct {
	TopK            int  `json:"top_k"`
	DedupeExpansion bool `json:"dedupe_expansion"`
	ContextBudget   int  `json:"context_budget"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a JSON config file and fills in defaults. An empty path
// returns the default configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.StorageDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.StorageDir = filepath.Join(home, ".coderag")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = os.Getenv(embedder.EnvProvider)
	}
	if c.Embedding.Provider == "" {
		switch {
		case os.Getenv(embedder.EnvOpenAIAPIKey) != "":
			c.Embedding.Provider = embedder.ProviderOpenAI
		case os.Getenv(embedder.EnvGeminiAPIKey) != "":
			c.Embedding.Provider = embedder.ProviderGemini
		default:
			c.Embedding.Provider = embedder.ProviderLocal
		}
	}
	if c.Embedding.APIKey == "" {
		switch c.Embedding.Provider {
		case embedder.ProviderOpenAI:
			c.Embedding.APIKey = os.Getenv(embedder.EnvOpenAIAPIKey)
		case embedder.ProviderGemini:
			c.Embedding.APIKey = os.Getenv(embedder.EnvGeminiAPIKey)
		}
	}
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = retriever.DefaultTopK
	}
	if c.Retrieval.ContextBudget == 0 {
		c.Retrieval.ContextBudget = retriever.DefaultContextBudget
	}
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error")
	}
	switch c.Embedding.Provider {
	case embedder.ProviderOpenAI, embedder.ProviderOllama,
		embedder.ProviderGemini, embedder.ProviderLocal:
	default:
		return fmt.Errorf("embedding.provider %q is not supported", c.Embedding.Provider)
	}
	if c.Retrieval.TopK < 0 {
		return fmt.Errorf("retrieval.top_k must not be negative")
	}
	return nil
}

// EmbedderConfig converts the embedding section for the provider factory.
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:  c.Embedding.Provider,
		Model:     c.Embedding.Model,
		APIKey:    c.Embedding.APIKey,
		BaseURL:   c.Embedding.BaseURL,
		CacheSize: c.Embedding.CacheSize,
	}
}
