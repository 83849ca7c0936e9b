package embedder

import (
	"fmt"
	"os"
	"strings"
)

// Provider identifiers. The active provider and model are persisted with
// each index so loads reconstruct a query embedder that matches the
// stored vectors.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
	ProviderLocal  = "local"
)

// Environment variable names for key discovery.
const (
	EnvProvider     = "CODERAG_EMBEDDING_PROVIDER"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvGeminiAPIKey = "GEMINI_API_KEY"
)

// Config selects and configures a provider.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	CacheSize int
}

// New creates an embedder from explicit configuration.
func New(cfg Config) (Embedder, error) {
	cache := NewCache(cfg.CacheSize)

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL, cache)
	case ProviderOllama:
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cache)
	case ProviderGemini:
		return NewGeminiProvider(cfg.APIKey, cfg.Model, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// NewFromEnv creates an embedder from the environment. An explicit
// CODERAG_EMBEDDING_PROVIDER wins; otherwise the first available API key
// decides, falling back to the local provider.
func NewFromEnv() (Embedder, error) {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return New(Config{
			Provider: provider,
			APIKey:   apiKeyFor(provider),
		})
	}
	if key := os.Getenv(EnvOpenAIAPIKey); key != "" {
		return New(Config{Provider: ProviderOpenAI, APIKey: key})
	}
	if key := os.Getenv(EnvGeminiAPIKey); key != "" {
		return New(Config{Provider: ProviderGemini, APIKey: key})
	}
	return New(Config{Provider: ProviderLocal})
}

func apiKeyFor(provider string) string {
	switch strings.ToLower(provider) {
	case ProviderOpenAI:
		return os.Getenv(EnvOpenAIAPIKey)
	case ProviderGemini:
		return os.Getenv(EnvGeminiAPIKey)
	default:
		return ""
	}
}
