package embedder

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const (
	// DefaultGeminiModel is Google's general-purpose embedding model.
	DefaultGeminiModel = "text-embedding-004"
	geminiDimension    = 768
)

// GeminiProvider embeds through the Gemini API.
type GeminiProvider struct {
	apiKey string
	model  string
	cache  *Cache
}

// NewGeminiProvider creates a Gemini embedder.
func NewGeminiProvider(apiKey, model string, cache *Cache) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key not set", ErrNoProviderEnabled)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiProvider{apiKey: apiKey, model: model, cache: cache}, nil
}

// EmbedBatch implements Embedder.
func (p *GeminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedWithCache(ctx, p.cache, texts, func(ctx context.Context, missing []string) ([][]float32, error) {
		config := DefaultRetryConfig()
		vecs, err := retryWithBackoff(ctx, config, func() ([][]float32, error) {
			return p.callAPI(ctx, missing)
		})
		if err != nil {
			return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, MaxRetries, err)
		}
		return vecs, nil
	})
}

// EmbedQuery implements Embedder.
func (p *GeminiProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *GeminiProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
	}

	resp, err := client.Models.EmbedContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	vecs := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		vecs[i] = emb.Values
	}
	return vecs, nil
}

// Provider implements Embedder.
func (p *GeminiProvider) Provider() string { return ProviderGemini }

// Model implements Embedder.
func (p *GeminiProvider) Model() string { return p.model }

// Dimension implements Embedder.
func (p *GeminiProvider) Dimension() int { return geminiDimension }

// Close implements Embedder.
func (p *GeminiProvider) Close() error { return nil }
