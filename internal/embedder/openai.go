package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultOpenAIModel balances quality and cost for code summaries.
	DefaultOpenAIModel = "text-embedding-3-small"
	openAIDimension    = 1536
	openAIEndpoint     = "https://api.openai.com/v1/embeddings"

	// MaxBatchSize caps one API round trip.
	MaxBatchSize = 100
)

// OpenAIProvider embeds through the OpenAI embeddings API.
type OpenAIProvider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	cache      *Cache
}

// NewOpenAIProvider creates an OpenAI embedder. An empty model selects the
// default; an empty baseURL selects the public API endpoint.
func NewOpenAIProvider(apiKey, model, baseURL string, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key not set", ErrNoProviderEnabled)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	endpoint := openAIEndpoint
	if baseURL != "" {
		endpoint = baseURL + "/v1/embeddings"
	}
	return &OpenAIProvider{
		apiKey:     apiKey,
		model:      model,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
	}, nil
}

// EmbedBatch implements Embedder.
func (o *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedWithCache(ctx, o.cache, texts, func(ctx context.Context, missing []string) ([][]float32, error) {
		var out [][]float32
		for start := 0; start < len(missing); start += MaxBatchSize {
			end := min(start+MaxBatchSize, len(missing))
			config := DefaultRetryConfig()
			vecs, err := retryWithBackoff(ctx, config, func() ([][]float32, error) {
				return o.callAPI(ctx, missing[start:end])
			})
			if err != nil {
				return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, MaxRetries, err)
			}
			out = append(out, vecs...)
		}
		return out, nil
	})
}

// EmbedQuery implements Embedder.
func (o *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]any{
		"input": texts,
		"model": o.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Data))
	}

	vecs := make([][]float32, len(apiResp.Data))
	for i, data := range apiResp.Data {
		vecs[i] = data.Embedding
	}
	return vecs, nil
}

// Provider implements Embedder.
func (o *OpenAIProvider) Provider() string { return ProviderOpenAI }

// Model implements Embedder.
func (o *OpenAIProvider) Model() string { return o.model }

// Dimension implements Embedder.
func (o *OpenAIProvider) Dimension() int { return openAIDimension }

// Close implements Embedder.
func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
