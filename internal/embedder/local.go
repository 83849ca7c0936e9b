package embedder

import (
	"context"
	"crypto/sha256"
)

const (
	// LocalDimension is small on purpose; the local provider exists for
	// offline operation and tests, not retrieval quality.
	LocalDimension = 384

	localModelName = "local-hash"
)

// LocalProvider generates deterministic embeddings from content hashes.
// It needs no network or API key and always produces the same vector for
// the same text, which makes indexes built with it reproducible.
type LocalProvider struct {
	cache *Cache
}

// NewLocalProvider creates the offline fallback embedder.
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{cache: cache}, nil
}

// EmbedBatch implements Embedder.
func (l *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedWithCache(ctx, l.cache, texts, func(_ context.Context, missing []string) ([][]float32, error) {
		vecs := make([][]float32, len(missing))
		for i, text := range missing {
			vecs[i] = hashVector(text)
		}
		return vecs, nil
	})
}

// EmbedQuery implements Embedder.
func (l *LocalProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vecs, err := l.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func hashVector(text string) []float32 {
	vector := make([]float32, LocalDimension)
	sum := sha256.Sum256([]byte(text))
	// Stretch the 32 hash bytes across the vector by re-hashing per block.
	for block := 0; block*len(sum) < LocalDimension; block++ {
		for i, b := range sum {
			pos := block*len(sum) + i
			if pos >= LocalDimension {
				break
			}
			vector[pos] = float32(b)/255.0 - 0.5
		}
		sum = sha256.Sum256(sum[:])
	}
	return NormalizeVector(vector)
}

// Provider implements Embedder.
func (l *LocalProvider) Provider() string { return ProviderLocal }

// Model implements Embedder.
func (l *LocalProvider) Model() string { return localModelName }

// Dimension implements Embedder.
func (l *LocalProvider) Dimension() int { return LocalDimension }

// Close implements Embedder.
func (l *LocalProvider) Close() error { return nil }
