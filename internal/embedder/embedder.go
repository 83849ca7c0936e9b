// Package embedder generates vector embeddings for chunk summaries and
// queries. Providers share one interface: the build pipeline embeds chunk
// batches, the retriever embeds single queries, and both go through the
// same content-hash LRU cache so rebuilds of unchanged text never pay for
// API calls twice.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnknownProvider   = errors.New("unknown embedding provider")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedder generates embeddings. Implementations embed a whole batch in
// one provider round trip where the API allows it.
type Embedder interface {
	// EmbedBatch embeds texts in order; the result has one vector per
	// input text.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single retrieval query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Provider returns the provider identifier persisted with an index.
	Provider() string

	// Model returns the model name persisted with an index.
	Model() string

	// Dimension returns the fixed embedding dimension.
	Dimension() int

	// Close releases provider resources.
	Close() error
}

// Cache is an in-memory LRU of embeddings keyed by content hash.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// DefaultCacheSize bounds the cache when no size is configured.
const DefaultCacheSize = 10000

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		cache, _ = lru.New[string, []float32](DefaultCacheSize)
	}
	return &Cache{cache: cache}
}

// Get returns a copy of the cached vector so callers cannot mutate the
// cached value.
func (c *Cache) Get(hash string) ([]float32, bool) {
	vec, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

// Set stores a vector; LRU eviction is automatic at capacity.
func (c *Cache) Set(hash string, vec []float32) {
	c.cache.Add(hash, vec)
}

// Size returns the current entry count.
func (c *Cache) Size() int { return c.cache.Len() }

// Clear empties the cache.
func (c *Cache) Clear() { c.cache.Purge() }

// ComputeHash returns the SHA-256 cache key for a text.
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func validateBatch(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}

// embedWithCache runs a batch through the cache: cached texts are served
// locally, misses go to fetch in one call, and fresh vectors are cached.
func embedWithCache(ctx context.Context, cache *Cache, texts []string, fetch func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if cache != nil {
			if vec, ok := cache.Get(ComputeHash(text)); ok {
				out[i] = vec
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := fetch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missing) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d",
			ErrProviderFailed, len(missing), len(fetched))
	}
	for j, vec := range fetched {
		out[missingIdx[j]] = vec
		if cache != nil {
			cache.Set(ComputeHash(missing[j]), vec)
		}
	}
	return out, nil
}

// NormalizeVector scales a vector to unit length. Zero vectors pass
// through unchanged.
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}
