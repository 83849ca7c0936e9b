package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProvider_Deterministic(t *testing.T) {
	l, err := NewLocalProvider(nil)
	require.NoError(t, err)

	a, err := l.EmbedQuery(context.Background(), "def add(a, b)")
	require.NoError(t, err)
	b, err := l.EmbedQuery(context.Background(), "def add(a, b)")
	require.NoError(t, err)
	c, err := l.EmbedQuery(context.Background(), "something else")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, LocalDimension)
	assert.Equal(t, LocalDimension, l.Dimension())
}

func TestLocalProvider_UnitVectors(t *testing.T) {
	l, err := NewLocalProvider(nil)
	require.NoError(t, err)

	vec, err := l.EmbedQuery(context.Background(), "normalize me")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestEmbedBatch_Validation(t *testing.T) {
	l, err := NewLocalProvider(nil)
	require.NoError(t, err)

	_, err = l.EmbedBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = l.EmbedBatch(context.Background(), []string{"ok", ""})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = l.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestCache_GetReturnsCopy(t *testing.T) {
	cache := NewCache(10)
	cache.Set("h", []float32{1, 2, 3})

	got, ok := cache.Get("h")
	require.True(t, ok)
	got[0] = 99

	again, ok := cache.Get("h")
	require.True(t, ok)
	assert.Equal(t, float32(1), again[0])
}

func TestCache_Eviction(t *testing.T) {
	cache := NewCache(2)
	cache.Set("a", []float32{1})
	cache.Set("b", []float32{2})
	cache.Set("c", []float32{3})

	assert.Equal(t, 2, cache.Size())
	_, ok := cache.Get("a")
	assert.False(t, ok)
}

func TestEmbedWithCache_SkipsCachedTexts(t *testing.T) {
	cache := NewCache(10)
	calls := 0
	fetch := func(_ context.Context, missing []string) ([][]float32, error) {
		calls++
		vecs := make([][]float32, len(missing))
		for i := range missing {
			vecs[i] = []float32{float32(len(missing[i]))}
		}
		return vecs, nil
	}

	first, err := embedWithCache(context.Background(), cache, []string{"aa", "bbb"}, fetch)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 1, calls)

	second, err := embedWithCache(context.Background(), cache, []string{"aa", "bbb"}, fetch)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	_, err = embedWithCache(context.Background(), cache, []string{"aa", "new"}, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestComputeHash(t *testing.T) {
	assert.Equal(t, ComputeHash("x"), ComputeHash("x"))
	assert.NotEqual(t, ComputeHash("x"), ComputeHash("y"))
	assert.Len(t, ComputeHash("x"), 64)
}

func TestNormalizeVector_Zero(t *testing.T) {
	zero := []float32{0, 0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}

func TestNew_Factory(t *testing.T) {
	emb, err := New(Config{Provider: ProviderLocal})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())

	_, err = New(Config{Provider: "bogus"})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = New(Config{Provider: ProviderOpenAI})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	_, err = New(Config{Provider: ProviderGemini})
	assert.ErrorIs(t, err, ErrNoProviderEnabled)

	emb, err = New(Config{Provider: ProviderOllama})
	require.NoError(t, err)
	assert.Equal(t, DefaultOllamaModel, emb.Model())
}

func TestNewFromEnv_FallsBackToLocal(t *testing.T) {
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvOpenAIAPIKey, "")
	t.Setenv(EnvGeminiAPIKey, "")

	emb, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())
}

func TestNewFromEnv_ExplicitProvider(t *testing.T) {
	t.Setenv(EnvProvider, ProviderOpenAI)
	t.Setenv(EnvOpenAIAPIKey, "test-key")

	emb, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, emb.Provider())
	assert.Equal(t, DefaultOpenAIModel, emb.Model())
}
