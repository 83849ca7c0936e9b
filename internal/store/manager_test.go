package store

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"coderag/internal/embedder"
	"coderag/pkg/types"
)

const sampleIngest = `================================================
FILE: calculator.py
================================================
import math

class Calculator:
    def add(self, a, b):
        return a + b

    def multiply(self, a, b):
        return a * b

================================================
FILE: main.py
================================================
from calculator import Calculator

def main():
    calc = Calculator()
    print(calc.add(1, 2))

if __name__ == "__main__":
    main()
`

// countingEmbedder produces deterministic vectors and tracks how many
// batch calls it has served, shared across manager instances.
type countingEmbedder struct {
	dim     int
	batches *atomic.Int32
}

func (e *countingEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dim)
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()
	for i := range vec {
		vec[i] = float32((seed>>(uint(i)%24))%7) + 1
	}
	return embedder.NormalizeVector(vec)
}

func (e *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.batches.Add(1)
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = e.embed(text)
	}
	return vecs, nil
}

func (e *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *countingEmbedder) Provider() string { return "counting" }
func (e *countingEmbedder) Model() string    { return "counting-v1" }
func (e *countingEmbedder) Dimension() int   { return e.dim }
func (e *countingEmbedder) Close() error     { return nil }

func newTestManager(t *testing.T, root string, batches *atomic.Int32) *Manager {
	t.Helper()
	factory := func(embedder.Config) (embedder.Embedder, error) {
		return &countingEmbedder{dim: 8, batches: batches}, nil
	}
	m, err := NewManager(Config{Root: root}, zap.NewNop(), WithEmbedderFactory(factory))
	require.NoError(t, err)
	return m
}

func writeIngest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repo.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleIngest), 0o644))
	return path
}

func TestManager_BuildProducesArtifacts(t *testing.T) {
	root := t.TempDir()
	var batches atomic.Int32
	m := newTestManager(t, root, &batches)
	ingestPath := writeIngest(t)

	assert.Equal(t, StateUninitialized, m.Status("calc"))
	assert.False(t, m.IndexExists("calc"))

	art, err := m.BuildOrLoad(context.Background(), "calc", ingestPath)
	require.NoError(t, err)

	assert.Equal(t, StateReady, m.Status("calc"))
	assert.True(t, m.IndexExists("calc"))
	for _, name := range []string{ChunksFile, VectorsFile, GraphFile} {
		_, err := os.Stat(filepath.Join(root, "calc", name))
		assert.NoError(t, err, name)
	}

	assert.Equal(t, 2, art.Report.TotalFiles)
	assert.Equal(t, len(art.Chunks), art.Report.TotalChunks)
	assert.Equal(t, []string{"python"}, art.Report.LanguagesDetected)
	assert.Positive(t, art.Report.IndexSizeBytes)
	assert.Equal(t, art.Index.Count(), len(art.Chunks))
}

func TestManager_LoadDoesNotReembed(t *testing.T) {
	root := t.TempDir()
	var batches atomic.Int32
	ingestPath := writeIngest(t)

	m1 := newTestManager(t, root, &batches)
	built, err := m1.BuildOrLoad(context.Background(), "calc", ingestPath)
	require.NoError(t, err)
	afterBuild := batches.Load()
	require.Positive(t, afterBuild)

	// Fresh manager, same root: must load from disk without embedding.
	m2 := newTestManager(t, root, &batches)
	loaded, err := m2.BuildOrLoad(context.Background(), "calc", ingestPath)
	require.NoError(t, err)

	assert.Equal(t, afterBuild, batches.Load())
	assert.Equal(t, len(built.Chunks), len(loaded.Chunks))
	assert.Equal(t, built.Index.Count(), loaded.Index.Count())
	for i := range built.Chunks {
		assert.Equal(t, built.Chunks[i].ID, loaded.Chunks[i].ID)
	}
}

func TestManager_RebuildKeepsChunkIDs(t *testing.T) {
	root := t.TempDir()
	var batches atomic.Int32
	m := newTestManager(t, root, &batches)
	ingestPath := writeIngest(t)

	first, err := m.BuildOrLoad(context.Background(), "calc", ingestPath)
	require.NoError(t, err)

	removed, err := m.Invalidate("calc")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, StateUninitialized, m.Status("calc"))

	second, err := m.BuildOrLoad(context.Background(), "calc", ingestPath)
	require.NoError(t, err)

	require.Equal(t, len(first.Chunks), len(second.Chunks))
	for i := range first.Chunks {
		assert.Equal(t, first.Chunks[i].ID, second.Chunks[i].ID)
	}
}

func TestManager_InvalidateMissingKey(t *testing.T) {
	var batches atomic.Int32
	m := newTestManager(t, t.TempDir(), &batches)

	removed, err := m.Invalidate("never-built")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestManager_RejectsBadKeys(t *testing.T) {
	var batches atomic.Int32
	m := newTestManager(t, t.TempDir(), &batches)

	for _, key := range []string{"", "..", "a/b", ".hidden"} {
		_, err := m.BuildOrLoad(context.Background(), key, "unused")
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestManager_CorruptVectorsTriggersRebuild(t *testing.T) {
	root := t.TempDir()
	var batches atomic.Int32
	ingestPath := writeIngest(t)

	m1 := newTestManager(t, root, &batches)
	_, err := m1.BuildOrLoad(context.Background(), "calc", ingestPath)
	require.NoError(t, err)
	afterBuild := batches.Load()

	vectorsPath := filepath.Join(root, "calc", VectorsFile)
	require.NoError(t, os.WriteFile(vectorsPath, []byte("garbage"), 0o644))

	m2 := newTestManager(t, root, &batches)
	art, err := m2.BuildOrLoad(context.Background(), "calc", ingestPath)
	require.NoError(t, err)

	assert.Greater(t, batches.Load(), afterBuild)
	assert.Positive(t, art.Index.Count())
	assert.True(t, m2.IndexExists("calc"))
}

func TestManager_ConcurrentBuildsShareOneBuild(t *testing.T) {
	root := t.TempDir()
	var batches atomic.Int32
	m := newTestManager(t, root, &batches)
	ingestPath := writeIngest(t)

	const callers = 8
	results := make([]*Artifacts, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			art, err := m.BuildOrLoad(context.Background(), "calc", ingestPath)
			assert.NoError(t, err)
			results[i] = art
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), batches.Load())
	for i := 1; i < callers; i++ {
		assert.Same(t, results[0], results[i])
	}
}

func TestManager_CachedHandleReused(t *testing.T) {
	root := t.TempDir()
	var batches atomic.Int32
	m := newTestManager(t, root, &batches)
	ingestPath := writeIngest(t)

	first, err := m.BuildOrLoad(context.Background(), "calc", ingestPath)
	require.NoError(t, err)
	second, err := m.BuildOrLoad(context.Background(), "calc", ingestPath)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), batches.Load())
}

func TestChunkStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.db")
	cs, err := OpenChunkStore(path)
	require.NoError(t, err)
	defer cs.Close()

	ctx := context.Background()
	chunks := []types.CodeChunk{
		{
			ID:        types.NewChunkID("a.py", "run", types.ChunkFunction),
			Content:   "Function: run",
			FilePath:  "a.py",
			Kind:      types.ChunkFunction,
			Language:  types.LangPython,
			StartLine: 1,
			EndLine:   4,
			Metadata:  map[string]any{"name": "run"},
		},
		{
			ID:       types.NewChunkID("a.py", "a.py", types.ChunkFile),
			Content:  "File: a.py",
			FilePath: "a.py",
			Kind:     types.ChunkFile,
			Language: types.LangPython,
		},
	}
	require.NoError(t, cs.SaveChunks(ctx, chunks))
	require.NoError(t, cs.SetMeta(ctx, MetaProvider, "local"))

	loaded, err := cs.LoadChunks(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, chunks[0].ID, loaded[0].ID)
	assert.Equal(t, chunks[0].Content, loaded[0].Content)
	assert.Equal(t, "run", loaded[0].Metadata["name"])
	assert.Equal(t, chunks[1].Kind, loaded[1].Kind)

	provider, err := cs.GetMeta(ctx, MetaProvider)
	require.NoError(t, err)
	assert.Equal(t, "local", provider)

	missing, err := cs.GetMeta(ctx, "no-such-key")
	require.NoError(t, err)
	assert.Empty(t, missing)
}
