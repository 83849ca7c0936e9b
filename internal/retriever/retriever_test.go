package retriever

import (
	"context"
	"hash/fnv"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coderag/internal/graph"
	"coderag/internal/vectorindex"
	"coderag/pkg/types"
)

// stubEmbedder returns preassigned vectors by exact text.
type stubEmbedder struct {
	dim     int
	vectors map[string][]float32
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = s.vectors[text]
	}
	return out, nil
}

func (s *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stubEmbedder) Provider() string { return "stub" }
func (s *stubEmbedder) Model() string    { return "stub" }
func (s *stubEmbedder) Dimension() int   { return s.dim }
func (s *stubEmbedder) Close() error     { return nil }

// bagEmbedder hashes tokens into a fixed-size count vector. Texts sharing
// words land near each other under cosine distance, which is enough to
// exercise ranking without a model.
type bagEmbedder struct{ dim int }

func (b *bagEmbedder) embed(text string) []float32 {
	vec := make([]float32, b.dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%b.dim]++
	}
	return vec
}

func (b *bagEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = b.embed(text)
	}
	return out, nil
}

func (b *bagEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := b.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (b *bagEmbedder) Provider() string { return "bag" }
func (b *bagEmbedder) Model() string    { return "bag-of-words" }
func (b *bagEmbedder) Dimension() int   { return b.dim }
func (b *bagEmbedder) Close() error     { return nil }

// fixture builds a three-file corpus with an import edge app.py -> util.py
// and hand-placed vectors so distances are exact.
func fixture(t *testing.T) (*stubEmbedder, *vectorindex.Index, []types.CodeChunk, *graph.Graph) {
	t.Helper()

	chunks := []types.CodeChunk{
		{ID: "aaaaaaaaaaaa", Content: "run chunk", FilePath: "app.py", Kind: types.ChunkFunction, StartLine: 1, EndLine: 2},
		{ID: "bbbbbbbbbbbb", Content: "helper chunk", FilePath: "util.py", Kind: types.ChunkFunction, StartLine: 1, EndLine: 2},
		{ID: "cccccccccccc", Content: "other chunk", FilePath: "other.py", Kind: types.ChunkFunction, StartLine: 1, EndLine: 2},
	}

	emb := &stubEmbedder{
		dim: 2,
		vectors: map[string][]float32{
			"run chunk":    {0, 0.1},
			"helper chunk": {0, 5},
			"other chunk":  {0, 0.5},
			"run query":    {0, 0},
		},
	}

	index, err := vectorindex.New(2, vectorindex.MetricL2)
	require.NoError(t, err)
	for _, ch := range chunks {
		require.NoError(t, index.Add(emb.vectors[ch.Content]))
	}

	structures := map[string]*types.CodeStructure{
		"app.py": {
			FilePath:  "app.py",
			Language:  types.LangPython,
			Functions: []types.CodeFunction{{Name: "run"}},
			Imports:   []types.CodeImport{{Module: "util"}},
		},
		"util.py": {
			FilePath:  "util.py",
			Language:  types.LangPython,
			Functions: []types.CodeFunction{{Name: "helper"}},
		},
		"other.py": {
			FilePath:  "other.py",
			Language:  types.LangPython,
			Functions: []types.CodeFunction{{Name: "other"}},
		},
	}
	g := graph.Build([]string{"app.py", "util.py", "other.py"}, structures)

	return emb, index, chunks, g
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	emb, index, chunks, g := fixture(t)
	r := New(emb, index, chunks, g, Options{}, nil)

	for _, query := range []string{"", "   ", "\t\n"} {
		result, err := r.Retrieve(context.Background(), query, 5)
		require.NoError(t, err)
		assert.Empty(t, result.Results)
		assert.Equal(t, 3, result.ChunksSearched)
	}
}

func TestRetrieve_PrimaryOrderingAndConfidence(t *testing.T) {
	emb, index, chunks, g := fixture(t)
	r := New(emb, index, chunks, g, Options{}, nil)

	result, err := r.Retrieve(context.Background(), "run query", 2)
	require.NoError(t, err)

	var primary []types.RetrievedChunk
	for _, res := range result.Results {
		if !res.Expanded {
			primary = append(primary, res)
		}
	}
	require.Len(t, primary, 2)

	// Distances from (0,0): run 0.1, other 0.5, helper 5.
	assert.Equal(t, "app.py", primary[0].Chunk.FilePath)
	assert.InDelta(t, 0.1, primary[0].Distance, 1e-6)
	assert.InDelta(t, 0.9, primary[0].Confidence, 1e-6)
	assert.Equal(t, "other.py", primary[1].Chunk.FilePath)
	assert.InDelta(t, 0.5, primary[1].Confidence, 1e-6)
}

func TestRetrieve_ConfidenceFloorsAtZero(t *testing.T) {
	emb, index, chunks, g := fixture(t)
	r := New(emb, index, chunks, g, Options{}, nil)

	result, err := r.Retrieve(context.Background(), "run query", 3)
	require.NoError(t, err)

	// helper chunk sits at distance 5; confidence clamps to 0.
	for _, res := range result.Results {
		if !res.Expanded && res.Chunk.FilePath == "util.py" {
			assert.Equal(t, float64(0), res.Confidence)
		}
	}
}

func TestRetrieve_ExpansionClosure(t *testing.T) {
	emb, index, chunks, g := fixture(t)
	r := New(emb, index, chunks, g, Options{}, nil)

	result, err := r.Retrieve(context.Background(), "run query", 1)
	require.NoError(t, err)

	primaryFiles := make(map[string]bool)
	for _, res := range result.Results {
		if !res.Expanded {
			primaryFiles[res.Chunk.FilePath] = true
		}
	}
	require.True(t, primaryFiles["app.py"])

	var expanded []types.RetrievedChunk
	for _, res := range result.Results {
		if res.Expanded {
			expanded = append(expanded, res)
		}
	}
	require.NotEmpty(t, expanded)

	// Every expansion chunk's file is one hop from some primary file,
	// and expansion carries no similarity claim.
	for _, res := range expanded {
		hop := false
		for file := range primaryFiles {
			for _, neighbor := range g.FileNeighbors(file) {
				if neighbor == res.Chunk.FilePath {
					hop = true
				}
			}
		}
		assert.True(t, hop, "expansion chunk from %s is not a one-hop neighbor", res.Chunk.FilePath)
		assert.Equal(t, float64(0), res.Confidence)
	}
}

func TestRetrieve_DedupeExpansion(t *testing.T) {
	emb, index, chunks, g := fixture(t)

	// topK 3 makes util.py both a primary result and an expansion target.
	loose := New(emb, index, chunks, g, Options{}, nil)
	result, err := loose.Retrieve(context.Background(), "run query", 3)
	require.NoError(t, err)

	countUtil := 0
	for _, res := range result.Results {
		if res.Chunk.FilePath == "util.py" {
			countUtil++
		}
	}
	assert.Equal(t, 2, countUtil, "default keeps the duplicate")

	deduped := New(emb, index, chunks, g, Options{DedupeExpansion: true}, nil)
	result, err = deduped.Retrieve(context.Background(), "run query", 3)
	require.NoError(t, err)

	countUtil = 0
	for _, res := range result.Results {
		if res.Chunk.FilePath == "util.py" {
			countUtil++
		}
	}
	assert.Equal(t, 1, countUtil)
}

func TestRetrieve_DefaultTopK(t *testing.T) {
	emb, index, chunks, g := fixture(t)
	r := New(emb, index, chunks, g, Options{TopK: 1}, nil)

	result, err := r.Retrieve(context.Background(), "run query", 0)
	require.NoError(t, err)

	primary := 0
	for _, res := range result.Results {
		if !res.Expanded {
			primary++
		}
	}
	assert.Equal(t, 1, primary)
}
