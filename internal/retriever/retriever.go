// Package retriever answers queries against a built index: vector search
// supplies the primary results, the relationship graph expands them with
// chunks from structurally related files.
package retriever

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"coderag/internal/embedder"
	"coderag/internal/graph"
	"coderag/internal/vectorindex"
	"coderag/pkg/types"
)

// DefaultTopK is the primary result count when the caller passes none.
const DefaultTopK = 5

// Options tunes retrieval behavior.
type Options struct {
	// TopK is the default primary result count.
	TopK int
	// DedupeExpansion drops expansion chunks that already appear in the
	// primary set. Off by default: duplicates tell the consumer that a
	// chunk is both similar to the query and structurally related.
	DedupeExpansion bool
}

// Retriever executes queries against one repository's artifacts. The
// chunk slice must be position-aligned with the vector index: result
// position i resolves to chunks[i].
type Retriever struct {
	embedder embedder.Embedder
	index    *vectorindex.Index
	chunks   []types.CodeChunk
	byFile   map[string][]int
	graph    *graph.Graph
	opts     Options
	logger   *zap.Logger
}

// New creates a Retriever over built artifacts.
func New(emb embedder.Embedder, index *vectorindex.Index, chunks []types.CodeChunk, g *graph.Graph, opts Options, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	byFile := make(map[string][]int)
	for i := range chunks {
		byFile[chunks[i].FilePath] = append(byFile[chunks[i].FilePath], i)
	}
	return &Retriever{
		embedder: emb,
		index:    index,
		chunks:   chunks,
		byFile:   byFile,
		graph:    g,
		opts:     opts,
		logger:   logger,
	}
}

// Retrieve runs a query. The primary results are the topK nearest chunks
// by ascending distance with confidence max(0, 1-distance); the expansion
// results are every chunk of every file one hop from a primary result's
// file in the graph, marked Expanded with confidence 0. A blank query
// returns an empty result and no error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) (*types.QueryResult, error) {
	start := time.Now()

	result := &types.QueryResult{ChunksSearched: r.index.Count()}
	if strings.TrimSpace(query) == "" {
		result.QueryTime = time.Since(start)
		return result, nil
	}
	if topK <= 0 {
		topK = r.opts.TopK
	}

	queryVec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.index.Search(queryVec, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	seen := make(map[string]bool, len(hits))
	primaryFiles := make([]string, 0, len(hits))
	seenFiles := make(map[string]bool)

	for _, hit := range hits {
		chunk := &r.chunks[hit.Position]
		result.Results = append(result.Results, types.RetrievedChunk{
			Chunk:      chunk,
			Distance:   hit.Distance,
			Confidence: max(0, 1-hit.Distance),
		})
		seen[chunk.ID] = true
		if !seenFiles[chunk.FilePath] {
			seenFiles[chunk.FilePath] = true
			primaryFiles = append(primaryFiles, chunk.FilePath)
		}
	}

	result.Results = append(result.Results, r.expand(primaryFiles, seen)...)
	result.QueryTime = time.Since(start)

	r.logger.Debug("query executed",
		zap.String("query", query),
		zap.Int("primary", len(hits)),
		zap.Int("total", len(result.Results)),
		zap.Duration("took", result.QueryTime))
	return result, nil
}

// expand gathers the chunks of every file one hop from a primary file.
// Expansion visits each neighbor file once even when several primary
// results share it.
func (r *Retriever) expand(primaryFiles []string, primaryIDs map[string]bool) []types.RetrievedChunk {
	if r.graph == nil {
		return nil
	}

	var expanded []types.RetrievedChunk
	visited := make(map[string]bool)

	for _, file := range primaryFiles {
		for _, neighbor := range r.graph.FileNeighbors(file) {
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true

			for _, pos := range r.byFile[neighbor] {
				chunk := &r.chunks[pos]
				if r.opts.DedupeExpansion && primaryIDs[chunk.ID] {
					continue
				}
				expanded = append(expanded, types.RetrievedChunk{
					Chunk:    chunk,
					Expanded: true,
				})
			}
		}
	}
	return expanded
}
