package types

import "time"

// RetrievedChunk pairs a chunk with its per-query relevance information.
type RetrievedChunk struct {
	Chunk *CodeChunk
	// Distance is the raw vector distance for primary results; expansion
	// results carry no distance of their own.
	Distance float64
	// Confidence is max(0, 1-distance). It is only meaningful relative to
	// other results from the same query against the same index.
	Confidence float64
	// Expanded marks results that were pulled in by graph-neighbor
	// expansion rather than vector similarity.
	Expanded bool
}

// QueryResult is the full outcome of one retrieval call.
type QueryResult struct {
	Results        []RetrievedChunk
	QueryTime      time.Duration
	ChunksSearched int
}

// BuildReport summarizes one index build.
type BuildReport struct {
	RepositoryKey     string
	TotalFiles        int
	TotalChunks       int
	LanguagesDetected []string
	BuildTime         time.Duration
	IndexSizeBytes    int64
	BuiltAt           time.Time
}
