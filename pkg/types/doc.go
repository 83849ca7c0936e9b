// Package types provides shared type definitions for the coderag engine.
//
// This package defines the domain types that flow through the indexing
// pipeline: per-file code structures produced by the analyzer, retrievable
// chunks produced by the chunker, and the retrieval results returned to
// callers.
//
// # Core Types
//
// CodeStructure is the language-aware structural summary of one file:
//
//	structure := &types.CodeStructure{
//	    FilePath:  "services/auth.py",
//	    Language:  types.LangPython,
//	    Functions: []types.CodeFunction{{Name: "login", StartLine: 10}},
//	}
//
// CodeChunk is a retrievable unit of summarized code information tied to
// one file or symbol. Chunk IDs are deterministic, so re-indexing the same
// repository snapshot reproduces the same IDs:
//
//	id := types.NewChunkID("services/auth.py", "login", types.ChunkFunction)
//
// RetrievedChunk pairs a chunk with its per-query confidence score. The
// score is meaningful only relative to other results of the same query
// against the same index.
package types
