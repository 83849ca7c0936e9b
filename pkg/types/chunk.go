package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ChunkKind represents the kind of code chunk.
type ChunkKind string

const (
	ChunkFunction ChunkKind = "function"
	ChunkClass    ChunkKind = "class"
	ChunkMethod   ChunkKind = "method"
	ChunkImports  ChunkKind = "imports"
	ChunkFile     ChunkKind = "file"
)

// ChunkIDLength is the fixed length of a chunk identifier.
const ChunkIDLength = 12

// CodeChunk is a retrievable unit of summarized code information.
//
// Content is a synthesized textual description of the symbol, never the
// raw source body; chunks are optimized for embedding-based retrieval, not
// byte-exact reproduction. Chunks are created once during a build and are
// immutable afterwards; a changed repository triggers a full rebuild of
// its chunk set.
type CodeChunk struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	FilePath  string         `json:"file_path"`
	Kind      ChunkKind      `json:"kind"`
	Language  Language       `json:"language"`
	StartLine int            `json:"start_line"`
	EndLine   int            `json:"end_line"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"-"`
}

// NewChunkID derives the deterministic identifier for a chunk from its
// file path, symbol (or section) name, and kind. Re-indexing the same
// repository snapshot reproduces the same IDs. Collisions after
// truncation are accepted as negligibly probable and not detected.
func NewChunkID(filePath, name string, kind ChunkKind) string {
	sum := sha256.Sum256([]byte(filePath + ":" + name + ":" + string(kind)))
	return hex.EncodeToString(sum[:])[:ChunkIDLength]
}

// Validate checks structural integrity of the chunk.
func (c *CodeChunk) Validate() error {
	if len(c.ID) != ChunkIDLength {
		return errors.New("chunk ID must have the fixed identifier length")
	}
	if c.Content == "" {
		return ErrEmptyContent
	}
	if c.FilePath == "" {
		return errors.New("chunk must reference its owning file")
	}
	switch c.Kind {
	case ChunkFunction, ChunkClass, ChunkMethod, ChunkImports, ChunkFile:
	default:
		return errors.New("invalid chunk kind")
	}
	if c.StartLine < 0 || c.EndLine < c.StartLine {
		return errors.New("invalid chunk line range")
	}
	return nil
}
