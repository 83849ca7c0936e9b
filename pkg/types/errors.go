package types

import "errors"

// Domain errors shared across the pipeline.
var (
	// ErrNoFileMarkers means the ingest text contains no recognizable file
	// markers; no partial index is built from such input.
	ErrNoFileMarkers = errors.New("ingest contains no file markers")

	// ErrEmptyContent is returned for chunks without textual content.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrIndexCorrupt means persisted artifacts failed to deserialize.
	// Callers treat it identically to missing artifacts and rebuild.
	ErrIndexCorrupt = errors.New("persisted index artifacts are corrupt")

	// ErrDimensionMismatch is returned when a vector's dimension does not
	// match the index's fixed dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)
