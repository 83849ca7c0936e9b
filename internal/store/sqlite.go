package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"coderag/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
    position   INTEGER PRIMARY KEY,
    id         TEXT NOT NULL,
    content    TEXT NOT NULL,
    file_path  TEXT NOT NULL,
    kind       TEXT NOT NULL,
    language   TEXT NOT NULL,
    start_line INTEGER NOT NULL,
    end_line   INTEGER NOT NULL,
    metadata   TEXT
);

CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_path);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Meta keys persisted alongside the chunk list. Provider, model and
// dimension let a load reconstruct a query embedder compatible with the
// stored vectors.
const (
	MetaProvider  = "embedder_provider"
	MetaModel     = "embedder_model"
	MetaDimension = "embedder_dimension"
	MetaMetric    = "vector_metric"
	MetaBuiltAt   = "built_at"
)

// ChunkStore persists the position-ordered chunk list for one repository
// key. Positions mirror vector index positions exactly.
type ChunkStore struct {
	db *sql.DB
}

// OpenChunkStore opens (or creates) the chunk database at path.
func OpenChunkStore(path string) (*ChunkStore, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open chunk db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	// Artifacts are written once and read many times; a single connection
	// avoids SQLite writer contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &ChunkStore{db: db}, nil
}

// Close closes the database.
func (s *ChunkStore) Close() error {
	return s.db.Close()
}

// SaveChunks replaces the stored chunk list, keyed by slice position.
func (s *ChunkStore) SaveChunks(ctx context.Context, chunks []types.CodeChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (position, id, content, file_path, kind, language, start_line, end_line, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for i, ch := range chunks {
		meta, err := json.Marshal(ch.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, i, ch.ID, ch.Content, ch.FilePath,
			string(ch.Kind), string(ch.Language), ch.StartLine, ch.EndLine, string(meta)); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunks: %w", err)
	}
	return nil
}

// LoadChunks returns the stored chunk list in position order. Decode
// failures are reported as index corruption.
func (s *ChunkStore) LoadChunks(ctx context.Context) ([]types.CodeChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, file_path, kind, language, start_line, end_line, metadata
		FROM chunks ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("%w: query chunks: %v", types.ErrIndexCorrupt, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var chunks []types.CodeChunk
	for rows.Next() {
		var (
			ch               types.CodeChunk
			kind, lang, meta string
		)
		if err := rows.Scan(&ch.ID, &ch.Content, &ch.FilePath, &kind, &lang,
			&ch.StartLine, &ch.EndLine, &meta); err != nil {
			return nil, fmt.Errorf("%w: scan chunk: %v", types.ErrIndexCorrupt, err)
		}
		ch.Kind = types.ChunkKind(kind)
		ch.Language = types.Language(lang)
		if meta != "" && meta != "null" {
			if err := json.Unmarshal([]byte(meta), &ch.Metadata); err != nil {
				return nil, fmt.Errorf("%w: decode chunk metadata: %v", types.ErrIndexCorrupt, err)
			}
		}
		chunks = append(chunks, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate chunks: %v", types.ErrIndexCorrupt, err)
	}
	return chunks, nil
}

// SetMeta stores a metadata key.
func (s *ChunkStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

// GetMeta reads a metadata key; missing keys return "".
func (s *ChunkStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: read meta %s: %v", types.ErrIndexCorrupt, key, err)
	}
	return value, nil
}
