// Package store owns the on-disk index artifacts and their lifecycle.
//
// Each repository key maps to a directory holding three files: chunks.db
// (chunk list and metadata), vectors.idx (vector index) and graph.json
// (relationship graph). The presence of all three is the readiness
// signal. Builds stage into a temp directory and rename into place, so a
// failed build never leaves partial artifacts behind.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"coderag/internal/analyzer"
	"coderag/internal/chunker"
	"coderag/internal/embedder"
	"coderag/internal/graph"
	"coderag/internal/ingest"
	"coderag/internal/vectorindex"
	"coderag/pkg/types"
)

// Artifact file names inside a key directory.
const (
	ChunksFile  = "chunks.db"
	VectorsFile = "vectors.idx"
	GraphFile   = "graph.json"
)

// BuildState describes a repository key's lifecycle position.
type BuildState string

const (
	StateUninitialized BuildState = "uninitialized"
	StateBuilding      BuildState = "building"
	StateReady         BuildState = "ready"
)

// ErrInvalidKey rejects repository keys that would escape the storage
// root or collide with staging directories.
var ErrInvalidKey = errors.New("invalid repository key")

// Artifacts is the in-memory handle for one built repository: everything
// a Retriever needs, plus the build report.
type Artifacts struct {
	Key      string
	Embedder embedder.Embedder
	Index    *vectorindex.Index
	Chunks   []types.CodeChunk
	Graph    *graph.Graph
	Report   types.BuildReport
}

// Config configures a Manager.
type Config struct {
	// Root is the artifact storage directory.
	Root string
	// Embedding selects the provider for new builds.
	Embedding embedder.Config
	// Metric defaults to cosine.
	Metric vectorindex.Metric
	// SmallFileThreshold is passed to the chunker; zero means default.
	SmallFileThreshold int
}

// Manager builds, loads, caches and invalidates per-key artifacts.
// At most one build runs per key at a time; concurrent callers share the
// in-flight build's result.
type Manager struct {
	cfg      Config
	logger   *zap.Logger
	analyzer *analyzer.Analyzer
	chunker  *chunker.Chunker

	// NewEmbedder is the embedder factory, injectable for tests. Builds
	// call it with cfg.Embedding; loads call it with the persisted
	// provider and model.
	newEmbedder func(embedder.Config) (embedder.Embedder, error)

	group    singleflight.Group
	mu       sync.Mutex
	building map[string]bool
	handles  map[string]*Artifacts
}

// Option configures a Manager.
type Option func(*Manager)

// WithEmbedderFactory overrides how embedders are constructed.
func WithEmbedderFactory(factory func(embedder.Config) (embedder.Embedder, error)) Option {
	return func(m *Manager) { m.newEmbedder = factory }
}

// NewManager creates a Manager rooted at cfg.Root.
func NewManager(cfg Config, logger *zap.Logger, opts ...Option) (*Manager, error) {
	if cfg.Root == "" {
		return nil, errors.New("storage root must be set")
	}
	if cfg.Metric == 0 {
		cfg.Metric = vectorindex.MetricCosine
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	var chunkerOpts []chunker.Option
	if cfg.SmallFileThreshold > 0 {
		chunkerOpts = append(chunkerOpts, chunker.WithSmallFileThreshold(cfg.SmallFileThreshold))
	}

	m := &Manager{
		cfg:         cfg,
		logger:      logger,
		analyzer:    analyzer.New(logger),
		chunker:     chunker.New(chunkerOpts...),
		newEmbedder: embedder.New,
		building:    make(map[string]bool),
		handles:     make(map[string]*Artifacts),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// keyDir validates the key and returns its artifact directory.
func (m *Manager) keyDir(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || key[0] == '.' {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(m.cfg.Root, key), nil
}

// IndexExists reports whether all three artifacts are present for key.
func (m *Manager) IndexExists(key string) bool {
	dir, err := m.keyDir(key)
	if err != nil {
		return false
	}
	for _, name := range []string{ChunksFile, VectorsFile, GraphFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

// Status reports the key's lifecycle state for polling.
func (m *Manager) Status(key string) BuildState {
	m.mu.Lock()
	building := m.building[key]
	m.mu.Unlock()
	if building {
		return StateBuilding
	}
	if m.IndexExists(key) {
		return StateReady
	}
	return StateUninitialized
}

// Invalidate deletes the key's artifacts and cached handle. The boolean
// reports whether anything was removed; invalidating an unknown key is a
// no-op, not an error.
func (m *Manager) Invalidate(key string) (bool, error) {
	dir, err := m.keyDir(key)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	if art, ok := m.handles[key]; ok {
		_ = art.Embedder.Close()
		delete(m.handles, key)
	}
	m.mu.Unlock()

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("remove artifacts: %w", err)
	}
	m.logger.Info("index invalidated", zap.String("key", key))
	return true, nil
}

// BuildOrLoad returns ready artifacts for the key, loading them from disk
// when present and building from the ingest file otherwise. Corrupt
// artifacts are treated as missing and rebuilt. Concurrent calls for the
// same key share one build.
func (m *Manager) BuildOrLoad(ctx context.Context, key, ingestPath string) (*Artifacts, error) {
	if _, err := m.keyDir(key); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if art, ok := m.handles[key]; ok {
		m.mu.Unlock()
		return art, nil
	}
	m.mu.Unlock()

	result, err, _ := m.group.Do(key, func() (any, error) {
		// Re-check under singleflight: a concurrent caller may have
		// populated the cache while this call waited.
		m.mu.Lock()
		if art, ok := m.handles[key]; ok {
			m.mu.Unlock()
			return art, nil
		}
		m.mu.Unlock()

		if m.IndexExists(key) {
			art, err := m.load(ctx, key)
			if err == nil {
				m.cache(key, art)
				return art, nil
			}
			if !errors.Is(err, types.ErrIndexCorrupt) {
				return nil, err
			}
			m.logger.Warn("corrupt artifacts, rebuilding",
				zap.String("key", key), zap.Error(err))
			if _, err := m.Invalidate(key); err != nil {
				return nil, err
			}
		}

		art, err := m.build(ctx, key, ingestPath)
		if err != nil {
			return nil, err
		}
		m.cache(key, art)
		return art, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Artifacts), nil
}

func (m *Manager) cache(key string, art *Artifacts) {
	m.mu.Lock()
	m.handles[key] = art
	m.mu.Unlock()
}

func (m *Manager) setBuilding(key string, v bool) {
	m.mu.Lock()
	if v {
		m.building[key] = true
	} else {
		delete(m.building, key)
	}
	m.mu.Unlock()
}

// build runs the full pipeline and commits artifacts atomically.
func (m *Manager) build(ctx context.Context, key, ingestPath string) (*Artifacts, error) {
	m.setBuilding(key, true)
	defer m.setBuilding(key, false)

	start := time.Now()
	m.logger.Info("building index",
		zap.String("key", key), zap.String("ingest", ingestPath))

	repo, err := ingest.ParseFile(ingestPath)
	if err != nil {
		return nil, fmt.Errorf("parse ingest: %w", err)
	}

	structures, err := m.analyzer.AnalyzeProject(ctx, repo)
	if err != nil {
		return nil, err
	}

	chunks := m.chunker.ChunkProject(repo.Paths(), structures)
	g := graph.Build(repo.Paths(), structures)

	emb, err := m.newEmbedder(m.cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	index, err := m.embedChunks(ctx, emb, chunks)
	if err != nil {
		_ = emb.Close()
		return nil, err
	}

	dir, err := m.commit(ctx, key, emb, index, chunks, g)
	if err != nil {
		_ = emb.Close()
		return nil, err
	}

	report := types.BuildReport{
		RepositoryKey:     key,
		TotalFiles:        repo.Len(),
		TotalChunks:       len(chunks),
		LanguagesDetected: detectedLanguages(structures),
		BuildTime:         time.Since(start),
		IndexSizeBytes:    dirSize(dir),
		BuiltAt:           time.Now().UTC(),
	}
	m.logger.Info("index built",
		zap.String("key", key),
		zap.Int("files", report.TotalFiles),
		zap.Int("chunks", report.TotalChunks),
		zap.Duration("took", report.BuildTime))

	return &Artifacts{
		Key:      key,
		Embedder: emb,
		Index:    index,
		Chunks:   chunks,
		Graph:    g,
		Report:   report,
	}, nil
}

// embedChunks embeds every chunk content in order and fills the index.
// Vector position i corresponds to chunks[i].
func (m *Manager) embedChunks(ctx context.Context, emb embedder.Embedder, chunks []types.CodeChunk) (*vectorindex.Index, error) {
	index, err := vectorindex.New(emb.Dimension(), m.cfg.Metric)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return index, nil
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}
	vecs, err := emb.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if err := index.AddBatch(vecs); err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Embedding = vecs[i]
	}
	return index, nil
}

// commit writes all artifacts into a staging directory and renames it
// into place, replacing any previous artifacts for the key.
func (m *Manager) commit(ctx context.Context, key string, emb embedder.Embedder, index *vectorindex.Index, chunks []types.CodeChunk, g *graph.Graph) (string, error) {
	staging, err := os.MkdirTemp(m.cfg.Root, "."+key+"-staging-")
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(staging)
	}()

	cs, err := OpenChunkStore(filepath.Join(staging, ChunksFile))
	if err != nil {
		return "", err
	}
	saveErr := func() error {
		if err := cs.SaveChunks(ctx, chunks); err != nil {
			return err
		}
		metas := map[string]string{
			MetaProvider:  emb.Provider(),
			MetaModel:     emb.Model(),
			MetaDimension: strconv.Itoa(emb.Dimension()),
			MetaMetric:    index.Metric().String(),
			MetaBuiltAt:   time.Now().UTC().Format(time.RFC3339),
		}
		for k, v := range metas {
			if err := cs.SetMeta(ctx, k, v); err != nil {
				return err
			}
		}
		return nil
	}()
	if closeErr := cs.Close(); saveErr == nil && closeErr != nil {
		saveErr = fmt.Errorf("close chunk store: %w", closeErr)
	}
	if saveErr != nil {
		return "", saveErr
	}

	if err := index.Save(filepath.Join(staging, VectorsFile)); err != nil {
		return "", err
	}
	if err := g.Save(filepath.Join(staging, GraphFile)); err != nil {
		return "", err
	}

	dir := filepath.Join(m.cfg.Root, key)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clear previous artifacts: %w", err)
	}
	if err := os.Rename(staging, dir); err != nil {
		return "", fmt.Errorf("commit artifacts: %w", err)
	}
	return dir, nil
}

// load reopens persisted artifacts. The embedder is reconstructed from
// the persisted provider and model; chunk embeddings themselves are never
// recomputed.
func (m *Manager) load(ctx context.Context, key string) (*Artifacts, error) {
	dir := filepath.Join(m.cfg.Root, key)
	m.logger.Info("loading index", zap.String("key", key))

	cs, err := OpenChunkStore(filepath.Join(dir, ChunksFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIndexCorrupt, err)
	}
	defer func() {
		_ = cs.Close()
	}()

	chunks, err := cs.LoadChunks(ctx)
	if err != nil {
		return nil, err
	}
	provider, err := cs.GetMeta(ctx, MetaProvider)
	if err != nil {
		return nil, err
	}
	model, err := cs.GetMeta(ctx, MetaModel)
	if err != nil {
		return nil, err
	}
	if provider == "" {
		return nil, fmt.Errorf("%w: missing embedder metadata", types.ErrIndexCorrupt)
	}

	index, err := vectorindex.Load(filepath.Join(dir, VectorsFile))
	if err != nil {
		return nil, err
	}
	if index.Count() != len(chunks) {
		return nil, fmt.Errorf("%w: %d vectors for %d chunks",
			types.ErrIndexCorrupt, index.Count(), len(chunks))
	}

	g, err := graph.Load(filepath.Join(dir, GraphFile))
	if err != nil {
		return nil, err
	}

	embCfg := embedder.Config{Provider: provider, Model: model}
	if provider == m.cfg.Embedding.Provider {
		// Same provider as configured: carry over credentials.
		embCfg.APIKey = m.cfg.Embedding.APIKey
		embCfg.BaseURL = m.cfg.Embedding.BaseURL
		embCfg.CacheSize = m.cfg.Embedding.CacheSize
	}
	emb, err := m.newEmbedder(embCfg)
	if err != nil {
		return nil, fmt.Errorf("recreate embedder: %w", err)
	}
	if emb.Dimension() != index.Dimension() {
		_ = emb.Close()
		return nil, fmt.Errorf("%w: embedder dimension %d, index dimension %d",
			types.ErrDimensionMismatch, emb.Dimension(), index.Dimension())
	}

	return &Artifacts{
		Key:      key,
		Embedder: emb,
		Index:    index,
		Chunks:   chunks,
		Graph:    g,
		Report: types.BuildReport{
			RepositoryKey:  key,
			TotalChunks:    len(chunks),
			IndexSizeBytes: dirSize(dir),
		},
	}, nil
}

// Close releases all cached handles.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for key, art := range m.handles {
		if err := art.Embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.handles, key)
	}
	return firstErr
}

func detectedLanguages(structures map[string]*types.CodeStructure) []string {
	seen := make(map[string]bool)
	for _, st := range structures {
		if st.Language != types.LangUnknown {
			seen[string(st.Language)] = true
		}
	}
	langs := make([]string, 0, len(seen))
	for lang := range seen {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

func dirSize(dir string) int64 {
	var size int64
	_ = filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
