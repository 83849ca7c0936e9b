// Package analyzer extracts structural summaries (functions, classes,
// imports, interfaces) from source files.
//
// Two strategies sit behind a common interface: an exact AST-based
// strategy for Go, and a line-oriented regex strategy for the other
// supported languages. The regex strategy is approximate on purpose; it
// trades precision for zero external parser dependencies. Unsupported
// languages fall through to a stub structure carrying only a line count.
package analyzer

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"coderag/internal/ingest"
	"coderag/pkg/types"
)

// strategy analyzes one file's content. Implementations may return an
// error; the dispatcher degrades errors to a stub structure.
type strategy interface {
	analyze(path, content string) (*types.CodeStructure, error)
}

// Analyzer dispatches files to per-language strategies.
type Analyzer struct {
	logger     *zap.Logger
	goStrategy strategy
	patterns   map[types.Language]strategy
}

// New creates an Analyzer. A nil logger disables logging.
func New(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	patterns := make(map[types.Language]strategy, len(patternSets))
	for lang, set := range patternSets {
		patterns[lang] = set
	}
	return &Analyzer{
		logger:     logger,
		goStrategy: &goAnalyzer{},
		patterns:   patterns,
	}
}

// AnalyzeFile returns the structure of a single file. Analysis never
// fails: parse errors and panics degrade to a stub with only the total
// line count populated.
func (a *Analyzer) AnalyzeFile(path, content string) *types.CodeStructure {
	lang := types.DetectLanguage(path)
	totalLines := countLines(content)

	var strat strategy
	switch {
	case lang == types.LangGo:
		strat = a.goStrategy
	default:
		strat = a.patterns[lang]
	}
	if strat == nil {
		return types.StubStructure(path, lang, totalLines)
	}

	structure, err := safeAnalyze(strat, path, content)
	if err != nil {
		a.logger.Warn("file analysis degraded to stub",
			zap.String("path", path),
			zap.String("language", string(lang)),
			zap.Error(err))
		return types.StubStructure(path, lang, totalLines)
	}
	return structure
}

// AnalyzeProject analyzes every file in the repository concurrently. The
// returned map is keyed by file path; callers needing a stable order
// iterate repo.Paths().
func (a *Analyzer) AnalyzeProject(ctx context.Context, repo *ingest.Repository) (map[string]*types.CodeStructure, error) {
	paths := repo.Paths()
	results := make([]*types.CodeStructure, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, _ := repo.Content(path)
			results[i] = a.AnalyzeFile(path, content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyze project: %w", err)
	}

	structures := make(map[string]*types.CodeStructure, len(paths))
	for i, path := range paths {
		structures[path] = results[i]
	}
	return structures, nil
}

// safeAnalyze runs a strategy with panic recovery so a single malformed
// file can never take down a whole build.
func safeAnalyze(strat strategy, path, content string) (structure *types.CodeStructure, err error) {
	defer func() {
		if r := recover(); r != nil {
			structure = nil
			err = fmt.Errorf("analyzer panic: %v", r)
		}
	}()
	return strat.analyze(path, content)
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}
