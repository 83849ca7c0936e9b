package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"coderag/internal/config"
	"coderag/internal/llm"
	"coderag/internal/mcp"
	"coderag/internal/retriever"
	"coderag/internal/store"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	flagConfig string
	flagTopK   int
	flagDedupe bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "coderag",
		Short:   "Repository indexing and retrieval over ingest files",
		Version: fmt.Sprintf("%s (built %s, sqlite driver %s)", version, buildTime, store.DriverName),
	}
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config.json")

	indexCmd := &cobra.Command{
		Use:   "index <repository> <ingest-file>",
		Short: "Build a searchable index from a repository ingest file",
		Args:  cobra.ExactArgs(2),
		RunE:  runIndex,
	}

	queryCmd := &cobra.Command{
		Use:   "query <repository> <query...>",
		Short: "Retrieve code chunks relevant to a query",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runQuery,
	}
	queryCmd.Flags().IntVar(&flagTopK, "top-k", 0, "primary result count (default from config)")
	queryCmd.Flags().BoolVar(&flagDedupe, "dedupe", false, "drop expansion chunks already in the primary set")

	askCmd := &cobra.Command{
		Use:   "ask <repository> <question...>",
		Short: "Answer a question about an indexed repository",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runAsk,
	}
	askCmd.Flags().IntVar(&flagTopK, "top-k", 0, "primary chunk count for context (default from config)")

	statusCmd := &cobra.Command{
		Use:   "status <repository>",
		Short: "Show index status for a repository",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatus,
	}

	invalidateCmd := &cobra.Command{
		Use:   "invalidate <repository>",
		Short: "Delete the stored index for a repository",
		Args:  cobra.ExactArgs(1),
		RunE:  runInvalidate,
	}

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start an MCP server on stdio",
		RunE:  runMCP,
	}

	rootCmd.AddCommand(indexCmd, queryCmd, askCmd, statusCmd, invalidateCmd, mcpCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger and artifact manager.
func setup() (*config.Config, *zap.Logger, *store.Manager, error) {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return nil, nil, nil, err
	}
	manager, err := store.NewManager(store.Config{
		Root:      cfg.StorageDir,
		Embedding: cfg.EmbedderConfig(),
	}, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, manager, nil
}

func loadConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// buildLogger creates a stderr logger so stdout stays free for command
// output and the MCP protocol.
func buildLogger(level string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.OutputPaths = []string{"stderr"}
	parsed, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zapCfg.Level = parsed
	return zapCfg.Build()
}

func runIndex(cmd *cobra.Command, args []string) error {
	_, logger, manager, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer func() { _ = manager.Close() }()

	key := args[0]
	ingestPath, err := filepath.Abs(args[1])
	if err != nil {
		return err
	}

	art, err := manager.BuildOrLoad(cmd.Context(), key, ingestPath)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %s\n", key)
	fmt.Printf("  Files:     %d\n", art.Report.TotalFiles)
	fmt.Printf("  Chunks:    %d\n", art.Report.TotalChunks)
	fmt.Printf("  Languages: %s\n", strings.Join(art.Report.LanguagesDetected, ", "))
	fmt.Printf("  Took:      %s\n", art.Report.BuildTime.Round(time.Millisecond))
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, logger, manager, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer func() { _ = manager.Close() }()

	key := args[0]
	query := strings.Join(args[1:], " ")
	if !manager.IndexExists(key) {
		return fmt.Errorf("repository %q is not indexed, run 'coderag index' first", key)
	}

	art, err := manager.BuildOrLoad(cmd.Context(), key, "")
	if err != nil {
		return err
	}

	r := retriever.New(art.Embedder, art.Index, art.Chunks, art.Graph, retriever.Options{
		TopK:            cfg.Retrieval.TopK,
		DedupeExpansion: flagDedupe || cfg.Retrieval.DedupeExpansion,
	}, logger)

	result, err := r.Retrieve(cmd.Context(), query, flagTopK)
	if err != nil {
		return err
	}

	fmt.Printf("%d results (searched %d chunks in %s)\n\n",
		len(result.Results), result.ChunksSearched, result.QueryTime.Round(time.Millisecond))
	for _, res := range result.Results {
		marker := fmt.Sprintf("%.2f", res.Confidence)
		if res.Expanded {
			marker = "related"
		}
		fmt.Printf("[%s] %s (%s)\n%s\n\n", marker, res.Chunk.FilePath, res.Chunk.Kind, res.Chunk.Content)
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, logger, manager, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer func() { _ = manager.Close() }()

	key := args[0]
	question := strings.Join(args[1:], " ")
	if !manager.IndexExists(key) {
		return fmt.Errorf("repository %q is not indexed, run 'coderag index' first", key)
	}

	art, err := manager.BuildOrLoad(cmd.Context(), key, "")
	if err != nil {
		return err
	}

	r := retriever.New(art.Embedder, art.Index, art.Chunks, art.Graph, retriever.Options{
		TopK:            cfg.Retrieval.TopK,
		DedupeExpansion: cfg.Retrieval.DedupeExpansion,
	}, logger)

	result, err := r.Retrieve(cmd.Context(), question, flagTopK)
	if err != nil {
		return err
	}

	chat := llm.NewOllamaChat(cfg.LLM.BaseURL, cfg.LLM.Model)
	messages := retriever.BuildMessages(question, result.Results, cfg.Retrieval.ContextBudget)
	answer, err := chat.Chat(cmd.Context(), messages)
	if err != nil {
		return fmt.Errorf("chat completion: %w", err)
	}

	fmt.Println(answer)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	_, logger, manager, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer func() { _ = manager.Close() }()

	state := manager.Status(args[0])
	fmt.Printf("%s: %s\n", args[0], state)
	return nil
}

func runInvalidate(cmd *cobra.Command, args []string) error {
	_, logger, manager, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer func() { _ = manager.Close() }()

	removed, err := manager.Invalidate(args[0])
	if err != nil {
		return err
	}
	if removed {
		fmt.Printf("Removed index for %s\n", args[0])
	} else {
		fmt.Printf("No index found for %s\n", args[0])
	}
	return nil
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	server, err := mcp.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("MCP server ready, listening on stdio")
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
		return nil
	case err := <-errChan:
		return err
	}
}
