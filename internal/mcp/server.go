package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"coderag/internal/config"
	"coderag/internal/llm"
	"coderag/internal/retriever"
	"coderag/internal/store"
)

const (
	// ServerName is the MCP server name
	ServerName = "coderag-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	manager *store.Manager
	chat    llm.Client
	cfg     *config.Config
	logger  *zap.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	manager, err := store.NewManager(store.Config{
		Root:      cfg.StorageDir,
		Embedding: cfg.EmbedderConfig(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:     mcpServer,
		manager: manager,
		chat:    llm.NewOllamaChat(cfg.LLM.BaseURL, cfg.LLM.Model),
		cfg:     cfg,
		logger:  logger,
	}
	s.registerTools()

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.manager.Close() }()
	return server.ServeStdio(s.mcp)
}

// retrieverFor builds a Retriever over one repository's artifacts with
// the configured retrieval options.
func (s *Server) retrieverFor(art *store.Artifacts) *retriever.Retriever {
	return retriever.New(art.Embedder, art.Index, art.Chunks, art.Graph, retriever.Options{
		TopK:            s.cfg.Retrieval.TopK,
		DedupeExpansion: s.cfg.Retrieval.DedupeExpansion,
	}, s.logger)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexRepositoryTool(), s.handleIndexRepository)
	s.mcp.AddTool(queryRepositoryTool(), s.handleQueryRepository)
	s.mcp.AddTool(askRepositoryTool(), s.handleAskRepository)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(invalidateIndexTool(), s.handleInvalidateIndex)
}
