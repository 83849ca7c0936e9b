package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"coderag/internal/retriever"
	"coderag/internal/store"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeNotIndexed    = -32001 // Repository not indexed
	ErrorCodeEmptyQuery    = -32002 // Query parameter is empty
)

// handleIndexRepository handles the index_repository tool invocation
func (s *Server) handleIndexRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	key, err := requireString(args, "repository")
	if err != nil {
		return nil, err
	}
	ingestPath, err := requireString(args, "ingest_path")
	if err != nil {
		return nil, err
	}
	if err := validateIngestPath(ingestPath); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid ingest_path", map[string]interface{}{
			"param":  "ingest_path",
			"reason": err.Error(),
		})
	}

	if getBoolDefault(args, "force_rebuild", false) {
		if _, err := s.manager.Invalidate(key); err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "invalidation failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	art, err := s.manager.BuildOrLoad(ctx, key, ingestPath)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":          true,
		"repository":       art.Report.RepositoryKey,
		"total_files":      art.Report.TotalFiles,
		"total_chunks":     art.Report.TotalChunks,
		"languages":        art.Report.LanguagesDetected,
		"duration_ms":      art.Report.BuildTime.Milliseconds(),
		"index_size_bytes": art.Report.IndexSizeBytes,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleQueryRepository handles the query_repository tool invocation
func (s *Server) handleQueryRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	key, err := requireString(args, "repository")
	if err != nil {
		return nil, err
	}
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}
	topK := getIntDefault(args, "top_k", s.cfg.Retrieval.TopK)
	if topK < 1 || topK > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "top_k must be between 1 and 100", map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	art, err := s.artifactsFor(ctx, key)
	if err != nil {
		return nil, err
	}

	result, err := s.retrieverFor(art).Retrieve(ctx, query, topK)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "retrieval failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	chunks := make([]map[string]interface{}, 0, len(result.Results))
	for _, res := range result.Results {
		chunks = append(chunks, map[string]interface{}{
			"id":         res.Chunk.ID,
			"file_path":  res.Chunk.FilePath,
			"kind":       string(res.Chunk.Kind),
			"language":   string(res.Chunk.Language),
			"content":    res.Chunk.Content,
			"confidence": res.Confidence,
			"expanded":   res.Expanded,
		})
	}
	response := map[string]interface{}{
		"repository":      key,
		"results":         chunks,
		"chunks_searched": result.ChunksSearched,
		"query_time_ms":   result.QueryTime.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleAskRepository handles the ask_repository tool invocation
func (s *Server) handleAskRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	key, err := requireString(args, "repository")
	if err != nil {
		return nil, err
	}
	question, ok := args["question"].(string)
	if !ok || question == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "question parameter is required and cannot be empty", map[string]interface{}{
			"param":  "question",
			"reason": "missing or empty",
		})
	}
	topK := getIntDefault(args, "top_k", s.cfg.Retrieval.TopK)
	if topK < 1 || topK > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "top_k must be between 1 and 100", map[string]interface{}{
			"param": "top_k",
			"value": topK,
		})
	}

	art, err := s.artifactsFor(ctx, key)
	if err != nil {
		return nil, err
	}

	result, err := s.retrieverFor(art).Retrieve(ctx, question, topK)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "retrieval failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	messages := retriever.BuildMessages(question, result.Results, s.cfg.Retrieval.ContextBudget)
	answer, err := s.chat.Chat(ctx, messages)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "chat completion failed", map[string]interface{}{
			"error": err.Error(),
			"model": s.chat.Model(),
		})
	}

	sources := make([]string, 0, len(result.Results))
	seen := make(map[string]bool)
	for _, res := range result.Results {
		if !seen[res.Chunk.FilePath] {
			seen[res.Chunk.FilePath] = true
			sources = append(sources, res.Chunk.FilePath)
		}
	}
	response := map[string]interface{}{
		"repository": key,
		"answer":     answer,
		"model":      s.chat.Model(),
		"sources":    sources,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	key, err := requireString(args, "repository")
	if err != nil {
		return nil, err
	}

	state := s.manager.Status(key)
	response := map[string]interface{}{
		"repository": key,
		"state":      string(state),
		"indexed":    state == store.StateReady,
	}
	if state == store.StateUninitialized {
		response["message"] = "Repository not indexed. Use index_repository to build an index."
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleInvalidateIndex handles the invalidate_index tool invocation
func (s *Server) handleInvalidateIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	key, err := requireString(args, "repository")
	if err != nil {
		return nil, err
	}

	removed, err := s.manager.Invalidate(key)
	if err != nil {
		if errors.Is(err, store.ErrInvalidKey) {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid repository key", map[string]interface{}{
				"param": "repository",
				"value": key,
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "invalidation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"repository": key,
		"removed":    removed,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// artifactsFor returns built artifacts for a key, mapping a missing index
// to the not-indexed error code. Querying never triggers a build.
func (s *Server) artifactsFor(ctx context.Context, key string) (*store.Artifacts, error) {
	if !s.manager.IndexExists(key) {
		return nil, newMCPError(ErrorCodeNotIndexed, "repository not indexed", map[string]interface{}{
			"repository": key,
		})
	}
	art, err := s.manager.BuildOrLoad(ctx, key, "")
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load index", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return art, nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requireString extracts a mandatory non-empty string parameter
func requireString(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return "", newMCPError(ErrorCodeInvalidParams, key+" parameter is required", map[string]interface{}{
			"param":  key,
			"reason": "missing or empty",
		})
	}
	return val, nil
}

// validateIngestPath checks that the ingest file exists and is a regular file
func validateIngestPath(path string) error {
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if info.IsDir() {
		return ErrNotRegularFile
	}
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotRegularFile  = errors.New("path is not a regular file")
)
