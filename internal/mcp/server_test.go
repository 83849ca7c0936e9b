package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"coderag/internal/config"
	"coderag/internal/embedder"
)

const testIngest = `================================================
FILE: calculator.py
================================================
import math

class Calculator:
    def add(self, a, b):
        return a + b

================================================
FILE: main.py
================================================
from calculator import Calculator

def main():
    print(Calculator().add(1, 2))
`

func newTestServer(t *testing.T, llmBaseURL string) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.StorageDir = t.TempDir()
	cfg.Embedding.Provider = embedder.ProviderLocal
	cfg.LLM.BaseURL = llmBaseURL

	server, err := NewServer(cfg, zap.NewNop())
	require.NoError(t, err)
	return server
}

func writeTestIngest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repo.txt")
	require.NoError(t, os.WriteFile(path, []byte(testIngest), 0o644))
	return path
}

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultJSON decodes the text payload of a tool result.
func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "tool result should be text content")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &decoded))
	return decoded
}

func TestIndexQueryStatusFlow(t *testing.T) {
	server := newTestServer(t, "")
	ctx := context.Background()
	ingestPath := writeTestIngest(t)

	// Not indexed yet.
	result, err := server.handleGetStatus(ctx, callTool("get_status", map[string]interface{}{
		"repository": "calc",
	}))
	require.NoError(t, err)
	status := resultJSON(t, result)
	assert.Equal(t, false, status["indexed"])
	assert.Equal(t, "uninitialized", status["state"])

	// Build.
	result, err = server.handleIndexRepository(ctx, callTool("index_repository", map[string]interface{}{
		"repository":  "calc",
		"ingest_path": ingestPath,
	}))
	require.NoError(t, err)
	indexed := resultJSON(t, result)
	assert.Equal(t, true, indexed["indexed"])
	assert.Equal(t, float64(2), indexed["total_files"])
	assert.Positive(t, indexed["total_chunks"])

	// Ready.
	result, err = server.handleGetStatus(ctx, callTool("get_status", map[string]interface{}{
		"repository": "calc",
	}))
	require.NoError(t, err)
	status = resultJSON(t, result)
	assert.Equal(t, true, status["indexed"])
	assert.Equal(t, "ready", status["state"])

	// Query.
	result, err = server.handleQueryRepository(ctx, callTool("query_repository", map[string]interface{}{
		"repository": "calc",
		"query":      "add two numbers",
		"top_k":      float64(3),
	}))
	require.NoError(t, err)
	queried := resultJSON(t, result)
	results, ok := queried["results"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, results)
	assert.Positive(t, queried["chunks_searched"])

	// Invalidate.
	result, err = server.handleInvalidateIndex(ctx, callTool("invalidate_index", map[string]interface{}{
		"repository": "calc",
	}))
	require.NoError(t, err)
	removed := resultJSON(t, result)
	assert.Equal(t, true, removed["removed"])

	// Second invalidation is a no-op.
	result, err = server.handleInvalidateIndex(ctx, callTool("invalidate_index", map[string]interface{}{
		"repository": "calc",
	}))
	require.NoError(t, err)
	removed = resultJSON(t, result)
	assert.Equal(t, false, removed["removed"])
}

func TestQueryRepository_NotIndexed(t *testing.T) {
	server := newTestServer(t, "")

	_, err := server.handleQueryRepository(context.Background(), callTool("query_repository", map[string]interface{}{
		"repository": "never-built",
		"query":      "anything",
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeNotIndexed, mcpErr.Code)
}

func TestIndexRepository_InvalidParams(t *testing.T) {
	server := newTestServer(t, "")
	ctx := context.Background()

	cases := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{
			name: "missing repository",
			args: map[string]interface{}{"ingest_path": "/tmp/repo.txt"},
			code: ErrorCodeInvalidParams,
		},
		{
			name: "missing ingest_path",
			args: map[string]interface{}{"repository": "calc"},
			code: ErrorCodeInvalidParams,
		},
		{
			name: "relative ingest_path",
			args: map[string]interface{}{"repository": "calc", "ingest_path": "repo.txt"},
			code: ErrorCodeInvalidParams,
		},
		{
			name: "ingest_path does not exist",
			args: map[string]interface{}{"repository": "calc", "ingest_path": "/nonexistent/repo.txt"},
			code: ErrorCodeInvalidParams,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := server.handleIndexRepository(ctx, callTool("index_repository", tc.args))
			require.Error(t, err)
			var mcpErr *MCPError
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, tc.code, mcpErr.Code)
		})
	}
}

func TestQueryRepository_EmptyQuery(t *testing.T) {
	server := newTestServer(t, "")

	_, err := server.handleQueryRepository(context.Background(), callTool("query_repository", map[string]interface{}{
		"repository": "calc",
		"query":      "",
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeEmptyQuery, mcpErr.Code)
}

func TestQueryRepository_TopKBounds(t *testing.T) {
	server := newTestServer(t, "")

	for _, topK := range []float64{0, 101} {
		_, err := server.handleQueryRepository(context.Background(), callTool("query_repository", map[string]interface{}{
			"repository": "calc",
			"query":      "anything",
			"top_k":      topK,
		}))
		require.Error(t, err)
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
	}
}

func TestAskRepository(t *testing.T) {
	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{
				"role":    "assistant",
				"content": "The add method sums two numbers.",
			},
		})
	}))
	defer llmServer.Close()

	server := newTestServer(t, llmServer.URL)
	ctx := context.Background()
	ingestPath := writeTestIngest(t)

	_, err := server.handleIndexRepository(ctx, callTool("index_repository", map[string]interface{}{
		"repository":  "calc",
		"ingest_path": ingestPath,
	}))
	require.NoError(t, err)

	result, err := server.handleAskRepository(ctx, callTool("ask_repository", map[string]interface{}{
		"repository": "calc",
		"question":   "What does the add method do?",
	}))
	require.NoError(t, err)

	answered := resultJSON(t, result)
	assert.Equal(t, "The add method sums two numbers.", answered["answer"])
	sources, ok := answered["sources"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, sources)
}

func TestForceRebuild(t *testing.T) {
	server := newTestServer(t, "")
	ctx := context.Background()
	ingestPath := writeTestIngest(t)

	_, err := server.handleIndexRepository(ctx, callTool("index_repository", map[string]interface{}{
		"repository":  "calc",
		"ingest_path": ingestPath,
	}))
	require.NoError(t, err)

	result, err := server.handleIndexRepository(ctx, callTool("index_repository", map[string]interface{}{
		"repository":    "calc",
		"ingest_path":   ingestPath,
		"force_rebuild": true,
	}))
	require.NoError(t, err)
	rebuilt := resultJSON(t, result)
	assert.Equal(t, true, rebuilt["indexed"])
	assert.Equal(t, float64(2), rebuilt["total_files"])
}
