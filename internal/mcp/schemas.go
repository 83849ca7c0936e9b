package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexRepositoryTool returns the tool definition for index_repository
func indexRepositoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_repository",
		Description: "Build a searchable index from a repository ingest file",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository key the index is stored under",
				},
				"ingest_path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the ingest file (FILE: sections separated by '=' rules)",
				},
				"force_rebuild": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, discard any existing index before building",
					"default":     false,
				},
			},
			Required: []string{"repository", "ingest_path"},
		},
	}
}

// queryRepositoryTool returns the tool definition for query_repository
func queryRepositoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "query_repository",
		Description: "Retrieve code chunks relevant to a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository key of a built index",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language or keyword query",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Number of primary results to return (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"repository", "query"},
		},
	}
}

// askRepositoryTool returns the tool definition for ask_repository
func askRepositoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ask_repository",
		Description: "Answer a question about an indexed repository using retrieved context and a local LLM",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository key of a built index",
				},
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Question to answer from the repository",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Number of primary chunks to retrieve for context (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"repository", "question"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query index status for a repository key",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository key to inspect",
				},
			},
			Required: []string{"repository"},
		},
	}
}

// invalidateIndexTool returns the tool definition for invalidate_index
func invalidateIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "invalidate_index",
		Description: "Delete the stored index for a repository key",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository key to invalidate",
				},
			},
			Required: []string{"repository"},
		},
	}
}
