// Package mcp implements the Model Context Protocol (MCP) server for coderag.
//
// The MCP server exposes five tools to AI coding assistants:
//   - index_repository: Build a searchable index from a repository ingest file
//   - query_repository: Retrieve code chunks relevant to a query
//   - ask_repository: Answer a question using retrieved context and a local LLM
//   - get_status: Check index state for a repository key
//   - invalidate_index: Delete a stored index
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout is reserved for protocol messages; all logging goes to stderr.
//
// # Basic Usage
//
// The server is started via the mcp command:
//
//	coderag mcp --config config.json
//
// # Tool: index_repository
//
// Build an index from a flattened repository file:
//
//	Request:
//	{
//	  "name": "index_repository",
//	  "arguments": {
//	    "repository": "myproject",
//	    "ingest_path": "/path/to/ingest.txt",
//	    "force_rebuild": false
//	  }
//	}
//
//	Response:
//	{
//	  "indexed": true,
//	  "repository": "myproject",
//	  "total_files": 42,
//	  "total_chunks": 310,
//	  "languages": ["go", "python"],
//	  "duration_ms": 1840
//	}
//
// # Tool: query_repository
//
// Retrieve chunks for a natural language query:
//
//	Request:
//	{
//	  "name": "query_repository",
//	  "arguments": {
//	    "repository": "myproject",
//	    "query": "where is authentication handled",
//	    "top_k": 5
//	  }
//	}
//
// Results carry a confidence score for vector matches; chunks pulled in
// by graph expansion are marked "expanded" with confidence 0.
//
// # Error Codes
//
// Tool failures use JSON-RPC error codes: -32602 for invalid parameters,
// -32603 for internal failures, -32001 when the repository is not
// indexed, -32002 for empty queries.
package mcp
