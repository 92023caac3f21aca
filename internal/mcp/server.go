package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
}

// Config holds server dependencies.
type Config struct {
	Engine      Querier
	Pipeline    Ingester
	Folder      string
	DefaultTopK int
	Version     string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	impl := &mcp.Implementation{
		Name:    "docrag",
		Version: version,
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_documents",
		Description: "Search the ingested pdf, docx and csv documents semantically. Returns matching text chunks with their source file, page and similarity score.",
	}, makeQueryHandler(cfg.Engine, cfg.DefaultTopK))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ingest_documents",
		Description: "Load every pdf, docx and csv file in the ingest folder, split it into chunks, embed them and store them for querying. Set clear to replace previously stored chunks.",
	}, makeIngestHandler(cfg.Pipeline, cfg.Folder))

	return &Server{server: server}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
