package api

import (
	"log/slog"
	"net/http"
)

// Routes holds the handlers mounted by NewMux. MCP may be nil.
type Routes struct {
	Pipeline    Ingester
	Engine      Querier
	Store       HealthChecker
	MCP         http.Handler
	Folder      string
	DefaultTopK int
	Logger      *slog.Logger
}

// NewMux mounts every endpoint on a new ServeMux.
func NewMux(routes Routes) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ingest_documents", NewIngestHandler(routes.Pipeline, routes.Folder, routes.Logger))
	mux.HandleFunc("/api/query_documents", NewQueryHandler(routes.Engine, routes.DefaultTopK, routes.Logger))
	mux.HandleFunc("/health", NewHealthHandler(routes.Store))
	if routes.MCP != nil {
		mux.Handle("/mcp", routes.MCP)
	}
	mux.HandleFunc("/", NewLandingHandler())
	return mux
}
