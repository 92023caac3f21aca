// Package main provides the HTTP and MCP server entry point for docrag.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bull/docrag/internal/api"
	"github.com/bull/docrag/internal/app"
	"github.com/bull/docrag/internal/config"
	"github.com/bull/docrag/internal/embedding"
	mcpserver "github.com/bull/docrag/internal/mcp"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(os.Getenv("DOCRAG_CONFIG"))
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	// stdout carries the MCP stream in stdio mode, so logs go to stderr.
	logger := config.NewLogger(cfg.Logging.Level, os.Stderr)

	// Initialize storage
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect to document store: %v", err)
	}
	defer store.Close()

	// Initialize embedder, shared by ingestion and query
	embedder, err := embedding.NewFromConfig(cfg.Embedding, logger)
	if err != nil {
		log.Fatalf("failed to create embedder: %v", err)
	}
	log.Printf("Embedding with %s (%s, dimension %d)", embedder.Model(), cfg.Embedding.Provider, embedder.Dimension())

	pipeline := app.NewPipeline(cfg, embedder, store, logger)
	engine, err := app.NewEngine(cfg, embedder, store, logger)
	if err != nil {
		log.Fatalf("failed to create query engine: %v", err)
	}

	// Create MCP server
	server := mcpserver.NewServer(&mcpserver.Config{
		Engine:      engine,
		Pipeline:    pipeline,
		Folder:      cfg.Ingest.Folder,
		DefaultTopK: cfg.Search.DefaultTopK,
	})

	mux := api.NewMux(api.Routes{
		Pipeline:    pipeline,
		Engine:      engine,
		Store:       store,
		MCP:         mcpserver.NewHTTPHandler(server, false),
		Folder:      cfg.Ingest.Folder,
		DefaultTopK: cfg.Search.DefaultTopK,
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if cfg.Server.Mode {
		// HTTP mode: API, MCP over HTTP and health for remote clients
		log.Printf("Starting HTTP server on %s (API at /api, MCP at /mcp, health at /health)", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
		return
	}

	// Stdio mode: run MCP server over stdin/stdout for local clients
	// Also start the HTTP endpoints in background for local testing
	go func() {
		log.Printf("Starting HTTP server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP server error: %v", err)
		}
	}()

	log.Println("Starting docrag MCP server (stdio mode)...")
	if err := server.Run(ctx); err != nil {
		log.Printf("server error: %v", err)
		os.Exit(1)
	}
}
