// Package main provides the docrag CLI for ingesting and querying documents.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bull/docrag/internal/app"
	"github.com/bull/docrag/internal/config"
	"github.com/bull/docrag/internal/embedding"
	"github.com/bull/docrag/internal/indexer"
	"github.com/bull/docrag/internal/search"
)

var (
	configPath string
	folder     string
	clearFirst bool
	queryText  string
	topK       int
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:          "docrag",
	Short:        "Document ingestion and semantic search",
	Long:         "CLI tool for loading pdf, docx and csv files into a vector store and querying them",
	SilenceUsage: true,
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest every supported file in the ingest folder",
	Long: `Loads, splits, embeds and stores every pdf, docx and csv file directly
inside the ingest folder.

This command:
1. Connects to the document store and verifies health
2. Optionally clears the stored records (--clear)
3. Parses each file; unreadable files are reported and skipped
4. Splits text into 200 character chunks with 50 characters of overlap
5. Embeds each chunk and writes one record per chunk

Records are appended: running ingest twice without --clear stores duplicates.

Environment variables:
  DB_URL, DB_PRIMARY_KEY, DB_NAME, DB_CONTAINER   document store
  EMBEDDING_PROVIDER, EMBEDDING_MODEL             embedding model (openai or tei)
  OPENAI_API_KEY / EMBEDDING_API_KEY              embedding credentials
  INGEST_FOLDER                                   folder to read (default: ingest)`,
	RunE: runIngest,
}

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search the ingested documents",
	Long: `Embeds the query and asks the search index for the nearest chunks.

Environment variables:
  SEARCH_BACKEND       qdrant (default, searches the ingested records) or
                       azure (an Azure AI Search index fed from the store
                       by an external indexer)
  COG_SEARCH_NAME      Azure AI Search service name
  COG_SEARCH_INDEX     index name
  COG_SEARCH_API_KEY   query key
  DEFAULT_TOP_K        results when --top-k is not given (default: 5)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file")

	ingestCmd.Flags().StringVar(&folder, "folder", "", "folder to ingest (overrides INGEST_FOLDER)")
	ingestCmd.Flags().BoolVar(&clearFirst, "clear", false, "delete stored records before ingesting")

	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "query text")
	queryCmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of results (overrides DEFAULT_TOP_K)")
	queryCmd.Flags().BoolVar(&jsonOutput, "json", false, "print results as JSON")

	rootCmd.AddCommand(ingestCmd, queryCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("Invalid configuration: %w", err)
	}
	logger := config.NewLogger(cfg.Logging.Level, os.Stderr)
	if folder == "" {
		folder = cfg.Ingest.Folder
	}

	fmt.Println("Starting ingestion...")
	fmt.Println()

	// 1. Connect to the document store
	fmt.Printf("Connecting to document store at %s...\n", cfg.Store.URL)
	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("Failed to connect to document store: %w", err)
	}
	defer store.Close()
	fmt.Printf("Store healthy (database %s, container %s)\n", cfg.Store.Database, cfg.Store.Container)

	// 2. Initialize embedder
	embedder, err := embedding.NewFromConfig(cfg.Embedding, logger)
	if err != nil {
		return fmt.Errorf("Failed to create embedder: %w", err)
	}
	fmt.Printf("Embedding model: %s (dimension %d)\n", embedder.Model(), embedder.Dimension())

	// 3. Run the pipeline
	fmt.Println()
	fmt.Printf("Ingesting %s...\n", folder)
	pipeline := app.NewPipeline(cfg, embedder, store, logger)

	var bar *progressbar.ProgressBar
	result, err := pipeline.Ingest(ctx, folder, ingestOptions(&bar))
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		if result != nil && result.Written > 0 {
			fmt.Printf("Wrote %d of %d chunks before failing\n", result.Written, result.Chunks)
		}
		return fmt.Errorf("Ingestion failed: %w", err)
	}

	// 4. Print results
	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Files: %d\n", result.Files)
	fmt.Printf("  Documents: %d\n", result.Documents)
	fmt.Printf("  Chunks: %d\n", result.Chunks)
	if clearFirst {
		fmt.Printf("  Cleared: %d\n", result.Cleared)
	}
	fmt.Printf("  Written: %d\n", result.Written)
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if len(result.FailedFiles) > 0 {
		fmt.Println()
		fmt.Println("Failed files:")
		for _, failed := range result.FailedFiles {
			fmt.Printf("  - %s: %s\n", failed.Path, failed.Reason)
		}
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))

	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if queryText == "" && len(args) == 1 {
		queryText = args[0]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("Invalid configuration: %w", err)
	}
	logger := config.NewLogger(cfg.Logging.Level, os.Stderr)
	if topK <= 0 {
		topK = cfg.Search.DefaultTopK
	}

	embedder, err := embedding.NewFromConfig(cfg.Embedding, logger)
	if err != nil {
		return fmt.Errorf("Failed to create embedder: %w", err)
	}

	// The azure backend queries the search service directly; only the
	// qdrant backend needs the store.
	var searcher search.RecordSearcher
	if cfg.Search.Backend == config.BackendQdrant {
		store, err := app.OpenStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("Failed to connect to document store: %w", err)
		}
		defer store.Close()
		searcher = store
	}

	engine, err := app.NewEngine(cfg, embedder, searcher, logger)
	if err != nil {
		return err
	}

	results, err := engine.Query(ctx, queryText, topK)
	if err != nil {
		return fmt.Errorf("Query failed: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"query": queryText, "results": results})
	}

	if len(results) == 0 {
		fmt.Println("No matching documents found.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. [%.4f] %v (page %v)\n", i+1, r.Score, r.Metadata["source"], r.Metadata["page"])
		fmt.Printf("   %s\n", r.Text)
	}
	return nil
}

// ingestOptions reports embedding progress on a bar created once the chunk
// count is known.
func ingestOptions(bar **progressbar.ProgressBar) indexer.IngestOptions {
	return indexer.IngestOptions{
		Clear: clearFirst,
		Progress: func(done, total int) {
			if *bar == nil {
				*bar = progressbar.Default(int64(total), "Embedding chunks")
			}
			_ = (*bar).Set(done)
		},
	}
}
