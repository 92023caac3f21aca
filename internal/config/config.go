// Package config loads docrag configuration from defaults, an optional YAML
// file and the environment, in that order of precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for ingestion, query and serving.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Search    SearchConfig    `yaml:"search"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Splitter  SplitterConfig  `yaml:"splitter"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig locates the document store container.
type StoreConfig struct {
	URL       string `yaml:"url"`       // DB_URL, e.g. "http://localhost:6334"
	Key       string `yaml:"key"`       // DB_PRIMARY_KEY
	Database  string `yaml:"database"`  // DB_NAME
	Container string `yaml:"container"` // DB_CONTAINER
}

// SearchConfig configures the vector search index used by queries.
//
// The qdrant backend searches the records ingestion writes. The azure backend
// queries an Azure AI Search index that must be fed from the store by an
// external indexer; ingestion never writes to it.
type SearchConfig struct {
	Backend     string `yaml:"backend"` // "qdrant" (default) or "azure"
	ServiceName string `yaml:"service_name"`
	Index       string `yaml:"index"`
	APIKey      string `yaml:"api_key"`
	APIVersion  string `yaml:"api_version"`
	Endpoint    string `yaml:"endpoint"` // overrides https://{service_name}.search.windows.net
	DefaultTopK int    `yaml:"default_top_k"`
}

// EmbeddingConfig selects the embedding model. The same settings serve
// ingestion and query so stored and query vectors stay comparable.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // "openai" or "tei"
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Dimension  int    `yaml:"dimension"`
	MaxTokens  int    `yaml:"max_tokens"`
	MaxRetries int    `yaml:"max_retries"`
}

// SplitterConfig holds the chunk window and overlap, in characters.
type SplitterConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// IngestConfig holds ingestion settings.
type IngestConfig struct {
	Folder string `yaml:"folder"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `yaml:"port"`
	Mode bool   `yaml:"mode"` // true serves HTTP only, false runs MCP over stdio
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderTEI    = "tei"
)

// Search backends.
const (
	BackendAzure  = "azure"
	BackendQdrant = "qdrant"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			URL:       "http://localhost:6334",
			Database:  "docrag",
			Container: "documents",
		},
		Search: SearchConfig{
			Backend:     BackendQdrant,
			APIVersion:  "2024-07-01",
			DefaultTopK: 5,
		},
		Embedding: EmbeddingConfig{
			Provider:   ProviderOpenAI,
			Model:      "text-embedding-3-small",
			Dimension:  1536,
			MaxTokens:  512,
			MaxRetries: 2,
		},
		Splitter: SplitterConfig{
			ChunkSize:    200,
			ChunkOverlap: 50,
		},
		Ingest: IngestConfig{
			Folder: "ingest",
		},
		Server: ServerConfig{
			Port: "8080",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration. path may be empty; a missing file is not an
// error and leaves the defaults in place.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyProviderDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Store.URL = getEnv("DB_URL", c.Store.URL)
	c.Store.Key = getEnv("DB_PRIMARY_KEY", c.Store.Key)
	c.Store.Database = getEnv("DB_NAME", c.Store.Database)
	c.Store.Container = getEnv("DB_CONTAINER", c.Store.Container)

	c.Search.Backend = strings.ToLower(getEnv("SEARCH_BACKEND", c.Search.Backend))
	c.Search.ServiceName = getEnv("COG_SEARCH_NAME", c.Search.ServiceName)
	c.Search.Index = getEnv("COG_SEARCH_INDEX", c.Search.Index)
	c.Search.APIKey = getEnv("COG_SEARCH_API_KEY", c.Search.APIKey)
	c.Search.APIVersion = getEnv("COG_SEARCH_API_VERSION", c.Search.APIVersion)
	c.Search.Endpoint = getEnv("COG_SEARCH_ENDPOINT", c.Search.Endpoint)
	c.Search.DefaultTopK = getEnvInt("DEFAULT_TOP_K", c.Search.DefaultTopK)

	provider := getEnv("EMBEDDING_PROVIDER", "")
	if provider != "" && !strings.EqualFold(provider, c.Embedding.Provider) {
		// Switching provider invalidates model defaults of the previous one.
		c.Embedding.Provider = strings.ToLower(provider)
		c.Embedding.Model = ""
		c.Embedding.Dimension = 0
	}
	c.Embedding.Model = getEnv("EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.BaseURL = getEnv("EMBEDDING_BASE_URL", c.Embedding.BaseURL)
	c.Embedding.APIKey = getEnv("EMBEDDING_API_KEY", getEnv("OPENAI_API_KEY", c.Embedding.APIKey))
	c.Embedding.Dimension = getEnvInt("EMBEDDING_DIMENSION", c.Embedding.Dimension)
	c.Embedding.MaxTokens = getEnvInt("EMBEDDING_MAX_TOKENS", c.Embedding.MaxTokens)
	c.Embedding.MaxRetries = getEnvInt("EMBEDDING_MAX_RETRIES", c.Embedding.MaxRetries)

	c.Splitter.ChunkSize = getEnvInt("CHUNK_SIZE", c.Splitter.ChunkSize)
	c.Splitter.ChunkOverlap = getEnvInt("CHUNK_OVERLAP", c.Splitter.ChunkOverlap)

	c.Ingest.Folder = getEnv("INGEST_FOLDER", c.Ingest.Folder)

	c.Server.Port = getEnv("PORT", c.Server.Port)
	if v := os.Getenv("SERVER_MODE"); v != "" {
		c.Server.Mode = v == "true"
	}
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
}

func (c *Config) applyProviderDefaults() {
	switch c.Embedding.Provider {
	case ProviderTEI:
		if c.Embedding.Model == "" {
			c.Embedding.Model = "sentence-transformers/all-MiniLM-L6-v2"
		}
		if c.Embedding.Dimension == 0 {
			c.Embedding.Dimension = 384
		}
		if c.Embedding.BaseURL == "" {
			c.Embedding.BaseURL = "http://localhost:8081"
		}
	default:
		if c.Embedding.Model == "" {
			c.Embedding.Model = "text-embedding-3-small"
		}
		if c.Embedding.Dimension == 0 {
			c.Embedding.Dimension = 1536
		}
	}
}

// Validate reports configuration that would make ingestion or query
// meaningless. Search backend settings are checked separately by
// SearchConfig.Validate, only where a query engine is built.
func (c *Config) Validate() error {
	var errs []error

	if c.Splitter.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d", c.Splitter.ChunkSize))
	}
	if c.Splitter.ChunkOverlap < 0 || c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk overlap must be in [0, %d), got %d",
			c.Splitter.ChunkSize, c.Splitter.ChunkOverlap))
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension))
	}
	if c.Embedding.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("embedding max tokens must be positive, got %d", c.Embedding.MaxTokens))
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderTEI:
	default:
		errs = append(errs, fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider))
	}
	if c.Search.DefaultTopK <= 0 {
		errs = append(errs, fmt.Errorf("default top_k must be positive, got %d", c.Search.DefaultTopK))
	}
	if c.Store.Database == "" || c.Store.Container == "" {
		errs = append(errs, errors.New("DB_NAME and DB_CONTAINER are required"))
	}

	return errors.Join(errs...)
}

// Validate checks the backend name and, for azure, the index location.
func (c SearchConfig) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendAzure:
		if c.Index == "" {
			errs = append(errs, errors.New("COG_SEARCH_INDEX is required for the azure search backend"))
		}
		if c.ServiceName == "" && c.Endpoint == "" {
			errs = append(errs, errors.New("COG_SEARCH_NAME or COG_SEARCH_ENDPOINT is required for the azure search backend"))
		}
	case BackendQdrant:
	default:
		errs = append(errs, fmt.Errorf("unknown search backend %q", c.Backend))
	}
	return errors.Join(errs...)
}

// SearchEndpoint returns the base URL of the Azure AI Search service.
func (c SearchConfig) SearchEndpoint() string {
	if c.Endpoint != "" {
		return strings.TrimRight(c.Endpoint, "/")
	}
	return fmt.Sprintf("https://%s.search.windows.net", c.ServiceName)
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
