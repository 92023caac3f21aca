package storage

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/docrag/internal/config"
)

const (
	defaultGRPCPort = 6334
	scrollPageSize  = uint32(100)
)

// QdrantStorage keeps records in one Qdrant collection. The collection plays
// the role of a container; records are tagged with the database name so
// several databases can share a collection.
type QdrantStorage struct {
	client     *qdrant.Client
	collection string
	database   string
	dimension  int
}

// Endpoint is a parsed document store URL.
type Endpoint struct {
	Host   string
	Port   int
	UseTLS bool
}

// ParseEndpoint splits a store URL such as "https://db.example.com:6334" into
// host, gRPC port and TLS flag. A missing scheme means plain http.
func ParseEndpoint(raw string) (Endpoint, error) {
	if raw == "" {
		return Endpoint{}, fmt.Errorf("%w: empty", ErrInvalidStoreURL)
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidStoreURL, err)
	}
	if u.Hostname() == "" {
		return Endpoint{}, fmt.Errorf("%w: missing host in %q", ErrInvalidStoreURL, raw)
	}

	ep := Endpoint{
		Host:   u.Hostname(),
		Port:   defaultGRPCPort,
		UseTLS: u.Scheme == "https",
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: bad port %q", ErrInvalidStoreURL, p)
		}
		ep.Port = port
	}
	return ep, nil
}

// NewQdrantStorage connects to the store described by cfg and checks it is
// healthy, retrying the connection for a short while before giving up.
func NewQdrantStorage(ctx context.Context, cfg config.StoreConfig, dimension int) (*QdrantStorage, error) {
	ep, err := ParseEndpoint(cfg.URL)
	if err != nil {
		return nil, err
	}

	// Create Qdrant client using gRPC
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   ep.Host,
		Port:   ep.Port,
		APIKey: cfg.Key,
		UseTLS: ep.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client:     client,
		collection: cfg.Container,
		database:   cfg.Database,
		dimension:  dimension,
	}

	if err := storage.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}

	return storage, nil
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		return s.Health(ctx)
	}

	return backoff.Retry(operation, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
// Returns nil if Qdrant is healthy, error otherwise.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}

	return nil
}

// EnsureCollection creates the container collection with cosine distance and
// a keyword index on the database tag. Idempotent.
func (s *QdrantStorage) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      fieldDatabase,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to create index for field %s: %w", fieldDatabase, err)
	}

	return nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// CreateItem stores one record. It is a single request with no retry.
func (s *QdrantStorage) CreateItem(ctx context.Context, rec Record) error {
	if s.dimension > 0 && len(rec.Embedding) != s.dimension {
		return fmt.Errorf("%w: record %s has %d dimensions, expected %d",
			ErrDimensionMismatch, rec.ID, len(rec.Embedding), s.dimension)
	}

	payload, err := recordPayload(s.database, rec)
	if err != nil {
		return fmt.Errorf("record %s payload: %w", rec.ID, err)
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(rec.ID),
			Vectors: qdrant.NewVectorsDense(rec.Embedding),
			Payload: payload,
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to create record %s: %w", rec.ID, err)
	}
	return nil
}

// ListItemIDs returns the IDs of every record in this database.
func (s *QdrantStorage) ListItemIDs(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		offset *qdrant.PointId
	)

	for {
		results, next, err := s.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Filter:         s.databaseFilter(),
			Limit:          qdrant.PtrOf(scrollPageSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(false),
			WithVectors:    qdrant.NewWithVectors(false),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll records: %w", err)
		}

		for _, result := range results {
			ids = append(ids, result.Id.GetUuid())
		}

		if next == nil {
			break
		}
		offset = next
	}

	return ids, nil
}

// DeleteItem removes one record by ID.
func (s *QdrantStorage) DeleteItem(ctx context.Context, id string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return nil
}

// Count returns the exact number of records in this database.
func (s *QdrantStorage) Count(ctx context.Context) (uint64, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         s.databaseFilter(),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// SearchRecords returns the limit records nearest to embedding, best first.
func (s *QdrantStorage) SearchRecords(ctx context.Context, embedding []float32, limit int) ([]ScoredRecord, error) {
	if s.dimension > 0 && len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(embedding), s.dimension)
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Filter:         s.databaseFilter(),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search records: %w", err)
	}

	records := make([]ScoredRecord, 0, len(results))
	for _, result := range results {
		records = append(records, ScoredRecord{
			Record: recordFromPayload(result.Id.GetUuid(), result.Payload),
			Score:  float64(result.Score),
		})
	}
	return records, nil
}

func (s *QdrantStorage) databaseFilter() *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(fieldDatabase, s.database),
		},
	}
}

func recordPayload(database string, rec Record) (map[string]*qdrant.Value, error) {
	return qdrant.TryValueMap(map[string]any{
		fieldDatabase: database,
		fieldText:     rec.Text,
		fieldMetadata: map[string]any{
			fieldSource: rec.Metadata.Source,
			fieldPage:   rec.Metadata.Page,
		},
	})
}

func recordFromPayload(id string, payload map[string]*qdrant.Value) Record {
	meta := payload[fieldMetadata].GetStructValue().GetFields()
	return Record{
		ID:   id,
		Text: payload[fieldText].GetStringValue(),
		Metadata: RecordMetadata{
			Source: meta[fieldSource].GetStringValue(),
			Page:   int(meta[fieldPage].GetIntegerValue()),
		},
	}
}
