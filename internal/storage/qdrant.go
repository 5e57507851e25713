// Package storage wraps the Qdrant vector store behind the operations the
// sync engine needs: validated batched upserts, payload-filtered lookups,
// scored search and collection statistics.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantStorage wraps the Qdrant client with connection management and health checks.
type QdrantStorage struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs a health check with retry on startup and fails fast if Qdrant
// is unreachable. An empty collection uses DefaultCollection.
func NewQdrantStorage(host string, port int, collection string) (*QdrantStorage, error) {
	if collection == "" {
		collection = DefaultCollection
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client:     client,
		collection: collection,
	}

	if err := storage.healthCheckWithRetry(context.Background()); err != nil {
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

// EnsureCollection ensures the collection exists with the fixed vector
// dimension, cosine distance and payload indexes. Idempotent.
func (s *QdrantStorage) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range collections {
		if name == s.collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     VectorDimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return s.createPayloadIndexes(ctx)
}

// createPayloadIndexes creates indexes for the filterable payload fields.
// Duplicate detection filters on path and contentHash for every document;
// without these indexes those lookups scan the whole collection.
func (s *QdrantStorage) createPayloadIndexes(ctx context.Context) error {
	fields := []string{
		"path",        // path+hash duplicate lookup
		"contentHash", // moved-file lookup
		"docId",       // fetch/delete all points of one document
	}

	for _, field := range fields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// ClearCollection deletes all points by dropping and recreating the collection.
func (s *QdrantStorage) ClearCollection(ctx context.Context) error {
	if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return s.EnsureCollection(ctx)
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// UpsertPoints writes one batch of points. Every point is validated before
// any network call: a wrong vector dimension or an incomplete payload fails
// the whole batch locally. Network errors are retried with backoff.
func (s *QdrantStorage) UpsertPoints(ctx context.Context, points []*StoredPoint) error {
	if len(points) == 0 {
		return nil
	}

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for i, point := range points {
		if len(point.Vector) != VectorDimension {
			return fmt.Errorf("%w: point %s has %d dimensions, expected %d",
				ErrDimensionMismatch, point.ID, len(point.Vector), VectorDimension)
		}
		if err := point.Payload.Validate(); err != nil {
			return fmt.Errorf("point %s: %w", point.ID, err)
		}
		qdrantPoints[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(point.ID),
			Vectors: qdrant.NewVectors(point.Vector...),
			Payload: qdrant.NewValueMap(payloadToMap(&point.Payload)),
		}
	}

	return s.upsertWithRetry(ctx, qdrantPoints)
}

// upsertWithRetry performs the upsert with exponential backoff retry.
func (s *QdrantStorage) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
		})
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(exponentialBackoff, ctx))
}

// FirstByPath returns one point whose payload path matches exactly.
// Returns ErrPointNotFound when no point exists for the path.
func (s *QdrantStorage) FirstByPath(ctx context.Context, path string) (*StoredPoint, error) {
	return s.firstByFilter(ctx, qdrant.NewMatch("path", path))
}

// FirstByContentHash returns one point whose payload contentHash matches,
// regardless of path. Returns ErrPointNotFound when no point exists.
func (s *QdrantStorage) FirstByContentHash(ctx context.Context, hash string) (*StoredPoint, error) {
	return s.firstByFilter(ctx, qdrant.NewMatch("contentHash", hash))
}

func (s *QdrantStorage) firstByFilter(ctx context.Context, condition *qdrant.Condition) (*StoredPoint, error) {
	results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{condition},
		},
		Limit:       qdrant.PtrOf(uint32(1)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll points: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrPointNotFound
	}

	point := &StoredPoint{
		ID:      results[0].Id.GetUuid(),
		Payload: payloadFromMap(results[0].Payload),
	}
	return point, nil
}

// PointsByDocID returns all points belonging to one document, using the
// Scroll API to page through them in batches of 100.
func (s *QdrantStorage) PointsByDocID(ctx context.Context, docID string) ([]*StoredPoint, error) {
	var points []*StoredPoint
	var offset *qdrant.PointId

	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("docId", docID),
		},
	}

	batchSize := uint32(100)
	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: s.collection,
			Filter:         filter,
			Limit:          qdrant.PtrOf(batchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points: %w", err)
		}

		for _, result := range results {
			points = append(points, &StoredPoint{
				ID:      result.Id.GetUuid(),
				Payload: payloadFromMap(result.Payload),
			})
		}

		if uint32(len(results)) < batchSize {
			break
		}
		offset = results[len(results)-1].Id
	}

	return points, nil
}

// DeletePoints removes the given points by ID. A nil or empty list is a no-op.
func (s *QdrantStorage) DeletePoints(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %d points: %w", len(ids), err)
	}
	return nil
}

// DeleteByDocID removes every point belonging to one document.
func (s *QdrantStorage) DeleteByDocID(ctx context.Context, docID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("docId", docID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points for doc %s: %w", docID, err)
	}
	return nil
}

// SearchPoints performs nearest-neighbor search, returning up to limit points
// scoring at or above threshold, ordered by score descending.
func (s *QdrantStorage) SearchPoints(ctx context.Context, vector []float32, limit int, threshold float32) ([]*ScoredPoint, error) {
	if len(vector) != VectorDimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), VectorDimension)
	}

	query := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	}
	if threshold > 0 {
		query.ScoreThreshold = qdrant.PtrOf(threshold)
	}

	results, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	scored := make([]*ScoredPoint, 0, len(results))
	for _, result := range results {
		scored = append(scored, &ScoredPoint{
			StoredPoint: StoredPoint{
				ID:      result.Id.GetUuid(),
				Payload: payloadFromMap(result.Payload),
			},
			Score: float64(result.Score),
		})
	}

	return scored, nil
}

// GetCollectionInfo retrieves collection statistics.
func (s *QdrantStorage) GetCollectionInfo(ctx context.Context) (*CollectionInfo, error) {
	collection, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	return &CollectionInfo{
		PointsCount: collection.GetPointsCount(),
		Status:      collection.GetStatus().String(),
	}, nil
}

// payloadToMap flattens a Payload into the Qdrant value map.
func payloadToMap(p *Payload) map[string]any {
	categories := make([]any, len(p.Categories))
	for i, c := range p.Categories {
		categories[i] = c
	}

	return map[string]any{
		"docId":          p.DocID,
		"chunkIndex":     p.ChunkIndex,
		"totalChunks":    p.TotalChunks,
		"contentHash":    p.ContentHash,
		"path":           p.Path,
		"categories":     categories,
		"analysisType":   p.AnalysisType,
		"relevanceScore": p.RelevanceScore,
		"processedAt":    p.ProcessedAt.UTC().Format(time.RFC3339),
	}
}

// payloadFromMap rebuilds a Payload from a Qdrant value map.
func payloadFromMap(m map[string]*qdrant.Value) Payload {
	p := Payload{
		DocID:          m["docId"].GetStringValue(),
		ChunkIndex:     int(m["chunkIndex"].GetIntegerValue()),
		TotalChunks:    int(m["totalChunks"].GetIntegerValue()),
		ContentHash:    m["contentHash"].GetStringValue(),
		Path:           m["path"].GetStringValue(),
		AnalysisType:   m["analysisType"].GetStringValue(),
		RelevanceScore: m["relevanceScore"].GetDoubleValue(),
	}

	if list := m["categories"].GetListValue(); list != nil {
		for _, val := range list.Values {
			p.Categories = append(p.Categories, val.GetStringValue())
		}
	}

	if ts, err := time.Parse(time.RFC3339, m["processedAt"].GetStringValue()); err == nil {
		p.ProcessedAt = ts
	}

	return p
}
