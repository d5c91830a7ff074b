package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantOptions holds connection settings for the gRPC client.
type QdrantOptions struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// QdrantStorage wraps the Qdrant client with connection management and health checks.
type QdrantStorage struct {
	client *qdrant.Client
	host   string
	port   int
}

var _ VectorStore = (*QdrantStorage)(nil)

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrantStorage(ctx context.Context, opts QdrantOptions) (*QdrantStorage, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   opts.Port,
		APIKey: opts.APIKey,
		UseTLS: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client: client,
		host:   opts.Host,
		port:   opts.Port,
	}

	if err := storage.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return storage, nil
}

func newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithContext(b, ctx)
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, newBackoff(ctx))
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

func (s *QdrantStorage) collectionExists(ctx context.Context, name string) (bool, error) {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	for _, existing := range collections {
		if existing == name {
			return true, nil
		}
	}
	return false, nil
}

// EnsureCollection creates the collection and its payload indexes when missing.
// Idempotent - safe to call multiple times, including from concurrent processes.
func (s *QdrantStorage) EnsureCollection(ctx context.Context, spec CollectionSpec) error {
	distance, err := toQdrantDistance(spec.Distance)
	if err != nil {
		return err
	}

	exists, err := s.collectionExists(ctx, spec.Name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: spec.Name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     spec.VectorSize,
			Distance: distance,
		}),
	})
	if err != nil {
		// Another writer may have created it between the list and the create.
		if exists, listErr := s.collectionExists(ctx, spec.Name); listErr == nil && exists {
			return nil
		}
		return fmt.Errorf("failed to create collection %s: %w", spec.Name, err)
	}

	if err := s.createPayloadIndexes(ctx, spec); err != nil {
		return fmt.Errorf("failed to create payload indexes: %w", err)
	}

	return nil
}

// createPayloadIndexes creates indexes for all filterable fields.
// Filtering on collection_name without an index scans the whole collection,
// and ordering by numeric_id is rejected outright.
func (s *QdrantStorage) createPayloadIndexes(ctx context.Context, spec CollectionSpec) error {
	for field, kind := range spec.Indexes {
		fieldType := qdrant.FieldType_FieldTypeKeyword
		if kind == IndexInteger {
			fieldType = qdrant.FieldType_FieldTypeInteger
		}
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: spec.Name,
			FieldName:      field,
			FieldType:      fieldType.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}
	return nil
}

// DropCollection deletes the collection and everything in it.
func (s *QdrantStorage) DropCollection(ctx context.Context, name string) error {
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
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

// Count returns the exact number of points matching filter.
func (s *QdrantStorage) Count(ctx context.Context, collection string, filter *Filter) (uint64, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Filter:         toQdrantFilter(filter),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points in %s: %w", collection, err)
	}
	return count, nil
}

// Upsert writes points and waits until they are visible to reads.
// Failures are returned as-is; callers decide whether to try again.
func (s *QdrantStorage) Upsert(ctx context.Context, collection string, points []*Point) error {
	if len(points) == 0 {
		return nil
	}

	qpoints := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		qpoints[i] = &qdrant.PointStruct{
			Id:      toQdrantID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(p.Payload),
		}
	}

	result, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qpoints,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points into %s: %w", len(points), collection, err)
	}
	return checkCompleted(result)
}

// DeletePoints deletes points by id. Ids that do not exist are ignored by Qdrant.
func (s *QdrantStorage) DeletePoints(ctx context.Context, collection string, ids []PointID) error {
	if len(ids) == 0 {
		return nil
	}
	qids := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		qids[i] = toQdrantID(id)
	}
	result, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(qids...),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points from %s: %w", collection, err)
	}
	return checkCompleted(result)
}

// DeleteByFilter deletes every point matching filter.
func (s *QdrantStorage) DeleteByFilter(ctx context.Context, collection string, filter *Filter) error {
	if filter == nil || len(filter.Must) == 0 {
		return fmt.Errorf("%w: delete by filter requires at least one condition", ErrInvalidRequest)
	}
	result, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(toQdrantFilter(filter)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points from %s: %w", collection, err)
	}
	return checkCompleted(result)
}

// Search performs vector similarity search.
// Returns up to limit points ordered by score descending.
func (s *QdrantStorage) Search(ctx context.Context, collection string, vector []float32, filter *Filter, limit uint64) ([]*ScoredPoint, error) {
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         toQdrantFilter(filter),
		Limit:          qdrant.PtrOf(limit),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", collection, err)
	}

	scored := make([]*ScoredPoint, 0, len(results))
	for _, result := range results {
		scored = append(scored, &ScoredPoint{
			ID:      fromQdrantID(result.Id),
			Score:   result.Score,
			Payload: fromQdrantPayload(result.Payload),
		})
	}
	return scored, nil
}

// Scroll lists points without ranking. Vectors are not returned.
//
// Qdrant treats the scroll offset as inclusive, so one extra point is requested
// and used as the next page offset.
func (s *QdrantStorage) Scroll(ctx context.Context, collection string, req ScrollRequest) ([]*Point, *PointID, error) {
	if req.Limit == 0 {
		return nil, nil, fmt.Errorf("%w: scroll limit must be positive", ErrInvalidRequest)
	}
	if req.OrderBy != nil && req.Offset != nil {
		return nil, nil, fmt.Errorf("%w: scroll offset cannot be combined with order_by", ErrInvalidRequest)
	}

	scroll := &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         toQdrantFilter(req.Filter),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	}
	if req.Offset != nil {
		scroll.Offset = toQdrantID(*req.Offset)
	}

	paged := req.OrderBy == nil
	if paged {
		scroll.Limit = qdrant.PtrOf(req.Limit + 1)
	} else {
		direction := qdrant.Direction_Asc
		if req.OrderBy.Descending {
			direction = qdrant.Direction_Desc
		}
		scroll.Limit = qdrant.PtrOf(req.Limit)
		scroll.OrderBy = &qdrant.OrderBy{
			Key:       req.OrderBy.Key,
			Direction: direction.Enum(),
		}
	}

	results, err := s.client.Scroll(ctx, scroll)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scroll %s: %w", collection, err)
	}

	var next *PointID
	if paged && uint32(len(results)) > req.Limit {
		id := fromQdrantID(results[req.Limit].Id)
		next = &id
		results = results[:req.Limit]
	}

	points := make([]*Point, 0, len(results))
	for _, result := range results {
		points = append(points, &Point{
			ID:      fromQdrantID(result.Id),
			Payload: fromQdrantPayload(result.Payload),
		})
	}
	return points, next, nil
}

func checkCompleted(result *qdrant.UpdateResult) error {
	if result == nil {
		return nil
	}
	if status := result.GetStatus(); status != qdrant.UpdateStatus_Completed {
		return fmt.Errorf("%w: status %s", ErrUpdateNotCompleted, status.String())
	}
	return nil
}

func toQdrantDistance(d Distance) (qdrant.Distance, error) {
	switch d {
	case DistanceCosine, "":
		return qdrant.Distance_Cosine, nil
	case DistanceDot:
		return qdrant.Distance_Dot, nil
	case DistanceEuclid:
		return qdrant.Distance_Euclid, nil
	default:
		return qdrant.Distance_UnknownDistance, fmt.Errorf("%w: %q", ErrUnsupportedDistance, d)
	}
}

func toQdrantID(id PointID) *qdrant.PointId {
	if id.IsUUID() {
		return qdrant.NewIDUUID(id.UUID)
	}
	return qdrant.NewIDNum(id.Num)
}

func fromQdrantID(id *qdrant.PointId) PointID {
	if u := id.GetUuid(); u != "" {
		return UUIDID(u)
	}
	return NumID(id.GetNum())
}

func toQdrantFilter(filter *Filter) *qdrant.Filter {
	if filter == nil || len(filter.Must) == 0 {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(filter.Must))
	for _, m := range filter.Must {
		must = append(must, qdrant.NewMatch(m.Key, m.Value))
	}
	return &qdrant.Filter{Must: must}
}

// fromQdrantPayload flattens scalar payload values. Nested lists and structs
// are not part of the notes schema and are dropped.
func fromQdrantPayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		switch kind := value.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[key] = kind.StringValue
		case *qdrant.Value_IntegerValue:
			out[key] = kind.IntegerValue
		case *qdrant.Value_DoubleValue:
			out[key] = kind.DoubleValue
		case *qdrant.Value_BoolValue:
			out[key] = kind.BoolValue
		}
	}
	return out
}
