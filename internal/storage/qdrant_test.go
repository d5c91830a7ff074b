//go:build integration

package storage

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVectorSize = 8

var (
	qdrantHost = "localhost"
	qdrantPort = 6334
)

// TestMain starts a disposable Qdrant container. When Docker is unavailable
// the tests fall back to QDRANT_HOST/QDRANT_PORT and skip if nothing answers.
func TestMain(m *testing.M) {
	if host := os.Getenv("QDRANT_HOST"); host != "" {
		qdrantHost = host
		if port, err := strconv.Atoi(os.Getenv("QDRANT_PORT")); err == nil {
			qdrantPort = port
		}
		os.Exit(m.Run())
	}

	pool, err := dockertest.NewPool("")
	if err != nil || pool.Client.Ping() != nil {
		os.Exit(m.Run())
	}
	pool.MaxWait = 60 * time.Second

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "qdrant/qdrant",
		Tag:        "v1.12.4",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not start qdrant: %v\n", err)
		os.Exit(m.Run())
	}
	_ = resource.Expire(300)

	qdrantHost = "localhost"
	qdrantPort, _ = strconv.Atoi(resource.GetPort("6334/tcp"))

	err = pool.Retry(func() error {
		s, err := NewQdrantStorage(context.Background(), QdrantOptions{Host: qdrantHost, Port: qdrantPort})
		if err != nil {
			return err
		}
		return s.Close()
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "qdrant never became healthy: %v\n", err)
	}

	code := m.Run()
	_ = pool.Purge(resource)
	os.Exit(code)
}

// setupTestStorage creates a storage instance with a fresh collection.
// Skips test if Qdrant is not running.
func setupTestStorage(t *testing.T) (*QdrantStorage, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	storage, err := NewQdrantStorage(ctx, QdrantOptions{Host: qdrantHost, Port: qdrantPort})
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	name := "test-" + uuid.New().String()
	err = storage.EnsureCollection(context.Background(), CollectionSpec{
		Name:       name,
		VectorSize: testVectorSize,
		Distance:   DistanceCosine,
		Indexes: map[string]IndexKind{
			"collection_name": IndexKeyword,
			"numeric_id":      IndexInteger,
		},
	})
	require.NoError(t, err, "Failed to ensure collection")

	t.Cleanup(func() {
		_ = storage.DropCollection(context.Background(), name)
		_ = storage.Close()
	})
	return storage, name
}

func unitVector(hot int) []float32 {
	v := make([]float32, testVectorSize)
	v[hot%testVectorSize] = 1
	return v
}

func chunkPoint(doc string, seq int64, hot int) *Point {
	return &Point{
		ID:     UUIDID(uuid.New().String()),
		Vector: unitVector(hot),
		Payload: map[string]any{
			"collection_name": doc,
			"content":         fmt.Sprintf("%s chunk %d", doc, seq),
			"numeric_id":      seq,
		},
	}
}

func TestEnsureCollectionIdempotent(t *testing.T) {
	storage, name := setupTestStorage(t)

	err := storage.EnsureCollection(context.Background(), CollectionSpec{
		Name:       name,
		VectorSize: testVectorSize,
		Distance:   DistanceCosine,
	})
	assert.NoError(t, err)
}

func TestUpsertSearchRoundTrip(t *testing.T) {
	storage, name := setupTestStorage(t)
	ctx := context.Background()

	a := chunkPoint("alpha", 0, 0)
	b := chunkPoint("bravo", 0, 1)
	require.NoError(t, storage.Upsert(ctx, name, []*Point{a, b}))

	results, err := storage.Search(ctx, name, unitVector(1), nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, b.ID, results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	assert.Equal(t, "bravo chunk 0", results[0].Payload["content"])
	assert.Equal(t, int64(0), results[0].Payload["numeric_id"])

	scoped, err := storage.Search(ctx, name, unitVector(1), MatchKeyword("collection_name", "alpha"), 10)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, a.ID, scoped[0].ID)
}

func TestCountAndDeleteByFilter(t *testing.T) {
	storage, name := setupTestStorage(t)
	ctx := context.Background()

	points := []*Point{chunkPoint("doc", 0, 0), chunkPoint("doc", 1, 1), chunkPoint("other", 0, 2)}
	require.NoError(t, storage.Upsert(ctx, name, points))

	n, err := storage.Count(ctx, name, MatchKeyword("collection_name", "doc"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	require.NoError(t, storage.DeleteByFilter(ctx, name, MatchKeyword("collection_name", "doc")))

	n, err = storage.Count(ctx, name, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestDeletePointsByID(t *testing.T) {
	storage, name := setupTestStorage(t)
	ctx := context.Background()

	p := chunkPoint("doc", 0, 0)
	require.NoError(t, storage.Upsert(ctx, name, []*Point{p}))
	require.NoError(t, storage.DeletePoints(ctx, name, []PointID{p.ID, UUIDID(uuid.New().String())}))

	n, err := storage.Count(ctx, name, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestScrollPaging(t *testing.T) {
	storage, name := setupTestStorage(t)
	ctx := context.Background()

	points := make([]*Point, 0, 5)
	for i := 0; i < 5; i++ {
		points = append(points, &Point{
			ID:      NumID(uint64(i + 1)),
			Vector:  unitVector(i),
			Payload: map[string]any{"collection": "doc"},
		})
	}
	require.NoError(t, storage.Upsert(ctx, name, points))

	seen := make(map[PointID]bool)
	var offset *PointID
	for {
		page, next, err := storage.Scroll(ctx, name, ScrollRequest{Limit: 2, Offset: offset})
		require.NoError(t, err)
		for _, p := range page {
			assert.False(t, seen[p.ID], "point %s returned twice", p.ID)
			seen[p.ID] = true
		}
		if next == nil {
			break
		}
		offset = next
	}
	assert.Len(t, seen, 5)
}

func TestScrollOrderByDescending(t *testing.T) {
	storage, name := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.Upsert(ctx, name, []*Point{
		chunkPoint("doc", 3, 0), chunkPoint("doc", 7, 1), chunkPoint("doc", 5, 2),
	}))

	page, _, err := storage.Scroll(ctx, name, ScrollRequest{
		Limit:   1,
		OrderBy: &OrderBy{Key: "numeric_id", Descending: true},
	})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(7), page[0].Payload["numeric_id"])
}

func TestPersistence(t *testing.T) {
	storage, name := setupTestStorage(t)
	ctx := context.Background()

	p := chunkPoint("persist", 0, 3)
	require.NoError(t, storage.Upsert(ctx, name, []*Point{p}))

	// New connection simulates a restart.
	storage2, err := NewQdrantStorage(ctx, QdrantOptions{Host: qdrantHost, Port: qdrantPort})
	require.NoError(t, err, "Failed to reconnect to Qdrant")
	defer storage2.Close()

	results, err := storage2.Search(ctx, name, unitVector(3), MatchKeyword("collection_name", "persist"), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, p.ID, results[0].ID)
}

func TestCollectionNotFound(t *testing.T) {
	storage, _ := setupTestStorage(t)

	_, err := storage.Count(context.Background(), "missing-"+uuid.New().String(), nil)
	assert.Error(t, err)
}
