package notes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/vector-notes/internal/chunker"
	"github.com/bull/vector-notes/internal/embedding"
	"github.com/bull/vector-notes/internal/registry"
	"github.com/bull/vector-notes/internal/storage"
)

const testDimension = 64

// spyVectors wraps a VectorStore, counting scrolls and allowing failure injection.
type spyVectors struct {
	storage.VectorStore
	scrollCalls    int
	deleteByFilter func(ctx context.Context, collection string, filter *storage.Filter) error
	upsert         func(ctx context.Context, collection string, points []*storage.Point) error
}

func (s *spyVectors) Scroll(ctx context.Context, collection string, req storage.ScrollRequest) ([]*storage.Point, *storage.PointID, error) {
	s.scrollCalls++
	return s.VectorStore.Scroll(ctx, collection, req)
}

func (s *spyVectors) DeleteByFilter(ctx context.Context, collection string, filter *storage.Filter) error {
	if s.deleteByFilter != nil {
		return s.deleteByFilter(ctx, collection, filter)
	}
	return s.VectorStore.DeleteByFilter(ctx, collection, filter)
}

func (s *spyVectors) Upsert(ctx context.Context, collection string, points []*storage.Point) error {
	if s.upsert != nil {
		return s.upsert(ctx, collection, points)
	}
	return s.VectorStore.Upsert(ctx, collection, points)
}

// embedFunc adapts a function to the Embedder interface.
type embedFunc func(ctx context.Context, text string) ([]float32, error)

func (f embedFunc) Embed(ctx context.Context, text string) ([]float32, error) { return f(ctx, text) }

type fixture struct {
	store    *Store
	vectors  *spyVectors
	registry *registry.Registry
}

func newFixture(t *testing.T, embedder Embedder) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if embedder == nil {
		hash, err := embedding.NewHashEmbedder(testDimension)
		require.NoError(t, err)
		embedder = hash
	}

	vectors := &spyVectors{VectorStore: storage.NewMemoryStorage()}
	reg := registry.New(filepath.Join(t.TempDir(), "collections.json"), logger)

	store, err := NewStore(Config{
		NotesCollection: "notes",
		MetadataTable:   "notes_metadata",
		VectorSize:      testDimension,
		MaxChunkSize:    256,
	}, embedder, chunker.NewSplitter(), vectors, reg, logger)
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(context.Background()))

	return &fixture{store: store, vectors: vectors, registry: reg}
}

func listContents(t *testing.T, s *Store, name string) []string {
	t.Helper()
	chunks, err := s.ListDocumentChunks(context.Background(), name)
	require.NoError(t, err)
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}

func TestNewStoreRejectsInvalidConfig(t *testing.T) {
	hash, _ := embedding.NewHashEmbedder(4)
	vectors := storage.NewMemoryStorage()
	reg := registry.New(filepath.Join(t.TempDir(), "r.json"), nil)

	cases := map[string]Config{
		"zero chunk size": {NotesCollection: "n", MetadataTable: "m", VectorSize: 4},
		"zero vector":     {NotesCollection: "n", MetadataTable: "m", MaxChunkSize: 10},
		"same names":      {NotesCollection: "n", MetadataTable: "n", VectorSize: 4, MaxChunkSize: 10},
		"bad distance":    {NotesCollection: "n", MetadataTable: "m", VectorSize: 4, MaxChunkSize: 10, Distance: "manhattan"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewStore(cfg, hash, chunker.NewSplitter(), vectors, reg, nil)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestStoreDocumentPartialFailure(t *testing.T) {
	hash, err := embedding.NewHashEmbedder(testDimension)
	require.NoError(t, err)
	failing := embedFunc(func(ctx context.Context, text string) ([]float32, error) {
		if strings.Contains(text, "bravo") {
			return nil, errors.New("embedding backend down")
		}
		return hash.Embed(ctx, text)
	})
	f := newFixture(t, failing)
	ctx := context.Background()

	report, err := f.store.StoreDocument(ctx, "doc", "alpha one.\n\nbravo two.\n\ncharlie three.", 15)
	require.ErrorIs(t, err, ErrPartialIngestion)
	require.NotNil(t, report)

	assert.Equal(t, 3, report.TotalChunks)
	assert.Equal(t, 2, report.StoredChunks)
	require.Len(t, report.FailedChunks, 1)
	assert.Equal(t, 1, report.FailedChunks[0].Index)
	assert.False(t, report.RecordCreated)
	assert.False(t, report.Success())

	// No rollback: the other chunks stay retrievable.
	assert.ElementsMatch(t, []string{"alpha one.", "charlie three."}, listContents(t, f.store, "doc"))

	// No document record was written.
	names, err := f.store.ListKnownCollectionNames(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStoreDocumentCreatesRecord(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	report, err := f.store.StoreDocument(ctx, "journal", "first entry.\n\nsecond entry.", 0)
	require.NoError(t, err)
	assert.True(t, report.Success())
	assert.Equal(t, uint64(1), report.RecordID)
	assert.Equal(t, 1, report.TotalChunks, "default chunk size fits both paragraphs")

	assert.True(t, f.registry.Contains("journal"))
	names, err := f.store.ListKnownCollectionNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"journal"}, names)
}

func TestStoreDocumentEmptyContent(t *testing.T) {
	f := newFixture(t, nil)

	report, err := f.store.StoreDocument(context.Background(), "empty", "   ", 0)
	require.NoError(t, err)
	assert.Zero(t, report.TotalChunks)
	assert.True(t, report.RecordCreated)
	assert.True(t, f.registry.Contains("empty"))
}

func TestStoreDocumentCancelledContext(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.store.StoreDocument(ctx, "doc", "one.\n\ntwo.", 5)
	require.ErrorIs(t, err, ErrPartialIngestion)
	assert.Zero(t, report.StoredChunks)
	assert.Len(t, report.FailedChunks, report.TotalChunks)
}

func TestListDocumentChunksZeroCountSkipsScroll(t *testing.T) {
	f := newFixture(t, nil)

	chunks, err := f.store.ListDocumentChunks(context.Background(), "nothing-here")
	require.NoError(t, err)
	assert.NotNil(t, chunks)
	assert.Empty(t, chunks)
	assert.Zero(t, f.vectors.scrollCalls, "an empty document must not scroll")
}

func TestSearchScopedToCollection(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.store.StoreDocumentChunk(ctx, "A", "kubernetes deployment notes for team A"))
	require.NoError(t, f.store.StoreDocumentChunk(ctx, "A", "kubernetes rollout checklist"))
	require.NoError(t, f.store.StoreDocumentChunk(ctx, "B", "kubernetes deployment notes for team B"))

	hits, err := f.store.Search(ctx, "A", "kubernetes deployment", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.NotContains(t, h.Content, "team B")
	}
	assert.GreaterOrEqual(t, hits[0].RelevanceScore, hits[1].RelevanceScore)

	hits, err = f.store.Search(ctx, "A", "kubernetes deployment", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = f.store.Search(ctx, "missing", "kubernetes", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchInvalidArguments(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.store.Search(ctx, "A", "query", 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.store.Search(ctx, "", "query", 3)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.store.Search(ctx, "A", "  ", 3)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDeleteDocumentCompleteness(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.store.StoreDocument(ctx, "X", "one.\n\ntwo.\n\nthree.", 6)
	require.NoError(t, err)
	_, err = f.store.StoreDocument(ctx, "Y", "keep me", 0)
	require.NoError(t, err)

	require.NoError(t, f.store.DeleteDocument(ctx, "X"))

	assert.Empty(t, listContents(t, f.store, "X"))
	names, err := f.store.ListKnownCollectionNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Y"}, names)
	assert.False(t, f.registry.Contains("X"))
	assert.Equal(t, []string{"keep me"}, listContents(t, f.store, "Y"))

	// Deleting something that never existed is a trivial success.
	assert.NoError(t, f.store.DeleteDocument(ctx, "never-stored"))
}

func TestDeleteDocumentFailureKeepsRegistry(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.store.StoreDocumentChunk(ctx, "X", "some text"))
	f.vectors.deleteByFilter = func(context.Context, string, *storage.Filter) error {
		return errors.New("connection refused")
	}

	err := f.store.DeleteDocument(ctx, "X")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.True(t, f.registry.Contains("X"))
}

func TestDeleteChunks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.store.StoreDocumentChunk(ctx, "doc", "first"))
	require.NoError(t, f.store.StoreDocumentChunk(ctx, "doc", "second"))

	chunks, err := f.store.ListDocumentChunks(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	require.NoError(t, f.store.DeleteChunks(ctx, []storage.PointID{chunks[0].ID, storage.UUIDID("00000000-0000-4000-8000-000000000000")}, "doc"))
	assert.Equal(t, []string{chunks[1].Content}, listContents(t, f.store, "doc"))

	assert.NoError(t, f.store.DeleteChunks(ctx, nil, "doc"))
}

func TestRewriteDocument(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.store.StoreDocument(ctx, "D", "hello world", 256)
	require.NoError(t, err)

	report, err := f.store.RewriteDocument(ctx, "D", "goodbye world")
	require.NoError(t, err)
	assert.True(t, report.Success())

	assert.Equal(t, []string{"goodbye world"}, listContents(t, f.store, "D"))
	names, err := f.store.ListKnownCollectionNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"D"}, names)
}

func TestRewriteDocumentAbortsWhenDeleteFails(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.store.StoreDocument(ctx, "D", "hello world", 256)
	require.NoError(t, err)
	f.vectors.deleteByFilter = func(context.Context, string, *storage.Filter) error {
		return errors.New("timeout")
	}

	_, err = f.store.RewriteDocument(ctx, "D", "goodbye world")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, []string{"hello world"}, listContents(t, f.store, "D"))
}

func TestCreateDocumentRecordAssignsCountPlusOne(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	id1, err := f.store.CreateDocumentRecord(ctx, "b", "")
	require.NoError(t, err)
	id2, err := f.store.CreateDocumentRecord(ctx, "a", "someone")
	require.NoError(t, err)
	id3, err := f.store.CreateDocumentRecord(ctx, "a", "")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{id1, id2, id3})

	names, err := f.store.ListKnownCollectionNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestCreateDocumentRecordBackendFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.vectors.upsert = func(context.Context, string, []*storage.Point) error {
		return errors.New("unavailable")
	}

	id, err := f.store.CreateDocumentRecord(context.Background(), "a", "")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Zero(t, id)
}

func TestStoreDocumentChunkSequenceHint(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, f.store.StoreDocumentChunk(ctx, "seq", text))
	}

	points, _, err := f.vectors.VectorStore.Scroll(ctx, "notes", storage.ScrollRequest{Limit: 10})
	require.NoError(t, err)
	hints := make(map[string]int64)
	for _, p := range points {
		payload, err := decodeChunkPayload(p.Payload)
		require.NoError(t, err)
		hints[payload.Content] = payload.NumericID
	}
	assert.Equal(t, map[string]int64{"one": 0, "two": 1, "three": 2}, hints)
}

func TestStoreDocumentChunkDimensionMismatch(t *testing.T) {
	short := embedFunc(func(context.Context, string) ([]float32, error) {
		return []float32{1, 0}, nil
	})
	f := newFixture(t, short)

	err := f.store.StoreDocumentChunk(context.Background(), "doc", "text")
	assert.ErrorIs(t, err, ErrEmbeddingFailure)
	assert.False(t, f.registry.Contains("doc"))
}

func TestStoreDocumentChunkSection(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.store.StoreDocument(ctx, "guide", "# Guide\n\nIntro.\n\n## Install\n\nRun it.", 12)
	require.NoError(t, err)

	chunks, err := f.store.ListDocumentChunks(ctx, "guide")
	require.NoError(t, err)
	sections := make(map[string]string)
	for _, c := range chunks {
		sections[c.Content] = c.Section
	}
	assert.Equal(t, "Guide > Install", sections["Run it."])
	assert.Equal(t, "Guide", sections["Intro."])
}

func TestReconcileRegistry(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.store.StoreDocument(ctx, "kept", "has a record", 0)
	require.NoError(t, err)
	require.NoError(t, f.store.StoreDocumentChunk(ctx, "chunks-only", "no record"))

	// Simulate drift: the registry forgot "kept" and remembers a deleted "ghost".
	require.NoError(t, f.registry.Replace([]string{"ghost", "chunks-only"}))

	report, err := f.store.ReconcileRegistry(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, report.Added)
	assert.Equal(t, []string{"ghost"}, report.Removed)
	assert.Equal(t, []string{"chunks-only", "kept"}, f.registry.List())
}
