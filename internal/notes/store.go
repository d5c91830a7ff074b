// Package notes implements the document store: named notes split into chunks,
// embedded and kept in one vector collection, plus a metadata table of
// document records.
package notes

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bull/vector-notes/internal/chunker"
	"github.com/bull/vector-notes/internal/storage"
)

// DefaultOwnerID is recorded on document records in this single-user deployment.
const DefaultOwnerID = "single_user"

// metadataPageSize bounds each scroll of the metadata table.
const metadataPageSize = 256

// Embedder turns text into a vector of the configured dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Splitter cuts text into chunks of at most maxSize runes.
type Splitter interface {
	Split(text string, maxSize int) ([]chunker.Chunk, error)
}

// Registry is the persisted set of collection names with stored chunks.
type Registry interface {
	Add(name string) error
	Remove(name string) error
	Contains(name string) bool
	List() []string
	Replace(names []string) error
}

// Config holds the collection layout and chunking defaults.
type Config struct {
	NotesCollection string
	MetadataTable   string
	VectorSize      int
	Distance        storage.Distance
	MaxChunkSize    int
	OwnerID         string
}

// Validate reports unusable settings.
func (c Config) Validate() error {
	switch {
	case c.NotesCollection == "":
		return fmt.Errorf("%w: notes collection name is empty", ErrInvalidConfiguration)
	case c.MetadataTable == "":
		return fmt.Errorf("%w: metadata table name is empty", ErrInvalidConfiguration)
	case c.NotesCollection == c.MetadataTable:
		return fmt.Errorf("%w: notes collection and metadata table must differ", ErrInvalidConfiguration)
	case c.VectorSize <= 0:
		return fmt.Errorf("%w: vector size must be positive, got %d", ErrInvalidConfiguration, c.VectorSize)
	case c.MaxChunkSize <= 0:
		return fmt.Errorf("%w: max chunk size must be positive, got %d", ErrInvalidConfiguration, c.MaxChunkSize)
	}
	if _, err := storage.ParseDistance(string(c.Distance)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	return nil
}

// SearchHit is one ranked chunk. Higher RelevanceScore is more similar.
type SearchHit struct {
	ID             storage.PointID `json:"id"`
	Content        string          `json:"content"`
	RelevanceScore float32         `json:"relevance_score"`
	Section        string          `json:"section,omitempty"`
}

// ListedChunk is one stored chunk of a document, without its vector.
type ListedChunk struct {
	ID      storage.PointID `json:"id"`
	Content string          `json:"content"`
	Section string          `json:"section,omitempty"`
}

// Store is the document store. It is safe for concurrent use as long as its
// collaborators are.
type Store struct {
	cfg      Config
	embedder Embedder
	splitter Splitter
	vectors  storage.VectorStore
	registry Registry
	logger   *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewStore wires a document store. cfg is validated; OwnerID defaults to DefaultOwnerID.
func NewStore(cfg Config, embedder Embedder, splitter Splitter, vectors storage.VectorStore, reg Registry, logger *slog.Logger) (*Store, error) {
	if cfg.Distance == "" {
		cfg.Distance = storage.DistanceCosine
	}
	if cfg.OwnerID == "" {
		cfg.OwnerID = DefaultOwnerID
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if embedder == nil || splitter == nil || vectors == nil || reg == nil {
		return nil, fmt.Errorf("%w: embedder, splitter, vector store and registry are required", ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:      cfg,
		embedder: embedder,
		splitter: splitter,
		vectors:  vectors,
		registry: reg,
		logger:   logger.With("component", "notes"),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}, nil
}

// Config returns the effective configuration.
func (s *Store) Config() Config { return s.cfg }

func backendError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, op, err)
}

func validName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: collection name is empty", ErrInvalidArgument)
	}
	return nil
}

// EnsureSchema creates the notes collection and the metadata table if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	specs := []storage.CollectionSpec{
		{
			Name:       s.cfg.NotesCollection,
			VectorSize: uint64(s.cfg.VectorSize),
			Distance:   s.cfg.Distance,
			Indexes: map[string]storage.IndexKind{
				FieldCollectionName: storage.IndexKeyword,
				FieldNumericID:      storage.IndexInteger,
			},
		},
		{
			Name:       s.cfg.MetadataTable,
			VectorSize: 1,
			Distance:   storage.DistanceCosine,
			Indexes: map[string]storage.IndexKind{
				FieldCollection: storage.IndexKeyword,
			},
		},
	}
	for _, spec := range specs {
		if err := s.vectors.EnsureCollection(ctx, spec); err != nil {
			s.logger.Error("Failed to ensure collection", "collection", spec.Name, "error", err)
			return backendError("ensure collection "+spec.Name, err)
		}
	}
	s.logger.Info("Schema ready", "notes", s.cfg.NotesCollection, "metadata", s.cfg.MetadataTable)
	return nil
}

// CreateDocumentRecord writes a metadata record for name with id count+1.
// Repeated calls create repeated records; ids may collide under concurrent writers.
func (s *Store) CreateDocumentRecord(ctx context.Context, name, ownerID string) (uint64, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	if ownerID == "" {
		ownerID = s.cfg.OwnerID
	}

	count, err := s.vectors.Count(ctx, s.cfg.MetadataTable, nil)
	if err != nil {
		s.logger.Error("Failed to count document records", "collection", name, "error", err)
		return 0, backendError("count records", err)
	}

	id := count + 1
	record := MetadataPayload{Collection: name, OwnerID: ownerID, CreatedAt: s.now()}
	err = s.vectors.Upsert(ctx, s.cfg.MetadataTable, []*storage.Point{{
		ID:      storage.NumID(id),
		Vector:  []float32{1.0},
		Payload: record.fields(),
	}})
	if err != nil {
		s.logger.Error("Failed to create document record", "collection", name, "error", err)
		return 0, backendError("upsert record", err)
	}

	s.logger.Info("Created document record", "collection", name, "record_id", id, "owner", ownerID)
	return id, nil
}

// StoreDocumentChunk embeds content and stores it as one chunk of name.
func (s *Store) StoreDocumentChunk(ctx context.Context, name, content string) error {
	return s.storeChunk(ctx, name, content, "")
}

func (s *Store) storeChunk(ctx context.Context, name, content, section string) error {
	if err := validName(name); err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is empty", ErrInvalidArgument)
	}

	vector, err := s.embed(ctx, content)
	if err != nil {
		s.logger.Error("Failed to embed chunk", "collection", name, "error", err)
		return err
	}

	payload := ChunkPayload{
		CollectionName: name,
		Content:        content,
		NumericID:      s.nextSequenceHint(ctx),
		Section:        section,
	}
	err = s.vectors.Upsert(ctx, s.cfg.NotesCollection, []*storage.Point{{
		ID:      storage.UUIDID(s.newID()),
		Vector:  vector,
		Payload: payload.fields(),
	}})
	if err != nil {
		s.logger.Error("Failed to store chunk", "collection", name, "error", err)
		return backendError("upsert chunk", err)
	}

	if err := s.registry.Add(name); err != nil {
		// The chunk is stored; reconciliation repairs the registry later.
		s.logger.Warn("Failed to persist registry", "collection", name, "error", err)
	}

	s.logger.Debug("Stored chunk", "collection", name, "numeric_id", payload.NumericID, "chars", len(content))
	return nil
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailure, err)
	}
	if len(vector) != s.cfg.VectorSize {
		return nil, fmt.Errorf("%w: expected %d dimensions, got %d", ErrEmbeddingFailure, s.cfg.VectorSize, len(vector))
	}
	return vector, nil
}

// nextSequenceHint reads the highest numeric_id in the notes collection and
// returns it plus one. Any failure yields 0; the hint is advisory only.
func (s *Store) nextSequenceHint(ctx context.Context) int64 {
	points, _, err := s.vectors.Scroll(ctx, s.cfg.NotesCollection, storage.ScrollRequest{
		Limit:   1,
		OrderBy: &storage.OrderBy{Key: FieldNumericID, Descending: true},
	})
	if err != nil {
		s.logger.Debug("No sequence hint available", "error", err)
		return 0
	}
	if len(points) == 0 {
		return 0
	}
	latest, ok := asInt64(points[0].Payload[FieldNumericID])
	if !ok {
		return 0
	}
	return latest + 1
}

// Search returns up to topN chunks of name ranked by similarity to query.
// An unknown name yields no hits.
func (s *Store) Search(ctx context.Context, name, query string, topN int) ([]SearchHit, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if topN <= 0 {
		return nil, fmt.Errorf("%w: top_n must be positive, got %d", ErrInvalidArgument, topN)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrInvalidArgument)
	}

	vector, err := s.embed(ctx, query)
	if err != nil {
		s.logger.Error("Failed to embed query", "collection", name, "error", err)
		return nil, err
	}

	results, err := s.vectors.Search(ctx, s.cfg.NotesCollection, vector,
		storage.MatchKeyword(FieldCollectionName, name), uint64(topN))
	if err != nil {
		s.logger.Error("Search failed", "collection", name, "error", err)
		return nil, backendError("search", err)
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		payload, err := decodeChunkPayload(r.Payload)
		if err != nil {
			s.logger.Warn("Skipping chunk with invalid payload", "id", r.ID.String(), "error", err)
			continue
		}
		hits = append(hits, SearchHit{
			ID:             r.ID,
			Content:        payload.Content,
			RelevanceScore: r.Score,
			Section:        payload.Section,
		})
	}
	return hits, nil
}

// ListDocumentChunks returns every chunk of name in backend order.
// The count is read first so an empty document never issues a zero-limit scroll.
func (s *Store) ListDocumentChunks(ctx context.Context, name string) ([]ListedChunk, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	filter := storage.MatchKeyword(FieldCollectionName, name)
	count, err := s.vectors.Count(ctx, s.cfg.NotesCollection, filter)
	if err != nil {
		s.logger.Error("Failed to count chunks", "collection", name, "error", err)
		return nil, backendError("count chunks", err)
	}
	if count == 0 {
		return []ListedChunk{}, nil
	}

	limit := uint32(math.MaxUint32)
	if count < uint64(limit) {
		limit = uint32(count)
	}
	points, _, err := s.vectors.Scroll(ctx, s.cfg.NotesCollection, storage.ScrollRequest{
		Filter: filter,
		Limit:  limit,
	})
	if err != nil {
		s.logger.Error("Failed to list chunks", "collection", name, "error", err)
		return nil, backendError("scroll chunks", err)
	}

	chunks := make([]ListedChunk, 0, len(points))
	for _, p := range points {
		payload, err := decodeChunkPayload(p.Payload)
		if err != nil {
			s.logger.Warn("Skipping chunk with invalid payload", "id", p.ID.String(), "error", err)
			continue
		}
		chunks = append(chunks, ListedChunk{ID: p.ID, Content: payload.Content, Section: payload.Section})
	}
	return chunks, nil
}

// DeleteDocument removes every chunk and record of name, then unregisters it.
// The first backend failure aborts and leaves the registry untouched.
func (s *Store) DeleteDocument(ctx context.Context, name string) error {
	if err := validName(name); err != nil {
		return err
	}

	if err := s.vectors.DeleteByFilter(ctx, s.cfg.NotesCollection, storage.MatchKeyword(FieldCollectionName, name)); err != nil {
		s.logger.Error("Failed to delete chunks", "collection", name, "error", err)
		return backendError("delete chunks", err)
	}
	if err := s.vectors.DeleteByFilter(ctx, s.cfg.MetadataTable, storage.MatchKeyword(FieldCollection, name)); err != nil {
		s.logger.Error("Failed to delete document records", "collection", name, "error", err)
		return backendError("delete records", err)
	}
	if err := s.registry.Remove(name); err != nil {
		s.logger.Warn("Failed to persist registry", "collection", name, "error", err)
	}

	s.logger.Info("Deleted document", "collection", name)
	return nil
}

// DeleteChunks deletes chunks by id. Ids that do not exist are not an error.
func (s *Store) DeleteChunks(ctx context.Context, ids []storage.PointID, name string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.vectors.DeletePoints(ctx, s.cfg.NotesCollection, ids); err != nil {
		s.logger.Error("Failed to delete chunks", "collection", name, "ids", len(ids), "error", err)
		return backendError("delete chunk ids", err)
	}
	s.logger.Info("Deleted chunks", "collection", name, "ids", len(ids))
	return nil
}

// RewriteDocument replaces the content of name: delete, then store with the
// default chunk size. Not atomic; a failed store leaves the document empty.
func (s *Store) RewriteDocument(ctx context.Context, name, content string) (*IngestReport, error) {
	if err := s.DeleteDocument(ctx, name); err != nil {
		return nil, err
	}
	return s.StoreDocument(ctx, name, content, 0)
}

// ListKnownCollectionNames returns the distinct names found in the metadata
// table, sorted. This reads backend truth and ignores the registry.
func (s *Store) ListKnownCollectionNames(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var offset *storage.PointID
	for {
		points, next, err := s.vectors.Scroll(ctx, s.cfg.MetadataTable, storage.ScrollRequest{
			Limit:  metadataPageSize,
			Offset: offset,
		})
		if err != nil {
			s.logger.Error("Failed to scroll document records", "error", err)
			return nil, backendError("scroll records", err)
		}
		for _, p := range points {
			record, err := decodeMetadataPayload(p.Payload)
			if err != nil {
				s.logger.Warn("Skipping record with invalid payload", "id", p.ID.String(), "error", err)
				continue
			}
			seen[record.Collection] = struct{}{}
		}
		if next == nil {
			break
		}
		offset = next
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ReconcileReport lists the registry changes made by ReconcileRegistry.
type ReconcileReport struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// ReconcileRegistry rebuilds the registry from backend truth: names with a
// document record are added, names with neither a record nor chunks are dropped.
func (s *Store) ReconcileRegistry(ctx context.Context) (*ReconcileReport, error) {
	known, err := s.ListKnownCollectionNames(ctx)
	if err != nil {
		return nil, err
	}

	next := make(map[string]struct{}, len(known))
	for _, name := range known {
		next[name] = struct{}{}
	}

	report := &ReconcileReport{}
	for _, name := range s.registry.List() {
		if _, ok := next[name]; ok {
			continue
		}
		count, err := s.vectors.Count(ctx, s.cfg.NotesCollection, storage.MatchKeyword(FieldCollectionName, name))
		if err != nil {
			return nil, backendError("count chunks", err)
		}
		if count > 0 {
			next[name] = struct{}{}
			continue
		}
		report.Removed = append(report.Removed, name)
	}
	for _, name := range known {
		if !s.registry.Contains(name) {
			report.Added = append(report.Added, name)
		}
	}

	names := make([]string, 0, len(next))
	for name := range next {
		names = append(names, name)
	}
	sort.Strings(names)
	if err := s.registry.Replace(names); err != nil {
		return report, fmt.Errorf("persist registry: %w", err)
	}

	s.logger.Info("Registry reconciled", "collections", len(names), "added", len(report.Added), "removed", len(report.Removed))
	return report, nil
}

