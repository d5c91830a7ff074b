// Package app builds the shared service graph used by both binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bull/vector-notes/internal/chunker"
	"github.com/bull/vector-notes/internal/config"
	"github.com/bull/vector-notes/internal/embedding"
	"github.com/bull/vector-notes/internal/notes"
	"github.com/bull/vector-notes/internal/registry"
	"github.com/bull/vector-notes/internal/storage"
)

// App holds the wired components. Close releases them.
type App struct {
	Config   *config.AppConfig
	Store    *notes.Store
	Vectors  storage.VectorStore
	Registry *registry.Registry
	logger   *slog.Logger
}

// New connects the vector store, builds the embedder, loads the registry and
// makes sure both collections exist.
func New(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	distance, err := storage.ParseDistance(cfg.Notes.Distance)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfiguration, err)
	}

	vectors, err := newVectorStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("Vector store ready", "type", cfg.VectorStore.Type)

	embedder, err := newEmbedder(cfg)
	if err != nil {
		vectors.Close()
		return nil, err
	}
	logger.Info("Embedder ready", "type", cfg.Embedding.Type, "dimension", cfg.Notes.VectorSize)

	reg := registry.New(cfg.Registry.Path, logger)
	reg.Load()

	store, err := notes.NewStore(notes.Config{
		NotesCollection: cfg.Notes.Collection,
		MetadataTable:   cfg.Metadata.TableName,
		VectorSize:      cfg.Notes.VectorSize,
		Distance:        distance,
		MaxChunkSize:    cfg.Notes.TextSplitMaximumSize,
		OwnerID:         cfg.OwnerID,
	}, embedder, chunker.NewSplitter(), vectors, reg, logger)
	if err != nil {
		vectors.Close()
		return nil, err
	}

	if err := store.EnsureSchema(ctx); err != nil {
		vectors.Close()
		return nil, err
	}

	return &App{
		Config:   cfg,
		Store:    store,
		Vectors:  vectors,
		Registry: reg,
		logger:   logger,
	}, nil
}

func newVectorStore(ctx context.Context, cfg *config.AppConfig) (storage.VectorStore, error) {
	switch cfg.VectorStore.Type {
	case "memory":
		return storage.NewMemoryStorage(), nil
	case "qdrant":
		q := cfg.VectorStore.Qdrant
		s, err := storage.NewQdrantStorage(ctx, storage.QdrantOptions{
			Host:   q.Host,
			Port:   q.Port,
			APIKey: q.APIKey,
			UseTLS: q.UseTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to qdrant at %s:%d: %w", q.Host, q.Port, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown vector store %q", config.ErrInvalidConfiguration, cfg.VectorStore.Type)
	}
}

func newEmbedder(cfg *config.AppConfig) (notes.Embedder, error) {
	switch cfg.Embedding.Type {
	case "hash":
		h, err := embedding.NewHashEmbedder(cfg.Notes.VectorSize)
		if err != nil {
			return nil, err
		}
		return h, nil
	case "openai":
		client, err := embedding.NewClient(embedding.ClientConfig{
			BaseURL: cfg.Embedding.BaseURL,
			APIKey:  cfg.APIKey(),
		})
		if err != nil {
			return nil, fmt.Errorf("create embedding client (key from %s): %w", cfg.Embedding.APIKeyEnv, err)
		}
		return embedding.NewEmbedder(client, cfg.Embedding.BatchSize,
			embedding.WithModel(cfg.Embedding.Model),
			embedding.WithDimension(cfg.Notes.VectorSize),
		), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", config.ErrInvalidConfiguration, cfg.Embedding.Type)
	}
}

// Close persists the registry and closes the vector store connection.
func (a *App) Close() {
	if err := a.Registry.Persist(); err != nil {
		a.logger.Warn("Failed to persist registry on shutdown", "error", err)
	}
	if err := a.Vectors.Close(); err != nil {
		a.logger.Warn("Failed to close vector store", "error", err)
	}
}
