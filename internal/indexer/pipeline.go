// Package indexer imports a tree of note files into the document store.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bull/vector-notes/internal/notes"
)

// DocumentStore is the part of notes.Store the importer writes through.
type DocumentStore interface {
	StoreDocument(ctx context.Context, name, content string, maxChunkSize int) (*notes.IngestReport, error)
	DeleteDocument(ctx context.Context, name string) error
}

// IndexResult contains statistics about an import.
type IndexResult struct {
	TotalDocs      int
	TotalChunks    int
	SuccessfulDocs int
	FailedDocs     []FailedDoc
	Duration       time.Duration
}

// FailedDoc represents a document that failed to import.
type FailedDoc struct {
	Path   string
	Reason string
}

// Options tunes a Pipeline.
type Options struct {
	// MaxChunkSize is passed to StoreDocument; 0 uses the store default.
	MaxChunkSize int
	// Replace deletes each collection before storing, so a re-import does
	// not duplicate chunks.
	Replace bool
}

// Pipeline orchestrates the import from a Source into a DocumentStore.
type Pipeline struct {
	source Source
	store  DocumentStore
	opts   Options
	logger *slog.Logger
}

// NewPipeline creates a new import pipeline with the given components.
func NewPipeline(source Source, store DocumentStore, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source: source,
		store:  store,
		opts:   opts,
		logger: logger,
	}
}

// IndexAll imports every document of the source. A failing document is
// recorded and skipped; only listing errors and cancellation abort the run.
func (p *Pipeline) IndexAll(ctx context.Context) (*IndexResult, error) {
	start := time.Now()
	result := &IndexResult{}

	paths, err := p.source.ListDocs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list docs: %w", err)
	}
	result.TotalDocs = len(paths)
	p.logger.Info("Found documents", "count", len(paths))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		chunks, err := p.processDocument(ctx, path)
		result.TotalChunks += chunks
		if err != nil {
			p.logger.Warn("Failed to import document", "path", path, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{
				Path:   path,
				Reason: err.Error(),
			})
			continue
		}
		result.SuccessfulDocs++
	}

	result.Duration = time.Since(start)
	p.logger.Info("Import complete",
		"successful", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)

	return result, nil
}

// processDocument stores a single file and returns the number of chunks written.
func (p *Pipeline) processDocument(ctx context.Context, path string) (int, error) {
	doc, err := p.source.FetchDoc(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	name := CollectionName(doc.Path)

	if p.opts.Replace {
		if err := p.store.DeleteDocument(ctx, name); err != nil {
			return 0, fmt.Errorf("replace: %w", err)
		}
	}

	report, err := p.store.StoreDocument(ctx, name, doc.Content, p.opts.MaxChunkSize)
	stored := 0
	if report != nil {
		stored = report.StoredChunks
	}
	if err != nil {
		if errors.Is(err, notes.ErrPartialIngestion) && report != nil {
			return stored, fmt.Errorf("%d of %d chunks failed: %w", len(report.FailedChunks), report.TotalChunks, err)
		}
		return stored, fmt.Errorf("store: %w", err)
	}

	p.logger.Info("Imported document", "path", path, "collection", name, "chunks", stored)
	return stored, nil
}
