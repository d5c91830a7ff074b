package notes

import (
	"context"
	"fmt"
	"time"
)

// IngestReport describes one StoreDocument run.
type IngestReport struct {
	CollectionName string        `json:"collection_name"`
	TotalChunks    int           `json:"total_chunks"`
	StoredChunks   int           `json:"stored_chunks"`
	FailedChunks   []FailedChunk `json:"failed_chunks,omitempty"`
	RecordID       uint64        `json:"record_id,omitempty"`
	RecordCreated  bool          `json:"record_created"`
	Duration       time.Duration `json:"duration_ns"`
}

// FailedChunk represents a chunk that could not be stored.
type FailedChunk struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Success reports whether every chunk and the document record were stored.
func (r *IngestReport) Success() bool {
	return r != nil && len(r.FailedChunks) == 0 && r.RecordCreated
}

// StoreDocument splits content and stores each chunk under name, in order.
// Chunks are independent: a failed chunk does not stop later ones and stored
// chunks are never rolled back. The document record is created only when
// every chunk succeeded; otherwise the report is returned with ErrPartialIngestion.
// maxChunkSize <= 0 uses the configured default.
func (s *Store) StoreDocument(ctx context.Context, name, content string, maxChunkSize int) (*IngestReport, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if maxChunkSize <= 0 {
		maxChunkSize = s.cfg.MaxChunkSize
	}

	start := time.Now()
	report := &IngestReport{CollectionName: name}

	chunks, err := s.splitter.Split(content, maxChunkSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	report.TotalChunks = len(chunks)
	s.logger.Info("Starting ingestion", "collection", name, "chunks", len(chunks), "max_chunk_size", maxChunkSize)

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			for _, rest := range chunks[i:] {
				report.FailedChunks = append(report.FailedChunks, FailedChunk{Index: rest.Index, Reason: err.Error()})
			}
			break
		}
		if err := s.storeChunk(ctx, name, chunk.Content, chunk.Section); err != nil {
			s.logger.Warn("Failed to store chunk", "collection", name, "index", chunk.Index, "error", err)
			report.FailedChunks = append(report.FailedChunks, FailedChunk{Index: chunk.Index, Reason: err.Error()})
			continue
		}
		report.StoredChunks++
	}

	if len(report.FailedChunks) > 0 {
		report.Duration = time.Since(start)
		s.logger.Warn("Ingestion incomplete",
			"collection", name,
			"stored", report.StoredChunks,
			"failed", len(report.FailedChunks),
			"duration", report.Duration,
		)
		return report, fmt.Errorf("%w: %d of %d chunks failed for %s",
			ErrPartialIngestion, len(report.FailedChunks), report.TotalChunks, name)
	}

	recordID, err := s.CreateDocumentRecord(ctx, name, s.cfg.OwnerID)
	report.Duration = time.Since(start)
	if err != nil {
		return report, err
	}
	report.RecordID = recordID
	report.RecordCreated = true

	// Zero-chunk documents never reach storeChunk, so register them here.
	if report.TotalChunks == 0 {
		if err := s.registry.Add(name); err != nil {
			s.logger.Warn("Failed to persist registry", "collection", name, "error", err)
		}
	}

	s.logger.Info("Ingestion complete",
		"collection", name,
		"chunks", report.StoredChunks,
		"record_id", recordID,
		"duration", report.Duration,
	)
	return report, nil
}
