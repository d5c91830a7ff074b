package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/vector-notes/internal/notes"
)

const defaultTopN = 5

var errMissingCollection = errors.New("collection_name is required")

// makeSearchHandler creates the search_notes tool handler.
func makeSearchHandler(store NoteStore) func(
	context.Context, *mcp.CallToolRequest, SearchNotesInput,
) (*mcp.CallToolResult, SearchNotesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchNotesInput) (
		*mcp.CallToolResult, SearchNotesOutput, error,
	) {
		if input.CollectionName == "" {
			return nil, SearchNotesOutput{}, errMissingCollection
		}
		topN := input.TopN
		if topN <= 0 {
			topN = defaultTopN
		}

		hits, err := store.Search(ctx, input.CollectionName, input.Query, topN)
		if err != nil {
			return nil, SearchNotesOutput{}, fmt.Errorf("search failed: %w", err)
		}

		results := make([]NoteHit, 0, len(hits))
		for _, h := range hits {
			results = append(results, NoteHit{
				ID:      h.ID.String(),
				Content: h.Content,
				Score:   float64(h.RelevanceScore),
				Section: h.Section,
			})
		}

		if len(results) == 0 {
			return nil, SearchNotesOutput{
				Results: []NoteHit{},
				Message: "No matching notes found. Try broader search terms.",
			}, nil
		}

		return nil, SearchNotesOutput{Results: results}, nil
	}
}

// makeListNotesHandler creates the list_notes tool handler.
func makeListNotesHandler(store NoteStore) func(
	context.Context, *mcp.CallToolRequest, ListNotesInput,
) (*mcp.CallToolResult, ListNotesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListNotesInput) (
		*mcp.CallToolResult, ListNotesOutput, error,
	) {
		if input.CollectionName == "" {
			return nil, ListNotesOutput{}, errMissingCollection
		}
		chunks, err := store.ListDocumentChunks(ctx, input.CollectionName)
		if err != nil {
			return nil, ListNotesOutput{}, fmt.Errorf("failed to list notes: %w", err)
		}

		out := make([]NoteChunk, 0, len(chunks))
		for _, c := range chunks {
			out = append(out, NoteChunk{ID: c.ID.String(), Content: c.Content, Section: c.Section})
		}
		return nil, ListNotesOutput{Chunks: out, Count: len(out)}, nil
	}
}

// makeListCollectionsHandler creates the list_collections tool handler.
func makeListCollectionsHandler(store NoteStore) func(
	context.Context, *mcp.CallToolRequest, ListCollectionsInput,
) (*mcp.CallToolResult, ListCollectionsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListCollectionsInput) (
		*mcp.CallToolResult, ListCollectionsOutput, error,
	) {
		names, err := store.ListKnownCollectionNames(ctx)
		if err != nil {
			return nil, ListCollectionsOutput{}, fmt.Errorf("failed to list collections: %w", err)
		}
		if names == nil {
			names = []string{} // Ensure non-nil for JSON marshaling
		}
		return nil, ListCollectionsOutput{Names: names, Count: len(names)}, nil
	}
}

// makeStoreHandler creates the store_note tool handler. A partial ingestion
// is reported as a tool error; the counts still describe what was stored.
func makeStoreHandler(store NoteStore) func(
	context.Context, *mcp.CallToolRequest, StoreNoteInput,
) (*mcp.CallToolResult, StoreNoteOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StoreNoteInput) (
		*mcp.CallToolResult, StoreNoteOutput, error,
	) {
		if input.CollectionName == "" {
			return nil, StoreNoteOutput{}, errMissingCollection
		}

		var (
			report *notes.IngestReport
			err    error
		)
		if input.Replace {
			report, err = store.RewriteDocument(ctx, input.CollectionName, input.Content)
		} else {
			report, err = store.StoreDocument(ctx, input.CollectionName, input.Content, input.MaxChunkSize)
		}

		var out StoreNoteOutput
		if report != nil {
			out = StoreNoteOutput{
				TotalChunks:  report.TotalChunks,
				StoredChunks: report.StoredChunks,
				FailedChunks: len(report.FailedChunks),
				RecordID:     report.RecordID,
			}
		}
		if err != nil {
			return nil, out, fmt.Errorf("store failed: %w", err)
		}
		return nil, out, nil
	}
}

// makeDeleteHandler creates the delete_note tool handler.
func makeDeleteHandler(store NoteStore) func(
	context.Context, *mcp.CallToolRequest, DeleteNoteInput,
) (*mcp.CallToolResult, DeleteNoteOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input DeleteNoteInput) (
		*mcp.CallToolResult, DeleteNoteOutput, error,
	) {
		if input.CollectionName == "" {
			return nil, DeleteNoteOutput{}, errMissingCollection
		}
		if err := store.DeleteDocument(ctx, input.CollectionName); err != nil {
			return nil, DeleteNoteOutput{CollectionName: input.CollectionName}, fmt.Errorf("delete failed: %w", err)
		}
		return nil, DeleteNoteOutput{CollectionName: input.CollectionName, Deleted: true}, nil
	}
}
