// Package mcp exposes the note store as MCP tools.
package mcp

// SearchNotesInput defines the input parameters for the search_notes tool.
type SearchNotesInput struct {
	// CollectionName is the document to search in.
	CollectionName string `json:"collection_name" jsonschema:"The note collection to search in"`
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"The semantic search query"`
	// TopN is the maximum number of chunks to return.
	TopN int `json:"top_n,omitempty" jsonschema:"Maximum number of chunks to return (default 5)"`
}

// SearchNotesOutput contains the search results.
type SearchNotesOutput struct {
	Results []NoteHit `json:"results"`
	// Message provides informational context (e.g., "No matching notes found").
	Message string `json:"message,omitempty"`
}

// NoteHit is a single ranked chunk.
type NoteHit struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Section string  `json:"section,omitempty"`
}

// ListNotesInput defines the input parameters for the list_notes tool.
type ListNotesInput struct {
	CollectionName string `json:"collection_name" jsonschema:"The note collection to list"`
}

// ListNotesOutput contains every chunk of a collection.
type ListNotesOutput struct {
	Chunks []NoteChunk `json:"chunks"`
	Count  int         `json:"count"`
}

// NoteChunk is one stored chunk without a score.
type NoteChunk struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Section string `json:"section,omitempty"`
}

// ListCollectionsInput takes no parameters.
type ListCollectionsInput struct{}

// ListCollectionsOutput contains all known collection names.
type ListCollectionsOutput struct {
	Names []string `json:"names"`
	Count int      `json:"count"`
}

// StoreNoteInput defines the input parameters for the store_note tool.
type StoreNoteInput struct {
	CollectionName string `json:"collection_name" jsonschema:"The note collection to add the content to"`
	Content        string `json:"content" jsonschema:"Markdown or plain text to chunk and store"`
	MaxChunkSize   int    `json:"max_chunk_size,omitempty" jsonschema:"Maximum characters per chunk (server default when omitted)"`
	// Replace deletes the existing collection before storing.
	Replace bool `json:"replace,omitempty" jsonschema:"Replace the collection's existing content instead of appending"`
}

// StoreNoteOutput summarises an ingestion.
type StoreNoteOutput struct {
	TotalChunks  int    `json:"total_chunks"`
	StoredChunks int    `json:"stored_chunks"`
	FailedChunks int    `json:"failed_chunks"`
	RecordID     uint64 `json:"record_id,omitempty"`
}

// DeleteNoteInput defines the input parameters for the delete_note tool.
type DeleteNoteInput struct {
	CollectionName string `json:"collection_name" jsonschema:"The note collection to delete"`
}

// DeleteNoteOutput reports the deleted collection.
type DeleteNoteOutput struct {
	CollectionName string `json:"collection_name"`
	Deleted        bool   `json:"deleted"`
}
