package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/vector-notes/internal/notes"
)

// NoteStore is the subset of notes.Store the tools need.
type NoteStore interface {
	Search(ctx context.Context, name, query string, topN int) ([]notes.SearchHit, error)
	ListDocumentChunks(ctx context.Context, name string) ([]notes.ListedChunk, error)
	ListKnownCollectionNames(ctx context.Context) ([]string, error)
	StoreDocument(ctx context.Context, name, content string, maxChunkSize int) (*notes.IngestReport, error)
	RewriteDocument(ctx context.Context, name, content string) (*notes.IngestReport, error)
	DeleteDocument(ctx context.Context, name string) error
}

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	notes  NoteStore
}

// Config holds server dependencies.
type Config struct {
	Notes   NoteStore
	Version string
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	version := cfg.Version
	if version == "" {
		version = "v0.1.0"
	}
	impl := &mcp.Implementation{
		Name:    "vector-notes",
		Version: version,
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_notes",
		Description: "Search a note collection semantically. Returns the best matching chunks with their relevance scores.",
	}, makeSearchHandler(cfg.Notes))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_notes",
		Description: "List every stored chunk of a note collection.",
	}, makeListNotesHandler(cfg.Notes))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_collections",
		Description: "List the names of all note collections.",
	}, makeListCollectionsHandler(cfg.Notes))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "store_note",
		Description: "Chunk, embed and store text in a note collection. Set replace to overwrite the collection.",
	}, makeStoreHandler(cfg.Notes))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_note",
		Description: "Delete a note collection with all of its chunks.",
	}, makeDeleteHandler(cfg.Notes))

	return &Server{
		server: server,
		notes:  cfg.Notes,
	}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server instance.
// Used by transport handlers that need to wrap the server.
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}
