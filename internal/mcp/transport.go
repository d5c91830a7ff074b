package mcp

import (
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewHTTPHandler serves the note tools over Streamable HTTP. Sessions are
// stateful; the same *mcp.Server answers every request. The server mounts it
// at /mcp next to the REST routes.
func NewHTTPHandler(server *Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server.MCPServer()
	}, nil)
}
