// Package api provides the HTTP API server for querying the conversation
// archive through the backend adapter.
package api

import "net/http"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8484")
	ListenAddr string

	// Token, when set, requires clients to present it as a bearer token.
	Token string

	// MCPHandler, when set, is mounted at /mcp to expose the archive
	// tools over the Model Context Protocol.
	MCPHandler http.Handler
}
