// Package mcp provides an MCP (Model Context Protocol) server exposing
// the archive tools to agent clients.
package mcp

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/archive"
	"github.com/spoolhq/spool/pkg/utils"
)

// Archive is the slice of the backend adapter the MCP tools call.
type Archive interface {
	SearchConversations(ctx context.Context, filters archive.Filters) (archive.SearchResult, error)
	GetConversation(ctx context.Context, id string) (archive.Conversation, error)
	ServerStatus(ctx context.Context) (map[string]any, error)
	TriggerSync(ctx context.Context, force bool) (map[string]any, error)
}

type Config struct {
	// Archive executes the tool invocations.
	Archive Archive

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured zap logger
	Logger *zap.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the archive tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	// Create the MCP server
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "spool",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if c.Noop {
		// return the empty MCP server with no tools configured
		// if the noop flag is set (i.e., MCP capabilities are disabled)
		s.mcpServer = mcpServer
		return s, nil
	}

	if c.Archive == nil {
		return nil, errors.New("archive is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	// Add tools
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        searchToolName,
		Description: searchDescription,
	}, s.handleSearch)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        getToolName,
		Description: getDescription,
	}, s.handleGet)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        statusToolName,
		Description: statusDescription,
	}, s.handleStatus)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        syncToolName,
		Description: syncDescription,
	}, s.handleSync)

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
