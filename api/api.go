package api

import (
	"context"
	"errors"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/archive"
	"github.com/spoolhq/spool/pkg/backend"
)

// Archive is the slice of the backend adapter the API server exposes.
type Archive interface {
	SearchConversations(ctx context.Context, filters archive.Filters) (archive.SearchResult, error)
	GetConversation(ctx context.Context, id string) (archive.Conversation, error)
	ServerStatus(ctx context.Context) (map[string]any, error)
	TriggerSync(ctx context.Context, force bool) (map[string]any, error)
	Current() backend.Kind
	Available() []backend.Kind
}

// Server is the API server for querying the spool archive.
type Server struct {
	config  Config
	archive Archive
	logger  *zap.Logger
	app     *fiber.App
}

// NewServer creates a new API server over the given archive.
func NewServer(config Config, arc Archive, logger *zap.Logger) (*Server, error) {
	if arc == nil {
		return nil, errors.New("archive is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:  config,
		archive: arc,
		logger:  logger,
		app:     app,
	}

	if config.Token != "" {
		app.Use(s.requireToken)
	}

	app.Get("/ping", s.handlePing)
	app.Get("/status", s.handleStatus)
	app.Get("/conversations", s.handleListConversations)
	app.Get("/conversations/:id", s.handleGetConversation)
	app.Post("/sync", s.handleSync)
	app.Post("/invoke", s.handleInvoke)

	if config.MCPHandler != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCPHandler))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// requireToken rejects requests without the configured bearer token.
func (s *Server) requireToken(c *fiber.Ctx) error {
	if c.Get(fiber.HeaderAuthorization) != "Bearer "+s.config.Token {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "invalid or missing token"})
	}
	return c.Next()
}
