package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/archive"
	"github.com/spoolhq/spool/pkg/backend"
)

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// InvokeRequest is the wire body accepted by the generic tool endpoint.
// It mirrors the invocation contract the HTTP backend speaks, so one
// spool instance can serve as the remote target of another.
type InvokeRequest struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params,omitempty"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStatus reports the current backend's diagnostics plus which
// transports the adapter has available.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	status, err := s.archive.ServerStatus(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to get server status"})
	}

	kinds := s.archive.Available()
	available := make([]string, len(kinds))
	for i, k := range kinds {
		available[i] = string(k)
	}

	status["transport"] = string(s.archive.Current())
	status["available"] = available

	return c.JSON(status)
}

// handleListConversations searches the archive with filters drawn from
// query parameters.
func (s *Server) handleListConversations(c *fiber.Ctx) error {
	filters, err := filtersFromQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	result, err := s.archive.SearchConversations(c.Context(), filters)
	if err != nil {
		s.logger.Warn("conversation search failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "search failed"})
	}

	return c.JSON(result)
}

// handleGetConversation returns a single conversation by ID.
func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "id parameter required"})
	}

	conv, err := s.archive.GetConversation(c.Context(), id)
	if err != nil {
		var notFound backend.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "conversation not found"})
		}
		s.logger.Warn("conversation lookup failed", zap.String("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "lookup failed"})
	}

	return c.JSON(conv)
}

// handleSync triggers the current backend's sync process.
func (s *Server) handleSync(c *fiber.Ctx) error {
	force := c.QueryBool("force")

	result, err := s.archive.TriggerSync(c.Context(), force)
	if err != nil {
		s.logger.Warn("sync trigger failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "sync failed"})
	}

	return c.JSON(result)
}

// handleInvoke executes a named archive tool. This is the endpoint the
// HTTP backend of a remote spool instance calls.
func (s *Server) handleInvoke(c *fiber.Ctx) error {
	var req InvokeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "malformed request body"})
	}

	result, err := s.dispatch(c.Context(), req)
	if err != nil {
		var notFound backend.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
		}
		s.logger.Warn("tool invocation failed",
			zap.String("tool", req.Tool),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(result)
}

func (s *Server) dispatch(ctx context.Context, req InvokeRequest) (map[string]any, error) {
	switch req.Tool {
	case backend.ToolSearchConversations:
		filters, err := archive.FiltersFromParams(req.Params)
		if err != nil {
			return nil, err
		}
		result, err := s.archive.SearchConversations(ctx, filters)
		if err != nil {
			return nil, err
		}
		return archive.EncodeSearchResult(result), nil

	case backend.ToolGetConversation:
		id, _ := req.Params["id"].(string)
		conv, err := s.archive.GetConversation(ctx, id)
		if err != nil {
			return nil, err
		}
		return archive.EncodeConversation(conv), nil

	case backend.ToolGetServerStatus:
		return s.archive.ServerStatus(ctx)

	case backend.ToolSyncConversations:
		force, _ := req.Params["force"].(bool)
		return s.archive.TriggerSync(ctx, force)

	default:
		return nil, backend.InvocationError{
			Tool: req.Tool,
			Err:  errors.New("unknown tool"),
		}
	}
}

// filtersFromQuery builds search filters from request query parameters.
// Timestamps are RFC 3339 and tags are comma-separated.
func filtersFromQuery(c *fiber.Ctx) (archive.Filters, error) {
	var filters archive.Filters

	if raw := c.Query("start_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, errors.New("start_time must be RFC 3339")
		}
		filters.StartTime = &t
	}
	if raw := c.Query("end_time"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filters, errors.New("end_time must be RFC 3339")
		}
		filters.EndTime = &t
	}
	if raw := c.Query("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				filters.Tags = append(filters.Tags, tag)
			}
		}
	}
	filters.CustomerEmail = c.Query("customer_email")
	filters.Limit = c.QueryInt("limit")

	return filters, nil
}
