package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/archive"
	"github.com/spoolhq/spool/pkg/backend"
)

var (
	searchToolName    = backend.ToolSearchConversations
	searchDescription = "Search archived support conversations within a time window, optionally filtered by tags or customer email. Returns matching conversations with full message history and a data-freshness descriptor."

	getToolName    = backend.ToolGetConversation
	getDescription = "Retrieve a single archived conversation by its ID, including all messages in chronological order."

	statusToolName    = backend.ToolGetServerStatus
	statusDescription = "Report the active archive backend and its diagnostics."

	syncToolName    = backend.ToolSyncConversations
	syncDescription = "Trigger a refresh of the locally synced conversation archive."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	StartTime     string   `json:"start_time,omitempty" jsonschema:"start of the time window, RFC 3339"`
	EndTime       string   `json:"end_time,omitempty" jsonschema:"end of the time window, RFC 3339"`
	Tags          []string `json:"tags,omitempty" jsonschema:"only return conversations carrying all of these tags"`
	CustomerEmail string   `json:"customer_email,omitempty" jsonschema:"only return conversations with this customer"`
	Limit         int      `json:"limit,omitempty" jsonschema:"maximum number of conversations to return (default: 50)"`
}

// SearchOutput represents the output of the search tool.
type SearchOutput struct {
	Conversations []archive.Conversation `json:"conversations"`
	Total         int                    `json:"total"`
	Sync          *archive.SyncInfo      `json:"sync_state,omitempty"`
}

// GetInput represents the input arguments for the get tool.
type GetInput struct {
	ID string `json:"id" jsonschema:"the conversation ID to retrieve"`
}

// GetOutput represents the output of the get tool.
type GetOutput struct {
	Conversation archive.Conversation `json:"conversation"`
}

// StatusOutput represents the output of the status tool.
type StatusOutput struct {
	Status map[string]any `json:"status"`
}

// SyncInput represents the input arguments for the sync tool.
type SyncInput struct {
	Force bool `json:"force,omitempty" jsonschema:"re-sync even if the local archive looks fresh"`
}

// SyncOutput represents the output of the sync tool.
type SyncOutput struct {
	Result map[string]any `json:"result"`
}

// handleSearch processes a conversation search request.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	logger := s.config.Logger

	filters, err := searchFilters(input)
	if err != nil {
		return toolError(err.Error()), SearchOutput{}, nil
	}

	logger.Debug("MCP search request",
		zap.String("start", input.StartTime),
		zap.String("end", input.EndTime),
		zap.Int("limit", filters.EffectiveLimit()),
	)

	result, err := s.config.Archive.SearchConversations(ctx, filters)
	if err != nil {
		logger.Error("failed to search conversations", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to search conversations: %v", err)), SearchOutput{}, nil
	}

	output := SearchOutput{
		Conversations: result.Conversations,
		Total:         result.Total,
		Sync:          result.Sync,
	}

	return wrapOutput(logger, output, SearchOutput{})
}

// handleGet retrieves a single conversation by ID.
func (s *Server) handleGet(ctx context.Context, _ *mcp.CallToolRequest, input GetInput) (*mcp.CallToolResult, GetOutput, error) {
	logger := s.config.Logger

	if input.ID == "" {
		return toolError("id is required"), GetOutput{}, nil
	}

	conv, err := s.config.Archive.GetConversation(ctx, input.ID)
	if err != nil {
		logger.Warn("failed to get conversation",
			zap.String("id", input.ID),
			zap.Error(err))
		return toolError(fmt.Sprintf("Failed to get conversation: %v", err)), GetOutput{}, nil
	}

	return wrapOutput(logger, GetOutput{Conversation: conv}, GetOutput{})
}

// handleStatus reports the active backend's diagnostics.
func (s *Server) handleStatus(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, StatusOutput, error) {
	logger := s.config.Logger

	status, err := s.config.Archive.ServerStatus(ctx)
	if err != nil {
		logger.Error("failed to get server status", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to get server status: %v", err)), StatusOutput{}, nil
	}

	return wrapOutput(logger, StatusOutput{Status: status}, StatusOutput{})
}

// handleSync triggers a local archive refresh.
func (s *Server) handleSync(ctx context.Context, _ *mcp.CallToolRequest, input SyncInput) (*mcp.CallToolResult, SyncOutput, error) {
	logger := s.config.Logger

	result, err := s.config.Archive.TriggerSync(ctx, input.Force)
	if err != nil {
		logger.Error("failed to trigger sync", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to trigger sync: %v", err)), SyncOutput{}, nil
	}

	return wrapOutput(logger, SyncOutput{Result: result}, SyncOutput{})
}

// searchFilters converts tool input into archive search filters.
func searchFilters(input SearchInput) (archive.Filters, error) {
	var filters archive.Filters

	if input.StartTime != "" {
		t, err := time.Parse(time.RFC3339, input.StartTime)
		if err != nil {
			return filters, fmt.Errorf("start_time must be RFC 3339: %v", err)
		}
		filters.StartTime = &t
	}
	if input.EndTime != "" {
		t, err := time.Parse(time.RFC3339, input.EndTime)
		if err != nil {
			return filters, fmt.Errorf("end_time must be RFC 3339: %v", err)
		}
		filters.EndTime = &t
	}
	filters.Tags = input.Tags
	filters.CustomerEmail = input.CustomerEmail
	filters.Limit = input.Limit

	return filters, nil
}

// toolError builds an error result for the calling agent.
func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}

// wrapOutput serializes the structured output as JSON for the text field.
// Per MCP spec: tools returning structured content should also return
// serialized JSON in a TextContent block for backwards compatibility.
func wrapOutput[T any](logger *zap.Logger, output, zero T) (*mcp.CallToolResult, T, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal tool output", zap.Error(err))
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err)), zero, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}
