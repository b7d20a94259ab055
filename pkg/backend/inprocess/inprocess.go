// Package inprocess implements the universal fallback backend: tool
// calls run directly in the caller's process against the raw archive
// API, with the paginated-fetch engine standing in for server-side
// search.
package inprocess

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/archive"
	"github.com/spoolhq/spool/pkg/backend"
	"github.com/spoolhq/spool/pkg/fetch"
	"github.com/spoolhq/spool/pkg/intercom"
)

// Config holds the in-process backend dependencies.
type Config struct {
	// Client is the raw archive API client.
	Client *intercom.Client

	// Fetch tunes the paginated-fetch engine. Client and Logger are
	// filled in from this config.
	Fetch fetch.Config

	// OnProgress, when set, receives fetch progress updates for every
	// search invocation. Typically wired to a CLI spinner.
	OnProgress fetch.ProgressFunc

	Logger *zap.Logger
}

// Backend serves tool calls without any specialized transport.
type Backend struct {
	config  Config
	client  *intercom.Client
	fetcher *fetch.Fetcher
	logger  *zap.Logger
}

func New(config Config) (*Backend, error) {
	if config.Client == nil {
		return nil, errors.New("client is required")
	}
	if config.Logger == nil {
		return nil, errors.New("logger is required")
	}

	fetchConfig := config.Fetch
	fetchConfig.Client = config.Client
	fetchConfig.Logger = config.Logger

	fetcher, err := fetch.NewFetcher(fetchConfig)
	if err != nil {
		return nil, err
	}

	return &Backend{
		config:  config,
		client:  config.Client,
		fetcher: fetcher,
		logger:  config.Logger.Named("inprocess"),
	}, nil
}

func (b *Backend) Kind() backend.Kind { return backend.KindInProcess }

// Initialize verifies the archive API is reachable with the configured
// credentials.
func (b *Backend) Initialize(ctx context.Context) bool {
	if err := b.client.Ping(ctx); err != nil {
		b.logger.Warn("archive api unreachable", zap.Error(err))
		return false
	}
	return true
}

func (b *Backend) Invoke(ctx context.Context, tool string, params map[string]any) (map[string]any, error) {
	switch tool {
	case backend.ToolSearchConversations:
		return b.searchConversations(ctx, params)
	case backend.ToolGetConversation:
		return b.getConversation(ctx, params)
	case backend.ToolGetServerStatus:
		return b.serverStatus(ctx)
	case backend.ToolSyncConversations:
		// There is no local store to synchronize on this path.
		return map[string]any{
			"success": false,
			"error":   "in-process backend fetches live data and keeps no local store",
		}, nil
	default:
		return nil, backend.InvocationError{Tool: tool, Err: errors.New("unknown tool")}
	}
}

func (b *Backend) searchConversations(ctx context.Context, params map[string]any) (map[string]any, error) {
	filters, err := archive.FiltersFromParams(params)
	if err != nil {
		return nil, backend.InvocationError{Tool: backend.ToolSearchConversations, Err: err}
	}

	convs, err := b.fetcher.FetchConversations(ctx, filters, b.config.OnProgress)
	if err != nil {
		return nil, backend.InvocationError{Tool: backend.ToolSearchConversations, Err: err}
	}

	return archive.EncodeSearchResult(archive.SearchResult{
		Conversations: convs,
		Total:         len(convs),
	}), nil
}

func (b *Backend) getConversation(ctx context.Context, params map[string]any) (map[string]any, error) {
	id, _ := params["id"].(string)
	if id == "" {
		return nil, backend.NotFoundError{}
	}

	wc, err := b.client.GetConversation(ctx, id)
	if err != nil {
		var apiErr *intercom.APIError
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return nil, backend.NotFoundError{ID: id}
		}
		return nil, backend.InvocationError{Tool: backend.ToolGetConversation, Err: err}
	}

	return archive.EncodeConversation(wc.ToArchive()), nil
}

func (b *Backend) serverStatus(ctx context.Context) (map[string]any, error) {
	status := map[string]any{
		"backend": string(backend.KindInProcess),
	}
	if err := b.client.Ping(ctx); err != nil {
		status["remote_reachable"] = false
		status["error"] = err.Error()
	} else {
		status["remote_reachable"] = true
	}
	return status, nil
}

// Close is a no-op: the backend holds no transport state.
func (b *Backend) Close() error { return nil }
