// Package cache implements the backend that serves from the locally
// synced archive store. Every search response carries a sync-state
// descriptor computed by the freshness classifier; queries the store
// cannot satisfy at all surface a SyncStateError instead of silently
// returning incomplete data.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/archive"
	"github.com/spoolhq/spool/pkg/backend"
	"github.com/spoolhq/spool/pkg/freshness"
	"github.com/spoolhq/spool/pkg/store"
)

const defaultSyncTimeout = 5 * time.Minute

// Config configures the caching backend.
type Config struct {
	// Store is the local archive store.
	Store store.Driver

	// SyncCommand is the argv of the out-of-band synchronization
	// process. Empty disables sync_conversations.
	SyncCommand []string

	// SyncTimeout bounds how long a triggered sync may run. Defaults to
	// 5 minutes.
	SyncTimeout time.Duration

	// Logger is the configured zap logger.
	Logger *zap.Logger
}

// Backend implements backend.Backend over a local store.
type Backend struct {
	config    Config
	logger    *zap.Logger
	closeOnce sync.Once
	closeErr  error

	// now is swapped in freshness tests.
	now func() time.Time
}

// New creates a caching backend.
func New(c Config) (*Backend, error) {
	if c.Store == nil {
		return nil, errors.New("store is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = defaultSyncTimeout
	}

	return &Backend{
		config: c,
		logger: c.Logger,
		now:    time.Now,
	}, nil
}

// Kind returns the backend identifier.
func (b *Backend) Kind() backend.Kind { return backend.KindCache }

// Initialize verifies the store is usable. An empty store triggers one
// forced sync; if that fails the backend reports itself unusable so the
// adapter can fall back.
func (b *Backend) Initialize(ctx context.Context) bool {
	count, err := b.config.Store.Count(ctx)
	if err != nil {
		b.logger.Warn("cache store unusable", zap.Error(err))
		return false
	}

	if count == 0 {
		b.logger.Info("cache store empty, attempting initial sync")
		if _, err := b.runSync(ctx, true); err != nil {
			b.logger.Warn("initial sync failed", zap.Error(err))
			return false
		}
	}

	return true
}

// Invoke dispatches a tool call against the local store.
func (b *Backend) Invoke(ctx context.Context, tool string, params map[string]any) (map[string]any, error) {
	switch tool {
	case backend.ToolSearchConversations:
		return b.searchConversations(ctx, params)
	case backend.ToolGetConversation:
		return b.getConversation(ctx, params)
	case backend.ToolGetServerStatus:
		return b.serverStatus(ctx)
	case backend.ToolSyncConversations:
		return b.syncConversations(ctx, params)
	default:
		return nil, backend.InvocationError{Tool: tool, Err: errors.New("unknown tool")}
	}
}

// Close closes the underlying store. Idempotent.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.config.Store.Close()
	})
	return b.closeErr
}

func (b *Backend) searchConversations(ctx context.Context, params map[string]any) (map[string]any, error) {
	filters, err := archive.FiltersFromParams(params)
	if err != nil {
		return nil, backend.InvocationError{Tool: backend.ToolSearchConversations, Err: err}
	}

	lastSync, err := b.config.Store.LastSyncAt(ctx)
	if err != nil {
		return nil, backend.InvocationError{Tool: backend.ToolSearchConversations, Err: err}
	}

	cls := freshness.Classify(lastSync, filters.StartTime, filters.EndTime, b.now())
	if cls.State == archive.SyncStale {
		// The store cannot cover the requested window; returning rows
		// anyway would silently change what the results mean.
		return nil, backend.SyncStateError{State: cls.State, Message: cls.Message}
	}

	convs, err := b.config.Store.QueryConversations(ctx, filters)
	if err != nil {
		return nil, backend.InvocationError{Tool: backend.ToolSearchConversations, Err: err}
	}

	info := cls.Info(lastSync)
	return archive.EncodeSearchResult(archive.SearchResult{
		Conversations: convs,
		Total:         len(convs),
		Sync:          &info,
	}), nil
}

func (b *Backend) getConversation(ctx context.Context, params map[string]any) (map[string]any, error) {
	id, _ := params["id"].(string)
	if id == "" {
		return nil, backend.InvocationError{Tool: backend.ToolGetConversation, Err: errors.New("id is required")}
	}

	conv, err := b.config.Store.GetConversation(ctx, id)
	if err != nil {
		var nf store.NotFoundError
		if errors.As(err, &nf) {
			return nil, backend.NotFoundError{ID: id}
		}
		return nil, backend.InvocationError{Tool: backend.ToolGetConversation, Err: err}
	}

	return archive.EncodeConversation(*conv), nil
}

func (b *Backend) serverStatus(ctx context.Context) (map[string]any, error) {
	stats, err := b.config.Store.Stats(ctx)
	if err != nil {
		return nil, backend.InvocationError{Tool: backend.ToolGetServerStatus, Err: err}
	}

	status := map[string]any{
		"backend":       string(backend.KindCache),
		"conversations": stats.Conversations,
		"messages":      stats.Messages,
	}
	if stats.LastSyncAt != nil {
		status["last_sync_at"] = stats.LastSyncAt.UTC().Format(time.RFC3339)
	}
	return status, nil
}

func (b *Backend) syncConversations(ctx context.Context, params map[string]any) (map[string]any, error) {
	force, _ := params["force"].(bool)

	output, err := b.runSync(ctx, force)
	if err != nil {
		return map[string]any{
			"success": false,
			"output":  output,
			"error":   err.Error(),
		}, nil
	}

	return map[string]any{
		"success": true,
		"output":  output,
	}, nil
}

// runSync shells out to the configured synchronization process and
// waits for it, bounded by the sync timeout. On success the last-sync
// watermark advances to the start of the run.
func (b *Backend) runSync(ctx context.Context, force bool) (string, error) {
	if len(b.config.SyncCommand) == 0 {
		return "", errors.New("no sync command configured")
	}

	ctx, cancel := context.WithTimeout(ctx, b.config.SyncTimeout)
	defer cancel()

	started := b.now()
	args := b.config.SyncCommand[1:]
	if force {
		args = append(append([]string{}, args...), "--force")
	}

	cmd := exec.CommandContext(ctx, b.config.SyncCommand[0], args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("sync process failed: %w", err)
	}

	if err := b.config.Store.SetLastSyncAt(context.WithoutCancel(ctx), started); err != nil {
		return string(out), fmt.Errorf("recording sync watermark: %w", err)
	}

	b.logger.Info("sync completed",
		zap.Bool("force", force),
		zap.Duration("elapsed", b.now().Sub(started)),
	)

	return string(out), nil
}
