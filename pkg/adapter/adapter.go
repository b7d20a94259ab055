// Package adapter selects a working backend transport, exposes the
// domain-level archive API over it, and owns lifecycle for every backend
// it initialized. Candidates are probed in priority order for the
// configured transport mode; all that initialize successfully stay
// available for runtime switching.
package adapter

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/archive"
	"github.com/spoolhq/spool/pkg/backend"
)

// TransportMode selects which backend candidates the adapter probes.
type TransportMode string

const (
	// ModeDirect serves from the local machine: the synced cache first,
	// falling back to in-process fetching against the remote API.
	ModeDirect TransportMode = "direct"

	// ModeStream talks to a remote tool service over its event stream,
	// falling back to in-process fetching.
	ModeStream TransportMode = "stream"

	// ModeExternal uses only the simple request/response backend against
	// an external tool service.
	ModeExternal TransportMode = "external"
)

// priorities maps each transport mode to its candidate list, highest
// priority first.
var priorities = map[TransportMode][]backend.Kind{
	ModeDirect:   {backend.KindCache, backend.KindInProcess},
	ModeStream:   {backend.KindStream, backend.KindInProcess},
	ModeExternal: {backend.KindHTTP},
}

// Config wires constructed (but uninitialized) backends into the adapter.
type Config struct {
	// Mode picks the candidate priority list. Defaults to ModeDirect.
	Mode TransportMode

	// Force, when set, probes only that backend kind. If it fails to
	// initialize the adapter fails hard with no fallback: forcing is an
	// explicit override of the automatic policy.
	Force backend.Kind

	// Backends holds the constructed backend for each kind the
	// configuration supports.
	Backends map[backend.Kind]backend.Backend

	// Logger is the configured zap logger.
	Logger *zap.Logger
}

// Adapter is the orchestrator in front of all backend transports.
//
// Initialize, SwitchBackend, and Close mutate the current-backend
// pointer and the availability map and must be invoked serially by the
// owning caller. Concurrent Invoke-path calls (SearchConversations,
// GetConversation, ...) against the same backend are permitted.
type Adapter struct {
	config    Config
	logger    *zap.Logger
	current   backend.Backend
	available map[backend.Kind]backend.Backend
}

// New creates an adapter from the given configuration. Call Initialize
// before issuing any domain calls.
func New(c Config) (*Adapter, error) {
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(c.Backends) == 0 {
		return nil, errors.New("at least one backend is required")
	}
	if c.Mode == "" {
		c.Mode = ModeDirect
	}
	if _, ok := priorities[c.Mode]; !ok {
		return nil, fmt.Errorf("unknown transport mode %q", c.Mode)
	}

	return &Adapter{
		config:    c,
		logger:    c.Logger,
		available: make(map[backend.Kind]backend.Backend),
	}, nil
}

// Initialize probes candidates and selects the current backend.
func (a *Adapter) Initialize(ctx context.Context) error {
	if a.config.Force != "" {
		b, ok := a.config.Backends[a.config.Force]
		if !ok {
			return fmt.Errorf("forced backend %q is not configured", a.config.Force)
		}
		if !b.Initialize(ctx) {
			return fmt.Errorf("forced backend %q failed to initialize", a.config.Force)
		}
		a.available[b.Kind()] = b
		a.current = b
		a.logger.Info("backend forced", zap.String("kind", string(b.Kind())))
		return nil
	}

	for _, kind := range priorities[a.config.Mode] {
		b, ok := a.config.Backends[kind]
		if !ok {
			continue
		}
		if !b.Initialize(ctx) {
			a.logger.Warn("backend failed to initialize",
				zap.String("kind", string(kind)),
			)
			continue
		}

		a.available[kind] = b
		if a.current == nil {
			a.current = b
			a.logger.Info("backend selected", zap.String("kind", string(kind)))
		}
	}

	if a.current == nil {
		return backend.ErrNoFunctionalBackend
	}

	return nil
}

// Current returns the kind of the active backend, or "" before
// initialization.
func (a *Adapter) Current() backend.Kind {
	if a.current == nil {
		return ""
	}
	return a.current.Kind()
}

// Available returns the kinds of all backends that initialized
// successfully.
func (a *Adapter) Available() []backend.Kind {
	kinds := make([]backend.Kind, 0, len(a.available))
	for _, k := range priorities[a.config.Mode] {
		if _, ok := a.available[k]; ok {
			kinds = append(kinds, k)
		}
	}
	// Forced backends may sit outside the mode's priority list.
	for k := range a.available {
		if !containsKind(kinds, k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// SwitchBackend activates a backend that already initialized
// successfully. The previous current backend is closed first.
func (a *Adapter) SwitchBackend(kind backend.Kind) error {
	next, ok := a.available[kind]
	if !ok {
		return fmt.Errorf("backend %q is not available", kind)
	}
	if a.current == next {
		return nil
	}

	if a.current != nil {
		prev := a.current.Kind()
		if err := a.current.Close(); err != nil {
			a.logger.Warn("closing previous backend",
				zap.String("kind", string(prev)),
				zap.Error(err),
			)
		}
		delete(a.available, prev)
	}

	a.current = next
	a.logger.Info("backend switched", zap.String("kind", string(kind)))
	return nil
}

// SearchConversations searches the archive through the current backend
// and normalizes the raw tool result into domain values. Stale or
// partial sync states are logged but not rejected; filtering on
// freshness is the calling layer's concern.
func (a *Adapter) SearchConversations(ctx context.Context, filters archive.Filters) (archive.SearchResult, error) {
	raw, err := a.invoke(ctx, backend.ToolSearchConversations, filters.ToParams())
	if err != nil {
		return archive.SearchResult{}, err
	}

	res, err := archive.DecodeSearchResult(raw)
	if err != nil {
		return archive.SearchResult{}, backend.InvocationError{Tool: backend.ToolSearchConversations, Err: err}
	}

	if res.Sync != nil && res.Sync.State != archive.SyncFresh {
		a.logger.Warn("search served from non-fresh cache",
			zap.String("state", string(res.Sync.State)),
			zap.String("detail", res.Sync.Message),
		)
	}

	a.logger.Debug("search completed",
		zap.String("backend", string(a.Current())),
		zap.Int("count", len(res.Conversations)),
	)

	return res, nil
}

// GetConversation fetches a single conversation by id.
func (a *Adapter) GetConversation(ctx context.Context, id string) (archive.Conversation, error) {
	raw, err := a.invoke(ctx, backend.ToolGetConversation, map[string]any{"id": id})
	if err != nil {
		return archive.Conversation{}, err
	}

	conv, err := archive.DecodeConversation(raw)
	if err != nil {
		return archive.Conversation{}, backend.InvocationError{Tool: backend.ToolGetConversation, Err: err}
	}
	if conv.ID == "" {
		return archive.Conversation{}, backend.NotFoundError{ID: id}
	}

	return conv, nil
}

// ServerStatus reports the current backend's diagnostics.
func (a *Adapter) ServerStatus(ctx context.Context) (map[string]any, error) {
	return a.invoke(ctx, backend.ToolGetServerStatus, map[string]any{})
}

// TriggerSync asks the current backend to run its out-of-band sync
// process. Backends without one report an invocation failure.
func (a *Adapter) TriggerSync(ctx context.Context, force bool) (map[string]any, error) {
	return a.invoke(ctx, backend.ToolSyncConversations, map[string]any{"force": force})
}

// Close shuts down every available backend. Individual close failures
// are logged and swallowed so one backend's cleanup error cannot block
// another's; shutdown is unconditional.
func (a *Adapter) Close() {
	for kind, b := range a.available {
		if err := b.Close(); err != nil {
			a.logger.Warn("backend close failed",
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
		}
	}
	a.available = make(map[backend.Kind]backend.Backend)
	a.current = nil
}

func (a *Adapter) invoke(ctx context.Context, tool string, params map[string]any) (map[string]any, error) {
	if a.current == nil {
		return nil, backend.ErrNoFunctionalBackend
	}
	return a.current.Invoke(ctx, tool, params)
}

func containsKind(kinds []backend.Kind, k backend.Kind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}
