// Package backend defines the transport capability every archive backend
// implements, the uniform tool-invocation contract between the adapter
// and its backends, and the error taxonomy shared across transports.
package backend

import (
	"context"
)

// Kind is the stable identifier of a backend transport.
type Kind string

const (
	// KindInProcess invokes tool logic directly in the caller's process.
	// It is the universal fallback.
	KindInProcess Kind = "inprocess"

	// KindStream talks to a remote service over a long-lived server-sent
	// event stream with asynchronous request/response correlation.
	KindStream Kind = "stream"

	// KindHTTP issues one HTTP request per tool invocation.
	KindHTTP Kind = "http"

	// KindCache serves from the locally synced archive store.
	KindCache Kind = "cache"
)

// Tool names forming the uniform invocation surface. Parameters and
// results are plain structured data, never backend-specific types.
const (
	ToolSearchConversations = "search_conversations"
	ToolGetConversation     = "get_conversation"
	ToolGetServerStatus     = "get_server_status"
	ToolSyncConversations   = "sync_conversations"
)

// Backend is the transport capability. Implementations are selected by
// the adapter via the priority list for the configured transport mode.
type Backend interface {
	// Initialize establishes the backend's transport. It never panics and
	// never returns an error: any failure is logged internally and
	// reported as false so the adapter can fall back.
	Initialize(ctx context.Context) bool

	// Invoke executes a named tool with plain structured parameters and
	// returns a plain structured result.
	Invoke(ctx context.Context, tool string, params map[string]any) (map[string]any, error)

	// Close releases all held resources. It is idempotent.
	Close() error

	// Kind returns the backend's stable identifier.
	Kind() Kind
}
