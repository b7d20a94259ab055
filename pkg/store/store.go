// Package store defines the driver interface for the locally synced
// conversation archive used by the caching backend. The store is
// populated by an out-of-band sync process; this layer only queries it
// and tracks the last-sync watermark.
package store

import (
	"context"
	"time"

	"github.com/spoolhq/spool/pkg/archive"
)

// Driver is the interface for the local archive store. Implementations
// exist for SQLite, PostgreSQL, and an in-memory map.
type Driver interface {
	// UpsertConversations inserts or replaces conversation records.
	UpsertConversations(ctx context.Context, convs []archive.Conversation) error

	// QueryConversations returns conversations matching the filters,
	// newest first, capped at the filters' effective limit.
	QueryConversations(ctx context.Context, filters archive.Filters) ([]archive.Conversation, error)

	// GetConversation retrieves a single conversation by id. Returns
	// NotFoundError when no record exists.
	GetConversation(ctx context.Context, id string) (*archive.Conversation, error)

	// Count returns the number of stored conversations.
	Count(ctx context.Context) (int, error)

	// LastSyncAt returns the last-sync watermark, or nil when no sync
	// has been recorded.
	LastSyncAt(ctx context.Context) (*time.Time, error)

	// SetLastSyncAt records the last-sync watermark.
	SetLastSyncAt(ctx context.Context, t time.Time) error

	// Stats reports store size and record counts for diagnostics.
	Stats(ctx context.Context) (Stats, error)

	// Close closes the store and releases any resources.
	Close() error
}

// Stats describes the store for the get_server_status tool.
type Stats struct {
	Conversations int        `json:"conversations"`
	Messages      int        `json:"messages"`
	LastSyncAt    *time.Time `json:"last_sync_at,omitempty"`
}

// MatchesTags reports whether the conversation carries at least one of
// the requested tags. An empty request matches everything.
func MatchesTags(conv *archive.Conversation, tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		for _, have := range conv.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}
