package archive

import "time"

// SyncState classifies how current a cached dataset is relative to a
// requested time window.
type SyncState string

const (
	// SyncStale means the cache cannot cover the requested window at all.
	SyncStale SyncState = "stale"

	// SyncPartial means the cache covers part of the requested window and
	// may be missing recent conversations.
	SyncPartial SyncState = "partial"

	// SyncFresh means the cache covers the whole requested window.
	SyncFresh SyncState = "fresh"
)

// SyncInfo is the sync-state descriptor the caching backend attaches to
// every search response.
type SyncInfo struct {
	State      SyncState  `json:"state"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	Message    string     `json:"message,omitempty"`
	ShouldSync bool       `json:"should_sync,omitempty"`
}
