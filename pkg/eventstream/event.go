package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeSyncCompleted is emitted after a local archive sync finishes,
	// successfully or not.
	EventTypeSyncCompleted = "spool.sync.completed"

	// EventTypeFetchCompleted is emitted after a paginated fetch run finishes.
	EventTypeFetchCompleted = "spool.fetch.completed"
)

// SyncCompletedEvent is a transport-neutral event payload for a finished
// archive sync or fetch run.
type SyncCompletedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Sync          SyncMeta    `json:"sync"`
}

// EventSource identifies which backend produced the sync.
type EventSource struct {
	Host    string `json:"host,omitempty"`
	Backend string `json:"backend"`
}

// SyncMeta captures sync lifecycle metadata for the event.
type SyncMeta struct {
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	DurationMs    int64     `json:"duration_ms"`
	Success       bool      `json:"success"`
	Conversations int       `json:"conversations"`
	Freshness     string    `json:"freshness,omitempty"`
	Error         string    `json:"error,omitempty"`
}
