package wiring

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/adapter"
	"github.com/spoolhq/spool/pkg/eventstream"
)

// EventingArchive decorates the adapter so that every triggered sync
// also emits a sync-completed event to the configured publisher.
type EventingArchive struct {
	*adapter.Adapter

	publisher eventstream.Publisher
	logger    *zap.Logger
}

// NewEventingArchive wraps the adapter with sync event publishing.
func NewEventingArchive(a *adapter.Adapter, publisher eventstream.Publisher, logger *zap.Logger) *EventingArchive {
	return &EventingArchive{
		Adapter:   a,
		publisher: publisher,
		logger:    logger,
	}
}

// TriggerSync runs the underlying sync and publishes its outcome.
// Publish failures are logged and swallowed: event delivery never
// changes the sync result seen by the caller.
func (e *EventingArchive) TriggerSync(ctx context.Context, force bool) (map[string]any, error) {
	started := time.Now().UTC()
	result, err := e.Adapter.TriggerSync(ctx, force)

	event := SyncEvent(string(e.Adapter.Current()), started, result, err)
	if pubErr := e.publisher.PublishSync(ctx, event); pubErr != nil {
		e.logger.Warn("publishing sync event failed", zap.Error(pubErr))
	}

	return result, err
}

// FetchEvent builds the fetch-completed event payload for a paginated
// fetch run. It shares the sync event envelope with its own event type.
func FetchEvent(backendName string, started time.Time, fetched int, fetchErr error) *eventstream.SyncCompletedEvent {
	event := SyncEvent(backendName, started, map[string]any{
		"success":       fetchErr == nil,
		"conversations": fetched,
	}, fetchErr)
	event.EventType = eventstream.EventTypeFetchCompleted
	return event
}

// SyncEvent builds the sync-completed event payload from a sync outcome.
// backendName identifies which backend performed the sync.
func SyncEvent(backendName string, started time.Time, result map[string]any, syncErr error) *eventstream.SyncCompletedEvent {
	completed := time.Now().UTC()
	host, _ := os.Hostname()

	meta := eventstream.SyncMeta{
		StartedAt:   started,
		CompletedAt: completed,
		DurationMs:  completed.Sub(started).Milliseconds(),
	}

	if syncErr != nil {
		meta.Error = syncErr.Error()
	} else {
		if success, ok := result["success"].(bool); ok {
			meta.Success = success
		}
		if errMsg, ok := result["error"].(string); ok {
			meta.Error = errMsg
		}
		if count, ok := result["conversations"].(float64); ok {
			meta.Conversations = int(count)
		} else if count, ok := result["conversations"].(int); ok {
			meta.Conversations = count
		}
	}

	return &eventstream.SyncCompletedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeSyncCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     completed,
		Source: eventstream.EventSource{
			Host:    host,
			Backend: backendName,
		},
		Sync: meta,
	}
}
