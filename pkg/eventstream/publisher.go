package eventstream

import "context"

// Publisher publishes sync events to an event stream backend.
type Publisher interface {
	PublishSync(ctx context.Context, event *SyncCompletedEvent) error
	Close() error
}
