// Package inmemory provides a map-backed store driver, used in tests
// and wherever persistence is not needed.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spoolhq/spool/pkg/archive"
	"github.com/spoolhq/spool/pkg/store"
)

// Driver implements store.Driver using an in-memory map.
type Driver struct {
	mu         sync.RWMutex
	convs      map[string]archive.Conversation
	lastSyncAt *time.Time
}

// NewDriver creates an empty in-memory store.
func NewDriver() *Driver {
	return &Driver{
		convs: make(map[string]archive.Conversation),
	}
}

func (d *Driver) UpsertConversations(_ context.Context, convs []archive.Conversation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range convs {
		d.convs[c.ID] = c
	}
	return nil
}

func (d *Driver) QueryConversations(_ context.Context, filters archive.Filters) ([]archive.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []archive.Conversation
	for _, c := range d.convs {
		if filters.StartTime != nil && c.CreatedAt.Before(*filters.StartTime) {
			continue
		}
		if filters.EndTime != nil && !c.CreatedAt.Before(*filters.EndTime) {
			continue
		}
		if filters.CustomerEmail != "" && c.CustomerEmail != filters.CustomerEmail {
			continue
		}
		if !store.MatchesTags(&c, filters.Tags) {
			continue
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit := filters.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *Driver) GetConversation(_ context.Context, id string) (*archive.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.convs[id]
	if !ok {
		return nil, store.NotFoundError{ID: id}
	}
	return &c, nil
}

func (d *Driver) Count(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.convs), nil
}

func (d *Driver) LastSyncAt(_ context.Context) (*time.Time, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastSyncAt, nil
}

func (d *Driver) SetLastSyncAt(_ context.Context, t time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSyncAt = &t
	return nil
}

func (d *Driver) Stats(_ context.Context) (store.Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	messages := 0
	for _, c := range d.convs {
		messages += len(c.Messages)
	}
	return store.Stats{
		Conversations: len(d.convs),
		Messages:      messages,
		LastSyncAt:    d.lastSyncAt,
	}, nil
}

func (d *Driver) Close() error { return nil }
