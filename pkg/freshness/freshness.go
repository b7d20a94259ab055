// Package freshness classifies how current the locally synced archive is
// relative to a requested time window. The classification table here is
// the single source of truth for staleness policy; the caching backend
// consults it before returning any result.
package freshness

import (
	"fmt"
	"time"

	"github.com/spoolhq/spool/pkg/archive"
)

const (
	// graceWindow is how far behind the end of a requested window the
	// last sync may lag while still counting as fresh.
	graceWindow = 5 * time.Minute

	// recentWindow is the freshness horizon applied when a query carries
	// no time range at all.
	recentWindow = time.Hour
)

// Classification is the outcome of evaluating the last-sync timestamp
// against a requested window.
type Classification struct {
	State      archive.SyncState
	Message    string
	ShouldSync bool
}

// Info converts the classification into the descriptor attached to
// search responses.
func (c Classification) Info(lastSync *time.Time) archive.SyncInfo {
	return archive.SyncInfo{
		State:      c.State,
		LastSyncAt: lastSync,
		Message:    c.Message,
		ShouldSync: c.ShouldSync,
	}
}

// Classify evaluates the last-sync timestamp against the requested
// [start, end) window at the given reference time. A nil start or end
// leaves that bound open; a nil end is evaluated against now.
func Classify(lastSync *time.Time, start, end *time.Time, now time.Time) Classification {
	if lastSync == nil {
		return Classification{
			State:      archive.SyncStale,
			Message:    "no sync recorded; needs initial sync",
			ShouldSync: true,
		}
	}

	ls := *lastSync

	if start == nil && end == nil {
		if ls.After(now.Add(-recentWindow)) {
			return Classification{State: archive.SyncFresh}
		}
		return Classification{
			State:   archive.SyncPartial,
			Message: fmt.Sprintf("last sync at %s; recent conversations may be missing", ls.Format(time.RFC3339)),
		}
	}

	if start != nil && ls.Before(*start) {
		return Classification{
			State:      archive.SyncStale,
			Message:    "last sync precedes requested period",
			ShouldSync: true,
		}
	}

	// An open end bound means "up to now".
	windowEnd := now
	if end != nil {
		windowEnd = *end
	}

	if !ls.Before(windowEnd.Add(-graceWindow)) {
		return Classification{State: archive.SyncFresh}
	}

	if start != nil {
		// Inside [start, end) and past the grace window.
		return Classification{
			State:   archive.SyncPartial,
			Message: fmt.Sprintf("may be missing conversations after %s", ls.Format(time.RFC3339)),
		}
	}

	return Classification{
		State:   archive.SyncPartial,
		Message: "may be missing very recent conversations",
	}
}
