package wiring_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spoolhq/spool/cmd/spool/wiring"
	"github.com/spoolhq/spool/pkg/eventstream"
)

var errSyncFailed = errors.New("sync exploded")

var _ = Describe("SyncEvent", func() {
	It("builds a successful event from the sync result", func() {
		started := time.Now().UTC().Add(-2 * time.Second)
		result := map[string]any{
			"success":       true,
			"conversations": 42,
		}

		event := wiring.SyncEvent("cache", started, result, nil)

		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventType).To(Equal(eventstream.EventTypeSyncCompleted))
		Expect(event.EventID).NotTo(BeEmpty())
		Expect(event.Source.Backend).To(Equal("cache"))
		Expect(event.Sync.Success).To(BeTrue())
		Expect(event.Sync.Conversations).To(Equal(42))
		Expect(event.Sync.DurationMs).To(BeNumerically(">=", 2000))
	})

	It("reads float counts from decoded JSON results", func() {
		result := map[string]any{
			"success":       true,
			"conversations": float64(7),
		}

		event := wiring.SyncEvent("stream", time.Now(), result, nil)
		Expect(event.Sync.Conversations).To(Equal(7))
	})

	It("records the error when the sync failed", func() {
		event := wiring.SyncEvent("cache", time.Now(), nil, errSyncFailed)

		Expect(event.Sync.Success).To(BeFalse())
		Expect(event.Sync.Error).To(Equal("sync exploded"))
	})

	It("issues unique event ids", func() {
		a := wiring.SyncEvent("cache", time.Now(), nil, nil)
		b := wiring.SyncEvent("cache", time.Now(), nil, nil)
		Expect(a.EventID).NotTo(Equal(b.EventID))
	})
})

var _ = Describe("FetchEvent", func() {
	It("carries the fetch event type and count", func() {
		event := wiring.FetchEvent("inprocess", time.Now(), 12, nil)
		Expect(event.EventType).To(Equal(eventstream.EventTypeFetchCompleted))
		Expect(event.Sync.Success).To(BeTrue())
		Expect(event.Sync.Conversations).To(Equal(12))
	})

	It("records fetch failures", func() {
		event := wiring.FetchEvent("inprocess", time.Now(), 0, errSyncFailed)
		Expect(event.Sync.Success).To(BeFalse())
		Expect(event.Sync.Error).To(Equal("sync exploded"))
	})
})
