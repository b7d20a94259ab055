package freshness

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spoolhq/spool/pkg/archive"
)

func tp(t time.Time) *time.Time { return &t }

var _ = Describe("Classify", func() {
	now := time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	Context("with no recorded sync", func() {
		It("classifies as stale and requests an initial sync", func() {
			c := Classify(nil, tp(start), tp(end), now)
			Expect(c.State).To(Equal(archive.SyncStale))
			Expect(c.ShouldSync).To(BeTrue())
			Expect(c.Message).To(ContainSubstring("initial sync"))
		})
	})

	Context("with no time range", func() {
		It("is fresh when synced within the last hour", func() {
			c := Classify(tp(now.Add(-30*time.Minute)), nil, nil, now)
			Expect(c.State).To(Equal(archive.SyncFresh))
		})

		It("is partial when the last sync is older than an hour", func() {
			last := now.Add(-3 * time.Hour)
			c := Classify(tp(last), nil, nil, now)
			Expect(c.State).To(Equal(archive.SyncPartial))
			Expect(c.Message).To(ContainSubstring(last.Format(time.RFC3339)))
		})
	})

	Context("with a full [start, end) window", func() {
		It("is stale when the last sync precedes the window", func() {
			c := Classify(tp(start.Add(-24*time.Hour)), tp(start), tp(end), now)
			Expect(c.State).To(Equal(archive.SyncStale))
			Expect(c.Message).To(ContainSubstring("precedes requested period"))
			Expect(c.ShouldSync).To(BeTrue())
		})

		It("is partial when the last sync falls inside the window", func() {
			last := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
			c := Classify(tp(last), tp(start), tp(end), now)
			Expect(c.State).To(Equal(archive.SyncPartial))
			Expect(c.Message).To(ContainSubstring("may be missing conversations after"))
			Expect(c.Message).To(ContainSubstring("2024-01-10T00:00:00Z"))
		})

		It("is fresh when the last sync is within the grace window of the end", func() {
			c := Classify(tp(end.Add(-4*time.Minute)), tp(start), tp(end), now)
			Expect(c.State).To(Equal(archive.SyncFresh))
		})

		It("is fresh when the last sync is past the end", func() {
			c := Classify(tp(end.Add(time.Hour)), tp(start), tp(end), now)
			Expect(c.State).To(Equal(archive.SyncFresh))
		})
	})

	Context("with only an end bound", func() {
		It("is partial just past the grace window", func() {
			c := Classify(tp(end.Add(-10*time.Minute)), nil, tp(end), now)
			Expect(c.State).To(Equal(archive.SyncPartial))
			Expect(c.Message).To(ContainSubstring("very recent"))
		})
	})

	Context("with only a start bound", func() {
		It("evaluates the open end against now", func() {
			c := Classify(tp(now.Add(-time.Minute)), tp(start), nil, now)
			Expect(c.State).To(Equal(archive.SyncFresh))
		})

		It("is stale when the sync precedes the start", func() {
			c := Classify(tp(start.Add(-time.Hour)), tp(start), nil, now)
			Expect(c.State).To(Equal(archive.SyncStale))
		})
	})

	Describe("monotonic transitions", func() {
		// For a fixed window, advancing the last-sync timestamp must never
		// move the classification backwards (fresh -> partial -> stale).
		rank := map[archive.SyncState]int{
			archive.SyncStale:   0,
			archive.SyncPartial: 1,
			archive.SyncFresh:   2,
		}

		It("never regresses as last sync advances", func() {
			prev := -1
			for ls := start.Add(-48 * time.Hour); ls.Before(end.Add(48 * time.Hour)); ls = ls.Add(30 * time.Minute) {
				c := Classify(tp(ls), tp(start), tp(end), now)
				r, ok := rank[c.State]
				Expect(ok).To(BeTrue(), "unknown state %q", c.State)
				Expect(r).To(BeNumerically(">=", prev),
					"state regressed to %s at last_sync=%s", c.State, ls)
				prev = r
			}
		})
	})

	Describe("Info", func() {
		It("carries the last sync timestamp into the descriptor", func() {
			last := now.Add(-10 * time.Minute)
			c := Classify(tp(last), nil, nil, now)
			info := c.Info(tp(last))
			Expect(info.State).To(Equal(archive.SyncFresh))
			Expect(info.LastSyncAt).To(HaveValue(Equal(last)))
		})
	})
})
