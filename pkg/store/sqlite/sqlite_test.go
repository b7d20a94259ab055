package sqlite_test

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spoolhq/spool/pkg/archive"
	"github.com/spoolhq/spool/pkg/store"
	"github.com/spoolhq/spool/pkg/store/sqlite"
)

func conv(id string, createdAt time.Time, email string, tags ...string) archive.Conversation {
	return archive.Conversation{
		ID:            id,
		CreatedAt:     createdAt,
		CustomerEmail: email,
		Tags:          tags,
		Messages: []archive.Message{
			{ID: id + "-m1", Role: archive.RoleCustomer, Body: "hello", CreatedAt: createdAt},
			{ID: id + "-m2", Role: archive.RoleAgent, Body: "hi", CreatedAt: createdAt.Add(time.Minute)},
		},
	}
}

var _ = Describe("Driver", func() {
	var (
		driver *sqlite.Driver
		ctx    context.Context
		base   time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		base = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

		var err error
		driver, err = sqlite.NewDriver(ctx, ":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("NewDriver", func() {
		It("creates a file-backed database", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "spool.db")
			d, err := sqlite.NewDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Close()).To(Succeed())
		})
	})

	Describe("UpsertConversations", func() {
		It("inserts and replaces by id", func() {
			c := conv("c1", base, "a@example.com")
			Expect(driver.UpsertConversations(ctx, []archive.Conversation{c})).To(Succeed())

			c.CustomerEmail = "b@example.com"
			Expect(driver.UpsertConversations(ctx, []archive.Conversation{c})).To(Succeed())

			got, err := driver.GetConversation(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.CustomerEmail).To(Equal("b@example.com"))

			n, err := driver.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
		})
	})

	Describe("QueryConversations", func() {
		BeforeEach(func() {
			Expect(driver.UpsertConversations(ctx, []archive.Conversation{
				conv("c1", base, "a@example.com", "billing"),
				conv("c2", base.Add(24*time.Hour), "b@example.com", "exports"),
				conv("c3", base.Add(48*time.Hour), "a@example.com"),
			})).To(Succeed())
		})

		It("returns newest first", func() {
			out, err := driver.QueryConversations(ctx, archive.Filters{})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(3))
			Expect(out[0].ID).To(Equal("c3"))
			Expect(out[2].ID).To(Equal("c1"))
		})

		It("applies date bounds as a half-open interval", func() {
			start := base.Add(12 * time.Hour)
			end := base.Add(48 * time.Hour)
			out, err := driver.QueryConversations(ctx, archive.Filters{StartTime: &start, EndTime: &end})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(1))
			Expect(out[0].ID).To(Equal("c2"))
		})

		It("filters by customer email", func() {
			out, err := driver.QueryConversations(ctx, archive.Filters{CustomerEmail: "a@example.com"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(2))
		})

		It("filters by tags after the SQL query", func() {
			out, err := driver.QueryConversations(ctx, archive.Filters{Tags: []string{"billing"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(1))
			Expect(out[0].ID).To(Equal("c1"))
		})

		It("honors the limit", func() {
			out, err := driver.QueryConversations(ctx, archive.Filters{Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(2))
		})
	})

	Describe("GetConversation", func() {
		It("returns NotFoundError for a missing id", func() {
			_, err := driver.GetConversation(ctx, "missing")
			Expect(err).To(MatchError(store.NotFoundError{ID: "missing"}))
		})

		It("round-trips the stored record", func() {
			c := conv("c9", base, "a@example.com", "vip")
			Expect(driver.UpsertConversations(ctx, []archive.Conversation{c})).To(Succeed())

			got, err := driver.GetConversation(ctx, "c9")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("c9"))
			Expect(got.Tags).To(Equal([]string{"vip"}))
			Expect(got.Messages).To(HaveLen(2))
			Expect(got.Messages[0].Role).To(Equal(archive.RoleCustomer))
		})
	})

	Describe("sync watermark", func() {
		It("starts unset", func() {
			last, err := driver.LastSyncAt(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(last).To(BeNil())
		})

		It("persists the watermark", func() {
			at := time.Date(2024, 1, 12, 6, 0, 0, 0, time.UTC)
			Expect(driver.SetLastSyncAt(ctx, at)).To(Succeed())

			last, err := driver.LastSyncAt(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(last).To(HaveValue(Equal(at)))
		})
	})

	Describe("Stats", func() {
		It("reports record counts and the watermark", func() {
			Expect(driver.UpsertConversations(ctx, []archive.Conversation{
				conv("c1", base, "a@example.com"),
				conv("c2", base.Add(time.Hour), "b@example.com"),
			})).To(Succeed())
			Expect(driver.SetLastSyncAt(ctx, base.Add(2*time.Hour))).To(Succeed())

			stats, err := driver.Stats(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats.Conversations).To(Equal(2))
			Expect(stats.Messages).To(Equal(4))
			Expect(stats.LastSyncAt).NotTo(BeNil())
		})
	})
})
