package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/archive"
	"github.com/spoolhq/spool/pkg/intercom"
)

// wireConv builds a wire conversation; withCustomer controls whether the
// thread contains any customer-authored message.
func wireConv(id string, createdAt int64, withCustomer bool) intercom.Conversation {
	authorType := "admin"
	if withCustomer {
		authorType = "user"
	}
	return intercom.Conversation{
		ID:        id,
		CreatedAt: createdAt,
		Source: intercom.Source{
			ID:     "src-" + id,
			Body:   "body of " + id,
			Author: intercom.Author{Type: authorType, Email: authorType + "@example.com"},
		},
	}
}

// fakeArchive is a scriptable archive API for fetch tests.
type fakeArchive struct {
	srv *httptest.Server

	conversations []intercom.Conversation
	searchCalls   atomic.Int32
	listCalls     atomic.Int32
	detailCalls   atomic.Int32
	failSearch    bool
}

func newFakeArchive(convs []intercom.Conversation) *fakeArchive {
	f := &fakeArchive{conversations: convs}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /conversations/search", func(w http.ResponseWriter, r *http.Request) {
		f.searchCalls.Add(1)
		if f.failSearch {
			http.Error(w, "search disabled", http.StatusServiceUnavailable)
			return
		}

		var req intercom.SearchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		start := (req.Pagination.Page - 1) * req.Pagination.PerPage
		_ = json.NewEncoder(w).Encode(intercom.SearchResponse{
			Conversations: f.page(start, req.Pagination.PerPage),
			TotalCount:    len(f.conversations),
		})
	})

	mux.HandleFunc("GET /conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.detailCalls.Add(1)
		id := r.PathValue("id")
		for _, c := range f.conversations {
			if c.ID == id {
				_ = json.NewEncoder(w).Encode(c)
				return
			}
		}
		http.NotFound(w, r)
	})

	mux.HandleFunc("GET /conversations", func(w http.ResponseWriter, r *http.Request) {
		f.listCalls.Add(1)
		var page, perPage int
		_, _ = fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
		_, _ = fmt.Sscanf(r.URL.Query().Get("per_page"), "%d", &perPage)
		start := (page - 1) * perPage
		_ = json.NewEncoder(w).Encode(intercom.ListResponse{
			Conversations: f.page(start, perPage),
			TotalCount:    len(f.conversations),
		})
	})

	f.srv = httptest.NewServer(mux)
	return f
}

func (f *fakeArchive) page(start, size int) []intercom.Conversation {
	if start >= len(f.conversations) {
		return nil
	}
	end := min(start+size, len(f.conversations))
	return f.conversations[start:end]
}

func (f *fakeArchive) Close() { f.srv.Close() }

var _ = Describe("Fetcher", func() {
	var (
		fake    *fakeArchive
		fetcher *Fetcher
		ctx     context.Context
	)

	newFetcher := func(convs []intercom.Conversation, maxTotal int) {
		fake = newFakeArchive(convs)
		DeferCleanup(fake.Close)

		client, err := intercom.NewClient(intercom.Config{
			BaseURL: fake.srv.URL,
			Logger:  zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())

		fetcher, err = NewFetcher(Config{
			Client:    client,
			MaxTotal:  maxTotal,
			PageDelay: time.Millisecond,
			Logger:    zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("when the total available is below the limit", func() {
		BeforeEach(func() {
			convs := make([]intercom.Conversation, 10)
			for i := range convs {
				convs[i] = wireConv(fmt.Sprintf("c%d", i), int64(1704067200+i), true)
			}
			newFetcher(convs, 500)
		})

		It("requests exactly one page and returns all records", func() {
			out, err := fetcher.FetchConversations(ctx, archive.Filters{Limit: 50}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(10))
			Expect(fake.searchCalls.Load()).To(Equal(int32(1)))
		})
	})

	Context("when more records exist than the limit", func() {
		BeforeEach(func() {
			convs := make([]intercom.Conversation, 60)
			for i := range convs {
				convs[i] = wireConv(fmt.Sprintf("c%d", i), int64(1704067200+i), true)
			}
			newFetcher(convs, 500)
		})

		It("never returns more than the limit", func() {
			out, err := fetcher.FetchConversations(ctx, archive.Filters{Limit: 25}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(out)).To(BeNumerically("<=", 25))
			Expect(fake.searchCalls.Load()).To(Equal(int32(1)), "page size exceeds limit; one page suffices")
		})
	})

	Context("with the safety ceiling below the requested limit", func() {
		BeforeEach(func() {
			convs := make([]intercom.Conversation, 30)
			for i := range convs {
				convs[i] = wireConv(fmt.Sprintf("c%d", i), int64(1704067200+i), true)
			}
			newFetcher(convs, 20)
		})

		It("caps the fetch at the ceiling", func() {
			out, err := fetcher.FetchConversations(ctx, archive.Filters{Limit: 100}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(20))
		})
	})

	Context("with conversations lacking customer messages", func() {
		BeforeEach(func() {
			newFetcher([]intercom.Conversation{
				wireConv("keep-1", 1704067200, true),
				wireConv("drop-1", 1704067201, false),
				wireConv("keep-2", 1704067202, true),
			}, 500)
		})

		It("discards administrator-only threads", func() {
			out, err := fetcher.FetchConversations(ctx, archive.Filters{}, nil)
			Expect(err).NotTo(HaveOccurred())

			var ids []string
			for _, c := range out {
				ids = append(ids, c.ID)
			}
			Expect(ids).To(Equal([]string{"keep-1", "keep-2"}))
		})
	})

	Context("progress reporting", func() {
		BeforeEach(func() {
			convs := make([]intercom.Conversation, 10)
			for i := range convs {
				convs[i] = wireConv(fmt.Sprintf("c%d", i), int64(1704067200+i), true)
			}
			newFetcher(convs, 500)
		})

		It("emits a percentage update after the first page", func() {
			var updates []Progress
			_, err := fetcher.FetchConversations(ctx, archive.Filters{Limit: 10}, func(p Progress) {
				updates = append(updates, p)
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updates).NotTo(BeEmpty())

			last := updates[len(updates)-1]
			Expect(last.Fetched).To(Equal(10))
			Expect(last.EstimatedTotal).To(Equal(10))
			Expect(last.Percent).To(BeNumerically("==", 100))
			// A sub-second fetch reports percentage only.
			Expect(last.Rate).To(BeZero())
			Expect(last.ETA).To(BeZero())
		})
	})

	Context("when the search endpoint is unusable", func() {
		BeforeEach(func() {
			newFetcher([]intercom.Conversation{
				wireConv("c0", 1704067200, true),
				wireConv("c1", 1704067300, false),
				wireConv("c2", 1704067400, true),
			}, 500)
			fake.failSearch = true
		})

		It("falls back to listing plus per-record detail fetches", func() {
			out, err := fetcher.FetchConversations(ctx, archive.Filters{Limit: 10}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(2))
			Expect(fake.listCalls.Load()).To(BeNumerically(">=", int32(1)))
			Expect(fake.detailCalls.Load()).To(Equal(int32(3)))
		})

		It("applies date bounds client-side", func() {
			start := time.Unix(1704067350, 0)
			out, err := fetcher.FetchConversations(ctx, archive.Filters{StartTime: &start, Limit: 10}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(1))
			Expect(out[0].ID).To(Equal("c2"))
		})
	})

	Context("when every endpoint fails", func() {
		BeforeEach(func() {
			newFetcher(nil, 500)
			fake.failSearch = true
			fake.srv.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "down", http.StatusInternalServerError)
			})
		})

		It("surfaces the listing error", func() {
			_, err := fetcher.FetchConversations(ctx, archive.Filters{Limit: 5}, nil)
			Expect(err).To(HaveOccurred())
			Expect(strings.Contains(err.Error(), "listing")).To(BeTrue())
		})
	})
})
