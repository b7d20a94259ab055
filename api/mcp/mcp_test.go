package mcp

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spoolhq/spool/pkg/archive"
	"github.com/spoolhq/spool/pkg/logger"
)

// fakeArchive is a canned-response Archive for tool handler tests.
type fakeArchive struct {
	searchResult archive.SearchResult
	searchErr    error
	lastFilters  archive.Filters

	conversation archive.Conversation
	getErr       error
	lastID       string

	status    map[string]any
	statusErr error

	syncResult map[string]any
	syncErr    error
	lastForce  bool
}

func (f *fakeArchive) SearchConversations(_ context.Context, filters archive.Filters) (archive.SearchResult, error) {
	f.lastFilters = filters
	return f.searchResult, f.searchErr
}

func (f *fakeArchive) GetConversation(_ context.Context, id string) (archive.Conversation, error) {
	f.lastID = id
	return f.conversation, f.getErr
}

func (f *fakeArchive) ServerStatus(_ context.Context) (map[string]any, error) {
	return f.status, f.statusErr
}

func (f *fakeArchive) TriggerSync(_ context.Context, force bool) (map[string]any, error) {
	f.lastForce = force
	return f.syncResult, f.syncErr
}

var _ = Describe("MCP Server", func() {
	var (
		server *Server
		arc    *fakeArchive
		ctx    context.Context
	)

	BeforeEach(func() {
		arc = &fakeArchive{
			searchResult: archive.SearchResult{
				Conversations: []archive.Conversation{{ID: "c1"}},
				Total:         1,
				Sync:          &archive.SyncInfo{State: archive.SyncFresh},
			},
			conversation: archive.Conversation{ID: "c1"},
			status:       map[string]any{"backend": "cache"},
			syncResult:   map[string]any{"success": true},
		}
		ctx = context.Background()

		var err error
		server, err = NewServer(Config{
			Archive: arc,
			Logger:  logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when the archive is nil", func() {
			_, err := NewServer(Config{Logger: logger.Nop()})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("archive is required"))
		})

		It("returns an error when logger is nil", func() {
			_, err := NewServer(Config{Archive: arc})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger is required"))
		})

		It("creates a server with valid config", func() {
			Expect(server).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			Expect(server.Handler()).NotTo(BeNil())
		})

		It("allows a noop server with no dependencies", func() {
			s, err := NewServer(Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(s).NotTo(BeNil())
		})
	})

	Describe("handleSearch", func() {
		It("searches with filters built from the input", func() {
			result, output, err := server.handleSearch(ctx, nil, SearchInput{
				StartTime: "2026-08-01T00:00:00Z",
				EndTime:   "2026-08-08T00:00:00Z",
				Tags:      []string{"billing"},
				Limit:     10,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())

			Expect(output.Total).To(Equal(1))
			Expect(output.Conversations).To(HaveLen(1))
			Expect(output.Sync).NotTo(BeNil())

			Expect(arc.lastFilters.StartTime).NotTo(BeNil())
			Expect(arc.lastFilters.StartTime.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))).To(BeTrue())
			Expect(arc.lastFilters.Tags).To(Equal([]string{"billing"}))
			Expect(arc.lastFilters.Limit).To(Equal(10))
		})

		It("rejects malformed timestamps", func() {
			result, _, err := server.handleSearch(ctx, nil, SearchInput{
				StartTime: "last tuesday",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})

		It("reports search failures as tool errors", func() {
			arc.searchErr = errors.New("no functional backend")

			result, _, err := server.handleSearch(ctx, nil, SearchInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})

	Describe("handleGet", func() {
		It("returns the conversation", func() {
			result, output, err := server.handleGet(ctx, nil, GetInput{ID: "c1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Conversation.ID).To(Equal("c1"))
			Expect(arc.lastID).To(Equal("c1"))
		})

		It("requires an id", func() {
			result, _, err := server.handleGet(ctx, nil, GetInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})

		It("reports lookup failures as tool errors", func() {
			arc.getErr = errors.New("conversation not found: missing")

			result, _, err := server.handleGet(ctx, nil, GetInput{ID: "missing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})

	Describe("handleStatus", func() {
		It("returns the backend status", func() {
			result, output, err := server.handleStatus(ctx, nil, struct{}{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Status["backend"]).To(Equal("cache"))
		})
	})

	Describe("handleSync", func() {
		It("triggers a sync with the force flag", func() {
			result, output, err := server.handleSync(ctx, nil, SyncInput{Force: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Result["success"]).To(Equal(true))
			Expect(arc.lastForce).To(BeTrue())
		})

		It("reports sync failures as tool errors", func() {
			arc.syncErr = errors.New("sync process exited 1")

			result, _, err := server.handleSync(ctx, nil, SyncInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})
})
