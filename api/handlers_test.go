package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spoolhq/spool/pkg/archive"
	"github.com/spoolhq/spool/pkg/backend"
	"github.com/spoolhq/spool/pkg/logger"
)

// fakeArchive is a canned-response Archive for handler tests.
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

func (f *fakeArchive) Current() backend.Kind { return backend.KindCache }

func (f *fakeArchive) Available() []backend.Kind {
	return []backend.Kind{backend.KindCache, backend.KindInProcess}
}

func decodeBody(resp *http.Response, out any) {
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(body, out)).To(Succeed())
}

var _ = Describe("Server handlers", func() {
	var (
		server *Server
		arc    *fakeArchive
	)

	BeforeEach(func() {
		arc = &fakeArchive{
			searchResult: archive.SearchResult{
				Conversations: []archive.Conversation{{ID: "c1"}},
				Total:         1,
			},
			conversation: archive.Conversation{ID: "c1"},
			status:       map[string]any{"backend": "cache"},
			syncResult:   map[string]any{"success": true},
		}

		var err error
		server, err = NewServer(Config{ListenAddr: ":0"}, arc, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("requires an archive", func() {
			_, err := NewServer(Config{}, nil, logger.Nop())
			Expect(err).To(MatchError("archive is required"))
		})

		It("requires a logger", func() {
			_, err := NewServer(Config{}, arc, nil)
			Expect(err).To(MatchError("logger is required"))
		})
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})
	})

	Describe("GET /status", func() {
		It("merges backend status with adapter transport info", func() {
			req, _ := http.NewRequest(http.MethodGet, "/status", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var got map[string]any
			decodeBody(resp, &got)
			Expect(got["backend"]).To(Equal("cache"))
			Expect(got["transport"]).To(Equal("cache"))
			Expect(got["available"]).To(ConsistOf("cache", "inprocess"))
		})

		It("returns 500 when the backend fails", func() {
			arc.statusErr = errors.New("backend down")

			req, _ := http.NewRequest(http.MethodGet, "/status", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})
	})

	Describe("GET /conversations", func() {
		It("returns search results", func() {
			req, _ := http.NewRequest(http.MethodGet, "/conversations", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var got archive.SearchResult
			decodeBody(resp, &got)
			Expect(got.Total).To(Equal(1))
			Expect(got.Conversations).To(HaveLen(1))
		})

		It("parses filter query parameters", func() {
			url := "/conversations?start_time=2026-08-01T00:00:00Z&end_time=2026-08-08T00:00:00Z&tags=billing,refund&customer_email=a%40b.com&limit=10"
			req, _ := http.NewRequest(http.MethodGet, url, nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			Expect(arc.lastFilters.StartTime).NotTo(BeNil())
			Expect(arc.lastFilters.StartTime.Equal(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))).To(BeTrue())
			Expect(arc.lastFilters.EndTime).NotTo(BeNil())
			Expect(arc.lastFilters.Tags).To(Equal([]string{"billing", "refund"}))
			Expect(arc.lastFilters.CustomerEmail).To(Equal("a@b.com"))
			Expect(arc.lastFilters.Limit).To(Equal(10))
		})

		It("rejects malformed timestamps", func() {
			req, _ := http.NewRequest(http.MethodGet, "/conversations?start_time=yesterday", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			var got ErrorResponse
			decodeBody(resp, &got)
			Expect(got.Error).To(ContainSubstring("RFC 3339"))
		})

		It("returns 500 when the search fails", func() {
			arc.searchErr = errors.New("no functional backend")

			req, _ := http.NewRequest(http.MethodGet, "/conversations", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})
	})

	Describe("GET /conversations/:id", func() {
		It("returns the conversation", func() {
			req, _ := http.NewRequest(http.MethodGet, "/conversations/c1", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(arc.lastID).To(Equal("c1"))

			var got archive.Conversation
			decodeBody(resp, &got)
			Expect(got.ID).To(Equal("c1"))
		})

		It("returns 404 for unknown conversations", func() {
			arc.getErr = backend.NotFoundError{ID: "missing"}

			req, _ := http.NewRequest(http.MethodGet, "/conversations/missing", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("returns 500 for other failures", func() {
			arc.getErr = errors.New("transport broke")

			req, _ := http.NewRequest(http.MethodGet, "/conversations/c1", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})
	})

	Describe("POST /sync", func() {
		It("triggers a sync", func() {
			req, _ := http.NewRequest(http.MethodPost, "/sync", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(arc.lastForce).To(BeFalse())
		})

		It("passes the force parameter through", func() {
			req, _ := http.NewRequest(http.MethodPost, "/sync?force=true", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(arc.lastForce).To(BeTrue())
		})
	})

	Describe("POST /invoke", func() {
		invoke := func(tool string, params map[string]any) *http.Response {
			body, err := json.Marshal(InvokeRequest{Tool: tool, Params: params})
			Expect(err).NotTo(HaveOccurred())

			req, _ := http.NewRequest(http.MethodPost, "/invoke", bytes.NewReader(body))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("dispatches search_conversations", func() {
			resp := invoke(backend.ToolSearchConversations, map[string]any{"limit": 5})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var got map[string]any
			decodeBody(resp, &got)
			Expect(got).To(HaveKey("conversations"))
			Expect(got["total"]).To(BeNumerically("==", 1))
			Expect(arc.lastFilters.Limit).To(Equal(5))
		})

		It("dispatches get_conversation", func() {
			resp := invoke(backend.ToolGetConversation, map[string]any{"id": "c1"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(arc.lastID).To(Equal("c1"))
		})

		It("maps not-found to 404", func() {
			arc.getErr = backend.NotFoundError{ID: "nope"}

			resp := invoke(backend.ToolGetConversation, map[string]any{"id": "nope"})
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("dispatches get_server_status", func() {
			resp := invoke(backend.ToolGetServerStatus, nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var got map[string]any
			decodeBody(resp, &got)
			Expect(got["backend"]).To(Equal("cache"))
		})

		It("dispatches sync_conversations with force", func() {
			resp := invoke(backend.ToolSyncConversations, map[string]any{"force": true})
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(arc.lastForce).To(BeTrue())
		})

		It("rejects unknown tools", func() {
			resp := invoke("drop_all_tables", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))

			var got ErrorResponse
			decodeBody(resp, &got)
			Expect(got.Error).To(ContainSubstring("unknown tool"))
		})

		It("types unknown tools as value-matchable invocation errors", func() {
			_, err := server.dispatch(context.Background(), InvokeRequest{Tool: "drop_all_tables"})
			Expect(err).To(HaveOccurred())

			var invErr backend.InvocationError
			Expect(errors.As(err, &invErr)).To(BeTrue())
			Expect(invErr.Tool).To(Equal("drop_all_tables"))
		})

		It("rejects malformed bodies", func() {
			req, _ := http.NewRequest(http.MethodPost, "/invoke", bytes.NewReader([]byte("{not json")))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("bearer token auth", func() {
		BeforeEach(func() {
			var err error
			server, err = NewServer(Config{ListenAddr: ":0", Token: "secret"}, arc, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects requests without the token", func() {
			req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnauthorized))
		})

		It("accepts requests with the token", func() {
			req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
			req.Header.Set(fiber.HeaderAuthorization, "Bearer secret")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})
	})
})
