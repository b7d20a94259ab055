package analytics_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/analytics"
	"github.com/spoolhq/spool/pkg/archive"
)

type fakeInterpreter struct {
	window archive.TimeRange
	err    error
	query  string
}

func (f *fakeInterpreter) Interpret(_ context.Context, query string) (archive.TimeRange, error) {
	f.query = query
	return f.window, f.err
}

type fakeSummarizer struct {
	answer string
	err    error

	query         string
	conversations []archive.Conversation
}

func (f *fakeSummarizer) Summarize(_ context.Context, query string, conversations []archive.Conversation) (string, error) {
	f.query = query
	f.conversations = conversations
	return f.answer, f.err
}

type fakeSearcher struct {
	result  archive.SearchResult
	err     error
	filters archive.Filters
}

func (f *fakeSearcher) SearchConversations(_ context.Context, filters archive.Filters) (archive.SearchResult, error) {
	f.filters = filters
	return f.result, f.err
}

var _ = Describe("Analyzer", func() {
	var (
		interpreter *fakeInterpreter
		summarizer  *fakeSummarizer
		searcher    *fakeSearcher
		window      archive.TimeRange
	)

	BeforeEach(func() {
		window = archive.TimeRange{
			Start: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 8, 8, 0, 0, 0, 0, time.UTC),
		}
		interpreter = &fakeInterpreter{window: window}
		summarizer = &fakeSummarizer{answer: "mostly refund requests"}
		searcher = &fakeSearcher{
			result: archive.SearchResult{
				Conversations: []archive.Conversation{
					{ID: "c1"}, {ID: "c2"},
				},
				Total: 2,
			},
		}
	})

	newAnalyzer := func() *analytics.Analyzer {
		a, err := analytics.New(analytics.Config{
			Interpreter: interpreter,
			Summarizer:  summarizer,
			Searcher:    searcher,
			Logger:      zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
		return a
	}

	Describe("New", func() {
		It("requires an interpreter", func() {
			_, err := analytics.New(analytics.Config{
				Summarizer: summarizer,
				Searcher:   searcher,
				Logger:     zap.NewNop(),
			})
			Expect(err).To(MatchError("interpreter is required"))
		})

		It("requires a summarizer", func() {
			_, err := analytics.New(analytics.Config{
				Interpreter: interpreter,
				Searcher:    searcher,
				Logger:      zap.NewNop(),
			})
			Expect(err).To(MatchError("summarizer is required"))
		})

		It("requires a searcher", func() {
			_, err := analytics.New(analytics.Config{
				Interpreter: interpreter,
				Summarizer:  summarizer,
				Logger:      zap.NewNop(),
			})
			Expect(err).To(MatchError("searcher is required"))
		})

		It("requires a logger", func() {
			_, err := analytics.New(analytics.Config{
				Interpreter: interpreter,
				Summarizer:  summarizer,
				Searcher:    searcher,
			})
			Expect(err).To(MatchError("logger is required"))
		})
	})

	Describe("Ask", func() {
		It("runs interpret, search, summarize and returns the answer", func() {
			a := newAnalyzer()

			result, err := a.Ask(context.Background(), "what happened last week?")
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Answer).To(Equal("mostly refund requests"))
			Expect(result.Window).To(Equal(window))
			Expect(result.Analyzed).To(Equal(2))

			Expect(interpreter.query).To(Equal("what happened last week?"))
			Expect(summarizer.query).To(Equal("what happened last week?"))
			Expect(summarizer.conversations).To(HaveLen(2))
		})

		It("searches with the interpreted window as filter bounds", func() {
			a := newAnalyzer()

			_, err := a.Ask(context.Background(), "anything")
			Expect(err).NotTo(HaveOccurred())

			Expect(searcher.filters.StartTime).NotTo(BeNil())
			Expect(*searcher.filters.StartTime).To(Equal(window.Start))
			Expect(searcher.filters.EndTime).NotTo(BeNil())
			Expect(*searcher.filters.EndTime).To(Equal(window.End))
		})

		It("passes the configured analysis limit through to the search", func() {
			a, err := analytics.New(analytics.Config{
				Interpreter: interpreter,
				Summarizer:  summarizer,
				Searcher:    searcher,
				Limit:       25,
				Logger:      zap.NewNop(),
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = a.Ask(context.Background(), "anything")
			Expect(err).NotTo(HaveOccurred())
			Expect(searcher.filters.Limit).To(Equal(25))
		})

		It("surfaces the backend's sync state on the result", func() {
			searcher.result.Sync = &archive.SyncInfo{
				State:   archive.SyncPartial,
				Message: "data may be missing recent conversations",
			}
			a := newAnalyzer()

			result, err := a.Ask(context.Background(), "anything")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Sync).NotTo(BeNil())
			Expect(result.Sync.State).To(Equal(archive.SyncPartial))
		})

		It("fails when interpretation fails", func() {
			interpreter.err = errors.New("cannot parse timeframe")
			a := newAnalyzer()

			_, err := a.Ask(context.Background(), "gibberish")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("interpreting query"))
		})

		It("fails when the search fails", func() {
			searcher.err = errors.New("no functional backend")
			a := newAnalyzer()

			_, err := a.Ask(context.Background(), "anything")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("searching conversations"))
		})

		It("fails when summarization fails", func() {
			summarizer.err = errors.New("model unavailable")
			a := newAnalyzer()

			_, err := a.Ask(context.Background(), "anything")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("summarizing conversations"))
		})
	})
})
