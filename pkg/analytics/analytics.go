// Package analytics wires the natural-language collaborators around the
// archive: an Interpreter turns a question into a concrete time window,
// a Searcher retrieves the conversations for that window, and a
// Summarizer produces the answer. Interpretation and summarization are
// external concerns; this package only defines their seams and the
// pipeline between them.
package analytics

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/archive"
)

// Interpreter derives a concrete time window from a natural-language
// question ("how many refund requests came in last week?").
type Interpreter interface {
	Interpret(ctx context.Context, query string) (archive.TimeRange, error)
}

// Summarizer answers a question from the conversations retrieved for it.
type Summarizer interface {
	Summarize(ctx context.Context, query string, conversations []archive.Conversation) (string, error)
}

// Searcher is the slice of the backend adapter the analyzer needs.
type Searcher interface {
	SearchConversations(ctx context.Context, filters archive.Filters) (archive.SearchResult, error)
}

// Config holds the configuration for an Analyzer.
type Config struct {
	// Interpreter resolves question timeframes. Required.
	Interpreter Interpreter

	// Summarizer produces answers. Required.
	Summarizer Summarizer

	// Searcher retrieves conversations. Required.
	Searcher Searcher

	// Limit caps how many conversations a single question may analyze.
	// Zero means the archive default.
	Limit int

	// Logger for pipeline diagnostics. Required.
	Logger *zap.Logger
}

// Result is the outcome of one analyzed question.
type Result struct {
	// Answer is the summarizer's response.
	Answer string

	// Window is the time range the question resolved to.
	Window archive.TimeRange

	// Analyzed is how many conversations the answer was drawn from.
	Analyzed int

	// Sync carries the data-freshness descriptor attached by the
	// backend, if any. A non-fresh state means the answer may be
	// missing very recent activity.
	Sync *archive.SyncInfo
}

// Analyzer runs the interpret, search, summarize pipeline for a question.
type Analyzer struct {
	config Config
	logger *zap.Logger
}

// New creates an Analyzer from the given config.
func New(config Config) (*Analyzer, error) {
	if config.Interpreter == nil {
		return nil, errors.New("interpreter is required")
	}
	if config.Summarizer == nil {
		return nil, errors.New("summarizer is required")
	}
	if config.Searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if config.Logger == nil {
		return nil, errors.New("logger is required")
	}

	return &Analyzer{
		config: config,
		logger: config.Logger.Named("analytics"),
	}, nil
}

// Ask resolves the question's timeframe, retrieves the matching
// conversations, and summarizes them into an answer.
func (a *Analyzer) Ask(ctx context.Context, query string) (*Result, error) {
	window, err := a.config.Interpreter.Interpret(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("interpreting query: %w", err)
	}

	filters := archive.Filters{
		StartTime: &window.Start,
		EndTime:   &window.End,
		Limit:     a.config.Limit,
	}

	result, err := a.config.Searcher.SearchConversations(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("searching conversations: %w", err)
	}

	if result.Sync != nil && result.Sync.State != archive.SyncFresh {
		a.logger.Warn("answering from non-fresh data",
			zap.String("state", string(result.Sync.State)),
			zap.String("message", result.Sync.Message))
	}

	answer, err := a.config.Summarizer.Summarize(ctx, query, result.Conversations)
	if err != nil {
		return nil, fmt.Errorf("summarizing conversations: %w", err)
	}

	a.logger.Debug("answered question",
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
		zap.Int("analyzed", len(result.Conversations)))

	return &Result{
		Answer:   answer,
		Window:   window,
		Analyzed: len(result.Conversations),
		Sync:     result.Sync,
	}, nil
}
