// Package fetch implements the paginated retrieval engine used when
// conversations must be pulled directly from the archive's paged search
// API: bounded paging under a rate limit with progress reporting, and a
// slower per-record fallback when the search endpoint is unusable.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/spoolhq/spool/pkg/archive"
	"github.com/spoolhq/spool/pkg/intercom"
)

const (
	defaultMaxTotal      = 500
	defaultPageDelay     = 500 * time.Millisecond
	defaultDetailWorkers = 4

	// rateReportDelay is how long a fetch must run before progress
	// updates include a rate and ETA.
	rateReportDelay = time.Second
)

// errSearchUnusable marks a search endpoint failure before any page was
// retrieved, which triggers the slow listing fallback.
var errSearchUnusable = errors.New("search endpoint unusable")

// Progress describes the state of an in-flight fetch. Rate and ETA are
// zero until the fetch has run long enough to measure them.
type Progress struct {
	Fetched        int
	EstimatedTotal int
	Percent        float64
	Rate           float64
	ETA            time.Duration
}

// ProgressFunc receives progress updates after each fetched page.
type ProgressFunc func(Progress)

// Config configures a Fetcher.
type Config struct {
	// Client is the archive API client.
	Client *intercom.Client

	// PageSize is the search page size. Defaults to (and is capped at)
	// the endpoint maximum.
	PageSize int

	// MaxTotal is the safety ceiling on records fetched in one call,
	// independent of the caller's limit. Defaults to 500.
	MaxTotal int

	// PageDelay is the minimum spacing between page requests, keeping
	// the fetch under the remote rate limit. Defaults to 500ms.
	PageDelay time.Duration

	// DetailWorkers bounds concurrent per-record detail fetches on the
	// fallback path. Defaults to 4.
	DetailWorkers int

	// Logger is the configured zap logger.
	Logger *zap.Logger
}

// Fetcher retrieves conversations from the raw archive API.
type Fetcher struct {
	client  *intercom.Client
	config  Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewFetcher creates a Fetcher from the given configuration.
func NewFetcher(c Config) (*Fetcher, error) {
	if c.Client == nil {
		return nil, errors.New("client is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if c.PageSize <= 0 || c.PageSize > intercom.MaxPerPage {
		c.PageSize = intercom.MaxPerPage
	}
	if c.MaxTotal <= 0 {
		c.MaxTotal = defaultMaxTotal
	}
	if c.PageDelay <= 0 {
		c.PageDelay = defaultPageDelay
	}
	if c.DetailWorkers <= 0 {
		c.DetailWorkers = defaultDetailWorkers
	}

	return &Fetcher{
		client:  c.Client,
		config:  c,
		limiter: rate.NewLimiter(rate.Every(c.PageDelay), 1),
		logger:  c.Logger,
	}, nil
}

// FetchConversations retrieves up to the filters' limit of conversations
// in the requested window, newest first. Conversations without any
// customer-authored message are discarded. onProgress may be nil.
func (f *Fetcher) FetchConversations(ctx context.Context, filters archive.Filters, onProgress ProgressFunc) ([]archive.Conversation, error) {
	limit := filters.EffectiveLimit()
	if limit > f.config.MaxTotal {
		f.logger.Warn("requested limit exceeds safety ceiling",
			zap.Int("limit", limit),
			zap.Int("ceiling", f.config.MaxTotal),
		)
		limit = f.config.MaxTotal
	}

	convs, err := f.fetchViaSearch(ctx, filters, limit, onProgress)
	if errors.Is(err, errSearchUnusable) {
		f.logger.Warn("falling back to per-conversation detail fetch", zap.Error(err))
		convs, err = f.fetchViaListing(ctx, filters, limit)
	}
	if err != nil {
		return nil, err
	}

	if len(convs) > limit {
		// Server-side paging should prevent this; trim defensively.
		f.logger.Warn("trimming fetched conversations to limit",
			zap.Int("fetched", len(convs)),
			zap.Int("limit", limit),
		)
		convs = convs[:limit]
	}

	return convs, nil
}

// fetchViaSearch pages through the search endpoint, newest first, until
// the limit is reached, a short page signals end of data, or the
// reported total has been consumed.
func (f *Fetcher) fetchViaSearch(ctx context.Context, filters archive.Filters, limit int, onProgress ProgressFunc) ([]archive.Conversation, error) {
	query := intercom.NewDateQuery(filters.StartTime, filters.EndTime)
	started := time.Now()

	var out []archive.Conversation
	fetched := 0
	page := 1

	for {
		// The limiter spaces page requests; the first Wait is free.
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := f.client.SearchConversations(ctx, &intercom.SearchRequest{
			Query:      query,
			Pagination: intercom.Pagination{PerPage: f.config.PageSize, Page: page},
			Sort:       intercom.Sort{Field: "created_at", Order: "desc"},
		})
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("%w: %w", errSearchUnusable, err)
			}
			return nil, fmt.Errorf("fetching page %d: %w", page, err)
		}

		for _, wc := range resp.Conversations {
			conv := wc.ToArchive()
			if !conv.HasCustomerMessage() {
				f.logger.Debug("discarding conversation with no customer message",
					zap.String("id", conv.ID),
				)
				continue
			}
			out = append(out, conv)
		}
		fetched += len(resp.Conversations)

		f.report(onProgress, started, fetched, min(resp.TotalCount, limit))

		if len(out) >= limit {
			break
		}
		if len(resp.Conversations) < f.config.PageSize {
			// Short page: end of data.
			break
		}
		if fetched >= resp.TotalCount {
			break
		}
		page++
	}

	return out, nil
}

// report emits a progress update. Percentage-only until the fetch has
// run for a second; rate and ETA afterwards.
func (f *Fetcher) report(onProgress ProgressFunc, started time.Time, fetched, estimated int) {
	if onProgress == nil {
		return
	}

	p := Progress{
		Fetched:        fetched,
		EstimatedTotal: estimated,
	}
	if estimated > 0 {
		p.Percent = min(100, float64(fetched)/float64(estimated)*100)
	}

	if elapsed := time.Since(started); elapsed > rateReportDelay && fetched > 0 {
		p.Rate = float64(fetched) / elapsed.Seconds()
		if remaining := estimated - fetched; remaining > 0 && p.Rate > 0 {
			p.ETA = time.Duration(float64(remaining)/p.Rate) * time.Second
		}
	}

	onProgress(p)
}

// fetchViaListing is the slow path: walk the basic listing endpoint and
// fetch each conversation's detail individually. The listing cannot
// filter server-side, so date bounds are applied here; the discard rule
// and limit match the search path.
func (f *Fetcher) fetchViaListing(ctx context.Context, filters archive.Filters, limit int) ([]archive.Conversation, error) {
	var out []archive.Conversation
	page := 1

	for len(out) < limit {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := f.client.ListConversations(ctx, page, f.config.PageSize)
		if err != nil {
			return nil, fmt.Errorf("listing page %d: %w", page, err)
		}
		if len(resp.Conversations) == 0 {
			break
		}

		var ids []string
		for _, wc := range resp.Conversations {
			created := time.Unix(wc.CreatedAt, 0)
			if filters.StartTime != nil && created.Before(*filters.StartTime) {
				continue
			}
			if filters.EndTime != nil && !created.Before(*filters.EndTime) {
				continue
			}
			ids = append(ids, wc.ID)
		}

		details, err := f.fetchDetails(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, conv := range details {
			if !conv.HasCustomerMessage() {
				f.logger.Debug("discarding conversation with no customer message",
					zap.String("id", conv.ID),
				)
				continue
			}
			out = append(out, conv)
			if len(out) >= limit {
				break
			}
		}

		if len(resp.Conversations) < f.config.PageSize {
			break
		}
		page++
	}

	return out, nil
}

// fetchDetails retrieves full conversation records with bounded
// concurrency, preserving the listing order.
func (f *Fetcher) fetchDetails(ctx context.Context, ids []string) ([]archive.Conversation, error) {
	details := make([]archive.Conversation, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.config.DetailWorkers)

	for i, id := range ids {
		g.Go(func() error {
			wc, err := f.client.GetConversation(ctx, id)
			if err != nil {
				return fmt.Errorf("fetching conversation %s: %w", id, err)
			}
			details[i] = wc.ToArchive()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return details, nil
}
