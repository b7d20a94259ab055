package analytics

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spoolhq/spool/pkg/archive"
)

// DefaultWindowDays is the lookback applied when a question names no
// timeframe at all.
const DefaultWindowDays = 7

var relativeWindowRe = regexp.MustCompile(`(?i)\b(?:last|past)\s+(\d+)\s+(hour|day|week|month)s?\b`)

// TimeframeInterpreter resolves question timeframes from common English
// phrases without calling out to a language model. Unrecognized
// questions get the default lookback window.
type TimeframeInterpreter struct {
	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

// Interpret maps phrases like "yesterday", "this week", or "last 30
// days" onto a half-open [start, end) interval.
func (i *TimeframeInterpreter) Interpret(_ context.Context, query string) (archive.TimeRange, error) {
	now := time.Now()
	if i.Now != nil {
		now = i.Now()
	}

	q := strings.ToLower(query)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if m := relativeWindowRe.FindStringSubmatch(q); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return archive.TimeRange{}, fmt.Errorf("unusable timeframe %q", m[0])
		}
		var start time.Time
		switch m[2] {
		case "hour":
			start = now.Add(-time.Duration(n) * time.Hour)
		case "day":
			start = now.AddDate(0, 0, -n)
		case "week":
			start = now.AddDate(0, 0, -7*n)
		case "month":
			start = now.AddDate(0, -n, 0)
		}
		return archive.TimeRange{Start: start, End: now}, nil
	}

	switch {
	case strings.Contains(q, "today"):
		return archive.TimeRange{Start: midnight, End: now}, nil

	case strings.Contains(q, "yesterday"):
		return archive.TimeRange{Start: midnight.AddDate(0, 0, -1), End: midnight}, nil

	case strings.Contains(q, "this week"):
		// Weeks start on Monday.
		offset := (int(now.Weekday()) + 6) % 7
		return archive.TimeRange{Start: midnight.AddDate(0, 0, -offset), End: now}, nil

	case strings.Contains(q, "last week"):
		offset := (int(now.Weekday()) + 6) % 7
		thisMonday := midnight.AddDate(0, 0, -offset)
		return archive.TimeRange{Start: thisMonday.AddDate(0, 0, -7), End: thisMonday}, nil

	case strings.Contains(q, "this month"):
		firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return archive.TimeRange{Start: firstOfMonth, End: now}, nil

	case strings.Contains(q, "last month"):
		firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return archive.TimeRange{Start: firstOfMonth.AddDate(0, -1, 0), End: firstOfMonth}, nil
	}

	return archive.TimeRange{Start: now.AddDate(0, 0, -DefaultWindowDays), End: now}, nil
}

// StatsSummarizer answers questions with aggregate statistics over the
// retrieved conversations: volume, distinct customers, tag frequency,
// and the busiest day.
type StatsSummarizer struct{}

// Summarize builds a plain-text statistical summary. The question text
// itself is not analyzed; the interpreter already consumed it.
func (s *StatsSummarizer) Summarize(_ context.Context, _ string, conversations []archive.Conversation) (string, error) {
	if len(conversations) == 0 {
		return "No conversations in that window.", nil
	}

	customers := make(map[string]int)
	tagCounts := make(map[string]int)
	dayCounts := make(map[string]int)
	messages := 0

	for _, conv := range conversations {
		if conv.CustomerEmail != "" {
			customers[conv.CustomerEmail]++
		}
		for _, tag := range conv.Tags {
			tagCounts[tag]++
		}
		dayCounts[conv.CreatedAt.Format("2006-01-02")]++
		messages += len(conv.Messages)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d conversations, %d messages", len(conversations), messages)
	if len(customers) > 0 {
		fmt.Fprintf(&b, ", %d distinct customers", len(customers))
	}
	b.WriteString(".")

	if top := topCounts(tagCounts, 3); len(top) > 0 {
		fmt.Fprintf(&b, " Top tags: %s.", strings.Join(top, ", "))
	}
	if top := topCounts(dayCounts, 1); len(top) > 0 {
		fmt.Fprintf(&b, " Busiest day: %s.", top[0])
	}

	return b.String(), nil
}

func topCounts(counts map[string]int, n int) []string {
	type kv struct {
		key   string
		count int
	}

	ranked := make([]kv, 0, len(counts))
	for k, c := range counts {
		ranked = append(ranked, kv{k, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].key < ranked[j].key
	})

	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]string, 0, n)
	for _, r := range ranked[:n] {
		out = append(out, fmt.Sprintf("%s (%d)", r.key, r.count))
	}
	return out
}
