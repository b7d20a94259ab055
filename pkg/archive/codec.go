package archive

import (
	"encoding/json"
	"fmt"
	"time"
)

// SearchResult is the structured payload carried by a
// search_conversations tool result. Sync is only present when the result
// was served from the local cache.
type SearchResult struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
	Sync          *SyncInfo      `json:"sync_state,omitempty"`
}

// ToParams converts the filters into the backend-agnostic tool parameter
// map: RFC 3339 timestamps, plain strings and numbers only.
func (f Filters) ToParams() map[string]any {
	params := map[string]any{
		"limit": f.EffectiveLimit(),
	}
	if f.StartTime != nil {
		params["start_time"] = f.StartTime.UTC().Format(time.RFC3339)
	}
	if f.EndTime != nil {
		params["end_time"] = f.EndTime.UTC().Format(time.RFC3339)
	}
	if len(f.Tags) > 0 {
		tags := make([]any, len(f.Tags))
		for i, t := range f.Tags {
			tags[i] = t
		}
		params["tags"] = tags
	}
	if f.CustomerEmail != "" {
		params["customer_email"] = f.CustomerEmail
	}
	return params
}

// FiltersFromParams is the inverse of ToParams. It is used by backends
// that receive the parameter map and need the typed filters back.
func FiltersFromParams(params map[string]any) (Filters, error) {
	var raw struct {
		StartTime     string   `json:"start_time"`
		EndTime       string   `json:"end_time"`
		Tags          []string `json:"tags"`
		CustomerEmail string   `json:"customer_email"`
		Limit         int      `json:"limit"`
	}
	if err := reencode(params, &raw); err != nil {
		return Filters{}, fmt.Errorf("decoding search parameters: %w", err)
	}

	f := Filters{
		Tags:          raw.Tags,
		CustomerEmail: raw.CustomerEmail,
		Limit:         raw.Limit,
	}

	if raw.StartTime != "" {
		t, err := time.Parse(time.RFC3339, raw.StartTime)
		if err != nil {
			return Filters{}, fmt.Errorf("invalid start_time %q: %w", raw.StartTime, err)
		}
		f.StartTime = &t
	}
	if raw.EndTime != "" {
		t, err := time.Parse(time.RFC3339, raw.EndTime)
		if err != nil {
			return Filters{}, fmt.Errorf("invalid end_time %q: %w", raw.EndTime, err)
		}
		f.EndTime = &t
	}

	return f, nil
}

// EncodeSearchResult converts a SearchResult into the plain structured
// map a backend returns from Invoke.
func EncodeSearchResult(res SearchResult) map[string]any {
	out := map[string]any{}
	// A decode error here would mean the domain types themselves are not
	// JSON-representable, which cannot happen.
	_ = reencode(res, &out)
	return out
}

// DecodeSearchResult converts a raw tool result back into typed
// conversations plus the optional sync-state descriptor.
func DecodeSearchResult(raw map[string]any) (SearchResult, error) {
	var res SearchResult
	if err := reencode(raw, &res); err != nil {
		return SearchResult{}, fmt.Errorf("decoding search result: %w", err)
	}
	return res, nil
}

// EncodeConversation wraps a single conversation as a tool result map.
func EncodeConversation(c Conversation) map[string]any {
	out := map[string]any{}
	_ = reencode(map[string]any{"conversation": c}, &out)
	return out
}

// DecodeConversation extracts a single conversation from a tool result.
func DecodeConversation(raw map[string]any) (Conversation, error) {
	var res struct {
		Conversation Conversation `json:"conversation"`
	}
	if err := reencode(raw, &res); err != nil {
		return Conversation{}, fmt.Errorf("decoding conversation result: %w", err)
	}
	return res.Conversation, nil
}

// reencode round-trips v through JSON into out. Tool payloads are plain
// structured data, so JSON is the lingua franca between typed values and
// the map form backends exchange.
func reencode(v any, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
