// Package intercom is a minimal client for the remote conversation
// archive's REST API: the paged search endpoint, the basic listing
// endpoint, and per-conversation detail fetches. It knows the wire
// format and converts records into archive domain values.
package intercom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	// MaxPerPage is the search endpoint's page size ceiling.
	MaxPerPage = 150

	defaultTimeout = 30 * time.Second
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.intercom.io".
	BaseURL string

	// Token is the bearer access token.
	Token string

	// Timeout bounds each HTTP request. Defaults to 30s.
	Timeout time.Duration

	// Logger is the configured zap logger.
	Logger *zap.Logger
}

// Client issues authenticated requests against the archive API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a Client from the given configuration.
func NewClient(c Config) (*Client, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if c.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}

	return &Client{
		baseURL: c.BaseURL,
		token:   c.Token,
		http:    &http.Client{Timeout: c.Timeout},
		logger:  c.Logger,
	}, nil
}

// APIError is a non-2xx response from the archive API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("archive API returned %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether the error represents a missing record.
func (e *APIError) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

// SearchConversations executes one page of the paged search endpoint.
func (c *Client) SearchConversations(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.do(ctx, http.MethodPost, "/conversations/search", req, &resp); err != nil {
		return nil, err
	}

	c.logger.Debug("search page fetched",
		zap.Int("page", req.Pagination.Page),
		zap.Int("count", len(resp.Conversations)),
		zap.Int("total_count", resp.TotalCount),
	)

	return &resp, nil
}

// ListConversations fetches one page of the basic (non-search) listing
// endpoint. It supports no server-side filtering beyond paging.
func (c *Client) ListConversations(ctx context.Context, page, perPage int) (*ListResponse, error) {
	path := fmt.Sprintf("/conversations?page=%d&per_page=%d", page, perPage)
	var resp ListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetConversation fetches a single conversation with its full thread.
func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, http.MethodGet, "/conversations/"+id, nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// Ping verifies the API is reachable with the configured credentials.
func (c *Client) Ping(ctx context.Context) error {
	var out map[string]any
	return c.do(ctx, http.MethodGet, "/me", nil, &out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding %s response: %w", path, err)
		}
	}

	return nil
}
