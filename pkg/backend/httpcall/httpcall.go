// Package httpcall implements the simple request/response backend: one
// HTTP round trip per tool invocation against a configured remote
// archive service, with no state held between calls.
package httpcall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/backend"
)

const defaultRequestTimeout = 30 * time.Second

// Config holds the remote endpoint and transport settings.
type Config struct {
	// BaseURL is the root of the remote archive service, e.g.
	// "https://archive.internal:8484".
	BaseURL string

	// Token, when set, is sent as a bearer token on every request.
	Token string

	// RequestTimeout bounds each invocation round trip. Defaults to 30s.
	RequestTimeout time.Duration

	// HTTPClient defaults to a client with RequestTimeout applied.
	HTTPClient *http.Client

	Logger *zap.Logger
}

// Backend issues one POST per tool call. It keeps no connection state,
// so Initialize is a liveness probe and Close is a no-op.
type Backend struct {
	config Config
	logger *zap.Logger
	client *http.Client
}

func New(config Config) (*Backend, error) {
	if config.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	if config.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaultRequestTimeout
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: config.RequestTimeout}
	}

	return &Backend{
		config: config,
		logger: config.Logger.Named("httpcall"),
		client: config.HTTPClient,
	}, nil
}

func (b *Backend) Kind() backend.Kind { return backend.KindHTTP }

// Initialize probes the remote service's ping route. Any failure is
// logged and reported as false so the adapter can fall back.
func (b *Backend) Initialize(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.config.BaseURL+"/ping", nil)
	if err != nil {
		b.logger.Warn("building ping request failed", zap.Error(err))
		return false
	}
	b.authorize(req)

	resp, err := b.client.Do(req)
	if err != nil {
		b.logger.Warn("remote archive unreachable", zap.String("url", b.config.BaseURL), zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		b.logger.Warn("remote archive ping rejected", zap.Int("status", resp.StatusCode))
		return false
	}
	return true
}

// invokeRequest is the wire body for a tool call.
type invokeRequest struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params,omitempty"`
}

// Invoke POSTs the tool call and decodes the JSON result. A 404 maps to
// a not-found error; any other non-200 status is an invocation failure.
func (b *Backend) Invoke(ctx context.Context, tool string, params map[string]any) (map[string]any, error) {
	body, err := json.Marshal(invokeRequest{Tool: tool, Params: params})
	if err != nil {
		return nil, backend.InvocationError{Tool: tool, Err: fmt.Errorf("encoding request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.config.BaseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return nil, backend.InvocationError{Tool: tool, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	b.authorize(req)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, backend.InvocationError{Tool: tool, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, backend.InvocationError{Tool: tool, Err: fmt.Errorf("reading response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, backend.NotFoundError{ID: stringParam(params, "id")}
	default:
		return nil, backend.InvocationError{
			Tool: tool,
			Err:  fmt.Errorf("remote status %d: %s", resp.StatusCode, truncate(raw, 200)),
		}
	}

	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, backend.InvocationError{Tool: tool, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return result, nil
}

// Close is a no-op: the backend holds no connection state.
func (b *Backend) Close() error { return nil }

func (b *Backend) authorize(req *http.Request) {
	if b.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+b.config.Token)
	}
}

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}
