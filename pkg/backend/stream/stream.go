// Package stream implements the persistent-stream backend. It holds one
// long-lived SSE connection to a remote archive server, POSTs tool calls
// to a private callback path obtained during the handshake, and matches
// asynchronous responses back to callers by correlation id.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spoolhq/spool/pkg/backend"
	"github.com/spoolhq/spool/pkg/sse"
)

const (
	defaultInvokeTimeout    = 30 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	defaultMaxReconnects    = 3
	defaultBackoffStep      = 2 * time.Second

	eventEndpoint = "endpoint"
)

// Config holds the stream backend dependencies and tuning knobs.
type Config struct {
	// URL is the SSE stream endpoint of the remote archive server.
	URL string

	// Token is sent as a bearer token on the stream connection and on
	// every POSTed tool call.
	Token string

	// HTTPClient is used for both the stream connection and tool call
	// POSTs. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// InvokeTimeout bounds how long a single tool call waits for its
	// matching response on the stream. Defaults to 30s.
	InvokeTimeout time.Duration

	// HandshakeTimeout bounds how long Initialize waits for the endpoint
	// event after opening the stream. Defaults to 10s.
	HandshakeTimeout time.Duration

	// MaxReconnects is the number of consecutive reconnect attempts the
	// listener makes after losing the stream before giving up for good.
	// Defaults to 3.
	MaxReconnects int

	// BackoffStep is the base of the linear backoff between reconnect
	// attempts: attempt n sleeps n*BackoffStep. Defaults to 2s.
	BackoffStep time.Duration

	Logger *zap.Logger
}

// pendingRequest is a single-resolution future for one in-flight tool
// call. The listener resolves it when a stream event with a matching
// correlation id arrives; Invoke discards it on timeout.
type pendingRequest struct {
	tool string
	done chan invokeResult
}

type invokeResult struct {
	payload map[string]any
	err     error
}

// Backend multiplexes concurrent tool calls over a single server-pushed
// event stream.
type Backend struct {
	config Config
	logger *zap.Logger
	client *http.Client

	mu       sync.Mutex
	pending  map[string]*pendingRequest
	endpoint *url.URL
	closed   bool

	cancel    context.CancelFunc
	listening sync.WaitGroup
	closeOnce sync.Once
}

// New returns an unconnected stream backend. Initialize opens the
// stream and performs the handshake.
func New(config Config) (*Backend, error) {
	if config.URL == "" {
		return nil, errors.New("stream url is required")
	}
	if config.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.InvokeTimeout <= 0 {
		config.InvokeTimeout = defaultInvokeTimeout
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = defaultHandshakeTimeout
	}
	if config.MaxReconnects <= 0 {
		config.MaxReconnects = defaultMaxReconnects
	}
	if config.BackoffStep <= 0 {
		config.BackoffStep = defaultBackoffStep
	}

	return &Backend{
		config:  config,
		logger:  config.Logger.Named("stream"),
		client:  config.HTTPClient,
		pending: map[string]*pendingRequest{},
	}, nil
}

func (b *Backend) Kind() backend.Kind { return backend.KindStream }

// Initialize opens the event stream, waits for the endpoint handshake
// event, and starts the listener task. It reports false if the stream
// cannot be opened or the endpoint event does not arrive within the
// handshake window.
func (b *Backend) Initialize(ctx context.Context) bool {
	listenCtx, cancel := context.WithCancel(context.Background())

	body, reader, err := b.connect(listenCtx)
	if err != nil {
		cancel()
		b.logger.Warn("stream connection failed", zap.Error(err))
		return false
	}

	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()

	b.listening.Add(1)
	go b.listen(listenCtx, body, reader)

	return true
}

// connect opens the SSE stream and consumes events until the endpoint
// event arrives, recording the private callback path. The returned
// reader is positioned after the handshake.
func (b *Backend) connect(ctx context.Context) (io.ReadCloser, *sse.Reader, error) {
	handshakeCtx, cancel := context.WithTimeout(ctx, b.config.HandshakeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.config.URL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("building stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if b.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+b.config.Token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("opening stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, nil, fmt.Errorf("opening stream: unexpected status %d", resp.StatusCode)
	}

	reader := sse.NewReader(resp.Body)

	// The handshake read races against the handshake window: a stream
	// that never yields the endpoint event is treated as dead.
	type handshake struct {
		endpoint *url.URL
		err      error
	}
	got := make(chan handshake, 1)
	go func() {
		for {
			ev, err := reader.Next()
			if err != nil {
				got <- handshake{err: fmt.Errorf("reading handshake: %w", err)}
				return
			}
			if ev == nil {
				got <- handshake{err: errors.New("stream closed before endpoint event")}
				return
			}
			if ev.Type != eventEndpoint {
				b.logger.Debug("skipping pre-handshake event", zap.String("type", ev.Type))
				continue
			}
			endpoint, err := b.resolveEndpoint(ev.Data)
			got <- handshake{endpoint: endpoint, err: err}
			return
		}
	}()

	select {
	case hs := <-got:
		if hs.err != nil {
			resp.Body.Close()
			return nil, nil, hs.err
		}
		b.mu.Lock()
		b.endpoint = hs.endpoint
		b.mu.Unlock()
		return resp.Body, reader, nil
	case <-handshakeCtx.Done():
		resp.Body.Close()
		return nil, nil, fmt.Errorf("no endpoint event within %s", b.config.HandshakeTimeout)
	}
}

// resolveEndpoint turns the endpoint event payload (usually a relative
// path with a session token) into an absolute URL against the stream
// host.
func (b *Backend) resolveEndpoint(raw string) (*url.URL, error) {
	base, err := url.Parse(b.config.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing stream url: %w", err)
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint event payload %q: %w", raw, err)
	}
	return base.ResolveReference(ref), nil
}

// listen consumes events off the stream and resolves pending requests.
// When the stream drops it fails every in-flight request, then attempts
// to reconnect with linearly increasing backoff. After MaxReconnects
// consecutive failures the listener stops for good.
func (b *Backend) listen(ctx context.Context, body io.ReadCloser, reader *sse.Reader) {
	defer b.listening.Done()

	for {
		// Unblock the reader on shutdown: a canceled listener closes the
		// response body, which surfaces as a read error in consume.
		stop := context.AfterFunc(ctx, func() { body.Close() })
		err := b.consume(ctx, reader)
		stop()
		body.Close()

		// All in-flight calls were promised a response on a stream that
		// no longer exists.
		b.failAll(backend.ErrConnectionClosed)

		if ctx.Err() != nil {
			return
		}
		b.logger.Warn("stream disconnected", zap.Error(err))

		body, reader = b.reconnect(ctx)
		if reader == nil {
			return
		}
	}
}

// consume reads stream events until the context is canceled or the
// stream ends.
func (b *Backend) consume(ctx context.Context, reader *sse.Reader) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ev, err := reader.Next()
		if err != nil {
			return err
		}
		if ev == nil {
			return errors.New("stream ended")
		}
		if ev.Type == eventEndpoint {
			// The server may re-issue the callback path mid-stream.
			endpoint, err := b.resolveEndpoint(ev.Data)
			if err != nil {
				b.logger.Warn("ignoring bad endpoint event", zap.Error(err))
				continue
			}
			b.mu.Lock()
			b.endpoint = endpoint
			b.mu.Unlock()
			continue
		}
		b.dispatch(ev)
	}
}

// reconnect retries the stream connection with linear backoff. It
// returns a nil reader when retries are exhausted or the listener is
// shutting down.
func (b *Backend) reconnect(ctx context.Context) (io.ReadCloser, *sse.Reader) {
	for attempt := 1; attempt <= b.config.MaxReconnects; attempt++ {
		wait := time.Duration(attempt) * b.config.BackoffStep
		b.logger.Info("reconnecting stream",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", b.config.MaxReconnects),
			zap.Duration("backoff", wait))

		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(wait):
		}

		body, reader, err := b.connect(ctx)
		if err == nil {
			b.logger.Info("stream reconnected")
			return body, reader
		}
		b.logger.Warn("reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
	}

	b.logger.Error("stream reconnect attempts exhausted",
		zap.Int("attempts", b.config.MaxReconnects))
	return nil, nil
}

// streamResponse is the envelope delivered on the stream for an
// accepted tool call: exactly one of result or error is set.
type streamResponse struct {
	ID     string          `json:"id"`
	Result map[string]any  `json:"result"`
	Error  *streamRPCError `json:"error"`
}

type streamRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// dispatch resolves the pending request matching the event's embedded
// correlation id. Events with no matching id are logged and dropped.
func (b *Backend) dispatch(ev *sse.Event) {
	var resp streamResponse
	if err := json.Unmarshal([]byte(ev.Data), &resp); err != nil {
		b.logger.Warn("dropping unparseable stream event", zap.Error(err))
		return
	}
	if resp.ID == "" {
		b.logger.Debug("dropping stream event without id", zap.String("type", ev.Type))
		return
	}

	b.mu.Lock()
	req, ok := b.pending[resp.ID]
	if ok {
		delete(b.pending, resp.ID)
	}
	b.mu.Unlock()

	if !ok {
		b.logger.Warn("dropping stream event with unknown id", zap.String("id", resp.ID))
		return
	}

	if resp.Error != nil {
		req.done <- invokeResult{err: backend.InvocationError{
			Tool: req.tool,
			Err:  fmt.Errorf("remote error %d: %s", resp.Error.Code, resp.Error.Message),
		}}
		return
	}
	req.done <- invokeResult{payload: resp.Result}
}

// Invoke POSTs a tool call to the private callback path and waits for
// the matching response to arrive on the stream.
func (b *Backend) Invoke(ctx context.Context, tool string, params map[string]any) (map[string]any, error) {
	id := uuid.NewString()
	req := &pendingRequest{tool: tool, done: make(chan invokeResult, 1)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, backend.ErrConnectionClosed
	}
	endpoint := b.endpoint
	b.pending[id] = req
	b.mu.Unlock()

	if endpoint == nil {
		b.remove(id)
		return nil, backend.InvocationError{Tool: tool, Err: errors.New("stream not initialized")}
	}

	if err := b.post(ctx, endpoint, id, tool, params); err != nil {
		b.remove(id)
		return nil, backend.InvocationError{Tool: tool, Err: err}
	}

	timer := time.NewTimer(b.config.InvokeTimeout)
	defer timer.Stop()

	select {
	case res := <-req.done:
		return res.payload, res.err
	case <-timer.C:
		b.remove(id)
		return nil, backend.TimeoutError{Tool: tool, Elapsed: b.config.InvokeTimeout}
	case <-ctx.Done():
		b.remove(id)
		return nil, ctx.Err()
	}
}

// post sends the JSON-RPC request body for a tool call. Anything other
// than a 202 acceptance is a hard failure for this invocation.
func (b *Backend) post(ctx context.Context, endpoint *url.URL, id, tool string, params map[string]any) error {
	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      tool,
			"arguments": params,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.config.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.config.Token)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// remove discards a pending request without resolving it.
func (b *Backend) remove(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// failAll resolves every outstanding pending request with err and
// clears the table.
func (b *Backend) failAll(err error) {
	b.mu.Lock()
	pending := b.pending
	b.pending = map[string]*pendingRequest{}
	b.mu.Unlock()

	for _, req := range pending {
		req.done <- invokeResult{err: err}
	}
}

// Close stops the listener, fails outstanding invocations, and releases
// the stream connection. Safe to call more than once.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		cancel := b.cancel
		b.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		b.failAll(backend.ErrConnectionClosed)
		b.listening.Wait()
	})
	return nil
}
