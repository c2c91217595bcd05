// Package narratium is the HTTP client for the Narratium text-adventure backend.
package narratium

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/narratium-client/internal/stream"
)

const (
	defaultBaseURL   = "http://localhost:8000"
	defaultUserAgent = "narratium-client/1.0"
	defaultTimeout   = 60 * time.Second
)

// Endpoint paths.
const (
	PathInitialize   = "/initialize"
	PathSetup        = "/setup"
	PathSetupStream  = "/setup/stream"
	PathAction       = "/action"
	PathActionStream = "/action/stream"
	PathGame         = "/game/"
	PathStatus       = "/status/"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeaders sets the header injection function applied to every request.
func WithHeaders(fn stream.HeaderFunc) ClientOption {
	return func(c *Client) {
		c.headers = fn
	}
}

// WithBearerToken authenticates every request with the token returned by tokenFn.
// An empty token sends no Authorization header.
func WithBearerToken(tokenFn func() string) ClientOption {
	return WithHeaders(BearerAuth(tokenFn))
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithTimeout bounds each non-streaming request. Streaming exchanges are
// bounded only by the caller's context.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTokenCounter enables token counting on streaming exchanges.
func WithTokenCounter(counter stream.TokenCounter) ClientOption {
	return func(c *Client) {
		c.counter = counter
	}
}

// BearerAuth returns a HeaderFunc that sets "Authorization: Bearer <token>".
func BearerAuth(tokenFn func() string) stream.HeaderFunc {
	return func(h http.Header) {
		if tokenFn == nil {
			return
		}
		if token := tokenFn(); token != "" {
			h.Set("Authorization", "Bearer "+token)
		}
	}
}

// Client talks to the game backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    stream.HeaderFunc
	userAgent  string
	timeout    time.Duration
	logger     *slog.Logger
	counter    stream.TokenCounter

	stream *stream.Session
}

// NewClient creates a new backend client. An empty baseURL selects the local default.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		userAgent:  defaultUserAgent,
		timeout:    defaultTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	sessionOpts := []stream.Option{
		stream.WithHTTPClient(c.httpClient),
		stream.WithHeaders(c.setHeaders),
		stream.WithLogger(c.logger),
	}
	if c.counter != nil {
		sessionOpts = append(sessionOpts, stream.WithTokenCounter(c.counter))
	}
	c.stream = stream.NewSession(c.baseURL, sessionOpts...)

	return c
}

// Initialize creates a new game instance and returns its id in GameResponse.GameID.
func (c *Client) Initialize(ctx context.Context, req *InitializeRequest) (*GameResponse, error) {
	var resp GameResponse
	if err := c.do(ctx, http.MethodPost, PathInitialize, req, &resp); err != nil {
		return nil, err
	}
	if err := checkSuccess(PathInitialize, &resp, "failed to initialize game"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Setup generates the opening scene in a single request/response call.
func (c *Client) Setup(ctx context.Context, req *SetupRequest) (*GameResponse, error) {
	var resp GameResponse
	if err := c.do(ctx, http.MethodPost, PathSetup, req, &resp); err != nil {
		return nil, err
	}
	if err := checkSuccess(PathSetup, &resp, "failed to set up game"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Action advances the story in a single request/response call.
func (c *Client) Action(ctx context.Context, req *ActionRequest) (*GameResponse, error) {
	var resp GameResponse
	if err := c.do(ctx, http.MethodPost, PathAction, req, &resp); err != nil {
		return nil, err
	}
	if err := checkSuccess(PathAction, &resp, "failed to take action"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StreamSetup generates the opening scene as a record stream.
func (c *Client) StreamSetup(ctx context.Context, req *SetupRequest, h stream.Handlers) (*stream.Result, error) {
	return c.stream.Open(ctx, PathSetupStream, req, h)
}

// StreamAction advances the story as a record stream.
func (c *Client) StreamAction(ctx context.Context, req *ActionRequest, h stream.Handlers) (*stream.Result, error) {
	return c.stream.Open(ctx, PathActionStream, req, h)
}

// DeleteGame deletes a game instance.
func (c *Client) DeleteGame(ctx context.Context, gameID string) (*DeleteResponse, error) {
	var resp DeleteResponse
	if err := c.do(ctx, http.MethodDelete, PathGame+url.PathEscape(gameID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the latest state of a game instance.
func (c *Client) Status(ctx context.Context, gameID string) (*GameResponse, error) {
	var resp GameResponse
	if err := c.do(ctx, http.MethodGet, PathStatus+url.PathEscape(gameID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Op: path, Err: fmt.Errorf("failed to marshal request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &TransportError{Op: path, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	c.setHeaders(httpReq.Header)
	httpReq.Header.Set("X-Request-ID", uuid.New().String())

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &TransportError{Op: path, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return stream.NewStatusError(path, resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: path, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &TransportError{Op: path, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	return nil
}

func (c *Client) setHeaders(h http.Header) {
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", c.userAgent)
	if c.headers != nil {
		c.headers(h)
	}
}
