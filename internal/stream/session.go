package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tjfontaine/narratium-client/internal/stream"

// HeaderFunc injects headers (typically the bearer credential) into an outgoing request.
type HeaderFunc func(h http.Header)

// TokenCounter counts model tokens in a piece of text.
type TokenCounter interface {
	Count(text string) int
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient sets the HTTP client used to issue requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *Session) {
		s.httpClient = httpClient
	}
}

// WithHeaders sets the header injection function applied to every request.
func WithHeaders(fn HeaderFunc) Option {
	return func(s *Session) {
		s.headers = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithTokenCounter enables token counting of the accumulated narrative.
func WithTokenCounter(counter TokenCounter) Option {
	return func(s *Session) {
		s.counter = counter
	}
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Session) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// Session opens streaming exchanges against a single backend. A Session holds
// only read-only configuration and may be shared; each call to Open is an
// independent exchange.
type Session struct {
	baseURL    string
	httpClient *http.Client
	headers    HeaderFunc
	logger     *slog.Logger
	counter    TokenCounter
	tracer     trace.Tracer
}

// NewSession creates a Session issuing requests relative to baseURL.
func NewSession(baseURL string, opts ...Option) *Session {
	s := &Session{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result summarizes a settled exchange.
type Result struct {
	ExchangeID string
	GameID     string

	// Narrative is every chunk payload concatenated in arrival order,
	// accumulated independently of the caller's OnChunk.
	Narrative string
	Options   []string
	Progress  []string

	Chunks   int
	Records  int
	Skipped  int
	Tokens   int
	Duration time.Duration

	// Completed is true when the exchange settled through OnComplete.
	Completed bool
}

// Open POSTs body as JSON to endpoint and consumes the record stream until it
// settles. Exactly one of h.OnComplete and h.OnError is invoked per call.
//
// Open blocks until the exchange settles and returns the same error that was
// passed to h.OnError, or nil after h.OnComplete.
func (s *Session) Open(ctx context.Context, endpoint string, body any, h Handlers) (*Result, error) {
	ex := &exchange{
		endpoint: endpoint,
		handlers: h,
		logger:   s.logger,
		started:  time.Now(),
		result:   &Result{ExchangeID: uuid.New().String()},
	}
	ex.logger = s.logger.With(
		slog.String("exchange_id", ex.result.ExchangeID),
		slog.String("endpoint", endpoint),
	)

	ctx, span := s.tracer.Start(ctx, "stream.exchange",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("narratium.endpoint", endpoint),
			attribute.String("narratium.exchange_id", ex.result.ExchangeID),
		),
	)
	defer span.End()

	resp, err := s.send(ctx, endpoint, body, ex.result.ExchangeID)
	if err != nil {
		ex.settle(err, nil)
	} else {
		defer resp.Body.Close()
		ex.pump(resp.Body)
	}

	res := ex.finish(s.counter)

	span.SetAttributes(
		attribute.Int("narratium.records", res.Records),
		attribute.Int("narratium.chunks", res.Chunks),
		attribute.Int("narratium.skipped", res.Skipped),
	)
	if ex.err != nil {
		span.RecordError(ex.err)
		span.SetStatus(codes.Error, ex.err.Error())
		ex.logger.Error("stream failed",
			slog.String("error", ex.err.Error()),
			slog.Int("records", res.Records),
			slog.Duration("duration", res.Duration),
		)
	} else {
		ex.logger.Info("stream complete",
			slog.String("game_id", res.GameID),
			slog.Int("narrative_len", len(res.Narrative)),
			slog.Int("chunks", res.Chunks),
			slog.Int("tokens", res.Tokens),
			slog.Duration("duration", res.Duration),
		)
	}

	return res, ex.err
}

func (s *Session) send(ctx context.Context, endpoint string, body any, exchangeID string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &TransportError{Op: endpoint, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Op: endpoint, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")
	req.Header.Set("X-Request-ID", exchangeID)
	if s.headers != nil {
		s.headers(req.Header)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, NewStatusError(endpoint, resp)
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, &TransportError{Op: endpoint, Err: ErrEmptyBody}
	}

	return resp, nil
}

// exchange is the state of one Open call.
type exchange struct {
	endpoint string
	handlers Handlers
	logger   *slog.Logger
	started  time.Time

	narrative strings.Builder
	result    *Result

	settled bool
	err     error
}

// pump feeds decoded records to the dispatcher until the exchange settles or
// the body is exhausted.
func (ex *exchange) pump(body io.Reader) {
	dec := NewDecoder(body)
	guarded := ex.guardedHandlers()

	for !ex.settled {
		line, err := dec.Next()
		if errors.Is(err, io.EOF) {
			ex.settle(&StreamError{Message: UnexpectedEndMessage, Unexpected: true}, nil)
			return
		}
		if err != nil {
			// The server already accepted the request, so this is never a transport failure.
			ex.settle(&StreamError{Message: err.Error(), Err: err}, nil)
			return
		}

		rec, err := ParseRecord(line)
		if err != nil {
			ex.result.Skipped++
			ex.logger.Warn("skipping malformed record",
				slog.Int("line", dec.Line()),
				slog.String("error", err.Error()),
			)
			continue
		}

		ex.result.Records++
		if err := Dispatch(rec, guarded); err != nil {
			ex.settle(err, nil)
		}
	}
}

// guardedHandlers wraps the caller's handlers so chunks are accumulated
// privately and terminal callbacks go through settle.
func (ex *exchange) guardedHandlers() Handlers {
	h := ex.handlers

	return Handlers{
		OnStart: func(gameID string) {
			ex.result.GameID = gameID
			if h.OnStart != nil {
				h.OnStart(gameID)
			}
		},
		OnChunk: func(content string) {
			ex.narrative.WriteString(content)
			ex.result.Chunks++
			if h.OnChunk != nil {
				h.OnChunk(content)
			}
		},
		OnProgress: func(step string) {
			ex.result.Progress = append(ex.result.Progress, step)
			if h.OnProgress != nil {
				h.OnProgress(step)
			}
		},
		OnComplete: func(nextPrompts []string) {
			ex.settle(nil, nextPrompts)
		},
		OnError: func(err error) {
			ex.settle(err, nil)
		},
	}
}

// settle resolves the exchange. Only the first call has any effect.
func (ex *exchange) settle(err error, nextPrompts []string) {
	if ex.settled {
		ex.logger.Debug("ignoring settle on settled exchange")
		return
	}
	ex.settled = true
	ex.err = err

	if err == nil {
		ex.result.Completed = true
		ex.result.Options = nextPrompts
	}

	defer func() {
		if v := recover(); v != nil {
			ex.logger.Error("terminal handler panicked", slog.Any("panic", v))
		}
	}()

	if err == nil {
		if ex.handlers.OnComplete != nil {
			ex.handlers.OnComplete(nextPrompts)
		}
		return
	}
	if ex.handlers.OnError != nil {
		ex.handlers.OnError(err)
	}
}

func (ex *exchange) finish(counter TokenCounter) *Result {
	res := ex.result
	res.Narrative = ex.narrative.String()
	res.Duration = time.Since(ex.started)
	if counter != nil && res.Narrative != "" {
		res.Tokens = counter.Count(res.Narrative)
	}
	return res
}
