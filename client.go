package valyu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.valyu.ai/v1"
	DefaultTimeout = 60 * time.Second

	defaultUserAgent = "valyu-go/0.3"
	apiKeyHeader     = "x-api-key"
)

// Recorder receives per-call measurements. internal/metrics provides a
// prometheus implementation.
type Recorder interface {
	RecordRequest(endpoint, outcome string, duration time.Duration)
	RecordPoll(outcome string)
	RecordWait(outcome string, duration time.Duration)
}

type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// HTTPClient overrides the client built from Timeout. Ignored when
	// Transport is set.
	HTTPClient *http.Client
	// Transport replaces the HTTP transport entirely.
	Transport Transport
	Recorder  Recorder
	UserAgent string
}

// Client is safe for concurrent use. It holds no per-call state.
type Client struct {
	apiKey    string
	userAgent string
	transport Transport
	logger    *zap.Logger
	recorder  Recorder
	clock     clock

	Research *ResearchService
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := cfg.Transport
	if transport == nil {
		httpClient := cfg.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: cfg.Timeout}
		}
		transport = NewHTTPTransport(cfg.BaseURL, httpClient)
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	c := &Client{
		apiKey:    cfg.APIKey,
		userAgent: cfg.UserAgent,
		transport: transport,
		logger:    logger,
		recorder:  recorder,
		clock:     realClock{},
	}
	c.Research = &ResearchService{client: c}
	return c
}

// call sends one request and decodes the response into out through the
// error taxonomy. endpoint is a stable label for logs and metrics.
func (c *Client) call(ctx context.Context, endpoint string, req *Request, out any) error {
	requestID := uuid.New().String()

	if req.Header == nil {
		req.Header = make(http.Header)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := c.clock.Now()
	resp, sendErr := c.transport.Send(ctx, req)
	err := decode(resp, sendErr, out)
	elapsed := c.clock.Now().Sub(start)

	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	c.recorder.RecordRequest(endpoint, outcome, elapsed)

	fields := []zap.Field{
		zap.String("endpoint", endpoint),
		zap.String("request_id", requestID),
		zap.String("outcome", outcome),
		zap.Duration("duration", elapsed),
	}
	if resp != nil {
		fields = append(fields, zap.Int("status", resp.StatusCode))
	}
	if err != nil {
		c.logger.Debug("valyu request failed", append(fields, zap.Error(err))...)
		return err
	}
	c.logger.Debug("valyu request completed", fields...)
	return nil
}

func marshalBody(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, invalidRequest("marshal request: %v", err)
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, endpoint, path string, payload, out any) error {
	body, err := marshalBody(payload)
	if err != nil {
		return err
	}
	return c.call(ctx, endpoint, &Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// DeepSearch runs a search with full control over the parameters.
func (c *Client) DeepSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var resp SearchResponse
	if err := c.post(ctx, "deepsearch", "/deepsearch", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search runs a search with default settings.
func (c *Client) Search(ctx context.Context, query string) (*SearchResponse, error) {
	return c.DeepSearch(ctx, NewSearchRequest(query))
}

// Contents extracts content from up to 10 URLs.
func (c *Client) Contents(ctx context.Context, req ContentsRequest) (*ContentsResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var resp ContentsResponse
	if err := c.post(ctx, "contents", "/contents", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Answer returns an AI generated answer backed by retrieved sources.
func (c *Client) Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var resp AnswerResponse
	if err := c.post(ctx, "answer", "/answer", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ask is Answer with default settings.
func (c *Client) Ask(ctx context.Context, query string) (*AnswerResponse, error) {
	return c.Answer(ctx, NewAnswerRequest(query))
}

type nopRecorder struct{}

func (nopRecorder) RecordRequest(string, string, time.Duration) {}
func (nopRecorder) RecordPoll(string)                           {}
func (nopRecorder) RecordWait(string, time.Duration)            {}

type clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (c *Client) String() string {
	return fmt.Sprintf("valyu.Client{transport: %T}", c.transport)
}
