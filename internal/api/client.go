// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jeranaias/docchat/internal/telemetry"
)

// Endpoint names used for metrics and logs.
const (
	EndpointCreateConversation = "create_conversation"
	EndpointGetConversation    = "get_conversation"
	EndpointSearch             = "search"
	EndpointFeedback           = "feedback"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the conversation service client.
type ClientConfig struct {
	// BaseURL is the service origin (default: http://localhost:8000)
	BaseURL string

	// PathPrefix is joined to BaseURL for every endpoint (default: /api/v1)
	PathPrefix string

	// Timeout for non-streaming requests (default: 30s). The search stream
	// is bounded only by its context.
	Timeout time.Duration

	// RateLimit in requests per second; zero or negative disables limiting
	RateLimit float64

	// Burst allowed above RateLimit (default: 2)
	Burst int

	// UserAgent sent with every request
	UserAgent string
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:    "http://localhost:8000",
		PathPrefix: "/api/v1",
		Timeout:    30 * time.Second,
		RateLimit:  5,
		Burst:      2,
		UserAgent:  "docchat",
	}
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithMetrics records request metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient replaces the client used for non-streaming calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the conversation service: conversation creation and
// retrieval, the streamed search answer and feedback.
//
// The Client is safe for concurrent use.
//
// Example:
//
//	client := api.NewClient(api.DefaultConfig())
//	id, err := client.CreateConversation(ctx, "billing")
//	resp, err := client.Search(ctx, api.SearchRequest{Query: q, Domain: "billing", ConversationID: id})
//	defer resp.Close()
type Client struct {
	config       *ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter
	metrics      *telemetry.Metrics
	log          zerolog.Logger
}

// NewClient creates a client. Zero values in config are replaced by defaults.
func NewClient(config *ClientConfig, opts ...Option) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config

	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PathPrefix != "" && !strings.HasPrefix(cfg.PathPrefix, "/") {
		cfg.PathPrefix = "/" + cfg.PathPrefix
	}
	cfg.PathPrefix = strings.TrimRight(cfg.PathPrefix, "/")
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaults.Burst
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}

	c := &Client{
		config: &cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		// No client timeout for streaming; the context bounds it.
		streamClient: &http.Client{},
		log:          zerolog.Nop(),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns a copy of the effective configuration.
func (c *Client) Config() ClientConfig {
	return *c.config
}

// URL returns the absolute URL of an endpoint path such as "/search".
func (c *Client) URL(path string) string {
	return c.config.BaseURL + c.config.PathPrefix + path
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// CreateConversation starts a new conversation for domain and returns its id.
func (c *Client) CreateConversation(ctx context.Context, domain string) (string, error) {
	var out CreateConversationResponse
	err := c.doJSON(ctx, EndpointCreateConversation, http.MethodPost, "/conversations",
		CreateConversationRequest{Domain: domain}, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &ClientError{Type: ErrTypeMalformedPayload, Message: "conversation id missing from response"}
	}

	c.log.Debug().Str("domain", domain).Str("conversation_id", out.ID.String()).Msg("conversation created")
	return out.ID.String(), nil
}

// GetConversation fetches the full transcript of a stored conversation.
func (c *Client) GetConversation(ctx context.Context, id string) (*StoredConversation, error) {
	var out StoredConversation
	path := "/conversations/" + url.PathEscape(id)
	if err := c.doJSON(ctx, EndpointGetConversation, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// SEARCH
// =============================================================================

// Search posts a question and returns the open answer stream. The response
// headers have arrived when Search returns; the body is read by the caller.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/search", req)
	if err != nil {
		c.observe(EndpointSearch, err, start)
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/plain, text/markdown, */*")

	resp, err := c.send(ctx, c.streamClient, httpReq)
	if err != nil {
		c.observe(EndpointSearch, err, start)
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drainAndClose(resp.Body)
		err := &ClientError{Type: ErrTypeStatus, Message: "search failed: " + resp.Status, StatusCode: resp.StatusCode}
		c.observe(EndpointSearch, err, start)
		return nil, err
	}
	if resp.Body == nil {
		err := &ClientError{Type: ErrTypeProtocol, Message: "search response has no readable body"}
		c.observe(EndpointSearch, err, start)
		return nil, err
	}

	c.observe(EndpointSearch, nil, start)
	return &SearchResponse{
		MessageID:  ParseMessageID(resp.Header.Get(MessageIDHeader)),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// =============================================================================
// FEEDBACK
// =============================================================================

// SubmitFeedback records a thumbs up (positive) or down for a server message.
func (c *Client) SubmitFeedback(ctx context.Context, messageID int64, positive bool) error {
	return c.doJSON(ctx, EndpointFeedback, http.MethodPost, "/feedback",
		FeedbackRequest{MessageID: messageID, Feedback: positive}, nil)
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to marshal request", Cause: err}
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), rdr)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	return req, nil
}

func (c *Client) send(ctx context.Context, hc *http.Client, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, transportError(ctx, err)
		}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	return resp, nil
}

// doJSON performs a non-streaming call. A nil out discards the body.
func (c *Client) doJSON(ctx context.Context, endpoint, method, path string, in, out interface{}) (err error) {
	start := time.Now()
	defer func() { c.observe(endpoint, err, start) }()

	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, c.httpClient, req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ClientError{
			Type:       ErrTypeStatus,
			Message:    endpoint + " failed: " + resp.Status,
			StatusCode: resp.StatusCode,
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return transportError(ctx, ctx.Err())
		}
		return &ClientError{Type: ErrTypeMalformedPayload, Message: "failed to decode " + endpoint + " response", Cause: err}
	}
	return nil
}

func (c *Client) observe(endpoint string, err error, start time.Time) {
	outcome := telemetry.OutcomeOK
	if err != nil {
		outcome = typeOf(err).String()
	}
	c.metrics.ObserveRequest(endpoint, outcome, time.Since(start))
}

// drainAndClose drains and closes a response body so the connection can be reused.
func drainAndClose(r io.ReadCloser) {
	if r == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64*1024))
	_ = r.Close()
}
