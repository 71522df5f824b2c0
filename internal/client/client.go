// Package client is the request pipeline between the widget and its
// backend. Every call is signed; chat and feedback carry the session id in
// headers so the backend can route them to the right thread.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/symplistic/contentiq-widget/internal/domain"
	"github.com/symplistic/contentiq-widget/internal/metrics"
	"github.com/symplistic/contentiq-widget/internal/render"
	"github.com/symplistic/contentiq-widget/internal/signer"
)

// Backend paths.
const (
	PathValidateToken = "/api/deploy/validateToken"
	PathEmbedStyling  = "/api/deploy/getEmbedStyling"
	PathChat          = "/api/widget/chat"
	PathFeedback      = "/api/widget/feedback"
)

// Header names.
const (
	HeaderAgentID      = "X-Agent-Id"
	HeaderSessionID    = "X-Session-Id"
	HeaderNewSessionID = "X-New-Session-ID"
)

// Endpoint labels used in errors and metrics.
const (
	EndpointValidate = "validate"
	EndpointStyling  = "styling"
	EndpointChat     = "chat"
	EndpointFeedback = "feedback"
)

// DefaultTimeout bounds a single backend call.
const DefaultTimeout = 30 * time.Second

// StatusError reports a non-2xx response.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed with status %d", e.Endpoint, e.StatusCode)
}

// ChatReply is a decoded chat response.
type ChatReply struct {
	// Text is the assistant reply after unwrapping double-encoded payloads.
	Text string
	// Raw is the assistant field as received.
	Raw       string
	MessageID string
	// SessionID is the session_id field of the body, if any.
	SessionID string
	// RotatedSessionID is the X-New-Session-ID header, if any.
	RotatedSessionID string
}

// Client talks to the widget backend.
type Client struct {
	http    *resty.Client
	signer  *signer.Signer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics records request outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		baseURL := c.http.BaseURL
		timeout := c.http.GetClient().Timeout
		c.http = resty.NewWithClient(hc).SetBaseURL(baseURL).SetTimeout(timeout)
	}
}

// New creates a client for the backend at baseURL signing with s.
func New(baseURL string, s *signer.Signer, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(DefaultTimeout),
		signer: s,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.SetLogger(restyLogger{c.logger})
	return c
}

// AgentID returns the agent the client authenticates as.
func (c *Client) AgentID() string { return c.signer.AgentID() }

func (c *Client) authQuery() (map[string]string, error) {
	auth, err := c.signer.BuildAuth()
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"agent_id": auth.AgentID,
		"token":    auth.Token,
		"ts":       auth.TS,
		"sig":      auth.Sig,
	}, nil
}

func (c *Client) post(ctx context.Context, sessionID string) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader(HeaderAgentID, c.signer.AgentID()).
		SetHeader(HeaderSessionID, domain.SessionHeader(sessionID))
}

// result classifies a finished call for metrics and wraps failures.
func (c *Client) result(endpoint string, resp *resty.Response, err error) error {
	if err != nil {
		c.metrics.Request(endpoint, metrics.OutcomeTransport)
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	if !resp.IsSuccess() {
		c.metrics.Request(endpoint, metrics.OutcomeStatus)
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode()}
	}
	c.metrics.Request(endpoint, metrics.OutcomeOK)
	return nil
}

// ValidateToken asks the backend whether the embed token is accepted.
func (c *Client) ValidateToken(ctx context.Context) error {
	query, err := c.authQuery()
	if err != nil {
		return err
	}
	resp, err := c.http.R().SetContext(ctx).SetQueryParams(query).Get(PathValidateToken)
	return c.result(EndpointValidate, resp, err)
}

// FetchStyling returns the backend's theme overrides. The payload may be
// flat or nested under "styling".
func (c *Client) FetchStyling(ctx context.Context) (map[string]any, error) {
	query, err := c.authQuery()
	if err != nil {
		return nil, err
	}
	resp, err := c.http.R().SetContext(ctx).SetQueryParams(query).Get(PathEmbedStyling)
	if err := c.result(EndpointStyling, resp, err); err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("decode styling: %w", err)
	}
	if nested, ok := payload["styling"].(map[string]any); ok {
		return nested, nil
	}
	return payload, nil
}

type chatRequest struct {
	domain.AuthPayload
	Message string `json:"message"`
}

type chatResponse struct {
	Assistant json.RawMessage `json:"assistant"`
	MessageID flexibleID      `json:"message_id"`
	SessionID flexibleID      `json:"session_id"`
}

// SendChat posts a user message. sessionID may be empty, in which case the
// backend is asked to start a new thread.
func (c *Client) SendChat(ctx context.Context, sessionID, message string) (*ChatReply, error) {
	auth, err := c.signer.BuildAuth()
	if err != nil {
		return nil, err
	}

	resp, err := c.post(ctx, sessionID).
		SetBody(chatRequest{AuthPayload: auth, Message: message}).
		Post(PathChat)
	if err := c.result(EndpointChat, resp, err); err != nil {
		return nil, err
	}

	var body chatResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}

	raw := assistantText(body.Assistant)
	reply := &ChatReply{
		Text:             render.CleanAssistant(raw),
		Raw:              raw,
		MessageID:        string(body.MessageID),
		SessionID:        string(body.SessionID),
		RotatedSessionID: resp.Header().Get(HeaderNewSessionID),
	}
	c.logger.Debug("received chat response",
		"agent_id", c.signer.AgentID(),
		"has_message_id", reply.MessageID != "",
		"rotated", reply.RotatedSessionID != "")
	return reply, nil
}

func assistantText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

type feedbackRequest struct {
	domain.AuthPayload
	ThreadID     string              `json:"thread_id"`
	MessageID    string              `json:"message_id"`
	FeedbackType domain.FeedbackType `json:"feedback_type"`
}

// SendFeedback submits a feedback signal for a server-issued message id.
func (c *Client) SendFeedback(ctx context.Context, sessionID, messageID string, feedbackType domain.FeedbackType) error {
	if messageID == "" || !feedbackType.Valid() {
		return fmt.Errorf("%w: message %q type %q", domain.ErrInvalidFeedback, messageID, feedbackType)
	}
	auth, err := c.signer.BuildAuth()
	if err != nil {
		return err
	}

	resp, err := c.post(ctx, sessionID).
		SetBody(feedbackRequest{
			AuthPayload:  auth,
			ThreadID:     domain.ThreadID(c.signer.AgentID(), sessionID),
			MessageID:    messageID,
			FeedbackType: feedbackType,
		}).
		Post(PathFeedback)
	return c.result(EndpointFeedback, resp, err)
}

// IsStatusError reports whether err carries a non-2xx status and returns it.
func IsStatusError(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	return 0, false
}
