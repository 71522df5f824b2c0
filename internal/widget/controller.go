// Package widget holds the per-instance state of an embedded chat widget:
// its session, transcript, theme and open flag. Each Controller is
// independent, so several widgets can run side by side.
package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/symplistic/contentiq-widget/internal/client"
	"github.com/symplistic/contentiq-widget/internal/clock"
	"github.com/symplistic/contentiq-widget/internal/domain"
	"github.com/symplistic/contentiq-widget/internal/lifecycle"
	"github.com/symplistic/contentiq-widget/internal/metrics"
	"github.com/symplistic/contentiq-widget/internal/render"
	"github.com/symplistic/contentiq-widget/internal/session"
	"github.com/symplistic/contentiq-widget/internal/theme"
)

// ApologyText is shown when a chat request fails without a status code.
const ApologyText = "Sorry, I encountered an error. Please try again."

// Rotation reasons reported to metrics.
const (
	RotationHeader  = "header"
	RotationBody    = "body"
	RotationTimeout = "timeout"
	RotationManual  = "manual"
)

// ErrClosed is returned after Shutdown.
var ErrClosed = errors.New("widget is shut down")

// Backend is the request pipeline the controller drives.
type Backend interface {
	ValidateToken(ctx context.Context) error
	FetchStyling(ctx context.Context) (map[string]any, error)
	SendChat(ctx context.Context, sessionID, message string) (*client.ChatReply, error)
	SendFeedback(ctx context.Context, sessionID, messageID string, feedbackType domain.FeedbackType) error
}

// Config is the embed-time configuration of one widget.
type Config struct {
	AgentID       string
	ThreadTimeout time.Duration
	FeedbackDelay time.Duration
	// EagerSession creates a local session at start-up when none is stored.
	EagerSession bool
}

// Controller is one widget instance.
type Controller struct {
	agentID string
	timeout time.Duration

	backend  Backend
	sessions *session.Store
	tracker  *lifecycle.Tracker
	clock    clock.Clock
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// sendMu serializes Send so replies land in send order.
	sendMu sync.Mutex

	mu        sync.Mutex
	sessionID string
	open      bool
	closed    bool
	messages  []domain.Message
	seq       int
	theme     theme.Theme

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for timestamps and deferred feedback.
func WithClock(c clock.Clock) Option {
	return func(w *Controller) { w.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Controller) { w.logger = l }
}

// WithMetrics records feedback and rotation counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Controller) { w.metrics = m }
}

// New creates a widget with the default theme and the agent's stored
// session, if any. Storage failures are logged and the widget starts
// without a session.
func New(ctx context.Context, cfg Config, backend Backend, sessions *session.Store, opts ...Option) (*Controller, error) {
	if strings.TrimSpace(cfg.AgentID) == "" {
		return nil, fmt.Errorf("widget: agent id is required")
	}
	if backend == nil || sessions == nil {
		return nil, fmt.Errorf("widget: backend and session store are required")
	}
	if cfg.ThreadTimeout <= 0 {
		cfg.ThreadTimeout = session.DefaultThreadTimeout
	}

	c := &Controller{
		agentID:  cfg.AgentID,
		timeout:  cfg.ThreadTimeout,
		backend:  backend,
		sessions: sessions,
		clock:    clock.Real{},
		logger:   slog.Default(),
		theme:    theme.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("agent_id", c.agentID)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.tracker = lifecycle.NewTracker(c.submitDeferred,
		lifecycle.WithDelay(cfg.FeedbackDelay),
		lifecycle.WithClock(c.clock),
		lifecycle.WithLogger(c.logger))

	rec, err := sessions.Resume(ctx, c.agentID)
	if err != nil {
		c.logger.Error("failed to restore session", "error", err)
	}
	if rec == nil && err == nil && cfg.EagerSession {
		if rec, err = sessions.Create(ctx, c.agentID); err != nil {
			c.logger.Error("failed to create session", "error", err)
		}
	}
	if rec != nil {
		c.sessionID = rec.SessionID
	}

	c.logger.Debug("thread timeout configured", "minutes", int(c.timeout/time.Minute))
	c.appendLocked(domain.Message{Role: domain.RoleAssistant, Text: c.theme.WelcomeMessage})
	return c, nil
}

// Start validates the token and fetches remote styling in the background.
// Neither blocks chat; failures are logged.
func (c *Controller) Start(ctx context.Context) {
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		if err := c.backend.ValidateToken(ctx); err != nil {
			c.logger.Warn("token validation failed", "error", err)
		}
	}()
	go func() {
		defer c.wg.Done()
		c.applyStyling(ctx)
	}()
}

func (c *Controller) applyStyling(ctx context.Context) {
	overrides, err := c.backend.FetchStyling(ctx)
	if err != nil {
		c.logger.Warn("failed to load styling, using defaults", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	oldWelcome := c.theme.WelcomeMessage
	merged, warnings := c.theme.Merge(overrides)
	for _, w := range warnings {
		c.logger.Warn("ignoring styling override", "detail", w)
	}
	c.theme = merged
	if len(c.messages) > 0 && c.messages[0].Seq == 0 && c.messages[0].Text == oldWelcome {
		c.messages[0].Text = merged.WelcomeMessage
	}
}

// Open shows the widget and counts as activity on the session.
func (c *Controller) Open(ctx context.Context) {
	c.mu.Lock()
	c.open = true
	c.mu.Unlock()
	c.touch(ctx)
}

// Close hides the widget.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
}

// Toggle flips the open flag and returns the new state.
func (c *Controller) Toggle(ctx context.Context) bool {
	if c.IsOpen() {
		c.Close()
		return false
	}
	c.Open(ctx)
	return true
}

// IsOpen reports whether the widget is shown.
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Send posts text to the backend and appends both sides of the exchange to
// the transcript. The returned message is the assistant's reply, or the
// locally rendered error bubble together with the failure.
func (c *Controller) Send(ctx context.Context, text string) (domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, domain.ErrEmptyMessage
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.Message{}, ErrClosed
	}
	c.appendLocked(domain.Message{Role: domain.RoleUser, Text: text})
	c.mu.Unlock()

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sessions.Expired(ctx, c.agentID, c.timeout) {
		c.logger.Info("thread timed out, starting new thread")
		if err := c.sessions.Expire(ctx, c.agentID); err != nil {
			c.logger.Error("failed to clear timed out session", "error", err)
		}
		c.setSessionID("")
		c.metrics.Rotation(RotationTimeout)
	}
	c.touch(ctx)

	reply, err := c.backend.SendChat(ctx, c.SessionID(), text)
	if err != nil {
		c.logger.Error("chat request failed", "error", err)
		msg := domain.Message{Role: domain.RoleAssistant, Text: ApologyText, Error: true}
		if code, ok := client.IsStatusError(err); ok {
			msg.Text = fmt.Sprintf("Error: %d", code)
		}
		return c.append(msg), err
	}

	msg := domain.Message{
		Role:      domain.RoleAssistant,
		Text:      reply.Text,
		MessageID: reply.MessageID,
		Sources:   render.ExtractSources(reply.Text),
	}
	if msg.Trackable() {
		msg.Feedback = domain.FeedbackAwaiting
	}
	msg = c.append(msg)
	if msg.Trackable() {
		c.tracker.Track(msg.MessageID)
	}

	c.applyRotation(ctx, reply)
	return msg, nil
}

// applyRotation updates the session after a successful chat response. The
// rotation header wins over a differing body session_id; otherwise the
// session is touched.
func (c *Controller) applyRotation(ctx context.Context, reply *client.ChatReply) {
	var newID, reason string
	switch {
	case reply.RotatedSessionID != "":
		newID, reason = reply.RotatedSessionID, RotationHeader
	case reply.SessionID != "" && reply.SessionID != c.SessionID():
		newID, reason = reply.SessionID, RotationBody
	default:
		c.touch(ctx)
		return
	}

	if _, err := c.sessions.Adopt(ctx, c.agentID, newID); err != nil {
		c.logger.Error("failed to store rotated session", "error", err)
	}
	c.setSessionID(newID)
	c.metrics.Rotation(reason)
	c.logger.Info("session rotated", "reason", reason)
}

// Feedback records explicit feedback for an assistant message and submits
// it. Feedback on a timed out thread is dropped with ErrFeedbackSuppressed.
func (c *Controller) Feedback(ctx context.Context, messageID string, feedbackType domain.FeedbackType) error {
	state, ok := c.messageFeedback(messageID)
	if !ok {
		return domain.ErrUnknownMessage
	}
	if state.Terminal() {
		c.metrics.Feedback(string(feedbackType), metrics.OutcomeRejected)
		return lifecycle.ErrAlreadyGiven
	}
	if err := c.tracker.Record(messageID, feedbackType); err != nil {
		c.metrics.Feedback(string(feedbackType), metrics.OutcomeRejected)
		return err
	}
	c.setFeedback(messageID, domain.FeedbackState(feedbackType))
	return c.submitFeedback(ctx, messageID, feedbackType)
}

func (c *Controller) submitDeferred(messageID string, feedbackType domain.FeedbackType) {
	c.setFeedback(messageID, domain.FeedbackState(feedbackType))
	if err := c.submitFeedback(c.ctx, messageID, feedbackType); err != nil {
		c.logger.Debug("deferred feedback not delivered", "message_id", messageID, "error", err)
	}
}

func (c *Controller) submitFeedback(ctx context.Context, messageID string, feedbackType domain.FeedbackType) error {
	ft := string(feedbackType)
	sessionID := c.SessionID()
	if sessionID == "" || c.sessions.Expired(ctx, c.agentID, c.timeout) {
		c.logger.Info("thread timed out, not sending feedback", "message_id", messageID)
		c.metrics.Feedback(ft, metrics.OutcomeSuppressed)
		return domain.ErrFeedbackSuppressed
	}

	if err := c.backend.SendFeedback(ctx, sessionID, messageID, feedbackType); err != nil {
		outcome := metrics.OutcomeTransport
		if _, ok := client.IsStatusError(err); ok {
			outcome = metrics.OutcomeStatus
		}
		c.metrics.Feedback(ft, outcome)
		c.logger.Error("failed to send feedback", "message_id", messageID, "type", ft, "error", err)
		return err
	}

	c.metrics.Feedback(ft, metrics.OutcomeOK)
	c.logger.Info("feedback sent", "message_id", messageID, "type", ft)
	c.touch(ctx)
	return nil
}

// ExpireSession drops the stored session. The next send asks the backend
// for a new thread.
func (c *Controller) ExpireSession(ctx context.Context) error {
	if err := c.sessions.Expire(ctx, c.agentID); err != nil {
		return err
	}
	c.setSessionID("")
	c.metrics.Rotation(RotationManual)
	return nil
}

// SessionInfo describes the stored session. It is nil without a session.
func (c *Controller) SessionInfo(ctx context.Context) (*domain.SessionInfo, error) {
	return c.sessions.Info(ctx, c.agentID, c.timeout)
}

// SessionID returns the current session id, empty when there is none.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// AgentID returns the agent this widget talks to.
func (c *Controller) AgentID() string { return c.agentID }

// Theme returns the active theme.
func (c *Controller) Theme() theme.Theme {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theme
}

// Messages returns a copy of the transcript.
func (c *Controller) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Shutdown cancels pending deferred feedback and waits for background
// start-up work.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.tracker.Stop()
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) touch(ctx context.Context) {
	if err := c.sessions.Touch(ctx, c.agentID); err != nil {
		c.logger.Warn("failed to update session activity", "error", err)
	}
}

func (c *Controller) setSessionID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}

func (c *Controller) append(msg domain.Message) domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appendLocked(msg)
}

func (c *Controller) appendLocked(msg domain.Message) domain.Message {
	msg.Seq = c.seq
	c.seq++
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = c.clock.Now()
	}
	c.messages = append(c.messages, msg)
	return msg
}

// messageFeedback returns the transcript's feedback state for a trackable
// assistant message.
func (c *Controller) messageFeedback(messageID string) (domain.FeedbackState, bool) {
	if messageID == "" {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.messages {
		if m.MessageID == messageID && m.Trackable() {
			return m.Feedback, true
		}
	}
	return "", false
}

func (c *Controller) setFeedback(messageID string, state domain.FeedbackState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.messages {
		if c.messages[i].MessageID == messageID {
			c.messages[i].Feedback = state
		}
	}
}
