// Package lifecycle tracks assistant messages from delivery until a
// feedback signal has been recorded for them. A message that receives no
// explicit feedback within the delay is submitted as neutral exactly once.
package lifecycle

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/symplistic/contentiq-widget/internal/clock"
	"github.com/symplistic/contentiq-widget/internal/domain"
)

// DefaultDelay is how long a message waits for explicit feedback.
const DefaultDelay = 30 * time.Second

// DefaultSettledLimit is how many settled messages keep their final state.
const DefaultSettledLimit = 1024

var (
	ErrUntracked    = errors.New("message is not tracked")
	ErrAlreadyGiven = errors.New("feedback already given")
	ErrInvalidType  = errors.New("feedback type must be helpful or not_helpful")
)

// SubmitFunc delivers a deferred feedback signal. It runs on the timer
// goroutine without the tracker lock held.
type SubmitFunc func(messageID string, feedbackType domain.FeedbackType)

type entry struct {
	state domain.FeedbackState
	timer clock.Timer
}

// Tracker holds awaiting messages with their timers. Once feedback is
// settled the entry moves to a bounded record of final states; the oldest
// settled ids are forgotten past the limit.
type Tracker struct {
	mu           sync.Mutex
	entries      map[string]*entry
	settled      map[string]domain.FeedbackState
	settledOrder []string
	settledLimit int
	stopped      bool

	delay  time.Duration
	clock  clock.Clock
	submit SubmitFunc
	logger *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithDelay overrides DefaultDelay. Non-positive values are ignored.
func WithDelay(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.delay = d
		}
	}
}

// WithSettledLimit overrides DefaultSettledLimit. Non-positive values are
// ignored.
func WithSettledLimit(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.settledLimit = n
		}
	}
}

// WithClock sets the clock used to schedule deferred checks.
func WithClock(c clock.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// NewTracker creates a tracker that hands deferred neutral feedback to submit.
func NewTracker(submit SubmitFunc, opts ...Option) *Tracker {
	t := &Tracker{
		entries:      make(map[string]*entry),
		settled:      make(map[string]domain.FeedbackState),
		settledLimit: DefaultSettledLimit,
		delay:        DefaultDelay,
		clock:        clock.Real{},
		submit:       submit,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track starts awaiting feedback for messageID. Empty and already tracked
// ids are ignored; the return value reports whether tracking started.
func (t *Tracker) Track(messageID string) bool {
	if messageID == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return false
	}
	if _, ok := t.entries[messageID]; ok {
		return false
	}
	if _, ok := t.settled[messageID]; ok {
		return false
	}
	e := &entry{state: domain.FeedbackAwaiting}
	e.timer = t.clock.AfterFunc(t.delay, func() { t.fire(messageID) })
	t.entries[messageID] = e
	return true
}

// Record stores explicit feedback and cancels the deferred check.
func (t *Tracker) Record(messageID string, feedbackType domain.FeedbackType) error {
	if !feedbackType.Explicit() {
		return ErrInvalidType
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.settled[messageID]; ok {
		return ErrAlreadyGiven
	}
	e, ok := t.entries[messageID]
	if !ok {
		return ErrUntracked
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	t.settleLocked(messageID, domain.FeedbackState(feedbackType))
	return nil
}

func (t *Tracker) settleLocked(messageID string, state domain.FeedbackState) {
	delete(t.entries, messageID)
	if _, ok := t.settled[messageID]; !ok {
		t.settledOrder = append(t.settledOrder, messageID)
	}
	t.settled[messageID] = state
	for len(t.settledOrder) > t.settledLimit {
		delete(t.settled, t.settledOrder[0])
		t.settledOrder = t.settledOrder[1:]
	}
}

func (t *Tracker) fire(messageID string) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if _, ok := t.entries[messageID]; !ok {
		t.mu.Unlock()
		return
	}
	t.settleLocked(messageID, domain.FeedbackGivenNeutral)
	t.mu.Unlock()

	t.logger.Debug("submitting deferred feedback", "message_id", messageID)
	if t.submit != nil {
		t.submit(messageID, domain.FeedbackNeutral)
	}
}

// State returns the feedback state of messageID. Settled ids report their
// final state until they age out of the settled record.
func (t *Tracker) State(messageID string) (domain.FeedbackState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[messageID]; ok {
		return e.state, true
	}
	state, ok := t.settled[messageID]
	return state, ok
}

// Pending returns how many tracked messages still await feedback.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Stop cancels all deferred checks. Tracking after Stop is a no-op.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	for _, e := range t.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
}
