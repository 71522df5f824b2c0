// Package transcript records chat turns and feedback as newline-delimited
// JSON, one file per agent session. Writes happen on a background goroutine.
package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Event types.
const (
	EventUserMessage      = "chat_user_message"
	EventAssistantMessage = "chat_assistant_message"
	EventFeedback         = "feedback"
	EventRotation         = "session_rotated"
)

// Event is one transcript line.
type Event struct {
	Time         time.Time `json:"time"`
	AgentID      string    `json:"agent_id"`
	SessionID    string    `json:"session_id"`
	EventType    string    `json:"event_type"`
	MessageID    string    `json:"message_id,omitempty"`
	FeedbackType string    `json:"feedback_type,omitempty"`
	Content      string    `json:"content,omitempty"`
	ContentRaw   string    `json:"content_raw,omitempty"`
}

// Logger accepts transcript events.
type Logger interface {
	Log(Event)
	Close() error
}

// Config controls transcript logging.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Nop discards events.
type Nop struct{}

func (Nop) Log(Event)    {}
func (Nop) Close() error { return nil }

// FileLogger appends events to <dir>/<agent>/<session>.ndjson.
type FileLogger struct {
	dir    string
	events chan Event
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New returns a FileLogger, or Nop when logging is disabled.
func New(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("transcript dir cannot be empty")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}

	l := &FileLogger{
		dir:    cfg.Dir,
		events: make(chan Event, cfg.QueueSize),
		logger: logger,
	}
	l.wg.Add(1)
	go l.run()
	return l, nil
}

// Log queues ev. When the queue is full the event is dropped.
func (l *FileLogger) Log(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	if ev.ContentRaw != "" && ev.Content == "" {
		ev.Content = cleanForReadability(ev.ContentRaw)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.events <- ev:
	default:
		l.logger.Warn("transcript queue full, dropping event",
			"agent_id", ev.AgentID, "session_id", ev.SessionID, "event_type", ev.EventType)
	}
}

// Close flushes queued events and stops the writer.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.events)
	l.mu.Unlock()

	l.wg.Wait()
	return nil
}

func (l *FileLogger) run() {
	defer l.wg.Done()
	for ev := range l.events {
		if err := l.write(ev); err != nil {
			l.logger.Error("failed to write transcript event", "session_id", ev.SessionID, "error", err)
		}
	}
}

func (l *FileLogger) write(ev Event) error {
	dir := filepath.Join(l.dir, safeName(ev.AgentID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, safeName(ev.SessionID)+".ndjson"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

var (
	ansiRe   = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	unsafeRe = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// cleanForReadability strips terminal escapes and control characters and
// collapses whitespace.
func cleanForReadability(s string) string {
	s = ansiRe.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// safeName keeps ids usable as file names.
func safeName(s string) string {
	switch s {
	case "":
		return "unknown"
	case ".", "..":
		return "_"
	}
	return unsafeRe.ReplaceAllString(s, "_")
}
