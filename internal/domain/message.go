package domain

import "time"

// Role identifies who authored a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source is a citation extracted from an assistant reply.
type Source struct {
	Index int    `json:"index"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Message is one entry of a widget transcript.
type Message struct {
	Seq       int           `json:"seq"`
	Role      Role          `json:"role"`
	Text      string        `json:"text"`
	MessageID string        `json:"message_id,omitempty"`
	Error     bool          `json:"error,omitempty"`
	Sources   []Source      `json:"sources,omitempty"`
	Feedback  FeedbackState `json:"feedback,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Trackable reports whether the message can receive feedback.
func (m Message) Trackable() bool {
	return m.Role == RoleAssistant && m.MessageID != "" && !m.Error
}
