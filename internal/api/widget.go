package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/symplistic/contentiq-widget/internal/domain"
	"github.com/symplistic/contentiq-widget/internal/metrics"
	"github.com/symplistic/contentiq-widget/internal/transcript"
)

const (
	headerAgentID      = "X-Agent-Id"
	headerSessionID    = "X-Session-Id"
	headerNewSessionID = "X-New-Session-ID"

	docsURL = "https://docs.symplistic.ai/contentiq"
)

type chatRequest struct {
	domain.AuthPayload
	Message string `json:"message"`
}

type chatResponse struct {
	Assistant string `json:"assistant"`
	MessageID string `json:"message_id"`
	SessionID string `json:"session_id"`
}

// FeedbackRecord is the latest feedback stored for a message.
type FeedbackRecord struct {
	MessageID    string              `json:"message_id"`
	ThreadID     string              `json:"thread_id"`
	AgentID      string              `json:"agent_id"`
	FeedbackType domain.FeedbackType `json:"feedback_type"`
	RecordedAt   time.Time           `json:"recorded_at"`
}

func feedbackKey(messageID string) string {
	return "feedback_" + messageID
}

// Chat answers a widget message with a markdown echo. Sessions idle for
// longer than the thread timeout are rotated via X-New-Session-ID.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.Request("chat", metrics.OutcomeRejected)
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.authenticate(req.AuthPayload); err != nil {
		h.rejectAuth(w, "chat", req.AgentID, err)
		return
	}
	if hdr := r.Header.Get(headerAgentID); hdr != "" && hdr != req.AgentID {
		h.metrics.Request("chat", metrics.OutcomeRejected)
		Error(w, http.StatusBadRequest, "agent header does not match body")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		h.metrics.Request("chat", metrics.OutcomeRejected)
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	res := h.threads.resolve(req.AgentID, r.Header.Get(headerSessionID), h.clock.Now(), h.settings.ThreadTimeout)
	now := h.clock.Now().UTC()
	if res.rotated {
		w.Header().Set(headerNewSessionID, res.sessionID)
		h.metrics.Rotation("header")
		h.logger.Info("rotated idle thread", "agent_id", req.AgentID, "session_id", res.sessionID)
		h.log.Log(transcript.Event{Time: now, AgentID: req.AgentID, SessionID: res.sessionID, EventType: transcript.EventRotation})
	}
	h.log.Log(transcript.Event{
		Time:       now,
		AgentID:    req.AgentID,
		SessionID:  res.sessionID,
		EventType:  transcript.EventUserMessage,
		ContentRaw: req.Message,
	})

	messageID := uuid.NewString()
	h.threads.addMessage(messageID, res.sessionID)

	reply := fmt.Sprintf("You said: **%s**\n\nThis is turn %d of this thread. See [contentIQ docs](%s) for more.",
		message, res.turn, docsURL)
	if h.settings.DoubleEncode {
		inner, err := json.Marshal(map[string]string{"assistant": reply})
		if err != nil {
			Error(w, http.StatusInternalServerError, "failed to encode reply")
			return
		}
		reply = string(inner)
	}

	h.log.Log(transcript.Event{
		Time:       now,
		AgentID:    req.AgentID,
		SessionID:  res.sessionID,
		EventType:  transcript.EventAssistantMessage,
		MessageID:  messageID,
		ContentRaw: reply,
	})
	h.metrics.Request("chat", metrics.OutcomeOK)
	JSON(w, http.StatusOK, chatResponse{Assistant: reply, MessageID: messageID, SessionID: res.sessionID})
}

type feedbackRequest struct {
	domain.AuthPayload
	ThreadID     string              `json:"thread_id"`
	MessageID    string              `json:"message_id"`
	FeedbackType domain.FeedbackType `json:"feedback_type"`
}

// Feedback stores the latest feedback for a message issued by Chat.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.Request("feedback", metrics.OutcomeRejected)
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.authenticate(req.AuthPayload); err != nil {
		h.rejectAuth(w, "feedback", req.AgentID, err)
		return
	}
	if !req.FeedbackType.Valid() {
		h.metrics.Feedback(string(req.FeedbackType), metrics.OutcomeRejected)
		Error(w, http.StatusBadRequest, "invalid feedback_type")
		return
	}
	sessionID, ok := h.threads.sessionFor(req.MessageID)
	if !ok {
		h.metrics.Feedback(string(req.FeedbackType), metrics.OutcomeRejected)
		Error(w, http.StatusNotFound, "unknown message_id")
		return
	}
	if want := domain.ThreadID(req.AgentID, sessionID); req.ThreadID != want {
		h.logger.Warn("feedback thread mismatch", "message_id", req.MessageID, "thread_id", req.ThreadID, "expected", want)
	}

	rec := FeedbackRecord{
		MessageID:    req.MessageID,
		ThreadID:     req.ThreadID,
		AgentID:      req.AgentID,
		FeedbackType: req.FeedbackType,
		RecordedAt:   h.clock.Now().UTC(),
	}
	if err := h.saveFeedback(r.Context(), rec); err != nil {
		h.logger.Error("failed to store feedback", "message_id", req.MessageID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to store feedback")
		return
	}

	h.log.Log(transcript.Event{
		Time:         rec.RecordedAt,
		AgentID:      req.AgentID,
		SessionID:    sessionID,
		EventType:    transcript.EventFeedback,
		MessageID:    req.MessageID,
		FeedbackType: string(req.FeedbackType),
	})
	h.metrics.Feedback(string(req.FeedbackType), metrics.OutcomeOK)
	h.logger.Info("feedback recorded", "message_id", req.MessageID, "type", req.FeedbackType)
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetFeedback returns the stored feedback for a message.
func (h *Handler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	raw, ok, err := h.storage.GetItem(r.Context(), feedbackKey(messageID))
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load feedback")
		return
	}
	if !ok {
		Error(w, http.StatusNotFound, "no feedback for message")
		return
	}
	var rec FeedbackRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		Error(w, http.StatusInternalServerError, "corrupt feedback record")
		return
	}
	JSON(w, http.StatusOK, rec)
}

func (h *Handler) saveFeedback(ctx context.Context, rec FeedbackRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}
	return h.storage.SetItem(ctx, feedbackKey(rec.MessageID), string(data))
}
