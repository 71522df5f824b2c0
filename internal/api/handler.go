// Package api implements a local stand-in for the contentIQ backend: token
// validation, embed styling, chat and feedback. It verifies request
// signatures the same way the real service does and is meant for
// development and tests.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/symplistic/contentiq-widget/internal/clock"
	"github.com/symplistic/contentiq-widget/internal/metrics"
	"github.com/symplistic/contentiq-widget/internal/store"
	"github.com/symplistic/contentiq-widget/internal/transcript"
)

// Settings configures the stub backend.
type Settings struct {
	// Agents maps agent id to hex secret.
	Agents        map[string]string
	MaxSkew       time.Duration
	ThreadTimeout time.Duration
	// DoubleEncode wraps chat replies in a second JSON layer.
	DoubleEncode bool
	Styling      map[string]any
}

// Handler serves the widget-facing endpoints.
type Handler struct {
	settings Settings
	storage  store.Storage
	threads  *threadRegistry
	log      transcript.Logger

	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock sets the clock used for signature skew and thread idleness.
func WithClock(c clock.Clock) Option {
	return func(h *Handler) { h.clock = c }
}

// WithMetrics counts handled requests.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithTranscript records chat turns and feedback.
func WithTranscript(l transcript.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// NewHandler creates a Handler recording feedback into storage.
func NewHandler(settings Settings, storage store.Storage, opts ...Option) *Handler {
	if settings.Styling == nil {
		settings.Styling = map[string]any{}
	}
	h := &Handler{
		settings: settings,
		storage:  storage,
		threads:  newThreadRegistry(),
		log:      transcript.Nop{},
		clock:    clock.Real{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the backend routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/deploy", func(r chi.Router) {
			r.Get("/validateToken", h.ValidateToken)
			r.Get("/getEmbedStyling", h.EmbedStyling)
		})
		r.Route("/widget", func(r chi.Router) {
			r.Post("/chat", h.Chat)
			r.Post("/feedback", h.Feedback)
			r.Get("/feedback/{messageID}", h.GetFeedback)
		})
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
