package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/symplistic/contentiq-widget/internal/store"
)

// pinger is implemented by storage backends that hold a connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	storage store.Storage
	timeout time.Duration
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(storage store.Storage) *HealthHandler {
	return &HealthHandler{storage: storage, timeout: 5 * time.Second}
}

// Health returns the health status of the API and its storage.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok", "storage": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if p, ok := h.storage.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			slog.Error("Health check failed", "error", err)
			status["status"] = "degraded"
			checks["storage"] = "unreachable"
			statusCode = http.StatusServiceUnavailable
		}
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the detailed health route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}
