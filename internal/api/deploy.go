package api

import (
	"net/http"

	"github.com/symplistic/contentiq-widget/internal/metrics"
)

// ValidateToken answers the widget's start-up token check.
func (h *Handler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	auth := authFromQuery(r)
	if err := h.authenticate(auth); err != nil {
		h.rejectAuth(w, "validate", auth.AgentID, err)
		return
	}
	h.metrics.Request("validate", metrics.OutcomeOK)
	JSON(w, http.StatusOK, map[string]any{"valid": true, "agent_id": auth.AgentID})
}

// EmbedStyling returns the configured theme overrides.
func (h *Handler) EmbedStyling(w http.ResponseWriter, r *http.Request) {
	auth := authFromQuery(r)
	if err := h.authenticate(auth); err != nil {
		h.rejectAuth(w, "styling", auth.AgentID, err)
		return
	}
	h.metrics.Request("styling", metrics.OutcomeOK)
	JSON(w, http.StatusOK, map[string]any{"styling": h.settings.Styling})
}
