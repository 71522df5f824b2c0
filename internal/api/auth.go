package api

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"

	"github.com/symplistic/contentiq-widget/internal/domain"
	"github.com/symplistic/contentiq-widget/internal/metrics"
	"github.com/symplistic/contentiq-widget/internal/signer"
)

var (
	errUnknownAgent = errors.New("unknown agent")
	errBadToken     = errors.New("invalid token")
)

// authenticate checks that auth carries a known agent, its token and a
// fresh signature.
func (h *Handler) authenticate(auth domain.AuthPayload) error {
	secret, ok := h.settings.Agents[auth.AgentID]
	if !ok {
		return errUnknownAgent
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(auth.Token)) != 1 {
		return errBadToken
	}
	if err := signer.Verify(secret, auth.AgentID, auth.TS, auth.Sig, h.clock.Now(), h.settings.MaxSkew); err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	return nil
}

func authFromQuery(r *http.Request) domain.AuthPayload {
	q := r.URL.Query()
	return domain.AuthPayload{
		AgentID: q.Get("agent_id"),
		Token:   q.Get("token"),
		TS:      q.Get("ts"),
		Sig:     q.Get("sig"),
	}
}

// rejectAuth writes the 401 for a failed authenticate call.
func (h *Handler) rejectAuth(w http.ResponseWriter, endpoint, agentID string, err error) {
	h.logger.Warn("rejected request", "endpoint", endpoint, "agent_id", agentID, "error", err)
	h.metrics.Request(endpoint, metrics.OutcomeRejected)
	Error(w, http.StatusUnauthorized, "unauthorized")
}
