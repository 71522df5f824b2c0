package domain

// AuthPayload is attached to every backend request.
type AuthPayload struct {
	AgentID string `json:"agent_id"`
	Token   string `json:"token"`
	TS      string `json:"ts"`
	Sig     string `json:"sig"`
}
