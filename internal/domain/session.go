// Package domain contains core domain types for the contentIQ widget client.
package domain

import (
	"strings"
	"time"
)

// SessionKeyPrefix prefixes the storage key of every persisted session record.
const SessionKeyPrefix = "contentiq_session_"

// NoSessionHeaderValue is sent in X-Session-Id when no session exists yet.
const NoSessionHeaderValue = "new"

// SessionRecord is the persisted conversation session for one agent.
// Timestamps are epoch milliseconds, matching the stored JSON layout.
type SessionRecord struct {
	SessionID    string `json:"sessionId"`
	LastActivity int64  `json:"lastActivity"`
	Created      int64  `json:"created"`
}

// SessionKey returns the storage key for an agent's session record.
func SessionKey(agentID string) string {
	return SessionKeyPrefix + agentID
}

// LastActivityTime returns LastActivity as a time.Time.
func (r *SessionRecord) LastActivityTime() time.Time {
	return time.UnixMilli(r.LastActivity)
}

// CreatedTime returns Created as a time.Time.
func (r *SessionRecord) CreatedTime() time.Time {
	return time.UnixMilli(r.Created)
}

// SessionHeader returns the X-Session-Id value for a session id.
func SessionHeader(sessionID string) string {
	if sessionID == "" {
		return NoSessionHeaderValue
	}
	return sessionID
}

// ThreadID builds the backend thread identifier for feedback calls.
func ThreadID(agentID, sessionID string) string {
	return "widget_" + agentID + "_" + sessionID
}

// legacyMarkers are fragments of user-agent strings that the deprecated
// session id scheme embedded.
var legacyMarkers = []string{"Mozilla", "Chrome", "Safari"}

// IsLegacySessionID reports whether id was produced by the old scheme.
func IsLegacySessionID(id string) bool {
	for _, m := range legacyMarkers {
		if strings.Contains(id, m) {
			return true
		}
	}
	return false
}

// SessionInfo is a debugging snapshot of the current session.
type SessionInfo struct {
	SessionID            string        `json:"session_id"`
	LastActivity         time.Time     `json:"last_activity"`
	Created              time.Time     `json:"created"`
	SinceActivity        time.Duration `json:"since_activity"`
	ThreadTimedOut       bool          `json:"thread_timed_out"`
	ThreadTimeoutMinutes int           `json:"thread_timeout_minutes"`
}
