package session

import (
	"time"

	"github.com/symplistic/contentiq-widget/internal/domain"
)

// DefaultThreadTimeout applies when configuration gives no usable value.
const DefaultThreadTimeout = 5 * time.Minute

// IsExpired reports whether the thread went idle for at least timeoutMs.
func IsExpired(rec *domain.SessionRecord, nowMs, timeoutMs int64) bool {
	if rec == nil {
		return false
	}
	return nowMs-rec.LastActivity >= timeoutMs
}

// TimeoutFromMinutes converts the configured minutes, falling back to the
// default for non-positive values.
func TimeoutFromMinutes(minutes int) time.Duration {
	if minutes <= 0 {
		return DefaultThreadTimeout
	}
	return time.Duration(minutes) * time.Minute
}
