package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/symplistic/contentiq-widget/internal/domain"
)

func TestIsExpiredBoundary(t *testing.T) {
	t.Parallel()

	const timeout = int64(5 * 60 * 1000)
	rec := &domain.SessionRecord{SessionID: "s", LastActivity: 1_000_000}

	assert.False(t, IsExpired(rec, rec.LastActivity+timeout-1, timeout))
	assert.True(t, IsExpired(rec, rec.LastActivity+timeout, timeout))
	assert.True(t, IsExpired(rec, rec.LastActivity+timeout+1, timeout))
	assert.False(t, IsExpired(rec, rec.LastActivity, timeout))
	assert.False(t, IsExpired(nil, 1<<62, timeout))
}

func TestTimeoutFromMinutes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5*time.Minute, TimeoutFromMinutes(0))
	assert.Equal(t, 5*time.Minute, TimeoutFromMinutes(-3))
	assert.Equal(t, 15*time.Minute, TimeoutFromMinutes(15))
}
