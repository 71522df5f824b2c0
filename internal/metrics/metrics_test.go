package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Request("chat", OutcomeOK)
	m.Request("chat", OutcomeOK)
	m.Feedback("neutral", OutcomeSuppressed)
	m.Rotation("server_header")

	assert.Equal(t, 2.0, m.RequestCount("chat", OutcomeOK))
	assert.Equal(t, 1.0, m.FeedbackCount("neutral", OutcomeSuppressed))
	assert.Equal(t, 1.0, m.RotationCount("server_header"))
	n, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Request("chat", OutcomeOK)
	m.Feedback("helpful", OutcomeOK)
	m.Rotation("x")
	assert.Zero(t, m.RequestCount("chat", OutcomeOK))
}
