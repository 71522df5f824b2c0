// Package metrics exposes Prometheus counters for widget traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeOK         = "ok"
	OutcomeStatus     = "status_error"
	OutcomeTransport  = "transport_error"
	OutcomeSuppressed = "suppressed"
	OutcomeRejected   = "rejected"
)

// Metrics groups the counters. A nil *Metrics records nothing.
type Metrics struct {
	requests  *prometheus.CounterVec
	feedback  *prometheus.CounterVec
	rotations *prometheus.CounterVec
}

// New registers the counters on reg. A nil reg uses a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentiq",
			Name:      "requests_total",
			Help:      "Backend requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		feedback: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentiq",
			Name:      "feedback_total",
			Help:      "Feedback signals by type and outcome.",
		}, []string{"type", "outcome"}),
		rotations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentiq",
			Name:      "session_rotations_total",
			Help:      "Session replacements by reason.",
		}, []string{"reason"}),
	}
}

// Request counts one backend call.
func (m *Metrics) Request(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, outcome).Inc()
}

// Feedback counts one feedback signal.
func (m *Metrics) Feedback(feedbackType, outcome string) {
	if m == nil {
		return
	}
	m.feedback.WithLabelValues(feedbackType, outcome).Inc()
}

// Rotation counts one session replacement.
func (m *Metrics) Rotation(reason string) {
	if m == nil {
		return
	}
	m.rotations.WithLabelValues(reason).Inc()
}

// RequestCount returns the current value for tests and diagnostics.
func (m *Metrics) RequestCount(endpoint, outcome string) float64 {
	return counterValue(m, func() prometheus.Counter { return m.requests.WithLabelValues(endpoint, outcome) })
}

// FeedbackCount returns the current value for tests and diagnostics.
func (m *Metrics) FeedbackCount(feedbackType, outcome string) float64 {
	return counterValue(m, func() prometheus.Counter { return m.feedback.WithLabelValues(feedbackType, outcome) })
}

// RotationCount returns the current value for tests and diagnostics.
func (m *Metrics) RotationCount(reason string) float64 {
	return counterValue(m, func() prometheus.Counter { return m.rotations.WithLabelValues(reason) })
}
