package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(m *Metrics, get func() prometheus.Counter) float64 {
	if m == nil {
		return 0
	}
	var out dto.Metric
	if err := get().Write(&out); err != nil {
		return 0
	}
	return out.GetCounter().GetValue()
}
