// Package metrics exports cart batch outcomes to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rl1809/mall-cart/internal/core/domain"
	"github.com/rl1809/mall-cart/internal/port"
)

type BatchMetrics struct {
	batches *prometheus.CounterVec
	items   *prometheus.CounterVec
}

func NewBatchMetrics(namespace string) *BatchMetrics {
	return &BatchMetrics{
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "line_batches_total",
			Help:      "Committed cart line batches by operation",
		}, []string{"operation"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "line_items_total",
			Help:      "Cart line batch items by operation and outcome",
		}, []string{"operation", "outcome"}),
	}
}

var _ port.BatchObserver = (*BatchMetrics)(nil)

// Register adds the collectors to reg.
func (m *BatchMetrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.batches, m.items} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *BatchMetrics) ObserveBatch(operation string, report domain.WarningReport) {
	m.batches.WithLabelValues(operation).Inc()
	for _, outcome := range domain.Outcomes {
		if n := len(report.Bucket(outcome)); n > 0 {
			m.items.WithLabelValues(operation, string(outcome)).Add(float64(n))
		}
	}
}
