package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for basket mutations.
type Metrics struct {
	Updates *prometheus.CounterVec
}

// New creates a Metrics instance with all basket metrics registered.
func New() *Metrics {
	return &Metrics{
		Updates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "emporia_basket_updates_total",
			Help: "Basket mutations by outcome",
		}, []string{"outcome"}), // outcome: "added", "out_of_stock", "removed"
	}
}

// IncrementUpdate records a basket mutation outcome.
func (m *Metrics) IncrementUpdate(outcome string) {
	if m != nil {
		m.Updates.WithLabelValues(outcome).Inc()
	}
}
