package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the checkout module.
type Metrics struct {
	OrdersPlaced     prometheus.Counter
	BinderRejections prometheus.Counter
	EmailFailures    prometheus.Counter
	PlaceLatency     prometheus.Histogram
}

// New creates a Metrics instance with all checkout metrics registered.
func New() *Metrics {
	return &Metrics{
		OrdersPlaced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "emporia_orders_placed_total",
			Help: "Total orders committed",
		}),
		BinderRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "emporia_checkout_rejections_total",
			Help: "Total place-order submissions rejected by validation",
		}),
		EmailFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "emporia_confirmation_email_failures_total",
			Help: "Confirmation emails that could not be delivered",
		}),
		PlaceLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "emporia_place_order_duration_seconds",
			Help:    "Duration of the full order placement including commit",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// IncrementOrdersPlaced records a committed order.
func (m *Metrics) IncrementOrdersPlaced() {
	if m != nil {
		m.OrdersPlaced.Inc()
	}
}

// IncrementBinderRejections records a rejected submission.
func (m *Metrics) IncrementBinderRejections() {
	if m != nil {
		m.BinderRejections.Inc()
	}
}

// IncrementEmailFailures records a failed confirmation delivery.
func (m *Metrics) IncrementEmailFailures() {
	if m != nil {
		m.EmailFailures.Inc()
	}
}

// ObservePlaceLatency records the duration of one placement.
func (m *Metrics) ObservePlaceLatency(d time.Duration) {
	if m != nil {
		m.PlaceLatency.Observe(d.Seconds())
	}
}
