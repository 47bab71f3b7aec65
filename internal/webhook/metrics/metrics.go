package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	deliveries      *prometheus.CounterVec
	deliveryLatency *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_webhook_deliveries_total",
			Help: "Webhook delivery attempts by outcome.",
		}, []string{"outcome"}),
		deliveryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kyc_webhook_delivery_duration_seconds",
			Help:    "Webhook delivery round-trip latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveDelivery(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(outcome).Inc()
	m.deliveryLatency.WithLabelValues(outcome).Observe(d.Seconds())
}
