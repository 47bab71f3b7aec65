package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	sessionsCreated prometheus.Counter
	evidenceUploads *prometheus.CounterVec
	dispatches      *prometheus.CounterVec
	finalizations   *prometheus.CounterVec
	uploadBytes     prometheus.Histogram
	uploadLatency   prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "kyc_sessions_created_total",
			Help: "Verification sessions created.",
		}),
		evidenceUploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_evidence_uploads_total",
			Help: "Accepted evidence uploads by media type.",
		}, []string{"media_type"}),
		dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_score_dispatches_total",
			Help: "Scoring job dispatch attempts by outcome.",
		}, []string{"outcome"}),
		finalizations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_session_finalizations_total",
			Help: "Worker callbacks applied by resulting status.",
		}, []string{"status"}),
		uploadBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kyc_evidence_upload_bytes",
			Help:    "Size of accepted evidence uploads.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		uploadLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kyc_evidence_upload_duration_seconds",
			Help:    "End-to-end evidence intake latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) EvidenceUploaded(mediaType string, sizeBytes int64, d time.Duration) {
	if m == nil {
		return
	}
	m.evidenceUploads.WithLabelValues(mediaType).Inc()
	m.uploadBytes.Observe(float64(sizeBytes))
	m.uploadLatency.Observe(d.Seconds())
}

func (m *Metrics) DispatchAttempt(outcome string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Finalized(status string) {
	if m == nil {
		return
	}
	m.finalizations.WithLabelValues(status).Inc()
}
