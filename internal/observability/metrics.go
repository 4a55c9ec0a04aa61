package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveWindows       prometheus.Gauge
	StreamDeltas        prometheus.Counter
	StreamFailures      *prometheus.CounterVec
	RetrievalFailures   prometheus.Counter
	PersistenceOutcomes *prometheus.CounterVec
	FirstDeltaLatency   prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveWindows: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_memory_windows",
			Help:      "Number of live per-user recent-turn windows.",
		}),
		StreamDeltas: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_deltas_total",
			Help:      "Model deltas relayed to clients.",
		}),
		StreamFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_failures_total",
			Help:      "Stream terminations by cause.",
		}, []string{"cause"}),
		RetrievalFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_failures_total",
			Help:      "Long-term recall lookups that degraded to empty.",
		}),
		PersistenceOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_outcomes_total",
			Help:      "Persistence fan-out outcomes by backend and status.",
		}, []string{"backend", "status"}),
		FirstDeltaLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_delta_latency_ms",
			Help:      "Latency to the first relayed model delta in milliseconds.",
			Buckets:   []float64{50, 100, 200, 400, 700, 1200, 2000, 5000},
		}),
	}
}

func (m *Metrics) ObserveFirstDeltaLatency(d time.Duration) {
	m.FirstDeltaLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
