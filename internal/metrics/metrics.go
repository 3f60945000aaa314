package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gophersession"

// Outcome of successful auth operation
// Failed operations are labeled with error code
const OutcomeOK = "ok"

type Metrics struct {
	AuthEvents   *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// Register collectors in reg
// Every server instance gets its own registry, so tests may create as many as they want
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		AuthEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Auth operations by operation and outcome",
		}, []string{"operation", "outcome"}),

		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time spent serving HTTP requests",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.0, 12), // 1ms to ~2s
		}, []string{"method", "status"}),
	}
}

// Count auth operation. Safe to call on nil
func (m *Metrics) AuthEvent(operation string, outcome string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(operation, outcome).Inc()
}

// Observe served request. Safe to call on nil
func (m *Metrics) ObserveHTTP(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, strconv.Itoa(status)).Observe(duration.Seconds())
}

// Prometheus exposition of everything gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
