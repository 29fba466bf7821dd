package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	platformCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmpost_platform_calls_total",
			Help: "Mattermost API calls by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	platformCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mmpost_platform_call_duration_seconds",
			Help:    "Mattermost API call latency.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mmpost_deliveries_total",
			Help: "Delivery requests by result (success or failure kind).",
		},
		[]string{"result"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(platformCalls, platformCallDuration, deliveries)
	})
}

// Handler returns the HTTP handler exposing the default registry
func Handler() http.Handler {
	MustRegister()
	return promhttp.Handler()
}

// ObservePlatformCall records one Mattermost API call
func ObservePlatformCall(operation, outcome string, elapsed time.Duration) {
	platformCalls.WithLabelValues(operation, outcome).Inc()
	platformCallDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// IncDelivery records the result of one delivery
func IncDelivery(result string) {
	deliveries.WithLabelValues(result).Inc()
}
