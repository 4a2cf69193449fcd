package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	registryRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metasync",
			Subsystem: "registry",
			Name:      "requests_total",
			Help:      "Total registry HTTP requests.",
		},
		[]string{"collection", "method", "status"},
	)
	registryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "metasync",
			Subsystem: "registry",
			Name:      "request_duration_seconds",
			Help:      "Registry HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"collection", "method", "status"},
	)
	reconcileVerbs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "metasync",
			Subsystem: "reconcile",
			Name:      "verbs_total",
			Help:      "Verbs resolved per collection.",
		},
		[]string{"collection", "verb"},
	)
	pendingRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "metasync",
			Subsystem: "reconcile",
			Name:      "pending_requests",
			Help:      "Identifiers still awaiting async approval.",
		},
		[]string{"definition"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(registryRequests, registryDuration,
			reconcileVerbs, pendingRequests)
	})
}

func RecordRegistryRequest(collection, method string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	registryRequests.WithLabelValues(collection, method, statusLabel).Inc()
	registryDuration.WithLabelValues(collection, method, statusLabel).Observe(duration.Seconds())
}

func RecordVerb(collection, verb string) {
	RegisterMetrics()
	reconcileVerbs.WithLabelValues(collection, verb).Inc()
}

func SetPendingRequests(definition string, count int) {
	RegisterMetrics()
	pendingRequests.WithLabelValues(definition).Set(float64(count))
}
