package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poke_deliveries_total",
			Help: "Total number of broker deliveries received by the agent (count)",
		},
		[]string{"broker", "status"},
	)

	ChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poke_checks_total",
			Help: "Total number of HTTP checks executed (count)",
		},
		[]string{"result"},
	)

	CheckLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poke_check_latency_ms",
			Help:    "Latency of successful HTTP checks in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"status_class"},
	)

	ChecksInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "poke_checks_in_flight",
			Help: "Number of HTTP checks currently running (count)",
		},
	)

	BufferedResults = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "poke_buffered_results",
			Help: "Number of check outcomes taken by the last flush (count)",
		},
	)

	FlushesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "poke_flushes_total",
			Help: "Total number of buffer flush ticks (count)",
		},
	)

	PointsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poke_points_written_total",
			Help: "Total number of metric points handed to the store (count)",
		},
		[]string{"store", "status"},
	)

	StoreWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poke_store_write_duration_ms",
			Help:    "Duration of store writes in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"store"},
	)

	AcksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poke_acks_total",
			Help: "Total number of acknowledgements sent to the broker (count)",
		},
		[]string{"broker", "status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poke_retry_attempts_total",
			Help: "Total number of retried operations (count)",
		},
		[]string{"operation"},
	)

	AdminRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poke_admin_requests_total",
			Help: "Total number of admin API requests seen by the rate limiter (count)",
		},
		[]string{"status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)
)

var registerOnce sync.Once

// RegisterAgentMetrics registers every collector with the default registry.
// Calling it more than once is a no-op.
func RegisterAgentMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			DeliveriesTotal,
			ChecksTotal,
			CheckLatency,
			ChecksInFlight,
			BufferedResults,
			FlushesTotal,
			PointsWrittenTotal,
			StoreWriteDuration,
			AcksTotal,
			RetryAttemptsTotal,
			AdminRequestsTotal,
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
		)
	})
}

func IncDelivery(broker, status string) {
	DeliveriesTotal.WithLabelValues(broker, status).Inc()
}

func IncCheck(result string) {
	ChecksTotal.WithLabelValues(result).Inc()
}

// ObserveCheckLatency records latencyMs under the status class (2xx, 3xx...)
// of the response.
func ObserveCheckLatency(status int, latencyMs int64) {
	CheckLatency.WithLabelValues(StatusClass(status)).Observe(float64(latencyMs))
}

func StatusClass(status int) string {
	switch {
	case status >= 100 && status < 600:
		return string(rune('0'+status/100)) + "xx"
	default:
		return "other"
	}
}

func IncPointsWritten(store, status string, n int) {
	PointsWrittenTotal.WithLabelValues(store, status).Add(float64(n))
}

func ObserveStoreWriteDuration(store string, duration time.Duration) {
	StoreWriteDuration.WithLabelValues(store).Observe(float64(duration.Milliseconds()))
}

func IncAck(broker, status string) {
	AcksTotal.WithLabelValues(broker, status).Inc()
}

func IncRetryAttempt(operation string) {
	RetryAttemptsTotal.WithLabelValues(operation).Inc()
}

func IncAdminRequest(status string) {
	AdminRequestsTotal.WithLabelValues(status).Inc()
}
