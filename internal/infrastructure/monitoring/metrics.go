package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kidpech/authbridge/internal/domain/login"
)

var (
	requestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authbridge_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	latencyHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authbridge_http_request_duration_seconds",
			Help:    "Request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
	attemptCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authbridge_login_attempts_total",
			Help: "Finished login attempts by terminal state and error kind",
		},
		[]string{"provider", "state", "kind"},
	)
	exchangeHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authbridge_exchange_duration_seconds",
			Help:    "Backend exchange latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	registerOnce sync.Once
)

// Init registers custom collectors with the default registry.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(requestCounter, latencyHistogram, attemptCounter, exchangeHistogram)
	})
}

// ObserveRequest records metrics.
func ObserveRequest(path, method, status string, seconds float64) {
	requestCounter.WithLabelValues(path, method, status).Inc()
	latencyHistogram.WithLabelValues(path, method).Observe(seconds)
}

// AttemptObserver feeds login attempts into Prometheus.
type AttemptObserver struct{}

// AttemptFinished implements login.Observer.
func (AttemptObserver) AttemptFinished(attempt *login.Attempt, exchange time.Duration) {
	attemptCounter.WithLabelValues(attempt.Provider, string(attempt.State), attempt.ErrorKind).Inc()
	if exchange > 0 {
		exchangeHistogram.WithLabelValues(attempt.Provider).Observe(exchange.Seconds())
	}
}
