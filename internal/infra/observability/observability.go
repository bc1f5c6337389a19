// Package observability exposes Prometheus metrics for the wallet service:
// ledger operation counters, payment session lifecycle counters, and HTTP
// request durations.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// LedgerOperations counts ledger operations by name and outcome code.
var LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wallet",
	Subsystem: "ledger",
	Name:      "operations_total",
	Help:      "Total ledger operations by name and outcome code.",
}, []string{"operation", "code"})

// ─── Session Metrics ────────────────────────────────────────────────────────

// SessionsOpened counts payment sessions created.
var SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "wallet",
	Subsystem: "sessions",
	Name:      "opened_total",
	Help:      "Total payment sessions created.",
})

// SessionsConfirmed counts payment sessions confirmed.
var SessionsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "wallet",
	Subsystem: "sessions",
	Name:      "confirmed_total",
	Help:      "Total payment sessions confirmed.",
})

// SessionsExpired counts payment sessions expired, by how the expiry was
// observed: "sweep" for the background sweeper, "confirm" for a
// confirmation attempt that arrived past the deadline.
var SessionsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wallet",
	Subsystem: "sessions",
	Name:      "expired_total",
	Help:      "Total payment sessions expired, by detection path.",
}, []string{"via"})

// ─── Notification Metrics ───────────────────────────────────────────────────

// NotificationFailures counts confirmation-code deliveries that failed.
// Delivery is best-effort, so this counter is the only trace a failure
// leaves besides the log.
var NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "wallet",
	Subsystem: "notify",
	Name:      "failures_total",
	Help:      "Total confirmation-code deliveries that failed.",
})

// ─── HTTP Metrics ───────────────────────────────────────────────────────────

// HTTPDuration tracks request latency by route and status.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "wallet",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request duration by route and status.",
	Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
}, []string{"route", "status"})

// Middleware records request durations. route should be the registered
// pattern, not the raw path, to keep cardinality bounded.
func Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		HTTPDuration.WithLabelValues(route, strconv.Itoa(sw.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
