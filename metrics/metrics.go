// Package metrics exposes Prometheus collectors for the point engine.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/point-engine/point"
)

// Collector implements point.Observer and the HTTP middleware.
type Collector struct {
	reg prometheus.Gatherer

	Operations  *prometheus.CounterVec
	LockWait    prometheus.Histogram
	HTTPLatency *prometheus.HistogramVec
}

// New registers the collectors on reg. lockKeys reports the lock registry
// size; pass nil to skip that gauge.
func New(reg *prometheus.Registry, lockKeys func() int) *Collector {
	c := &Collector{
		reg: reg,
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "point_operations_total",
				Help: "Point mutations by type and result.",
			},
			[]string{"type", "result"},
		),
		LockWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "point_lock_wait_seconds",
				Help:    "Time spent waiting for a per-user lock.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
		),
		HTTPLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_requests_latency_seconds",
				Help:    "Latency of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	reg.MustRegister(c.Operations, c.LockWait, c.HTTPLatency)
	if lockKeys != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "point_lock_keys",
				Help: "Users with an allocated lock. Locks are never evicted.",
			},
			func() float64 { return float64(lockKeys()) },
		))
	}
	return c
}

func (c *Collector) ObserveLockWait(d time.Duration) {
	c.LockWait.Observe(d.Seconds())
}

func (c *Collector) ObserveOperation(t point.TransactionType, err error) {
	c.Operations.WithLabelValues(string(t), result(err)).Inc()
}

// result maps an operation error to a low-cardinality label.
func result(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, point.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, point.ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, point.ErrPerTransactionLimitExceeded):
		return "per_transaction_limit_exceeded"
	case errors.Is(err, point.ErrInsufficientBalance):
		return "insufficient_balance"
	default:
		return "error"
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Middleware records request latency labelled by chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		c.HTTPLatency.WithLabelValues(r.Method, routePattern(r), strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if patt := rc.RoutePattern(); patt != "" {
			return patt
		}
	}
	return "unmatched"
}
