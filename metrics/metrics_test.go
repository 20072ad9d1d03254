package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/point-engine/metrics"
	"github.com/warp/point-engine/point"
)

func TestObserveOperation_ResultLabels(t *testing.T) {
	c := metrics.New(prometheus.NewRegistry(), nil)

	limit := &point.TransitionError{Kind: point.ErrLimitExceeded}
	c.ObserveOperation(point.TxCharge, nil)
	c.ObserveOperation(point.TxCharge, nil)
	c.ObserveOperation(point.TxCharge, limit)
	c.ObserveOperation(point.TxUse, &point.TransitionError{Kind: point.ErrInsufficientBalance})
	c.ObserveOperation(point.TxUse, assert.AnError)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Operations.WithLabelValues("CHARGE", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Operations.WithLabelValues("CHARGE", "limit_exceeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Operations.WithLabelValues("USE", "insufficient_balance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Operations.WithLabelValues("USE", "error")))
}

func TestLockKeysGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	n := 3
	metrics.New(reg, func() int { return n })

	count, err := testutil.GatherAndCount(reg, "point_lock_keys")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "point_lock_keys" {
			assert.Equal(t, 3.0, mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
}

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.New(reg, nil)

	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/point/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, path := range []string{"/point/1", "/point/2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	count, err := testutil.GatherAndCount(reg, "http_requests_latency_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "both requests share one route series")
}

func TestObserveLockWait(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.New(reg, nil)

	c.ObserveLockWait(2 * time.Millisecond)

	count, err := testutil.GatherAndCount(reg, "point_lock_wait_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
