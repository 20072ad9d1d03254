/*
handlers_test.go - HTTP tests for point endpoints

Tests for:
- Balance and history reads, including unknown users
- Charge/use with object and bare-number bodies
- 400 mapping for bad ids, bad bodies and rejected transitions
- 500 mapping for store failures
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/point-engine/metrics"
	"github.com/warp/point-engine/point"
	"github.com/warp/point-engine/point/store"
)

var testNow = time.Date(2025, time.April, 1, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	mem := store.NewMemory(store.WithClock(func() time.Time { return testNow }))
	svc := point.NewService(mem, point.WithClock(func() time.Time { return testNow }))
	srv := httptest.NewServer(NewRouter(NewHandler(svc, nil), RouterOptions{}))
	t.Cleanup(srv.Close)
	return srv, mem
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// =============================================================================
// READS
// =============================================================================

func TestGetPoint_UnknownUser_Zero(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/point/7", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[UserPointDTO](t, resp)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, int64(0), got.Point)
}

func TestGetHistories_UnknownUser_EmptyArray(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/point/7/histories", "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[[]PointHistoryDTO](t, resp)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

// =============================================================================
// MUTATIONS
// =============================================================================

func TestChargeAndUse_Flow(t *testing.T) {
	// GIVEN: A fresh user
	// WHEN: Charging 1,000 (object body) and using 300 (bare number)
	// THEN: Balance is 700 and the history lists both in order

	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodPatch, "/point/1/charge", `{"amount": 1000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1_000), decode[UserPointDTO](t, resp).Point)

	resp = do(t, srv, http.MethodPatch, "/point/1/use", "300")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(700), decode[UserPointDTO](t, resp).Point)

	resp = do(t, srv, http.MethodGet, "/point/1", "")
	assert.Equal(t, int64(700), decode[UserPointDTO](t, resp).Point)

	resp = do(t, srv, http.MethodGet, "/point/1/histories", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hist := decode[[]PointHistoryDTO](t, resp)
	require.Len(t, hist, 2)
	assert.Equal(t, "CHARGE", hist[0].Type)
	assert.Equal(t, int64(1_000), hist[0].Amount)
	assert.Equal(t, "USE", hist[1].Type)
	assert.Equal(t, int64(300), hist[1].Amount)
	assert.Equal(t, testNow.Format(time.RFC3339Nano), hist[1].Timestamp)
}

func TestMutations_BadRequests(t *testing.T) {
	srv, mem := newTestServer(t)
	_, err := mem.StoreBalance(context.Background(), 1, 99_000)
	require.NoError(t, err)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"non-numeric id", "/point/abc/charge", "100"},
		{"zero id", "/point/0/charge", "100"},
		{"negative id", "/point/-3/use", "100"},
		{"malformed body", "/point/1/charge", `{"amount": "lots"}`},
		{"empty body", "/point/1/charge", ""},
		{"zero amount", "/point/1/charge", "0"},
		{"negative amount", "/point/1/use", `{"amount": -5}`},
		{"charge past maximum", "/point/1/charge", "1001"},
		{"use above per-call cap", "/point/1/use", "10001"},
		{"use above balance", "/point/2/use", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, srv, http.MethodPatch, tt.path, tt.body)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			got := decode[ErrorResponse](t, resp)
			assert.Equal(t, "400", got.Code)
			assert.NotEmpty(t, got.Message)
		})
	}

	// nothing above changed user 1
	resp := do(t, srv, http.MethodGet, "/point/1", "")
	assert.Equal(t, int64(99_000), decode[UserPointDTO](t, resp).Point)
	resp = do(t, srv, http.MethodGet, "/point/1/histories", "")
	assert.Empty(t, decode[[]PointHistoryDTO](t, resp))
}

func TestGetPoint_InvalidID(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/point/0", "")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	got := decode[ErrorResponse](t, resp)
	assert.Contains(t, got.Validation, "id")
}

func TestConcurrentCharges_OverHTTP(t *testing.T) {
	srv, mem := newTestServer(t)
	_, err := mem.StoreBalance(context.Background(), 1, 90_000)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = map[int]int{}
	)
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodPatch, srv.URL+"/point/1/charge", strings.NewReader("1000"))
			resp, err := srv.Client().Do(req)
			if !assert.NoError(t, err) {
				return
			}
			resp.Body.Close()
			mu.Lock()
			statuses[resp.StatusCode]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, statuses[http.StatusOK])
	assert.Equal(t, 5, statuses[http.StatusBadRequest])
	resp := do(t, srv, http.MethodGet, "/point/1", "")
	assert.Equal(t, point.MaxChargePoint, decode[UserPointDTO](t, resp).Point)
}

// =============================================================================
// SERVER ERRORS AND INFRASTRUCTURE
// =============================================================================

type brokenService struct{}

var errBroken = errors.New("disk on fire")

func (brokenService) Query(context.Context, point.UserID) (point.Balance, error) {
	return point.Balance{}, errBroken
}
func (brokenService) History(context.Context, point.UserID) ([]point.HistoryEntry, error) {
	return nil, errBroken
}
func (brokenService) Charge(context.Context, point.UserID, int64) (point.Balance, error) {
	return point.Balance{}, errBroken
}
func (brokenService) Use(context.Context, point.UserID, int64) (point.Balance, error) {
	return point.Balance{}, errBroken
}

func TestStoreFailure_InternalError(t *testing.T) {
	srv := httptest.NewServer(NewRouter(NewHandler(brokenService{}, nil), RouterOptions{}))
	t.Cleanup(srv.Close)

	for _, path := range []string{"/point/1", "/point/1/histories"} {
		resp := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		got := decode[ErrorResponse](t, resp)
		assert.NotContains(t, got.Message, "disk on fire")
	}
	resp := do(t, srv, http.MethodPatch, "/point/1/charge", "10")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHealthzAndMetrics(t *testing.T) {
	mem := store.NewMemory()
	reg := prometheus.NewRegistry()
	var svc *point.Service
	collector := metrics.New(reg, func() int { return svc.LockCount() })
	svc = point.NewService(mem, point.WithObserver(collector))
	srv := httptest.NewServer(NewRouter(NewHandler(svc, nil), RouterOptions{Metrics: collector}))
	t.Cleanup(srv.Close)

	resp := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	do(t, srv, http.MethodPatch, "/point/1/charge", "10")

	resp = do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	assert.Contains(t, body, `point_operations_total{result="success",type="CHARGE"} 1`)
	assert.Contains(t, body, "point_lock_keys 1")
	assert.Contains(t, body, `route="/point/{id}/charge"`)
}

type cancelledService struct{ brokenService }

func (cancelledService) Charge(context.Context, point.UserID, int64) (point.Balance, error) {
	return point.Balance{}, context.Canceled
}

func TestCancelledRequest_RecordedAsClientClosed(t *testing.T) {
	// GIVEN: A service call that fails because the client went away
	// WHEN: The handler maps the error
	// THEN: 499 is written and the latency series carries that status

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg, nil)
	router := NewRouter(NewHandler(cancelledService{}, nil), RouterOptions{Metrics: collector})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/point/1/charge", strings.NewReader("10")))

	assert.Equal(t, statusClientClosedRequest, rec.Code)
	assert.Empty(t, rec.Body.String())

	families, err := reg.Gather()
	require.NoError(t, err)
	var statuses []string
	for _, mf := range families {
		if mf.GetName() != "http_requests_latency_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "status" {
					statuses = append(statuses, lp.GetValue())
				}
			}
		}
	}
	assert.Equal(t, []string{"499"}, statuses)
}
