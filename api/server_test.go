package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/metrics"
	"github.com/rustyeddy/backtester/sim"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func d(i int) time.Time { return time.Date(2024, 5, 1+i, 0, 0, 0, 0, time.UTC) }

func sampleRun(runID string, fills []sim.Fill) journal.Run {
	equity := []sim.EquityPoint{
		{Date: d(1), Cash: 0, Holdings: 1000, Equity: 1000},
		{Date: d(2), Cash: 0, Holdings: 900, Equity: 900},
		{Date: d(3), Cash: 1100, Equity: 1100},
	}
	return journal.Run{
		RunID:          runID,
		Created:        d(10),
		Strategy:       "buy-and-hold",
		Symbols:        []string{"AAA"},
		Start:          d(0),
		End:            d(3),
		InitialCapital: 1000,
		FinalEquity:    1100,
		Metrics:        metrics.Compute(equity, fills, 252),
		Equity:         equity,
		Fills:          fills,
		Trades:         metrics.RoundTrips(fills),
		Drawdowns:      metrics.Drawdowns(equity),
	}
}

func newTestServer(t *testing.T) (http.Handler, *journal.SQLite) {
	t.Helper()

	j, err := journal.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	won := []sim.Fill{
		{Symbol: "AAA", Date: d(1), Bar: 1, Quantity: 100, Price: 10, CashDelta: -1000, Intent: market.Long},
		{Symbol: "AAA", Date: d(3), Bar: 3, Quantity: -100, Price: 11, CashDelta: 1100, Intent: market.Flat},
	}
	require.NoError(t, j.RecordRun(sampleRun("01J0000000000000000000000A", won)))
	require.NoError(t, j.RecordRun(sampleRun("01J0000000000000000000000B", nil)))

	return NewServer(j, ":0", nil).Handler(), j
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)

	rec, body := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestListRuns(t *testing.T) {
	h, _ := newTestServer(t)

	rec, body := get(t, h, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, body["count"])

	data := body["data"].([]any)
	first := data[0].(map[string]any)
	assert.Equal(t, "01J0000000000000000000000B", first["run_id"], "newest first")
	m := first["metrics"].(map[string]any)
	assert.Nil(t, m["profit_factor"], "no trades")

	m = data[1].(map[string]any)["metrics"].(map[string]any)
	assert.Equal(t, "inf", m["profit_factor"], "no losing trade")
	assert.Equal(t, 1.0, m["trades"])

	rec, body = get(t, h, "/api/runs?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["count"])

	rec, _ = get(t, h, "/api/runs?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRun(t *testing.T) {
	h, _ := newTestServer(t)

	rec, body := get(t, h, "/api/runs/01J0000000000000000000000A")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "buy-and-hold", data["strategy"])
	assert.InDelta(t, 100.0, data["net_pl"], 1e-9)

	rec, body = get(t, h, "/api/runs/01J0000000000000000000000C")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "01J0000000000000000000000C", body["id"])
}

func TestMalformedRunID(t *testing.T) {
	h, j := newTestServer(t)

	for _, path := range []string{
		"/api/runs/nope",
		"/api/runs/missing/equity",
		"/api/runs/01J0000000000000000000000A!/trades",
		"/api/runs/" + strings.Repeat("Z", 26) + "/org",
	} {
		rec, body := get(t, h, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "invalid run id", body["error"], path)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/runs/nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	runs, err := j.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunDetail(t *testing.T) {
	h, _ := newTestServer(t)
	base := "/api/runs/01J0000000000000000000000A"

	tests := []struct {
		path  string
		count float64
	}{
		{base + "/equity", 3},
		{base + "/fills", 2},
		{base + "/trades", 1},
		{base + "/drawdown", 3},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec, body := get(t, h, tt.path)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.count, body["count"])
			assert.Len(t, body["data"], int(tt.count))
		})
	}

	_, body := get(t, h, base+"/drawdown")
	dd := body["data"].([]any)[1].(map[string]any)
	assert.InDelta(t, -0.1, dd["drawdown"], 1e-12)

	_, body = get(t, h, "/api/runs/01J0000000000000000000000B/fills")
	assert.Equal(t, []any{}, body["data"])

	rec, _ := get(t, h, "/api/runs/01J0000000000000000000000C/equity")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrg(t *testing.T) {
	h, _ := newTestServer(t)

	rec, _ := get(t, h, "/api/runs/01J0000000000000000000000A/org")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ":RUN_ID:      01J0000000000000000000000A")
}

func TestDeleteRun(t *testing.T) {
	h, j := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/runs/01J0000000000000000000000A", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := j.GetRun(context.Background(), "01J0000000000000000000000A")
	assert.ErrorIs(t, err, journal.ErrNotFound)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/runs/01J0000000000000000000000A", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type brokenStore struct{ Store }

func (brokenStore) ListRuns(context.Context, int) ([]journal.Run, error) {
	return nil, errors.New("database is locked")
}

func TestStoreError(t *testing.T) {
	h := NewServer(brokenStore{}, ":0", nil).Handler()

	rec, body := get(t, h, "/api/runs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "database is locked", body["error"])
}

func TestFinite(t *testing.T) {
	assert.Nil(t, finite(math.NaN()))
	assert.Equal(t, 1.5, finite(1.5))
	assert.Equal(t, "inf", finite(math.Inf(1)))
	assert.Equal(t, "-inf", finite(math.Inf(-1)))
}
