package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/flowpulse/pkg/config"
	"github.com/cuemby/flowpulse/pkg/events"
	"github.com/cuemby/flowpulse/pkg/query"
	"github.com/cuemby/flowpulse/pkg/storage"
	"github.com/cuemby/flowpulse/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refNow = time.Date(2025, 6, 10, 14, 25, 0, 0, time.UTC)

type fixture struct {
	store  *storage.Store
	hub    *events.Hub
	facade *query.Facade
	server *Server
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store, err := storage.New(storage.Config{})
	require.NoError(t, err)
	hub := events.NewHub(events.Config{})
	facade := query.New(store, hub, query.Options{
		Now:      func() time.Time { return refNow },
		Location: time.UTC,
	})
	t.Cleanup(hub.Close)
	return &fixture{
		store:  store,
		hub:    hub,
		facade: facade,
		server: NewServer(facade, opts),
	}
}

// publish appends evt and broadcasts the stored copy, as the simulation does
func (f *fixture) publish(evt types.Event) types.Event {
	stored := f.store.Append(evt)
	f.hub.Broadcast(stored)
	return stored
}

func (f *fixture) seed() {
	f.store.Append(types.NewCompleted("c1", refNow.Add(-3*time.Hour).UnixMilli(), 40))
	f.store.Append(types.NewPending("p1", refNow.Add(-2*time.Hour).UnixMilli()))
	f.store.Append(types.NewAnomaly("a1", refNow.Add(-30*time.Minute).UnixMilli(), 4))
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatsRoutes(t *testing.T) {
	f := newFixture(t, Options{})
	f.seed()
	h := f.server.Handler()

	t.Run("overview", func(t *testing.T) {
		rec := get(t, h, "/stats/overview")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var got types.OverviewStats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, types.OverviewStats{SLACompliance: 67, CycleTime: 40, ActiveAnomalies: 1, TotalWorkflowsToday: 3}, got)
	})

	t.Run("timeline window", func(t *testing.T) {
		rec := get(t, h, "/stats/timeline?hours=1")
		require.Equal(t, http.StatusOK, rec.Code)

		var got []types.Event
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "a1", got[0].ID)
	})

	t.Run("anomalies", func(t *testing.T) {
		rec := get(t, h, "/stats/anomalies?limit=5")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"severity":4`)
		assert.NotContains(t, rec.Body.String(), "cycleTime")
	})

	t.Run("volume", func(t *testing.T) {
		rec := get(t, h, "/stats/volume?hours=6")
		require.Equal(t, http.StatusOK, rec.Code)

		var got []types.VolumeBucket
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 6)
		assert.Equal(t, 9, got[0].Hour)
		assert.Equal(t, 1, got[2].Completed)
		assert.Equal(t, 1, got[3].Pending)
		assert.Equal(t, 1, got[4].Anomaly)
		assert.Zero(t, got[5].Total())
	})

	t.Run("heatmap", func(t *testing.T) {
		rec := get(t, h, "/stats/heatmap")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[{"hour":13,"severity":4,"count":1}]`, rec.Body.String())
	})

	t.Run("snapshot", func(t *testing.T) {
		rec := get(t, h, "/snapshot")
		require.Equal(t, http.StatusOK, rec.Code)

		var got map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Contains(t, got, "overview")
		assert.Contains(t, got, "events")
		assert.Contains(t, got, "volume")
		assert.Len(t, got, 3)
	})
}

func TestEmptyStoreReturnsArrays(t *testing.T) {
	f := newFixture(t, Options{})
	h := f.server.Handler()

	for _, path := range []string{"/stats/timeline", "/stats/anomalies", "/stats/heatmap"} {
		rec := get(t, h, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()), path)
	}

	rec := get(t, h, "/stats/overview")
	assert.JSONEq(t, `{"slaCompliance":100,"cycleTime":0,"activeAnomalies":0,"totalWorkflowsToday":0}`, rec.Body.String())
}

func TestBadQueryParams(t *testing.T) {
	f := newFixture(t, Options{})
	h := f.server.Handler()

	tests := []string{
		"/stats/timeline?hours=abc",
		"/stats/timeline?hours=0",
		"/stats/timeline?hours=1000",
		"/stats/volume?hours=-3",
		"/stats/anomalies?limit=x",
	}
	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			rec := get(t, h, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestCORS(t *testing.T) {
	f := newFixture(t, Options{})
	h := f.server.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/stats/overview", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = get(t, h, "/snapshot")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRouteAndMethod(t *testing.T) {
	f := newFixture(t, Options{})
	h := f.server.Handler()

	rec := get(t, h, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/snapshot", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestChaosStatsFailure(t *testing.T) {
	f := newFixture(t, Options{
		Chaos:  config.ChaosConfig{StatsErrorRate: 0.05},
		Chance: func() float64 { return 0.01 },
	})
	h := f.server.Handler()

	rec := get(t, h, "/stats/overview")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"simulated backend failure"}`, rec.Body.String())

	// only /stats routes are affected
	rec = get(t, h, "/snapshot")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChaosMisses(t *testing.T) {
	f := newFixture(t, Options{
		Chaos:  config.ChaosConfig{StatsErrorRate: 0.05},
		Chance: func() float64 { return 0.5 },
	})

	rec := get(t, f.server.Handler(), "/stats/overview")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOperationalRoutes(t *testing.T) {
	f := newFixture(t, Options{})
	h := f.server.Handler()

	rec := get(t, h, "/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")

	// trigger at least one request metric before scraping
	get(t, h, "/stats/overview")
	rec = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "flowpulse_api_requests_total")
	assert.Contains(t, string(body), `flowpulse_api_request_duration_seconds_count{route="/stats/overview"}`)
}
