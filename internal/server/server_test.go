package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"car-animator/internal/anim"
	"car-animator/internal/geo"
	"car-animator/internal/sim"
)

func init() { gin.SetMode(gin.TestMode) }

type stubStatus struct {
	st *sim.Status
	fc  *geojson.FeatureCollection
}

func (s stubStatus) Status() (sim.Status, bool) {
	if s.st == nil {
		return sim.Status{}, false
	}
	return *s.st, true
}

func (s stubStatus) Route() (*geojson.FeatureCollection, bool) {
	return s.fc, s.fc != nil
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, NewRouter(stubStatus{}, nil, nil), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatusAndRouteBeforeFirstRun(t *testing.T) {
	r := NewRouter(stubStatus{}, nil, nil)
	assert.Equal(t, http.StatusNotFound, get(t, r, "/status").Code)
	assert.Equal(t, http.StatusNotFound, get(t, r, "/route").Code)
	assert.Equal(t, http.StatusNotFound, get(t, r, "/metrics").Code)
}

func TestStatus(t *testing.T) {
	st := &sim.Status{
		RunID:     "abc",
		Vehicle:   "car-1",
		StartedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		State: anim.State{
			Cursor:   1,
			Length:   3,
			Position: geo.Coordinate{Lat: 28.6, Lon: 77.15},
		},
	}
	rec := get(t, NewRouter(stubStatus{st: st}, nil, nil), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "abc", got["runId"])
	state := got["state"].(map[string]any)
	assert.Equal(t, 1.0, state["cursor"])
	assert.Equal(t, 28.6, state["position"].(map[string]any)["lat"])
}

func TestRoute(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.LineString{{77.1, 28.7}, {77.2, 28.5}}))
	rec := get(t, NewRouter(stubStatus{fc: fc}, nil, nil), "/route")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	decoded, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Len(t, decoded.Features, 1)
}

func TestMetricsMounted(t *testing.T) {
	m := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("animator_steps_total 3\n"))
	})
	rec := get(t, NewRouter(stubStatus{}, m, nil), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "animator_steps_total")
}
