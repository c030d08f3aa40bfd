package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"car-animator/internal/placemark"
)

type fakeMetrics struct {
	mu  sync.Mutex
	got map[string]int
}

func (f *fakeMetrics) FetchObserve(target, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.got == nil {
		f.got = map[string]int{}
	}
	f.got[target+"/"+outcome]++
}

const locationsContent = `[{"lat":"28.7041","long":"77.1025","name":"Delhi"},{"lat":"28.4595","long":"77.0266","name":"Gurgaon"},{"lat":"28.5355","long":"77.3910","name":"Noida"}]`

func TestFetchPlacemarks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"files": map[string]any{"Locations": map[string]any{"content": locationsContent}},
		})
	}))
	defer srv.Close()

	m := &fakeMetrics{}
	c := NewClient(Config{LocationsURL: srv.URL}, zaptest.NewLogger(t), m)
	pms, err := c.FetchPlacemarks(context.Background())
	require.NoError(t, err)
	require.Len(t, pms, 3)
	assert.Equal(t, "Gurgaon", pms[1].Name)
	assert.Equal(t, 1, m.got["locations/ok"])
}

func TestFetchRouteSendsQuery(t *testing.T) {
	var got http.Header
	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		query = r.URL.Query()
		_, _ = w.Write([]byte(`{"status":"OK","routes":[{"overview_polyline":{"points":"abc"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{DirectionsURL: srv.URL + "/maps/api/directions/json?mode=driving", APIKey: "secret"}, nil, nil)
	pms := []placemark.Placemark{{Name: "Delhi"}, {Name: "Gurgaon"}, {Name: "Noida"}}
	pts, err := c.FetchRoute(context.Background(), pms)
	require.NoError(t, err)
	assert.Equal(t, "abc", pts)
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, []string{"Delhi"}, query["origin"])
	assert.Equal(t, []string{"Noida"}, query["destination"])
	assert.Equal(t, []string{"Gurgaon"}, query["waypoints"])
	assert.Equal(t, []string{"secret"}, query["key"])
	assert.Equal(t, []string{"driving"}, query["mode"])
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"status":"OK","routes":[{"overview_polyline":{"points":"xyz"}}]}`))
	}))
	defer srv.Close()

	m := &fakeMetrics{}
	c := NewClient(Config{DirectionsURL: srv.URL, Retries: 2, Backoff: time.Millisecond}, zaptest.NewLogger(t), m)
	pts, err := c.FetchRoute(context.Background(), []placemark.Placemark{{Name: "A"}, {Name: "B"}})
	require.NoError(t, err)
	assert.Equal(t, "xyz", pts)
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, 1, m.got["directions/ok"])
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	m := &fakeMetrics{}
	c := NewClient(Config{LocationsURL: srv.URL + "?token=x", Retries: 3, Backoff: time.Millisecond}, nil, m)
	_, err := c.FetchPlacemarks(context.Background())
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.Code)
	assert.NotContains(t, se.Error(), "token")
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1, m.got["locations/error"])
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(Config{LocationsURL: srv.URL, Retries: 5, Backoff: time.Hour}, nil, nil)
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.FetchPlacemarks(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
