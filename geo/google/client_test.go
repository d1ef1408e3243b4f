package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/tutorder/geo"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New("test-key",
		WithBaseURL(srv.URL),
		WithRateLimit(0),
		WithRetry(3, time.Millisecond))
	require.NoError(t, err)
	return c
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New("  ")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestGeocode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		switch r.URL.Query().Get("address") {
		case "北京市海淀区":
			w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":39.96,"lng":116.30}}}]}`))
		default:
			w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
		}
	})

	got, err := c.Geocode(context.Background(), "北京市海淀区")
	require.NoError(t, err)
	assert.Equal(t, geo.Coordinates{Lat: 39.96, Lng: 116.30}, got)

	_, err = c.Geocode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, geo.ErrNoResult)

	_, err = c.Geocode(context.Background(), " ")
	assert.ErrorIs(t, err, geo.ErrNoResult)
}

func TestGeocode_RequestDenied(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`))
	})

	_, err := c.Geocode(context.Background(), "x")
	assert.ErrorIs(t, err, ErrRequestDenied)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGeocode_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.Write([]byte(`{"status":"OVER_QUERY_LIMIT"}`))
		default:
			w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":1,"lng":2}}}]}`))
		}
	})

	got, err := c.Geocode(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, geo.Coordinates{Lat: 1, Lng: 2}, got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGeocode_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.Geocode(context.Background(), "x")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDuration(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/distancematrix/json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "39.900000,116.400000", q.Get("origins"))
		assert.Equal(t, "39.950000,116.300000", q.Get("destinations"))
		switch q.Get("mode") {
		case "bicycling":
			w.Write([]byte(`{"status":"OK","rows":[{"elements":[{"status":"OK","duration":{"value":1530,"text":"26 mins"}}]}]}`))
		default:
			w.Write([]byte(`{"status":"OK","rows":[{"elements":[{"status":"ZERO_RESULTS"}]}]}`))
		}
	})
	origin := geo.Coordinates{Lat: 39.9, Lng: 116.4}
	dest := geo.Coordinates{Lat: 39.95, Lng: 116.3}

	d, err := c.Duration(context.Background(), origin, dest, geo.ModeBicycling)
	require.NoError(t, err)
	assert.Equal(t, 1530*time.Second, d)

	_, err = c.Duration(context.Background(), origin, dest, geo.ModeTransit)
	assert.ErrorIs(t, err, geo.ErrNoRoute)
}

func TestGeocode_ServerErrorsExhaustRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Geocode(context.Background(), "x")
	var se *httpStatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.code)
	assert.Equal(t, int32(3), calls.Load())
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, "REQUEST_DENIED", statusOf(errors.New("maps: REQUEST_DENIED - bad key")))
	assert.Equal(t, "ZERO_RESULTS", statusOf(errors.New("maps: ZERO_RESULTS - ")))
	assert.Equal(t, "", statusOf(errors.New("dial tcp: refused")))
}

func TestDo_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Geocode(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
