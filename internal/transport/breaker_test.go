package transport

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/supabase-go/pkg/observability"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	}
}

func TestBreakerTransport_PassesThroughSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewBreakerTransport("test", nil, testConfig(), nil, nil)}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBreakerTransport_TripsOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	metrics := observability.NewInMemoryMetrics()
	rt := NewBreakerTransport("auth", nil, testConfig(), nil, metrics)
	client := &http.Client{Transport: rt}

	for i := 0; i < 2; i++ {
		resp, err := client.Get(srv.URL)
		require.NoError(t, err, "5xx responses are still returned")
		resp.Body.Close()
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	}

	assert.Equal(t, gobreaker.StateOpen, rt.State())
	assert.Equal(t, float64(gobreaker.StateOpen), metrics.GetGauge(observability.MetricBreakerState, observability.T("breaker", "auth")))

	_, err := client.Get(srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load())
}

func TestBreakerTransport_ClientErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	rt := NewBreakerTransport("auth", nil, testConfig(), nil, nil)
	client := &http.Client{Transport: rt}

	for i := 0; i < 5; i++ {
		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, gobreaker.StateClosed, rt.State())
}

func TestNewHTTPClient(t *testing.T) {
	disabled := NewHTTPClient(5*time.Second, BreakerConfig{}, nil, nil)
	assert.Nil(t, disabled.Transport)
	assert.Equal(t, 5*time.Second, disabled.Timeout)

	enabled := NewHTTPClient(time.Second, DefaultBreakerConfig(), nil, nil)
	assert.IsType(t, &BreakerTransport{}, enabled.Transport)
}
