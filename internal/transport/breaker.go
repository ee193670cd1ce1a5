// Package transport provides the HTTP plumbing shared by the sub-clients that
// accept a custom *http.Client.
package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/supabase-go/pkg/observability"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned while the breaker for a host rejects requests.
var ErrCircuitOpen = errors.New("transport: circuit open")

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	Enabled bool
	// MaxRequests is the number of trial requests allowed while half-open.
	MaxRequests uint32
	// Interval resets the failure counts while closed.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
	// FailureThreshold trips the breaker after that many consecutive failures.
	FailureThreshold uint32
}

// DefaultBreakerConfig returns a sensible default configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:          true,
		MaxRequests:      3,
		Interval:         10 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerTransport is an http.RoundTripper that fails fast once a host keeps
// failing. Responses with status 5xx count as failures; they are still
// returned to the caller unchanged.
type BreakerTransport struct {
	base    http.RoundTripper
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewBreakerTransport wraps base (http.DefaultTransport when nil).
func NewBreakerTransport(name string, base http.RoundTripper, cfg BreakerConfig, logger *slog.Logger, metrics observability.Metrics) *BreakerTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	logger = observability.OrDefault(logger)
	metrics = observability.OrNoop(metrics)

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.Gauge(observability.MetricBreakerState, float64(to), observability.T("breaker", name))
		},
	}

	return &BreakerTransport{
		base:    base,
		breaker: gobreaker.NewCircuitBreaker[*http.Response](settings),
	}
}

// RoundTrip implements http.RoundTripper.
func (t *BreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var served *http.Response
	_, err := t.breaker.Execute(func() (*http.Response, error) {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		served = resp
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, fmt.Errorf("server error: %s", resp.Status)
		}
		return resp, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, req.URL.Host)
	}
	if served != nil {
		return served, nil
	}
	return nil, err
}

// State reports the breaker state.
func (t *BreakerTransport) State() gobreaker.State {
	return t.breaker.State()
}

// NewHTTPClient builds the client handed to sub-clients. With the breaker
// disabled it is a plain client with the given timeout.
func NewHTTPClient(timeout time.Duration, cfg BreakerConfig, logger *slog.Logger, metrics observability.Metrics) *http.Client {
	client := &http.Client{Timeout: timeout}
	if cfg.Enabled {
		client.Transport = NewBreakerTransport("supabase", nil, cfg, logger, metrics)
	}
	return client
}
