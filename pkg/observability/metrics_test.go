package observability

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopMetrics(t *testing.T) {
	m := OrNoop(nil)

	m.Counter("test", 1)
	m.Gauge("test", 1.0)
	m.Timing("test", time.Second)

	assert.IsType(t, NoopMetrics{}, m)
}

func TestInMemoryMetrics(t *testing.T) {
	t.Run("counter with tags", func(t *testing.T) {
		m := NewInMemoryMetrics()

		m.Counter(MetricClientsSynthesized, 1, T("client", "database"))
		m.Counter(MetricClientsSynthesized, 1, T("client", "database"))
		m.Counter(MetricClientsSynthesized, 1, T("client", "storage"))

		assert.Equal(t, int64(2), m.GetCounter(MetricClientsSynthesized, T("client", "database")))
		assert.Equal(t, int64(1), m.GetCounter(MetricClientsSynthesized, T("client", "storage")))
		assert.Zero(t, m.GetCounter(MetricClientsSynthesized))
	})

	t.Run("gauge keeps last value", func(t *testing.T) {
		m := NewInMemoryMetrics()

		m.Gauge(MetricBreakerState, 1)
		m.Gauge(MetricBreakerState, 2)

		assert.Equal(t, 2.0, m.GetGauge(MetricBreakerState))
	})

	t.Run("timings accumulate", func(t *testing.T) {
		m := NewInMemoryMetrics()

		m.Timing("op", time.Millisecond)
		m.Timing("op", 2*time.Millisecond)

		assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, m.GetTimings("op"))
	})
}

func TestTimeOperationResult(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		m := NewInMemoryMetrics()

		got, err := TimeOperationResult(nil, m, "sign_in", func() (string, error) {
			return "token", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "token", got)
		assert.Equal(t, int64(1), m.GetCounter(MetricOperationTotal, T(OperationKey, "sign_in")))
		assert.Zero(t, m.GetCounter(MetricOperationErrors, T(OperationKey, "sign_in")))
		assert.Len(t, m.GetTimings(MetricOperationDuration, T(OperationKey, "sign_in")), 1)
	})

	t.Run("failure is logged and counted", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		m := NewInMemoryMetrics()

		_, err := TimeOperationResult(logger, m, "refresh", func() (int, error) {
			return 0, errors.New("boom")
		})

		require.Error(t, err)
		assert.Equal(t, int64(1), m.GetCounter(MetricOperationErrors, T(OperationKey, "refresh")))
		assert.Contains(t, buf.String(), "operation failed")
		assert.Contains(t, buf.String(), "boom")
	})
}
