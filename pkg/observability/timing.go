package observability

import (
	"log/slog"
	"time"
)

// Timer measures one operation and reports it on Stop.
type Timer struct {
	operation string
	start     time.Time
	logger    *slog.Logger
	metrics   Metrics
	tags      []Tag
}

// StartTimer starts timing operation.
func StartTimer(operation string) *Timer {
	return &Timer{operation: operation, start: time.Now()}
}

// WithLogger logs the outcome at debug level on Stop.
func (t *Timer) WithLogger(logger *slog.Logger) *Timer {
	t.logger = logger
	return t
}

// WithMetrics records duration and counters on Stop.
func (t *Timer) WithMetrics(metrics Metrics) *Timer {
	t.metrics = metrics
	return t
}

// WithTags adds metric tags.
func (t *Timer) WithTags(tags ...Tag) *Timer {
	t.tags = append(t.tags, tags...)
	return t
}

// Stop records the elapsed time; a non-nil err is logged and counted.
func (t *Timer) Stop(err error) time.Duration {
	d := time.Since(t.start)

	if t.logger != nil {
		if err != nil {
			t.logger.Warn("operation failed",
				OperationKey, t.operation,
				DurationKey, d.Milliseconds(),
				ErrorKey, err.Error(),
			)
		} else {
			t.logger.Debug("operation completed",
				OperationKey, t.operation,
				DurationKey, d.Milliseconds(),
			)
		}
	}

	if t.metrics != nil {
		tags := append(append([]Tag(nil), t.tags...), T(OperationKey, t.operation))
		t.metrics.Timing(MetricOperationDuration, d, tags...)
		t.metrics.Counter(MetricOperationTotal, 1, tags...)
		if err != nil {
			t.metrics.Counter(MetricOperationErrors, 1, tags...)
		}
	}
	return d
}

// TimeOperationResult runs fn under a Timer.
func TimeOperationResult[T any](logger *slog.Logger, metrics Metrics, operation string, fn func() (T, error)) (T, error) {
	timer := StartTimer(operation).WithLogger(logger).WithMetrics(metrics)
	result, err := fn()
	timer.Stop(err)
	return result, err
}
