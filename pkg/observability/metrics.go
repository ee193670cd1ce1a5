package observability

import (
	"strings"
	"sync"
	"time"
)

// Metrics records counters, gauges and timings. Implementations must be safe
// for concurrent use.
type Metrics interface {
	Counter(name string, value int64, tags ...Tag)
	Gauge(name string, value float64, tags ...Tag)
	Timing(name string, duration time.Duration, tags ...Tag)
}

// Tag labels a metric sample.
type Tag struct {
	Key   string
	Value string
}

// T creates a Tag.
func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// Metric names emitted by supabase-go.
const (
	MetricClientsSynthesized = "supabase.clients.synthesized"
	MetricAuthStateChanges   = "supabase.auth.state_changes"
	MetricAuthEvents         = "supabase.auth.events"
	MetricAuthRefreshErrors  = "supabase.auth.refresh_errors"
	MetricOperationTotal     = "supabase.operation.total"
	MetricOperationErrors    = "supabase.operation.errors"
	MetricOperationDuration  = "supabase.operation.duration"
	MetricBreakerState       = "supabase.http.breaker_state"
)

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Counter(string, int64, ...Tag)        {}
func (NoopMetrics) Gauge(string, float64, ...Tag)        {}
func (NoopMetrics) Timing(string, time.Duration, ...Tag) {}

// OrNoop returns m, or NoopMetrics when m is nil.
func OrNoop(m Metrics) Metrics {
	if m == nil {
		return NoopMetrics{}
	}
	return m
}

// InMemoryMetrics keeps samples in maps keyed by name and tags. Used in tests.
type InMemoryMetrics struct {
	mu       sync.RWMutex
	counters map[string]int64
	gauges   map[string]float64
	timings  map[string][]time.Duration
}

// NewInMemoryMetrics creates an empty collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		timings:  make(map[string][]time.Duration),
	}
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[formatKey(name, tags)] += value
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[formatKey(name, tags)] = value
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := formatKey(name, tags)
	m.timings[key] = append(m.timings[key], duration)
}

// GetCounter returns the counter value for name and tags.
func (m *InMemoryMetrics) GetCounter(name string, tags ...Tag) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[formatKey(name, tags)]
}

// GetGauge returns the last gauge value for name and tags.
func (m *InMemoryMetrics) GetGauge(name string, tags ...Tag) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[formatKey(name, tags)]
}

// GetTimings returns every timing recorded for name and tags.
func (m *InMemoryMetrics) GetTimings(name string, tags ...Tag) []time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]time.Duration(nil), m.timings[formatKey(name, tags)]...)
}

func formatKey(name string, tags []Tag) string {
	if len(tags) == 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	for _, t := range tags {
		b.WriteString(":")
		b.WriteString(t.Key)
		b.WriteString("=")
		b.WriteString(t.Value)
	}
	return b.String()
}
