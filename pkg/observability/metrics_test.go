package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopMetrics(t *testing.T) {
	var m Metrics = NoopMetrics{}

	assert.NotPanics(t, func() {
		m.Counter(MetricScheduleRequests, 1)
		m.Gauge("g", 1)
		m.Histogram("h", 1)
		m.Timing(MetricScheduleDuration, time.Second)
	})
}

func TestInMemoryMetrics(t *testing.T) {
	t.Run("counters accumulate per tag set", func(t *testing.T) {
		m := NewInMemoryMetrics()
		m.Counter(MetricUndoTotal, 1, T("partial", "false"))
		m.Counter(MetricUndoTotal, 1, T("partial", "true"))
		m.Counter(MetricUndoTotal, 1, T("partial", "false"))

		assert.Equal(t, int64(2), m.GetCounter(MetricUndoTotal, T("partial", "false")))
		assert.Equal(t, int64(1), m.GetCounter(MetricUndoTotal, T("partial", "true")))
		assert.Zero(t, m.GetCounter(MetricUndoTotal))
	})

	t.Run("tag order is irrelevant", func(t *testing.T) {
		m := NewInMemoryMetrics()
		m.Counter("c", 3, T("a", "1"), T("b", "2"))

		assert.Equal(t, int64(3), m.GetCounter("c", T("b", "2"), T("a", "1")))
	})

	t.Run("gauge keeps the last value", func(t *testing.T) {
		m := NewInMemoryMetrics()
		m.Gauge("entities", 4)
		m.Gauge("entities", 7)

		assert.Equal(t, 7.0, m.GetGauge("entities"))
	})

	t.Run("histograms and timings append", func(t *testing.T) {
		m := NewInMemoryMetrics()
		m.Histogram("h", 1.5)
		m.Histogram("h", 2.5)
		m.Timing(MetricScheduleDuration, time.Millisecond)

		assert.Equal(t, []float64{1.5, 2.5}, m.GetHistogram("h"))
		assert.Equal(t, []time.Duration{time.Millisecond}, m.GetTimings(MetricScheduleDuration))
	})

	t.Run("concurrent writers", func(t *testing.T) {
		m := NewInMemoryMetrics()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				m.Counter(MetricConflictsDetected, 2)
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(100), m.GetCounter(MetricConflictsDetected))
		assert.Equal(t, int64(100), m.Counters()[MetricConflictsDetected])
	})
}

func TestPrometheusMetrics(t *testing.T) {
	p := NewPrometheusMetrics()

	p.Counter(MetricSolutionsApplied, 1)
	p.Counter(MetricSolutionsApplied, 2)
	p.Counter(MetricUndoTotal, 1, T("partial", "true"))
	p.Gauge("slotwise.entities", 12)
	p.Timing(MetricScheduleDuration, 20*time.Millisecond)

	applied, err := p.counters[MetricSolutionsApplied].GetMetricWithLabelValues()
	require.NoError(t, err)
	assert.Equal(t, 3.0, testutil.ToFloat64(applied))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.counters[MetricUndoTotal].WithLabelValues("true")))
	assert.Equal(t, 12.0, testutil.ToFloat64(p.gauges["slotwise.entities"].WithLabelValues()))

	count, err := testutil.GatherAndCount(p.Registry(), "slotwise_schedule_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "slotwise_solutions_applied_total 3")
}

func TestHealthRegistry(t *testing.T) {
	r := NewHealthRegistry()
	r.Register("sqlite", PingChecker("sqlite", HealthStatusUnhealthy, func(context.Context) error { return nil }))

	report := r.Check(context.Background())
	assert.Equal(t, HealthStatusHealthy, report.Status)
	assert.Equal(t, "sqlite reachable", report.Checks["sqlite"].Message)

	r.Register("rabbitmq", PingChecker("rabbitmq", HealthStatusDegraded, func(context.Context) error {
		return errors.New("connection refused")
	}))
	report = r.Check(context.Background())
	assert.Equal(t, HealthStatusDegraded, report.Status)
	assert.Contains(t, report.Checks["rabbitmq"].Message, "connection refused")

	r.Register("redis", PingChecker("redis", HealthStatusUnhealthy, func(context.Context) error {
		return errors.New("timeout")
	}))
	assert.Equal(t, HealthStatusUnhealthy, r.Check(context.Background()).Status)
	assert.Equal(t, []string{"rabbitmq", "redis", "sqlite"}, r.Names())
}
