package bench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	m.Start()

	m.Record(OutcomeSuccess, 100*time.Millisecond, 1000)
	m.Record(OutcomeSuccess, 150*time.Millisecond, 1000)
	m.Record(OutcomeFailed, 200*time.Millisecond, 1000)
	m.Record(OutcomeError, 0, 0)

	m.Stop()

	s := m.GetSummary()
	assert.Equal(t, int64(4), s.Total)
	assert.Equal(t, int64(2), s.Success)
	assert.Equal(t, int64(1), s.Failed)
	assert.Equal(t, int64(1), s.Errors)
	assert.Equal(t, int64(3000), s.BytesSent)
	assert.InDelta(t, 0.5, s.ErrorRate, 0.001)

	// Errors carry no latency.
	assert.InDelta(t, float64(100*time.Millisecond), float64(s.Min), float64(time.Millisecond))
	assert.InDelta(t, float64(200*time.Millisecond), float64(s.Max), float64(time.Millisecond))
}

func TestMetricsSummaryPercentiles(t *testing.T) {
	m := NewMetrics()
	m.Start()
	for i := 0; i < 100; i++ {
		m.Record(OutcomeSuccess, time.Duration(i+1)*time.Millisecond, 10)
	}
	m.Stop()

	s := m.GetSummary()
	require.Equal(t, int64(100), s.Total)
	assert.Zero(t, s.ErrorRate)
	assert.True(t, s.P50 <= s.P95)
	assert.True(t, s.P95 <= s.P99)
	assert.True(t, s.P99 <= s.Max)
	assert.InDelta(t, float64(50*time.Millisecond), float64(s.P50), float64(2*time.Millisecond))
	assert.True(t, s.RPS > 0)
	assert.True(t, s.Throughput > 0)
}

func TestMetricsEmptySummary(t *testing.T) {
	m := NewMetrics()
	m.Start()
	m.Stop()

	s := m.GetSummary()
	assert.Zero(t, s.Total)
	assert.Zero(t, s.ErrorRate)
	assert.Zero(t, s.P99)
}

func TestMetricsInFlight(t *testing.T) {
	m := NewMetrics()
	m.Start()

	m.IncrementInFlight()
	m.IncrementInFlight()
	assert.Equal(t, int32(2), m.GetCurrentStats().InFlight)

	m.DecrementInFlight()
	assert.Equal(t, int32(1), m.GetCurrentStats().InFlight)
}

func TestEvaluateThresholds(t *testing.T) {
	s := &Summary{
		P50:       50 * time.Millisecond,
		P95:       300 * time.Millisecond,
		P99:       400 * time.Millisecond,
		Max:       time.Second,
		ErrorRate: 0.02,
		RPS:       20,
	}

	results := EvaluateThresholds(s, Thresholds{
		P95:       200 * time.Millisecond,
		P99:       500 * time.Millisecond,
		ErrorRate: 0.05,
		MinRPS:    25,
	})
	require.Len(t, results, 4)

	byName := make(map[string]ThresholdResult)
	for _, r := range results {
		byName[r.Name] = r
	}
	assert.False(t, byName["p95"].Passed)
	assert.True(t, byName["p99"].Passed)
	assert.True(t, byName["error rate"].Passed)
	assert.Equal(t, "2%", byName["error rate"].Actual)
	assert.False(t, byName["min RPS"].Passed)
	assert.Equal(t, "> 25", byName["min RPS"].Expected)
}

func TestEvaluateThresholds_None(t *testing.T) {
	assert.Empty(t, EvaluateThresholds(&Summary{}, Thresholds{}))
}
