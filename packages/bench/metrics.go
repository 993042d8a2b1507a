package bench

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Latencies are recorded in microseconds between 1us and 60s.
const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Outcome classifies a single upload
type Outcome int

const (
	// OutcomeSuccess means a response arrived and met every expectation
	OutcomeSuccess Outcome = iota
	// OutcomeFailed means a response arrived but an expectation failed
	OutcomeFailed
	// OutcomeError means no response arrived
	OutcomeError
)

// Metrics collects and aggregates bench metrics
type Metrics struct {
	mu        sync.RWMutex
	histogram *hdrhistogram.Histogram

	total     atomic.Int64
	success   atomic.Int64
	failed    atomic.Int64
	errors    atomic.Int64
	bytesSent atomic.Int64
	inFlight  atomic.Int32

	startTime time.Time
	endTime   time.Time
}

// NewMetrics creates a new Metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
	}
}

// Start marks the beginning of the run
func (m *Metrics) Start() {
	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}

// Stop marks the end of the run
func (m *Metrics) Stop() {
	m.mu.Lock()
	m.endTime = time.Now()
	m.mu.Unlock()
}

// Record records one upload. Latency is only recorded for uploads that
// got a response.
func (m *Metrics) Record(outcome Outcome, duration time.Duration, bytes int64) {
	m.total.Add(1)
	m.bytesSent.Add(bytes)

	switch outcome {
	case OutcomeSuccess:
		m.success.Add(1)
	case OutcomeFailed:
		m.failed.Add(1)
	default:
		m.errors.Add(1)
		return
	}

	latencyUs := duration.Microseconds()
	if latencyUs < minLatencyUs {
		latencyUs = minLatencyUs
	}
	if latencyUs > maxLatencyUs {
		latencyUs = maxLatencyUs
	}

	m.mu.Lock()
	_ = m.histogram.RecordValue(latencyUs)
	m.mu.Unlock()
}

func (m *Metrics) IncrementInFlight() { m.inFlight.Add(1) }
func (m *Metrics) DecrementInFlight() { m.inFlight.Add(-1) }

// Summary is the final metrics summary
type Summary struct {
	Duration  time.Duration
	Total     int64
	Success   int64
	Failed    int64
	Errors    int64
	BytesSent int64

	RPS        float64
	Throughput float64 // bytes per second
	ErrorRate  float64 // failed and errored uploads over total

	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration
}

// GetSummary returns the metrics summary
func (m *Metrics) GetSummary() *Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	duration := m.endTime.Sub(m.startTime)
	if m.endTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	s := &Summary{
		Duration:  duration,
		Total:     m.total.Load(),
		Success:   m.success.Load(),
		Failed:    m.failed.Load(),
		Errors:    m.errors.Load(),
		BytesSent: m.bytesSent.Load(),
	}
	if secs := duration.Seconds(); secs > 0 {
		s.RPS = float64(s.Total) / secs
		s.Throughput = float64(s.BytesSent) / secs
	}
	if s.Total > 0 {
		s.ErrorRate = float64(s.Failed+s.Errors) / float64(s.Total)
	}
	if m.histogram.TotalCount() > 0 {
		s.P50 = usec(m.histogram.ValueAtQuantile(50))
		s.P95 = usec(m.histogram.ValueAtQuantile(95))
		s.P99 = usec(m.histogram.ValueAtQuantile(99))
		s.Min = usec(m.histogram.Min())
		s.Max = usec(m.histogram.Max())
		s.Mean = time.Duration(m.histogram.Mean() * float64(time.Microsecond))
		s.StdDev = time.Duration(m.histogram.StdDev() * float64(time.Microsecond))
	}
	return s
}

// CurrentStats is a point-in-time view for the progress display
type CurrentStats struct {
	Elapsed   time.Duration
	Total     int64
	Success   int64
	Errors    int64 // failed and errored
	RPS       float64
	P50       time.Duration
	P95       time.Duration
	Max       time.Duration
	InFlight  int32
	ErrorRate float64
}

// GetCurrentStats returns current statistics
func (m *Metrics) GetCurrentStats() CurrentStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := CurrentStats{
		Elapsed:  time.Since(m.startTime),
		Total:    m.total.Load(),
		Success:  m.success.Load(),
		Errors:   m.failed.Load() + m.errors.Load(),
		InFlight: m.inFlight.Load(),
		P50:      usec(m.histogram.ValueAtQuantile(50)),
		P95:      usec(m.histogram.ValueAtQuantile(95)),
		Max:      usec(m.histogram.Max()),
	}
	if secs := stats.Elapsed.Seconds(); secs > 0 {
		stats.RPS = float64(stats.Total) / secs
	}
	if stats.Total > 0 {
		stats.ErrorRate = float64(stats.Errors) / float64(stats.Total)
	}
	return stats
}

// EvaluateThresholds checks s against t, one result per configured threshold.
func EvaluateThresholds(s *Summary, t Thresholds) []ThresholdResult {
	var results []ThresholdResult

	latency := func(name string, limit, actual time.Duration) {
		if limit > 0 {
			results = append(results, ThresholdResult{
				Name:     name,
				Passed:   actual <= limit,
				Expected: "< " + limit.String(),
				Actual:   actual.String(),
			})
		}
	}
	latency("p50", t.P50, s.P50)
	latency("p95", t.P95, s.P95)
	latency("p99", t.P99, s.P99)
	latency("max latency", t.MaxLatency, s.Max)

	if t.ErrorRate > 0 {
		results = append(results, ThresholdResult{
			Name:     "error rate",
			Passed:   s.ErrorRate <= t.ErrorRate,
			Expected: "< " + formatPercent(t.ErrorRate),
			Actual:   formatPercent(s.ErrorRate),
		})
	}

	if t.MinRPS > 0 {
		results = append(results, ThresholdResult{
			Name:     "min RPS",
			Passed:   s.RPS >= t.MinRPS,
			Expected: "> " + formatFloat(t.MinRPS),
			Actual:   formatFloat(s.RPS),
		})
	}

	return results
}

func usec(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}

func formatPercent(f float64) string {
	return formatFloat(f*100) + "%"
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
