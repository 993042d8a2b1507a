package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitupload/packages/assertions"
	uerrors "github.com/abdul-hamid-achik/hitupload/packages/core/errors"
	"github.com/abdul-hamid-achik/hitupload/packages/core/runner"
)

func countingServer(t *testing.T, status int, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func uploadJob(t *testing.T, url string) *runner.Job {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.bin"), bytes.Repeat([]byte("x"), 512), 0644))
	return &runner.Job{
		URL:       url,
		FileField: "file",
		Files:     []string{"data.bin"},
		BaseDir:   dir,
	}
}

func newQuietRunner(cfg *Config) *Runner {
	var out bytes.Buffer
	return NewRunner(cfg, runner.NewRunner(nil), WithReporter(NewReporter(WithWriter(&out), WithNoColor(true), WithNoProgress(true))))
}

func TestRunner_Count(t *testing.T) {
	var hits atomic.Int64
	server := countingServer(t, http.StatusOK, &hits)

	r := newQuietRunner(&Config{Count: 12, Concurrency: 3})
	result, err := r.Run(context.Background(), uploadJob(t, server.URL))

	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, int64(12), hits.Load())
	assert.Equal(t, int64(12), result.Summary.Total)
	assert.Equal(t, int64(12), result.Summary.Success)
	assert.Zero(t, result.Summary.Errors)
	assert.True(t, result.Summary.BytesSent > 12*512)
	assert.True(t, result.Summary.Max > 0)
}

func TestRunner_Duration(t *testing.T) {
	var hits atomic.Int64
	server := countingServer(t, http.StatusOK, &hits)

	r := newQuietRunner(&Config{Duration: 300 * time.Millisecond, Rate: 20, Concurrency: 2})
	start := time.Now()
	result, err := r.Run(context.Background(), uploadJob(t, server.URL))

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, result.Summary.Total >= 1)
	// Burst of one plus 20/s for 300ms.
	assert.LessOrEqual(t, result.Summary.Total, int64(10))
	assert.Equal(t, hits.Load(), result.Summary.Total)
}

func TestRunner_ExpectationFailuresCount(t *testing.T) {
	var hits atomic.Int64
	server := countingServer(t, http.StatusInternalServerError, &hits)

	job := uploadJob(t, server.URL)
	job.Expect = []*assertions.Assertion{assertions.StatusIn(200)}

	r := newQuietRunner(&Config{
		Count:       4,
		Concurrency: 2,
		Thresholds:  Thresholds{ErrorRate: 0.1},
	})
	result, err := r.Run(context.Background(), job)

	require.Error(t, err)
	assert.ErrorIs(t, err, uerrors.ErrThresholds)
	require.NotNil(t, result)
	assert.False(t, result.Passed)
	assert.Equal(t, int64(4), result.Summary.Failed)
	assert.InDelta(t, 1.0, result.Summary.ErrorRate, 0.001)
	assert.Equal(t, []string{"error rate"}, result.FailedThresholds())
}

func TestRunner_NetworkErrors(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	r := newQuietRunner(&Config{Count: 3, Concurrency: 1})
	result, err := r.Run(context.Background(), uploadJob(t, url))

	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Summary.Errors)
	assert.Zero(t, result.Summary.P50)
}

func TestRunner_InvalidJob(t *testing.T) {
	r := newQuietRunner(DefaultConfig())
	_, err := r.Run(context.Background(), &runner.Job{URL: "not a url", FileField: "file"})
	require.Error(t, err)
}

func TestRunner_InvalidConfig(t *testing.T) {
	r := newQuietRunner(&Config{Concurrency: 1})
	_, err := r.Run(context.Background(), &runner.Job{})

	var cfgErr *uerrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "bench", cfgErr.Field)
}

func TestReporter_Summary(t *testing.T) {
	var buf bytes.Buffer
	rep := NewReporter(WithWriter(&buf), WithNoColor(true))

	rep.Summary(&Summary{
		Duration:   2 * time.Second,
		Total:      1500,
		Success:    1490,
		Errors:     10,
		BytesSent:  3 << 20,
		RPS:        750,
		Throughput: 1.5 * (1 << 20),
		ErrorRate:  10.0 / 1500,
		P50:        20 * time.Millisecond,
		P95:        80 * time.Millisecond,
	}, []ThresholdResult{{Name: "p95", Passed: true, Expected: "< 100ms", Actual: "80ms"}})

	out := buf.String()
	assert.Contains(t, out, "BENCH SUMMARY")
	assert.Contains(t, out, "1,500")
	assert.Contains(t, out, "3.0 MiB")
	assert.Contains(t, out, "1.5 MiB/s")
	assert.Contains(t, out, "✓ p95 < 100ms")
	assert.Contains(t, out, "All thresholds passed!")
}

func TestReporter_JSONSummary(t *testing.T) {
	var buf bytes.Buffer
	rep := NewReporter(WithWriter(&buf), WithQuiet(true))

	err := rep.JSONSummary(&Result{
		Summary: &Summary{Total: 3, Success: 2, Errors: 1, P95: 40 * time.Millisecond},
		Thresholds: []ThresholdResult{
			{Name: "error rate", Passed: false, Expected: "< 1%", Actual: "33.33%"},
		},
		Passed: false,
	})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, false, got["passed"])
	assert.Equal(t, float64(3), got["uploads"].(map[string]any)["total"])
	assert.Equal(t, float64(40), got["latency"].(map[string]any)["p95"])
	assert.Len(t, got["thresholds"], 1)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "999", formatNumber(999))
	assert.Equal(t, "1,234,567", formatNumber(1234567))
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "2.0 KiB", formatBytes(2048))
	assert.Equal(t, "1m 05s", formatDuration(65*time.Second))
	assert.Equal(t, "250μs", formatLatency(250*time.Microsecond))
}
