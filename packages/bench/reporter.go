package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/hitupload/packages/core/runner"
)

// Reporter handles output for bench runs
type Reporter struct {
	writer     io.Writer
	noColor    bool
	noProgress bool
	quiet      bool

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	bold   *color.Color
}

// ReporterOption configures the reporter
type ReporterOption func(*Reporter)

// WithWriter sets the output writer
func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.writer = w
	}
}

// WithNoColor disables colored output
func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) {
		r.noColor = noColor
	}
}

// WithNoProgress disables the live progress display
func WithNoProgress(noProgress bool) ReporterOption {
	return func(r *Reporter) {
		r.noProgress = noProgress
	}
}

// WithQuiet suppresses the header and summary, for JSON output
func WithQuiet(quiet bool) ReporterOption {
	return func(r *Reporter) {
		r.quiet = quiet
	}
}

// NewReporter creates a new reporter
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.noColor {
		color.NoColor = true
	}
	r.green = color.New(color.FgGreen)
	r.red = color.New(color.FgRed)
	r.yellow = color.New(color.FgYellow)
	r.cyan = color.New(color.FgCyan)
	r.bold = color.New(color.Bold)

	return r
}

// Header prints what is about to be benchmarked
func (r *Reporter) Header(job *runner.Job, cfg *Config) {
	if r.quiet {
		return
	}

	fmt.Fprintln(r.writer)
	r.cyan.Fprintf(r.writer, "Benchmarking %s %s\n", methodOrPost(job.Method), job.URL)
	fmt.Fprintf(r.writer, "Files: %s\n", strings.Join(job.Files, ", "))

	var details []string
	if cfg.Count > 0 {
		details = append(details, fmt.Sprintf("Uploads: %d", cfg.Count))
	}
	if cfg.Duration > 0 {
		details = append(details, fmt.Sprintf("Duration: %s", cfg.Duration))
	}
	if cfg.Rate > 0 {
		details = append(details, fmt.Sprintf("Rate: %s/s", formatFloat(cfg.Rate)))
	} else {
		details = append(details, "Rate: unlimited")
	}
	details = append(details, fmt.Sprintf("Concurrency: %d", cfg.Concurrency))

	fmt.Fprintln(r.writer, strings.Join(details, " | "))
	fmt.Fprintln(r.writer)
}

// Progress prints the live progress block and moves the cursor back up
func (r *Reporter) Progress(stats CurrentStats, cfg *Config) {
	if r.noProgress || r.quiet {
		return
	}

	fmt.Fprint(r.writer, "\r\033[K")

	var progress float64
	var label string
	if cfg.Count > 0 {
		progress = float64(stats.Total) / float64(cfg.Count)
		label = fmt.Sprintf("%d / %d", stats.Total, cfg.Count)
	} else {
		progress = float64(stats.Elapsed) / float64(cfg.Duration)
		label = fmt.Sprintf("%s / %s", formatDuration(stats.Elapsed), formatDuration(cfg.Duration))
	}
	if progress > 1 {
		progress = 1
	}
	const barWidth = 30
	filled := int(progress * barWidth)
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)
	fmt.Fprintf(r.writer, "Progress %s %s\n", bar, label)

	fmt.Fprint(r.writer, "Uploads: ")
	r.bold.Fprint(r.writer, formatNumber(stats.Total))
	fmt.Fprint(r.writer, " total | ")
	r.green.Fprint(r.writer, formatNumber(stats.Success))
	fmt.Fprint(r.writer, " ok | ")
	if stats.Errors > 0 {
		r.red.Fprint(r.writer, formatNumber(stats.Errors))
	} else {
		fmt.Fprint(r.writer, formatNumber(stats.Errors))
	}
	fmt.Fprintf(r.writer, " failed (%.2f%%)\n", stats.ErrorRate*100)

	fmt.Fprintf(r.writer, "Rate: %.1f/s | In flight: %d | p50: %s | p95: %s | max: %s\n",
		stats.RPS, stats.InFlight,
		formatLatency(stats.P50), formatLatency(stats.P95), formatLatency(stats.Max))

	fmt.Fprint(r.writer, "\033[3A")
}

// ClearProgress clears the progress display
func (r *Reporter) ClearProgress() {
	if r.noProgress || r.quiet {
		return
	}
	fmt.Fprint(r.writer, "\033[3B\r\033[K\033[A\r\033[K\033[A\r\033[K\033[A\r\033[K")
}

// Summary prints the final summary
func (r *Reporter) Summary(s *Summary, thresholds []ThresholdResult) {
	if r.quiet {
		return
	}

	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "BENCH SUMMARY")
	fmt.Fprintln(r.writer, strings.Repeat("─", 40))

	fmt.Fprintf(r.writer, "Duration:   %s\n", formatDuration(s.Duration))
	fmt.Fprint(r.writer, "Uploads:    ")
	r.bold.Fprint(r.writer, formatNumber(s.Total))
	fmt.Fprintf(r.writer, " (%.1f/s)\n", s.RPS)

	fmt.Fprint(r.writer, "Passed:     ")
	r.green.Fprint(r.writer, formatNumber(s.Success))
	fmt.Fprintln(r.writer)

	if s.Failed > 0 {
		fmt.Fprint(r.writer, "Failed:     ")
		r.yellow.Fprintf(r.writer, "%s", formatNumber(s.Failed))
		fmt.Fprintln(r.writer, " (expectations)")
	}
	fmt.Fprint(r.writer, "Errors:     ")
	if s.Errors > 0 {
		r.red.Fprint(r.writer, formatNumber(s.Errors))
	} else {
		fmt.Fprint(r.writer, formatNumber(s.Errors))
	}
	fmt.Fprintf(r.writer, " (error rate %.1f%%)\n", s.ErrorRate*100)

	fmt.Fprintf(r.writer, "Sent:       %s (%s/s)\n", formatBytes(s.BytesSent), formatBytes(int64(s.Throughput)))

	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "LATENCY (ms)")
	fmt.Fprintf(r.writer, "  p50: %-6s | p95: %-6s | p99: %-6s | max: %s\n",
		formatLatencyMs(s.P50), formatLatencyMs(s.P95), formatLatencyMs(s.P99), formatLatencyMs(s.Max))
	fmt.Fprintf(r.writer, "  min: %-6s | mean: %-5s | stddev: %s\n",
		formatLatencyMs(s.Min), formatLatencyMs(s.Mean), formatLatencyMs(s.StdDev))

	if len(thresholds) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "THRESHOLDS")
		allPassed := true
		for _, tr := range thresholds {
			if tr.Passed {
				r.green.Fprint(r.writer, "  ✓ ")
			} else {
				r.red.Fprint(r.writer, "  ✗ ")
				allPassed = false
			}
			fmt.Fprintf(r.writer, "%s %s    (actual: %s)\n", tr.Name, tr.Expected, tr.Actual)
		}

		fmt.Fprintln(r.writer)
		if allPassed {
			r.green.Fprintln(r.writer, "All thresholds passed!")
		} else {
			r.red.Fprintln(r.writer, "Some thresholds failed!")
		}
	}

	fmt.Fprintln(r.writer)
}

// JSONSummary writes the result as indented JSON
func (r *Reporter) JSONSummary(result *Result) error {
	s := result.Summary
	output := map[string]any{
		"duration": s.Duration.String(),
		"passed":   result.Passed,
		"uploads": map[string]any{
			"total":   s.Total,
			"success": s.Success,
			"failed":  s.Failed,
			"errors":  s.Errors,
		},
		"rates": map[string]any{
			"rps":        s.RPS,
			"errorRate":  s.ErrorRate,
			"throughput": s.Throughput,
			"bytesSent":  s.BytesSent,
		},
		"latency": map[string]any{
			"p50":    s.P50.Milliseconds(),
			"p95":    s.P95.Milliseconds(),
			"p99":    s.P99.Milliseconds(),
			"min":    s.Min.Milliseconds(),
			"max":    s.Max.Milliseconds(),
			"mean":   s.Mean.Milliseconds(),
			"stddev": s.StdDev.Milliseconds(),
		},
	}

	if len(result.Thresholds) > 0 {
		thresholds := make([]map[string]any, len(result.Thresholds))
		for i, tr := range result.Thresholds {
			thresholds[i] = map[string]any{
				"name":     tr.Name,
				"passed":   tr.Passed,
				"expected": tr.Expected,
				"actual":   tr.Actual,
			}
		}
		output["thresholds"] = thresholds
	}

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func methodOrPost(m string) string {
	if m == "" {
		return "POST"
	}
	return strings.ToUpper(m)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if seconds == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm %02ds", minutes, seconds)
}

func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dμs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatLatencyMs(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000
	if ms < 1 {
		return fmt.Sprintf("%.2f", ms)
	}
	if ms < 10 {
		return fmt.Sprintf("%.1f", ms)
	}
	return fmt.Sprintf("%.0f", ms)
}

// formatNumber formats a number with thousands separators
func formatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	if n < 1000 {
		return s
	}

	result := make([]byte, 0, len(s)+(len(s)-1)/3)
	start := len(s) % 3
	if start == 0 {
		start = 3
	}
	result = append(result, s[:start]...)
	for i := start; i < len(s); i += 3 {
		result = append(result, ',')
		result = append(result, s[i:i+3]...)
	}
	return string(result)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
