// Package bench repeats one upload for a fixed count or duration and
// reports latency percentiles, error rate and throughput.
//
// Requests are paced by a token-bucket limiter and run on a fixed pool of
// workers. Pass/fail thresholds such as "p95<500ms,errors<1%" decide the
// outcome.
package bench

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitupload/packages/core/config"
	uerrors "github.com/abdul-hamid-achik/hitupload/packages/core/errors"
)

const (
	// DefaultCount is used when neither a count nor a duration is set
	DefaultCount       = 10
	DefaultConcurrency = 1
)

// Config holds all configuration for a bench run
type Config struct {
	Count       int           // total uploads; 0 means until Duration elapses
	Duration    time.Duration // 0 means until Count uploads are done
	Rate        float64       // uploads per second; 0 means unlimited
	Concurrency int           // parallel workers
	Thresholds  Thresholds
}

// Thresholds defines pass/fail criteria for a bench run
type Thresholds struct {
	P50        time.Duration
	P95        time.Duration
	P99        time.Duration
	MaxLatency time.Duration
	ErrorRate  float64 // 0.0 - 1.0
	MinRPS     float64
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Count:       DefaultCount,
		Concurrency: DefaultConcurrency,
	}
}

// FromConfig converts the bench section of a config file.
func FromConfig(b config.Bench) (*Config, error) {
	c := &Config{
		Count:       b.Count,
		Rate:        b.Rate,
		Concurrency: b.Concurrency,
	}
	if b.Duration != "" {
		d, err := time.ParseDuration(b.Duration)
		if err != nil {
			return nil, &uerrors.ConfigError{Field: "bench.duration", Value: b.Duration, Message: err.Error()}
		}
		c.Duration = d
	}
	t, err := ParseThresholds(b.Thresholds)
	if err != nil {
		return nil, &uerrors.ConfigError{Field: "bench.thresholds", Value: b.Thresholds, Message: err.Error()}
	}
	c.Thresholds = t

	if c.Count == 0 && c.Duration == 0 {
		c.Count = DefaultCount
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if err := c.Validate(); err != nil {
		return nil, &uerrors.ConfigError{Field: "bench", Message: err.Error()}
	}
	return c, nil
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Count < 0 {
		return fmt.Errorf("count cannot be negative")
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration cannot be negative")
	}
	if c.Count == 0 && c.Duration == 0 {
		return fmt.Errorf("either count or duration must be set")
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate cannot be negative")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	return nil
}

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>]=?)\s*(.+)$`)

// ParseThresholds parses a threshold string like "p95<200ms,errors<0.1%"
func ParseThresholds(s string) (Thresholds, error) {
	var t Thresholds

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if err := parseThresholdPart(part, &t); err != nil {
			return t, err
		}
	}
	return t, nil
}

func parseThresholdPart(part string, t *Thresholds) error {
	matches := thresholdPattern.FindStringSubmatch(part)
	if len(matches) != 4 {
		return fmt.Errorf("invalid threshold format: %s", part)
	}

	metric := strings.ToLower(matches[1])
	op := matches[2]
	value := strings.TrimSpace(matches[3])
	upper := op == "<" || op == "<="

	switch metric {
	case "p50", "p95", "p99", "max", "maxlatency":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", metric, value)
		}
		if !upper {
			return fmt.Errorf("%s threshold must use < or <=", metric)
		}
		switch metric {
		case "p50":
			t.P50 = d
		case "p95":
			t.P95 = d
		case "p99":
			t.P99 = d
		default:
			t.MaxLatency = d
		}

	case "errors", "error", "errorrate":
		percent := strings.HasSuffix(value, "%")
		f, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
		if err != nil {
			return fmt.Errorf("invalid error rate: %s", value)
		}
		if percent {
			f /= 100
		}
		if !upper {
			return fmt.Errorf("error rate threshold must use < or <=")
		}
		t.ErrorRate = f

	case "rps", "rate":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid RPS: %s", value)
		}
		if upper {
			return fmt.Errorf("RPS threshold must use > or >=")
		}
		t.MinRPS = f

	default:
		return fmt.Errorf("unknown threshold metric: %s", metric)
	}
	return nil
}

// HasThresholds returns true if any thresholds are configured
func (t *Thresholds) HasThresholds() bool {
	return t.P50 > 0 || t.P95 > 0 || t.P99 > 0 || t.MaxLatency > 0 || t.ErrorRate > 0 || t.MinRPS > 0
}

// ThresholdResult holds the result of evaluating a threshold
type ThresholdResult struct {
	Name     string
	Passed   bool
	Expected string
	Actual   string
}
