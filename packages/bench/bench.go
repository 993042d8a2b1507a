package bench

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/hitupload/packages/assertions"
	uerrors "github.com/abdul-hamid-achik/hitupload/packages/core/errors"
	"github.com/abdul-hamid-achik/hitupload/packages/core/runner"
	"github.com/abdul-hamid-achik/hitupload/packages/http"
	"github.com/abdul-hamid-achik/hitupload/packages/logger"
)

const progressInterval = 500 * time.Millisecond

// Uploader is the part of *runner.Runner a bench run needs.
type Uploader interface {
	Prepare(job *runner.Job) (*runner.Job, error)
	Send(ctx context.Context, job *runner.Job) (*http.Response, error)
}

// Runner repeats one upload and aggregates the outcome
type Runner struct {
	config   *Config
	uploader Uploader
	metrics  *Metrics
	reporter *Reporter
	log      zerolog.Logger
}

// Option configures the runner
type Option func(*Runner)

// WithReporter sets the reporter
func WithReporter(reporter *Reporter) Option {
	return func(r *Runner) {
		r.reporter = reporter
	}
}

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) Option {
	return func(r *Runner) {
		r.log = logger.WithComponent(log, "bench")
	}
}

// NewRunner creates a bench runner that sends uploads through uploader.
func NewRunner(cfg *Config, uploader Uploader, opts ...Option) *Runner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	r := &Runner{
		config:   cfg,
		uploader: uploader,
		metrics:  NewMetrics(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.reporter == nil {
		r.reporter = NewReporter(WithNoProgress(true))
	}
	return r
}

// Result holds the final result of a bench run
type Result struct {
	Summary    *Summary
	Thresholds []ThresholdResult
	Passed     bool
}

// FailedThresholds returns the names of the thresholds that failed.
func (r *Result) FailedThresholds() []string {
	var names []string
	for _, tr := range r.Thresholds {
		if !tr.Passed {
			names = append(names, tr.Name)
		}
	}
	return names
}

// Run resolves job once and uploads it until the configured count is sent
// or the duration elapses. Uploads in flight when the duration ends are
// allowed to finish. A run whose thresholds fail returns its Result along
// with an error wrapping ErrThresholds.
func (r *Runner) Run(ctx context.Context, job *runner.Job) (*Result, error) {
	if err := r.config.Validate(); err != nil {
		return nil, &uerrors.ConfigError{Field: "bench", Message: err.Error()}
	}

	prepared, err := r.uploader.Prepare(job)
	if err != nil {
		return nil, err
	}

	r.reporter.Header(prepared, r.config)
	r.log.Info().
		Str(logger.FieldURL, prepared.URL).
		Int("count", r.config.Count).
		Dur("duration", r.config.Duration).
		Float64("rate", r.config.Rate).
		Int("concurrency", r.config.Concurrency).
		Msg("bench started")

	r.metrics.Start()

	scheduleCtx := ctx
	if r.config.Duration > 0 {
		var cancel context.CancelFunc
		scheduleCtx, cancel = context.WithTimeout(ctx, r.config.Duration)
		defer cancel()
	}

	tokens := r.schedule(scheduleCtx)

	var wg sync.WaitGroup
	for i := 0; i < r.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range tokens {
				r.execute(ctx, prepared)
			}
		}()
	}

	progressDone := make(chan struct{})
	progressStopped := make(chan struct{})
	go r.progressLoop(progressDone, progressStopped)

	wg.Wait()
	r.metrics.Stop()
	close(progressDone)
	<-progressStopped
	r.reporter.ClearProgress()

	summary := r.metrics.GetSummary()
	result := &Result{Summary: summary, Passed: true}
	if r.config.Thresholds.HasThresholds() {
		result.Thresholds = EvaluateThresholds(summary, r.config.Thresholds)
		result.Passed = len(result.FailedThresholds()) == 0
	}
	r.reporter.Summary(summary, result.Thresholds)

	r.log.Info().
		Int64("total", summary.Total).
		Float64("rps", summary.RPS).
		Bool("passed", result.Passed).
		Msg("bench finished")

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if !result.Passed {
		return result, fmt.Errorf("%w: %s", uerrors.ErrThresholds, strings.Join(result.FailedThresholds(), ", "))
	}
	return result, nil
}

// schedule emits one token per upload, paced by the rate limiter, until
// the count is reached or ctx ends.
func (r *Runner) schedule(ctx context.Context) <-chan struct{} {
	tokens := make(chan struct{})

	var limiter *rate.Limiter
	if r.config.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.config.Rate), 1)
	}

	go func() {
		defer close(tokens)
		for sent := 0; r.config.Count == 0 || sent < r.config.Count; sent++ {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
			select {
			case tokens <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return tokens
}

func (r *Runner) execute(ctx context.Context, job *runner.Job) {
	r.metrics.IncrementInFlight()
	defer r.metrics.DecrementInFlight()

	resp, err := r.uploader.Send(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.log.Debug().Err(err).Msg("upload failed")
		r.metrics.Record(OutcomeError, 0, 0)
		return
	}

	outcome := OutcomeSuccess
	if len(job.Expect) > 0 {
		results := assertions.EvaluateAllWithBaseDir(resp, job.Expect, job.BaseDir)
		if !assertions.AllPassed(results) {
			outcome = OutcomeFailed
			r.log.Debug().Int(logger.FieldStatus, resp.StatusCode).Msg("expectations failed")
		}
	}
	r.metrics.Record(outcome, resp.Duration, resp.BytesSent)
}

func (r *Runner) progressLoop(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.reporter.Progress(r.metrics.GetCurrentStats(), r.config)
		}
	}
}
