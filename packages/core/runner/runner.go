package runner

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/abdul-hamid-achik/hitupload/packages/assertions"
	"github.com/abdul-hamid-achik/hitupload/packages/capture"
	"github.com/abdul-hamid-achik/hitupload/packages/core/env"
	uerrors "github.com/abdul-hamid-achik/hitupload/packages/core/errors"
	"github.com/abdul-hamid-achik/hitupload/packages/form"
	"github.com/abdul-hamid-achik/hitupload/packages/history"
	"github.com/abdul-hamid-achik/hitupload/packages/http"
	"github.com/abdul-hamid-achik/hitupload/packages/logger"
	"github.com/abdul-hamid-achik/hitupload/packages/telemetry"
)

const (
	// DefaultRetryDelay is the delay between retries when none is configured
	DefaultRetryDelay = time.Second
)

// Recorder stores finished uploads. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, e *history.Entry) error
}

type Runner struct {
	client     *http.Client
	resolver   *env.Resolver
	config     *Config
	log        zerolog.Logger
	tracer     trace.Tracer
	metrics    *telemetry.Metrics
	propagator propagation.TextMapPropagator
}

type Config struct {
	Retries       int
	RetryDelay    time.Duration
	ClientOptions []http.ClientOption
	Resolver      *env.Resolver
	History       Recorder
	Logger        zerolog.Logger

	// Tracer, Meter and Propagator default to the global OpenTelemetry
	// providers, which are no-ops unless telemetry.Setup installed some.
	Tracer     trace.Tracer
	Meter      metric.Meter
	Propagator propagation.TextMapPropagator
}

func NewRunner(cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}

	resolver := cfg.Resolver
	if resolver == nil {
		resolver = env.NewResolver()
	}

	log := logger.WithComponent(cfg.Logger, "runner")
	resolver.SetWarnFunc(func(format string, args ...any) {
		log.Warn().Msgf(format, args...)
	})

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(telemetry.InstrumentationName)
	}
	propagator := cfg.Propagator
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter(telemetry.InstrumentationName)
	}
	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		log.Warn().Err(err).Msg("upload metrics disabled")
		metrics, _ = telemetry.NewMetrics(noop.NewMeterProvider().Meter(telemetry.InstrumentationName))
	}

	return &Runner{
		client:     http.NewClient(cfg.ClientOptions...),
		resolver:   resolver,
		config:     cfg,
		log:        log,
		tracer:     tracer,
		metrics:    metrics,
		propagator: propagator,
	}
}

// Resolver returns the placeholder resolver captures are fed into.
func (r *Runner) Resolver() *env.Resolver {
	return r.resolver
}

// Result is the outcome of one upload.
type Result struct {
	Method     string
	URL        string
	Version    http.Version
	Files      []string
	Attempts   int
	Duration   time.Duration
	BytesSent  int64
	Response   *http.Response
	Assertions []*assertions.Result
	Captures   map[string]any
	Missing    []string
	Passed     bool
	Error      error
}

// Upload resolves job, waits for the service and runs the before commands,
// sends the form (retrying network errors), then evaluates expectations,
// extracts captures, records history and runs the after commands.
//
// The returned Result is non-nil whenever job was valid, even when err is
// set, so callers can report partial outcomes.
func (r *Runner) Upload(ctx context.Context, job *Job) (*Result, error) {
	prepared, err := r.Prepare(job)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Method:   prepared.method(),
		URL:      prepared.URL,
		Version:  prepared.Version,
		Files:    prepared.Files,
		Captures: make(map[string]any),
	}

	ctx, span := r.tracer.Start(ctx, "upload "+result.Method, trace.WithAttributes(
		attribute.String("http.request.method", result.Method),
		attribute.String("url.full", result.URL),
		attribute.StringSlice("hitupload.files", result.Files),
	))
	defer func() {
		span.SetAttributes(
			attribute.Int("hitupload.attempts", result.Attempts),
			attribute.Bool("hitupload.passed", result.Passed),
		)
		if result.Error != nil {
			span.RecordError(result.Error)
			span.SetStatus(codes.Error, result.Error.Error())
		}
		span.End()
	}()

	if err := r.waitForService(ctx, prepared.WaitFor); err != nil {
		result.Error = err
		return result, err
	}
	if err := r.executeBeforeHooks(ctx, prepared.Before, prepared.BaseDir); err != nil {
		result.Error = err
		return result, err
	}

	err = r.upload(ctx, prepared, result)
	r.record(ctx, result)

	if hookErr := r.executeAfterHooks(ctx, prepared.After, prepared.BaseDir); hookErr != nil && err == nil {
		err = hookErr
		result.Error = err
	}
	return result, err
}

func (r *Runner) upload(ctx context.Context, job *Job, result *Result) error {
	req, err := r.NewRequest(job)
	if err != nil {
		result.Error = err
		return err
	}
	if job.CheckBoundary {
		if err := req.Form.CheckBoundary(); err != nil {
			result.Error = err
			return err
		}
	}

	start := time.Now()
	resp, attempts, err := r.sendWithRetry(ctx, req)
	result.Attempts = attempts
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err
		return err
	}

	result.Response = resp
	result.BytesSent = resp.BytesSent
	r.log.Info().
		Int(logger.FieldStatus, resp.StatusCode).
		Dur(logger.FieldDuration, resp.Duration).
		Int64("bytes", resp.BytesSent).
		Msg("upload finished")

	result.Passed = true
	if len(job.Expect) > 0 {
		result.Assertions = assertions.EvaluateAllWithBaseDir(resp, job.Expect, job.BaseDir)
		result.Passed = assertions.AllPassed(result.Assertions)
	}

	if len(job.Captures) > 0 {
		values, missing := capture.ExtractAll(resp, job.Captures)
		result.Captures = values
		result.Missing = missing
		r.resolver.SetCaptures(values)
		for _, name := range missing {
			r.log.Warn().Str("capture", name).Msg("capture not found in response")
		}
	}

	if !result.Passed {
		result.Error = fmt.Errorf("%w:\n%s", uerrors.ErrExpectation, assertions.Failures(result.Assertions))
		return result.Error
	}
	return nil
}

// Prepare resolves placeholders in a copy of job and validates it.
func (r *Runner) Prepare(job *Job) (*Job, error) {
	p := job.clone()

	p.URL = r.resolver.Resolve(p.URL)
	for i := range p.Fields {
		p.Fields[i].Value = r.resolver.Resolve(p.Fields[i].Value)
	}
	for i := range p.Files {
		p.Files[i] = r.resolver.Resolve(p.Files[i])
	}
	if p.Headers != nil {
		p.Headers = r.resolver.ResolveAll(p.Headers)
	}
	p.Auth = r.resolver.Resolve(p.Auth)
	for i := range p.Before {
		p.Before[i] = r.resolver.Resolve(p.Before[i])
	}
	for i := range p.After {
		p.After[i] = r.resolver.Resolve(p.After[i])
	}
	if p.WaitFor != nil {
		p.WaitFor.URL = r.resolver.Resolve(p.WaitFor.URL)
	}

	if names := r.resolver.GetUnresolvedVariables(p.URL); len(names) > 0 {
		r.log.Warn().Strs("variables", names).Msg("unresolved variables in URL")
	}

	if err := http.ValidateURL(p.URL); err != nil {
		return nil, &uerrors.ConfigError{Field: "url", Value: p.URL, Message: err.Error()}
	}
	if len(p.Files) == 0 {
		return nil, uerrors.ErrNoFiles
	}
	for _, f := range p.Files {
		if r.resolver.HasUnresolvedVariables(f) {
			return nil, &uerrors.ConfigError{Field: "files", Value: f, Message: "unresolved placeholder in file path"}
		}
	}
	if _, err := http.ParseAuth(p.Auth); err != nil {
		return nil, &uerrors.ConfigError{Field: "auth", Message: err.Error()}
	}
	return p, nil
}

// NewRequest builds the form and request for a prepared job: the text
// fields in order, then one part per file under FileField.
func (r *Runner) NewRequest(job *Job) (*http.Request, error) {
	opts := []form.Option{
		form.WithBaseDir(job.BaseDir),
		form.WithDetectContentType(job.DetectContentType),
	}
	if job.Boundary != "" {
		opts = append(opts, form.WithBoundary(job.Boundary))
	}

	f, err := form.New(opts...)
	if err != nil {
		return nil, err
	}
	for _, field := range job.Fields {
		f.AddField(field.Name, field.Value)
	}
	for _, path := range job.Files {
		if err := f.AddFile(job.FileField, path); err != nil {
			return nil, err
		}
	}

	req := http.NewRequest(job.method(), job.URL)
	req.Form = f
	req.Version = job.Version
	req.Timeout = job.Timeout
	for k, v := range job.Headers {
		req.SetHeader(k, v)
	}

	auth, err := http.ParseAuth(job.Auth)
	if err != nil {
		return nil, err
	}
	req.Auth = auth
	return req, nil
}

// Send builds a fresh request for a prepared job and performs a single
// attempt. It touches no shared state, so it is safe to call concurrently.
func (r *Runner) Send(ctx context.Context, job *Job) (*http.Response, error) {
	req, err := r.NewRequest(job)
	if err != nil {
		return nil, err
	}
	return r.do(ctx, req)
}

// do performs one attempt inside its own client span, propagating the
// trace context in the request headers and recording upload metrics.
func (r *Runner) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	ctx, span := r.tracer.Start(ctx, "upload.attempt",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", req.URL),
			attribute.String("network.protocol.version", req.Version.String()),
		),
	)
	defer span.End()

	r.propagator.Inject(ctx, propagation.MapCarrier(req.Headers))

	r.metrics.Start(ctx)
	resp, err := r.client.Do(ctx, req)
	if err != nil {
		r.metrics.End(ctx, req.Method, nil)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	r.metrics.End(ctx, req.Method, resp)

	span.SetAttributes(
		attribute.Int("http.response.status_code", resp.StatusCode),
		attribute.Int64("http.request.body.size", resp.BytesSent),
	)
	if resp.IsServerError() {
		span.SetStatus(codes.Error, resp.Status)
	}
	return resp, nil
}

// DryRun writes the request a prepared job would send to w.
func (r *Runner) DryRun(w io.Writer, job *Job) error {
	req, err := r.NewRequest(job)
	if err != nil {
		return err
	}
	if job.CheckBoundary {
		if err := req.Form.CheckBoundary(); err != nil {
			return err
		}
	}
	_, err = r.client.DryRun(w, req)
	return err
}

// sendWithRetry sends req, retrying retryable network errors up to
// config.Retries times. It returns the number of attempts made.
func (r *Runner) sendWithRetry(ctx context.Context, req *http.Request) (*http.Response, int, error) {
	delay := r.config.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	var (
		resp *http.Response
		err  error
	)
	for attempt := 0; attempt <= r.config.Retries; attempt++ {
		r.log.Debug().Str(logger.FieldURL, req.URL).Int(logger.FieldAttempt, attempt+1).Msg("sending upload")

		resp, err = r.do(ctx, req)
		if err == nil {
			return resp, attempt + 1, nil
		}
		if !uerrors.IsRetryable(err) || attempt == r.config.Retries {
			return nil, attempt + 1, err
		}

		r.log.Warn().Err(err).Int(logger.FieldAttempt, attempt+1).Dur("delay", delay).Msg("upload failed, retrying")

		select {
		case <-ctx.Done():
			return nil, attempt + 1, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, r.config.Retries + 1, err
}

func (r *Runner) record(ctx context.Context, result *Result) {
	if r.config.History == nil {
		return
	}

	entry := &history.Entry{
		Method:   result.Method,
		URL:      result.URL,
		Files:    result.Files,
		Bytes:    result.BytesSent,
		Duration: result.Duration,
		Passed:   result.Passed,
	}
	if result.Response != nil {
		entry.Status = result.Response.StatusCode
	}
	if result.Error != nil {
		entry.Error = result.Error.Error()
	}

	// History must not fail an upload that already happened.
	if err := r.config.History.Record(context.WithoutCancel(ctx), entry); err != nil {
		r.log.Warn().Err(err).Msg("could not record upload history")
	}
}
