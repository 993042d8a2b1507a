package runner

import (
	"time"

	"github.com/abdul-hamid-achik/hitupload/packages/assertions"
	"github.com/abdul-hamid-achik/hitupload/packages/capture"
	"github.com/abdul-hamid-achik/hitupload/packages/core/config"
	"github.com/abdul-hamid-achik/hitupload/packages/http"
)

const (
	DefaultWaitStatus   = 200
	DefaultWaitTimeout  = 30 * time.Second
	DefaultWaitInterval = 500 * time.Millisecond
)

// Job describes one upload. String fields may contain {{...}} placeholders
// until the job goes through Prepare.
type Job struct {
	Method            string
	URL               string
	Version           http.Version
	Fields            []config.Field
	FileField         string
	Files             []string
	Boundary          string
	BaseDir           string
	DetectContentType bool
	CheckBoundary     bool
	Headers           map[string]string
	Auth              string
	Timeout           time.Duration
	Expect            []*assertions.Assertion
	Captures          []*capture.Capture
	Before            []string
	After             []string
	WaitFor           *WaitFor
}

// WaitFor polls URL until it answers with Status or Timeout passes.
type WaitFor struct {
	URL      string
	Status   int
	Timeout  time.Duration
	Interval time.Duration
}

// JobFromConfig builds a Job from a merged configuration.
func JobFromConfig(cfg *config.Config) (*Job, error) {
	version, err := http.ParseVersion(cfg.HTTPVersion)
	if err != nil {
		return nil, err
	}

	expect, err := Expectations(cfg.Expect)
	if err != nil {
		return nil, err
	}

	captures, err := capture.ParseAll(cfg.Extract)
	if err != nil {
		return nil, err
	}

	fileField := cfg.FileField
	if fileField == "" {
		fileField = config.DefaultFileField
	}

	job := &Job{
		Method:            cfg.Method,
		URL:               cfg.URL,
		Version:           version,
		Fields:            append([]config.Field(nil), cfg.Fields...),
		FileField:         fileField,
		Files:             append([]string(nil), cfg.Files...),
		Boundary:          cfg.Boundary,
		BaseDir:           cfg.BaseDir,
		DetectContentType: cfg.GetDetectContentType(),
		CheckBoundary:     cfg.GetCheckBoundary(),
		Headers:           cfg.Headers,
		Auth:              cfg.Auth,
		Timeout:           cfg.TimeoutDuration(),
		Expect:            expect,
		Captures:          captures,
		Before:            cfg.Before,
		After:             cfg.After,
	}

	if w := cfg.WaitFor; w != nil {
		job.WaitFor = &WaitFor{
			URL:      w.URL,
			Status:   w.Status,
			Timeout:  time.Duration(w.Timeout) * time.Millisecond,
			Interval: time.Duration(w.Interval) * time.Millisecond,
		}
		if job.WaitFor.Status == 0 {
			job.WaitFor.Status = DefaultWaitStatus
		}
		if job.WaitFor.Timeout == 0 {
			job.WaitFor.Timeout = DefaultWaitTimeout
		}
		if job.WaitFor.Interval == 0 {
			job.WaitFor.Interval = DefaultWaitInterval
		}
	}

	return job, nil
}

// Expectations converts the expect block into assertions: status codes,
// body substring, each JSON expression and the schema, in that order.
func Expectations(e config.Expect) ([]*assertions.Assertion, error) {
	var out []*assertions.Assertion
	if len(e.Status) > 0 {
		out = append(out, assertions.StatusIn(e.Status...))
	}
	if e.Body != "" {
		out = append(out, assertions.BodyContains(e.Body))
	}
	for _, expr := range e.JSON {
		a, err := assertions.Parse(expr)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if e.Schema != "" {
		out = append(out, assertions.BodySchema(e.Schema))
	}
	return out, nil
}

func (j *Job) method() string {
	if j.Method == "" {
		return "POST"
	}
	return j.Method
}

func (j *Job) clone() *Job {
	c := *j
	c.Fields = append([]config.Field(nil), j.Fields...)
	c.Files = append([]string(nil), j.Files...)
	c.Before = append([]string(nil), j.Before...)
	c.After = append([]string(nil), j.After...)
	if j.Headers != nil {
		c.Headers = make(map[string]string, len(j.Headers))
		for k, v := range j.Headers {
			c.Headers[k] = v
		}
	}
	if j.WaitFor != nil {
		w := *j.WaitFor
		c.WaitFor = &w
	}
	return &c
}
