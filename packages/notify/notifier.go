// Package notify posts upload and bench outcomes to chat webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitupload/packages/bench"
	"github.com/abdul-hamid-achik/hitupload/packages/core/runner"
	"github.com/abdul-hamid-achik/hitupload/packages/http"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends a notification for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when a run fails
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when a run passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends failures plus the first pass after a failure
	NotifyRecovery NotifyOn = "recovery"
)

const sendTimeout = 10 * time.Second

// ParseNotifyOn validates a policy name. Empty means failure.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch NotifyOn(s) {
	case "":
		return NotifyFailure, nil
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return NotifyOn(s), nil
	}
	return "", fmt.Errorf("unknown notify policy %q (use always, failure, success or recovery)", s)
}

// Kind tells which command produced a report.
type Kind string

const (
	KindUpload Kind = "upload"
	KindBench  Kind = "bench"
)

// Report is what a notifier renders.
type Report struct {
	Kind       Kind
	Target     string
	Files      []string
	Passed     bool
	Status     string
	Duration   time.Duration
	Attempts   int
	Bytes      int64
	Failures   []string
	IsRecovery bool

	// Bench only.
	Total  int64
	Errors int64
	P95    time.Duration
	RPS    float64
}

// Title is the one-line headline shared by every notifier.
func (r *Report) Title() string {
	switch {
	case !r.Passed && r.Kind == KindBench:
		return "Bench failed"
	case !r.Passed:
		return "Upload failed"
	case r.IsRecovery:
		return "Uploads recovered"
	case r.Kind == KindBench:
		return "Bench passed"
	default:
		return "Upload succeeded"
	}
}

// FromUpload summarizes one upload. err is the error Upload returned.
func FromUpload(res *runner.Result, err error) *Report {
	r := &Report{Kind: KindUpload, Passed: err == nil}
	if res != nil {
		r.Target = res.URL
		r.Files = res.Files
		r.Duration = res.Duration
		r.Attempts = res.Attempts
		r.Bytes = res.BytesSent
		if res.Response != nil {
			r.Status = res.Response.Status
		}
		for _, a := range res.Assertions {
			if !a.Passed {
				r.Failures = append(r.Failures, a.Message)
			}
		}
	}
	if err != nil && len(r.Failures) == 0 {
		r.Failures = append(r.Failures, err.Error())
	}
	return r
}

// FromBench summarizes a bench run against target.
func FromBench(target string, files []string, res *bench.Result, err error) *Report {
	r := &Report{Kind: KindBench, Target: target, Files: files, Passed: err == nil}
	if res != nil {
		s := res.Summary
		r.Duration = s.Duration
		r.Bytes = s.BytesSent
		r.Total = s.Total
		r.Errors = s.Failed + s.Errors
		r.P95 = s.P95
		r.RPS = s.RPS
		r.Passed = r.Passed && res.Passed
		for _, tr := range res.Thresholds {
			if !tr.Passed {
				r.Failures = append(r.Failures, fmt.Sprintf("%s: %s (limit %s)", tr.Name, tr.Actual, tr.Expected))
			}
		}
	}
	if err != nil && len(r.Failures) == 0 {
		r.Failures = append(r.Failures, err.Error())
	}
	return r
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends one report
	Notify(ctx context.Context, report *Report) error

	// Name returns the name of the notifier
	Name() string
}

// Manager applies a NotifyOn policy across several notifiers.
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true,
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Len returns how many notifiers are registered.
func (m *Manager) Len() int {
	return len(m.notifiers)
}

// Notify sends report to every notifier if the policy calls for it. All
// notifiers are tried; their errors are joined.
func (m *Manager) Notify(ctx context.Context, report *Report) error {
	if m == nil || len(m.notifiers) == 0 {
		return nil
	}

	shouldNotify := false
	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
	case NotifyFailure:
		shouldNotify = !report.Passed
	case NotifySuccess:
		shouldNotify = report.Passed
	case NotifyRecovery:
		if !m.lastState && report.Passed {
			shouldNotify = true
			report.IsRecovery = true
		}
		if !report.Passed {
			shouldNotify = true
		}
	}
	m.lastState = report.Passed

	if !shouldNotify {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// postJSON sends body to a webhook and checks the status against ok.
func postJSON(ctx context.Context, client *http.Client, url string, body []byte, ok ...int) error {
	req := http.NewRequest("POST", url)
	req.Headers["Content-Type"] = "application/json"
	req.Body = body

	resp, err := client.Do(ctx, req)
	if err != nil {
		return err
	}
	for _, code := range ok {
		if resp.StatusCode == code {
			return nil
		}
	}
	return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(resp.Body))
}

func newWebhookClient() *http.Client {
	return http.NewClient(
		http.WithTimeout(sendTimeout),
		http.WithUserAgent("hitupload-notify"),
		http.WithDefaultHeaders(map[string]string{"Accept": "application/json"}),
	)
}
