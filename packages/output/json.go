package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/hitupload/packages/core/runner"
	"github.com/abdul-hamid-achik/hitupload/packages/history"
)

// JSONResult represents one upload in JSON output
type JSONResult struct {
	Method     string          `json:"method"`
	URL        string          `json:"url"`
	Version    string          `json:"version"`
	Files      []string        `json:"files"`
	Passed     bool            `json:"passed"`
	Attempts   int             `json:"attempts"`
	Duration   float64         `json:"duration"`
	BytesSent  int64           `json:"bytesSent"`
	Error      string          `json:"error,omitempty"`
	Response   *JSONResponse   `json:"response,omitempty"`
	Assertions []JSONAssertion `json:"assertions,omitempty"`
	Captures   map[string]any  `json:"captures,omitempty"`
	Missing    []string        `json:"missingCaptures,omitempty"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Proto      string            `json:"proto"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       any               `json:"body,omitempty"`
	Duration   float64           `json:"duration"`
}

// JSONAssertion represents an assertion result
type JSONAssertion struct {
	Subject  string `json:"subject"`
	Operator string `json:"operator"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

// JSONHistoryEntry represents one history row
type JSONHistoryEntry struct {
	ID       int64    `json:"id"`
	Time     string   `json:"time"`
	Method   string   `json:"method"`
	URL      string   `json:"url"`
	Files    []string `json:"files"`
	Bytes    int64    `json:"bytes"`
	Status   int      `json:"status"`
	Duration float64  `json:"duration"`
	Passed   bool     `json:"passed"`
	Error    string   `json:"error,omitempty"`
}

// JSONFormatter formats results as indented JSON documents
type JSONFormatter struct {
	writer io.Writer
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

// ToJSON converts a result to its JSON shape. A JSON response body is
// embedded as a value, anything else as a string.
func ToJSON(r *runner.Result) JSONResult {
	out := JSONResult{
		Method:    r.Method,
		URL:       r.URL,
		Version:   r.Version.String(),
		Files:     r.Files,
		Passed:    r.Passed,
		Attempts:  r.Attempts,
		Duration:  float64(r.Duration.Milliseconds()),
		BytesSent: r.BytesSent,
		Missing:   r.Missing,
	}
	if out.Files == nil {
		out.Files = []string{}
	}

	if r.Error != nil {
		out.Error = r.Error.Error()
	}

	if resp := r.Response; resp != nil {
		jr := &JSONResponse{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Proto:      resp.Proto,
			Headers:    resp.Headers,
			Duration:   float64(resp.Duration.Milliseconds()),
		}
		if len(resp.Body) > 0 {
			if resp.IsJSON() && json.Valid(resp.Body) {
				jr.Body = json.RawMessage(resp.Body)
			} else {
				jr.Body = resp.BodyString()
			}
		}
		out.Response = jr
	}

	if len(r.Assertions) > 0 {
		out.Assertions = make([]JSONAssertion, len(r.Assertions))
		for i, a := range r.Assertions {
			out.Assertions[i] = JSONAssertion{
				Subject:  a.Subject,
				Operator: a.Operator,
				Expected: a.Expected,
				Actual:   a.Actual,
				Passed:   a.Passed,
				Message:  a.Message,
			}
		}
	}

	if len(r.Captures) > 0 {
		out.Captures = r.Captures
	}
	return out
}

func (f *JSONFormatter) FormatResult(result *runner.Result) error {
	return f.encode(ToJSON(result))
}

func (f *JSONFormatter) FormatHistory(entries []history.Entry) error {
	out := make([]JSONHistoryEntry, len(entries))
	for i, e := range entries {
		files := e.Files
		if files == nil {
			files = []string{}
		}
		out[i] = JSONHistoryEntry{
			ID:       e.ID,
			Time:     e.Time.Format(time.RFC3339),
			Method:   e.Method,
			URL:      e.URL,
			Files:    files,
			Bytes:    e.Bytes,
			Status:   e.Status,
			Duration: float64(e.Duration.Milliseconds()),
			Passed:   e.Passed,
			Error:    e.Error,
		}
	}
	return f.encode(out)
}

func (f *JSONFormatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
