package capture

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitupload/packages/http"
	"github.com/tidwall/gjson"
)

type Source int

const (
	SourceBody Source = iota
	SourceHeader
	SourceStatus
	SourceDuration
)

func (s Source) String() string {
	switch s {
	case SourceBody:
		return "body"
	case SourceHeader:
		return "header"
	case SourceStatus:
		return "status"
	case SourceDuration:
		return "duration"
	default:
		return "unknown"
	}
}

type Capture struct {
	Name   string
	Source Source
	Path   string
}

// Parse reads "name=source[.path]".
func Parse(expr string) (*Capture, error) {
	name, source, ok := strings.Cut(strings.TrimSpace(expr), "=")
	name = strings.TrimSpace(name)
	source = strings.TrimSpace(source)
	if !ok || name == "" || source == "" {
		return nil, fmt.Errorf("invalid capture %q: expected name=source", expr)
	}

	c := &Capture{Name: name}
	kind, path, _ := strings.Cut(source, ".")
	switch strings.ToLower(kind) {
	case "body":
		c.Source = SourceBody
		c.Path = path
	case "header":
		if path == "" {
			return nil, fmt.Errorf("invalid capture %q: header needs a name", expr)
		}
		c.Source = SourceHeader
		c.Path = path
	case "status":
		c.Source = SourceStatus
	case "duration":
		c.Source = SourceDuration
	default:
		return nil, fmt.Errorf("invalid capture %q: unknown source %q (body, header, status, duration)", expr, kind)
	}
	return c, nil
}

// ParseAll parses each expression, stopping at the first error.
func ParseAll(exprs []string) ([]*Capture, error) {
	captures := make([]*Capture, 0, len(exprs))
	for _, expr := range exprs {
		c, err := Parse(expr)
		if err != nil {
			return nil, err
		}
		captures = append(captures, c)
	}
	return captures, nil
}

type Extractor struct {
	response *http.Response
	bodyJSON gjson.Result
}

func NewExtractor(resp *http.Response) *Extractor {
	e := &Extractor{
		response: resp,
	}
	if gjson.ValidBytes(resp.Body) {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
	}
	return e
}

func (e *Extractor) Extract(c *Capture) (any, bool) {
	switch c.Source {
	case SourceBody:
		return e.extractFromBody(c.Path)
	case SourceHeader:
		return e.extractFromHeader(c.Path)
	case SourceStatus:
		return e.response.StatusCode, true
	case SourceDuration:
		return e.response.DurationMs(), true
	default:
		return nil, false
	}
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.bodyJSON.Exists() {
		if path == "" {
			return e.response.BodyString(), true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	value := e.response.Header(name)
	if value == "" {
		return nil, false
	}
	return value, true
}

// ExtractAll returns the captures that resolved and the names of those
// that did not.
func ExtractAll(resp *http.Response, captures []*Capture) (map[string]any, []string) {
	extractor := NewExtractor(resp)
	results := make(map[string]any)
	var missing []string

	for _, c := range captures {
		if value, ok := extractor.Extract(c); ok {
			results[c.Name] = value
		} else {
			missing = append(missing, c.Name)
		}
	}

	return results, missing
}
