package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Response struct {
	StatusCode int
	Status     string
	Proto      string
	Headers    map[string]string
	RawHeaders http.Header
	Body       []byte
	Duration   time.Duration
	BytesSent  int64
}

func newResponse(httpResp *http.Response, body []byte, duration time.Duration, sent int64) *Response {
	headers := make(map[string]string, len(httpResp.Header))
	for k := range httpResp.Header {
		headers[k] = httpResp.Header.Get(k)
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Proto:      httpResp.Proto,
		Headers:    headers,
		RawHeaders: httpResp.Header.Clone(),
		Body:       body,
		Duration:   duration,
		BytesSent:  sent,
	}
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

func (r *Response) Header(key string) string {
	if r.RawHeaders != nil {
		if v := r.RawHeaders.Get(key); v != "" {
			return v
		}
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	ct := r.ContentType()
	return strings.Contains(ct, "application/json") || strings.HasSuffix(strings.Split(ct, ";")[0], "+json")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// Dump renders the response as it arrived: status line, headers in
// canonical sorted order, a blank line and the body.
func (r *Response) Dump() string {
	var b bytes.Buffer
	proto := r.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	status := r.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", r.StatusCode, http.StatusText(r.StatusCode))
	}
	fmt.Fprintf(&b, "%s %s\r\n", proto, status)

	h := r.RawHeaders
	if h == nil {
		h = make(http.Header, len(r.Headers))
		for k, v := range r.Headers {
			h.Set(k, v)
		}
	}
	_ = h.Write(&b)
	b.WriteString("\r\n")
	b.Write(r.Body)
	return b.String()
}
