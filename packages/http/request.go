package http

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	uerrors "github.com/abdul-hamid-achik/hitupload/packages/core/errors"
	"github.com/abdul-hamid-achik/hitupload/packages/form"
)

// Version is the HTTP protocol version written on the request line.
type Version int

const (
	HTTP11 Version = iota
	HTTP10
)

// ParseVersion accepts "1.0", "1.1", "10", "11" and the "HTTP/x.y" forms.
// An empty string means HTTP/1.1.
func ParseVersion(s string) (Version, error) {
	switch strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "HTTP/") {
	case "", "1.1", "11":
		return HTTP11, nil
	case "1.0", "10":
		return HTTP10, nil
	}
	return HTTP11, fmt.Errorf("%w: %q (use 1.0 or 1.1)", uerrors.ErrUnsupportedHTTP, s)
}

func (v Version) String() string {
	if v == HTTP10 {
		return "HTTP/1.0"
	}
	return "HTTP/1.1"
}

// Number returns "1.0" or "1.1".
func (v Version) Number() string {
	return strings.TrimPrefix(v.String(), "HTTP/")
}

type Request struct {
	Method      string
	URL         string
	Version     Version
	Headers     map[string]string
	QueryParams map[string]string
	Form        *form.Form
	Body        []byte
	Timeout     time.Duration
	Auth        *AuthConfig
	DigestAuth  *DigestAuthCredentials
	AWSAuth     *AWSAuthCredentials
	OAuth2      *OAuth2Credentials
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:      method,
		URL:         requestURL,
		Headers:     make(map[string]string),
		QueryParams: make(map[string]string),
	}
}

// NewUpload builds a POST of f to requestURL.
func NewUpload(requestURL string, f *form.Form) *Request {
	req := NewRequest("POST", requestURL)
	req.Form = f
	return req
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

func (r *Request) BuildURL() string {
	if len(r.QueryParams) == 0 {
		return r.URL
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}

	q := u.Query()
	for k, v := range r.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// ContentType returns the Content-Type the body implies, if any.
func (r *Request) ContentType() string {
	if r.Form != nil {
		return r.Form.ContentType()
	}
	return ""
}

// openBody returns a fresh reader over the request body and its length.
// Each call starts from the beginning so digest retries can resend.
func (r *Request) openBody() (io.ReadCloser, int64, error) {
	if r.Form != nil {
		body, err := r.Form.Open()
		if err != nil {
			return nil, 0, err
		}
		return body, body.Len(), nil
	}
	if r.Body != nil {
		return io.NopCloser(bytes.NewReader(r.Body)), int64(len(r.Body)), nil
	}
	return http.NoBody, 0, nil
}

// BuildURL joins the classic host, port and target arguments into a URL.
// Port 443 selects https; anything else is plain http.
func BuildURL(host, port, target string) string {
	scheme := "http"
	if port == "443" {
		scheme = "https"
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}

	hostPort := host
	if !(scheme == "http" && port == "80") && !(scheme == "https" && port == "443") && port != "" {
		hostPort = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		hostPort = "[" + host + "]"
	}
	return scheme + "://" + hostPort + target
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}
