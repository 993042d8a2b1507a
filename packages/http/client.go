package http

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	neturl "net/url"
	"time"

	uerrors "github.com/abdul-hamid-achik/hitupload/packages/core/errors"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultUserAgent is sent when no User-Agent header is configured
	DefaultUserAgent = "hitupload"
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

type Client struct {
	httpClient     *http.Client
	tlsConfig      *tls.Config
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string
	wire           bool
	userAgent      string
	defaultHeaders map[string]string
	dialContext    DialContextFunc
	tokens         tokenCache
}

// DialContextFunc opens the raw connection for a request. Both transports
// use it; TLS is layered on top for https URLs.
type DialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// DigestAuthCredentials holds credentials for digest auth
type DigestAuthCredentials struct {
	Username string
	Password string
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		userAgent:      DefaultUserAgent,
		defaultHeaders: make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}
	if c.dialContext != nil {
		transport.DialContext = c.dialContext
	}

	if !c.validateSSL {
		c.tlsConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
		transport.TLSClientConfig = c.tlsConfig
	}

	if c.proxyURL != "" {
		proxyURL, err := neturl.Parse(c.proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !c.followRedirect {
			return http.ErrUseLastResponse
		}
		if len(via) >= c.maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	c.httpClient = &http.Client{
		Transport:     transport,
		Timeout:       c.timeout,
		CheckRedirect: redirectPolicy,
	}

	return c
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests. The wire transport ignores it.
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithDialer routes every connection through dial, for example an SSH
// tunnel. The proxy setting still applies to the standard transport.
func WithDialer(dial DialContextFunc) ClientOption {
	return func(c *Client) {
		c.dialContext = dial
	}
}

// WithWire sends every request over the wire transport, even HTTP/1.1 ones.
func WithWire(wire bool) ClientOption {
	return func(c *Client) {
		c.wire = wire
	}
}

// WithUserAgent overrides the User-Agent sent when the request sets none.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// Do sends req and reads the full response. HTTP/1.0 requests always use
// the wire transport since net/http only speaks 1.1 and newer.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	req.ApplyAuth()

	if req.DigestAuth != nil {
		return c.doWithDigestAuth(ctx, req)
	}

	if req.AWSAuth != nil {
		return c.doWithAWSAuth(ctx, req)
	}

	if req.OAuth2 != nil {
		return c.doWithOAuth2(ctx, req)
	}

	return c.doRequest(ctx, req, "")
}

func (c *Client) usesWire(req *Request) bool {
	return c.wire || req.Version == HTTP10
}

func (c *Client) doRequest(ctx context.Context, req *Request, authHeader string) (*Response, error) {
	if err := ValidateURL(req.URL); err != nil {
		return nil, err
	}

	if c.usesWire(req) {
		return c.doWire(ctx, req, authHeader)
	}

	body, length, err := req.openBody()
	if err != nil {
		return nil, err
	}
	defer body.Close()

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.BuildURL(), body)
	if err != nil {
		return nil, err
	}
	httpReq.ContentLength = length
	httpReq.GetBody = func() (io.ReadCloser, error) {
		rc, _, err := req.openBody()
		return rc, err
	}

	for k, v := range c.headersFor(req, authHeader) {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)

	if err != nil {
		return nil, uerrors.Wrap("post", httpReq.URL.Host, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, uerrors.Wrap("read", httpReq.URL.Host, err)
	}

	return newResponse(httpResp, respBody, duration, length), nil
}

// headersFor merges default, request, body and auth headers in increasing
// precedence.
func (c *Client) headersFor(req *Request, authHeader string) map[string]string {
	headers := make(map[string]string, len(c.defaultHeaders)+len(req.Headers)+3)
	headers["User-Agent"] = c.userAgent

	for k, v := range c.defaultHeaders {
		headers[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range req.Headers {
		headers[http.CanonicalHeaderKey(k)] = v
	}

	// The boundary in Content-Type must match the body, so it always wins.
	if ct := req.ContentType(); ct != "" {
		headers["Content-Type"] = ct
	}

	if authHeader != "" {
		headers["Authorization"] = authHeader
	}
	return headers
}

func (c *Client) doWithDigestAuth(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.doRequest(ctx, req, "")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	challenge := resp.Header("WWW-Authenticate")
	if challenge == "" {
		return resp, nil
	}

	auth, err := NewDigestAuth(challenge, req)
	if err != nil {
		return nil, err
	}

	return c.doRequest(ctx, req, auth.BuildAuthorizationHeader())
}

func (c *Client) doWithAWSAuth(ctx context.Context, req *Request) (*Response, error) {
	authHeader, err := SignAWSRequest(req)
	if err != nil {
		return nil, err
	}

	return c.doRequest(ctx, req, authHeader)
}
