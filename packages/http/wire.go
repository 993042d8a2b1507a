package http

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	neturl "net/url"
	"strconv"
	"time"

	uerrors "github.com/abdul-hamid-achik/hitupload/packages/core/errors"
)

type closeWriter interface {
	CloseWrite() error
}

// doWire performs one request over a dedicated connection: dial, write the
// request line and headers for req.Version, stream the body, read a single
// response, then shut down the write side and close.
func (c *Client) doWire(ctx context.Context, req *Request, authHeader string) (*Response, error) {
	u, err := neturl.Parse(req.BuildURL())
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	addr := hostPortFor(u)

	body, length, err := req.openBody()
	if err != nil {
		return nil, err
	}
	defer body.Close()

	conn, err := c.dial(ctx, u.Scheme, addr, u.Hostname())
	if err != nil {
		return nil, uerrors.Wrap("dial", addr, err)
	}
	defer conn.Close()

	if c.timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.timeout))
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	start := time.Now()

	bw := bufio.NewWriter(conn)
	if err := c.writeHead(bw, req, u, method, length, authHeader); err != nil {
		return nil, uerrors.Wrap("write", addr, err)
	}
	if _, err := io.Copy(bw, body); err != nil {
		return nil, uerrors.Wrap("write", addr, wrapCtxErr(ctx, err))
	}
	if err := bw.Flush(); err != nil {
		return nil, uerrors.Wrap("write", addr, wrapCtxErr(ctx, err))
	}

	br := bufio.NewReader(conn)
	httpResp, err := http.ReadResponse(br, &http.Request{Method: method})
	if err != nil {
		return nil, uerrors.Wrap("read", addr, wrapCtxErr(ctx, err))
	}
	respBody, err := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if err != nil {
		return nil, uerrors.Wrap("read", addr, wrapCtxErr(ctx, err))
	}
	duration := time.Since(start)

	if cw, ok := conn.(closeWriter); ok {
		if err := cw.CloseWrite(); err != nil && !uerrors.IsNotConnected(err) {
			return nil, uerrors.Wrap("shutdown", addr, err)
		}
	}

	return newResponse(httpResp, respBody, duration, length), nil
}

// writeHead writes the request line, Host and the merged headers, ending
// with the blank line that precedes the body.
func (c *Client) writeHead(bw *bufio.Writer, req *Request, u *neturl.URL, method string, length int64, authHeader string) error {
	fmt.Fprintf(bw, "%s %s %s\r\n", method, u.RequestURI(), req.Version)

	header := make(http.Header)
	host := u.Host
	for k, v := range c.headersFor(req, authHeader) {
		if k == "Host" {
			host = v
			continue
		}
		header.Set(k, v)
	}
	if method != http.MethodGet && method != http.MethodHead || length > 0 {
		header.Set("Content-Length", strconv.FormatInt(length, 10))
	}

	fmt.Fprintf(bw, "Host: %s\r\n", host)
	if err := header.Write(bw); err != nil {
		return err
	}
	_, err := bw.WriteString("\r\n")
	return err
}

// DryRun writes the bytes the wire transport would send for req to w
// without connecting. Digest credentials are left out since they need a
// server challenge.
func (c *Client) DryRun(w io.Writer, req *Request) (int64, error) {
	if err := ValidateURL(req.URL); err != nil {
		return 0, err
	}
	req.ApplyAuth()

	var authHeader string
	if req.AWSAuth != nil {
		var err error
		if authHeader, err = SignAWSRequest(req); err != nil {
			return 0, err
		}
	}

	u, err := neturl.Parse(req.BuildURL())
	if err != nil {
		return 0, fmt.Errorf("invalid URL: %w", err)
	}
	body, length, err := req.openBody()
	if err != nil {
		return 0, err
	}
	defer body.Close()

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	bw := bufio.NewWriter(w)
	if err := c.writeHead(bw, req, u, method, length, authHeader); err != nil {
		return 0, err
	}
	n, err := io.Copy(bw, body)
	if err != nil {
		return n, err
	}
	return n, bw.Flush()
}

func (c *Client) dial(ctx context.Context, scheme, addr, serverName string) (net.Conn, error) {
	dialCtx := c.dialContext
	if dialCtx == nil {
		dialer := &net.Dialer{Timeout: c.timeout}
		dialCtx = dialer.DialContext
	}
	conn, err := dialCtx(ctx, "tcp", addr)
	if err != nil || scheme != "https" {
		return conn, err
	}

	cfg := &tls.Config{ServerName: serverName}
	if c.tlsConfig != nil {
		cfg = c.tlsConfig.Clone()
		cfg.ServerName = serverName
	}
	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// wrapCtxErr reports the context error instead of the i/o timeout the
// forced deadline produces when ctx ends first.
func wrapCtxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

func hostPortFor(u *neturl.URL) string {
	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}
