package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitupload/packages/form"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestForm(t *testing.T) *form.Form {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.txt")
	require.NoError(t, os.WriteFile(path, []byte("file body"), 0644))

	f, err := form.New()
	require.NoError(t, err)
	f.AddField("comment", "Larry")
	require.NoError(t, f.AddFile("files", path))
	return f
}

func TestClient_UploadMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/upload", r.URL.Path)
		assert.Equal(t, DefaultUserAgent, r.UserAgent())
		assert.Greater(t, r.ContentLength, int64(0))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Larry", r.FormValue("comment"))

		file, header, err := r.FormFile("files")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "upload.txt", header.Filename)
		assert.Equal(t, "file body", string(content))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 42}`))
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Do(context.Background(), NewUpload(server.URL+"/upload", newTestForm(t)))

	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	assert.True(t, resp.IsJSON())
	assert.Contains(t, resp.BodyString(), "42")
	assert.Greater(t, resp.BytesSent, int64(0))
}

func TestClient_RawBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "PUT", r.Method)
		assert.Equal(t, "raw", string(body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	req := NewRequest("PUT", server.URL)
	req.Body = []byte("raw")

	resp, err := NewClient().Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
}

func TestClient_WithTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithTimeout(50 * time.Millisecond))
	_, err := client.Do(context.Background(), NewUpload(server.URL, newTestForm(t)))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadline exceeded")
}

func TestClient_WithDefaultHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "custom-agent", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithDefaultHeaders(map[string]string{
		"Authorization": "test-token",
		"user-agent":    "custom-agent",
	}))
	resp, err := client.Do(context.Background(), NewUpload(server.URL, newTestForm(t)))

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestClient_ContentTypeAlwaysMatchesForm(t *testing.T) {
	f := newTestForm(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, f.ContentType(), r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req := NewUpload(server.URL, f)
	req.SetHeader("Content-Type", "text/plain")

	_, err := NewClient().Do(context.Background(), req)
	require.NoError(t, err)
}

func TestClient_FollowsRedirectWithBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "Larry", r.FormValue("comment"))
			_, _ = w.Write([]byte("final"))
			return
		}
		http.Redirect(w, r, "/final", http.StatusTemporaryRedirect)
	}))
	defer server.Close()

	resp, err := NewClient().Do(context.Background(), NewUpload(server.URL+"/start", newTestForm(t)))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "final", resp.BodyString())
}

func TestClient_NoFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	client := NewClient(WithFollowRedirects(false))
	resp, err := client.Do(context.Background(), NewUpload(server.URL, newTestForm(t)))

	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
}

func TestClient_BasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "secret", pass)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req := NewUpload(server.URL, newTestForm(t))
	req.Auth = &AuthConfig{Type: AuthBasic, Params: []string{"alice", "secret"}}

	resp, err := NewClient().Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestClient_InvalidURL(t *testing.T) {
	_, err := NewClient().Do(context.Background(), NewUpload("ftp://example.com", newTestForm(t)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported URL scheme")
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
		errMsg  string
	}{
		{name: "valid http URL", url: "http://example.com/path"},
		{name: "valid https URL", url: "https://example.com/path"},
		{name: "invalid scheme", url: "ftp://example.com", wantErr: true, errMsg: "unsupported URL scheme"},
		{name: "missing scheme", url: "example.com/path", wantErr: true, errMsg: "unsupported URL scheme"},
		{name: "file scheme", url: "file:///etc/passwd", wantErr: true, errMsg: "unsupported URL scheme"},
		{name: "missing host", url: "http:///path", wantErr: true, errMsg: "URL must have a host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildURL(t *testing.T) {
	assert.Equal(t, "http://www.example.com/", BuildURL("www.example.com", "80", "/"))
	assert.Equal(t, "http://localhost:8080/upload", BuildURL("localhost", "8080", "upload"))
	assert.Equal(t, "https://example.com/u", BuildURL("example.com", "443", "/u"))
	assert.Equal(t, "http://[::1]:9000/x", BuildURL("::1", "9000", "/x"))
}

func TestParseVersion(t *testing.T) {
	for _, s := range []string{"", "1.1", "11", "HTTP/1.1"} {
		v, err := ParseVersion(s)
		require.NoError(t, err, s)
		assert.Equal(t, HTTP11, v)
	}
	for _, s := range []string{"1.0", "10", "http/1.0"} {
		v, err := ParseVersion(s)
		require.NoError(t, err, s)
		assert.Equal(t, HTTP10, v)
	}
	_, err := ParseVersion("2")
	assert.Error(t, err)

	assert.Equal(t, "HTTP/1.0", HTTP10.String())
	assert.Equal(t, "1.1", HTTP11.Number())
}

func TestResponse_IsSuccess(t *testing.T) {
	tests := []struct {
		statusCode int
		expected   bool
	}{
		{200, true},
		{201, true},
		{299, true},
		{300, false},
		{404, false},
		{500, false},
	}

	for _, tt := range tests {
		resp := &Response{StatusCode: tt.statusCode}
		assert.Equal(t, tt.expected, resp.IsSuccess(), "StatusCode: %d", tt.statusCode)
	}
}

func TestResponse_IsJSON(t *testing.T) {
	tests := []struct {
		contentType string
		expected    bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"application/problem+json", true},
		{"text/html", false},
		{"", false},
	}

	for _, tt := range tests {
		resp := &Response{Headers: map[string]string{"Content-Type": tt.contentType}}
		assert.Equal(t, tt.expected, resp.IsJSON(), "Content-Type: %s", tt.contentType)
	}
}

func TestResponse_Dump(t *testing.T) {
	resp := &Response{
		StatusCode: 200,
		Status:     "200 OK",
		Proto:      "HTTP/1.0",
		RawHeaders: http.Header{"Content-Type": {"text/plain"}, "X-Id": {"1"}},
		Body:       []byte("done"),
	}
	assert.Equal(t, "HTTP/1.0 200 OK\r\nContent-Type: text/plain\r\nX-Id: 1\r\n\r\ndone", resp.Dump())

	bare := &Response{StatusCode: 404, Headers: map[string]string{}}
	assert.Equal(t, "HTTP/1.1 404 Not Found\r\n\r\n", bare.Dump())
}

func TestClient_WithDialer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	for _, wire := range []bool{false, true} {
		var dials atomic.Int32
		dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
			dials.Add(1)
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		}

		client := NewClient(WithDialer(dial), WithWire(wire))
		resp, err := client.Do(context.Background(), NewUpload(server.URL, newTestForm(t)))

		require.NoError(t, err, "wire=%v", wire)
		assert.Equal(t, "ok", resp.BodyString())
		assert.Equal(t, int32(1), dials.Load(), "wire=%v", wire)
	}
}
