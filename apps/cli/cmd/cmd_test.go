package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitupload/packages/core/config"
	uerrors "github.com/abdul-hamid-achik/hitupload/packages/core/errors"
	uhttp "github.com/abdul-hamid-achik/hitupload/packages/http"
)

// resetFlags puts every flag of c and its parents back to its default so
// commands can run more than once in one process.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	for ; c != nil; c = c.Parent() {
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
	}
}

// execute runs the CLI with args and returns what it printed on stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

// executeContext is execute with a caller supplied context.
func executeContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()

	target, _, err := rootCmd.Find(args)
	require.NoError(t, err)
	resetFlags(target)
	t.Cleanup(func() { resetFlags(target) })

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err = rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func multipartServer(t *testing.T) (*httptest.Server, string, string) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("files")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		fmt.Fprintf(w, "got %s comment=%s", header.Filename, r.FormValue("comment"))
	}))
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	return ts, host, port
}

func TestUpload_Positional(t *testing.T) {
	_, host, port := multipartServer(t)
	file := writeFile(t, "report.txt", "quarterly numbers")

	out, err := execute(t, "upload", host, port, "/upload", file, "-F", "comment=Larry", "--no-history")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"), out)
	assert.Contains(t, out, "got report.txt comment=Larry")
}

func TestUpload_PositionalHTTP10(t *testing.T) {
	_, host, port := multipartServer(t)
	file := writeFile(t, "report.txt", "quarterly numbers")

	out, err := execute(t, "upload", host, port, "upload", file, "1.0", "--no-history")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "HTTP/1.0 200 OK\r\n"), out)
	assert.Contains(t, out, "got report.txt comment=")
}

func TestUpload_ExpectationFailure(t *testing.T) {
	ts, _, _ := multipartServer(t)
	file := writeFile(t, "a.txt", "x")

	_, err := execute(t, "upload", "-u", ts.URL, "-f", file, "--expect-status", "201", "--no-history")
	require.Error(t, err)
	assert.ErrorIs(t, err, uerrors.ErrExpectation)
	assert.Equal(t, ExitUploadFailure, exitCode(err))
}

func TestUpload_DryRun(t *testing.T) {
	file := writeFile(t, "a.txt", "hello")

	out, err := execute(t, "upload", "example.com", "8080", "/upload", file, "1.0",
		"--dry-run", "--boundary", "AaB03x", "-F", "comment=Larry")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "POST /upload HTTP/1.0\r\nHost: example.com:8080\r\n"), out)
	assert.Contains(t, out, "Content-Type: multipart/form-data; boundary=AaB03x\r\n")
	assert.Contains(t, out, "--AaB03x\r\nContent-Disposition: form-data; name=\"comment\"\r\n\r\nLarry\r\n")
	assert.Contains(t, out, "Content-Disposition: form-data; name=\"files\"; filename=\"a.txt\"\r\n")
	assert.True(t, strings.HasSuffix(out, "hello\r\n--AaB03x--\r\n"), out)
}

func TestUpload_Usage(t *testing.T) {
	_, err := execute(t, "upload", "localhost", "8080")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))

	_, err = execute(t, "upload", "--no-history")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestBench_JSON(t *testing.T) {
	ts, _, _ := multipartServer(t)
	file := writeFile(t, "a.txt", "payload")

	out, err := execute(t, "bench", "-u", ts.URL, "-f", file, "-n", "5", "-c", "2", "--json",
		"--threshold", "errors<1%")
	require.NoError(t, err)
	assert.Contains(t, out, `"passed": true`)
	assert.Contains(t, out, `"total": 5`)
}

func TestUpload_HelpMentionsClassicField(t *testing.T) {
	assert.Contains(t, uploadCmd.Long, "-F comment=Larry --boundary AaB03x")
}

func TestFlagErrorsAreUsageErrors(t *testing.T) {
	_, err := execute(t, "upload", "--no-such-flag")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag: --no-such-flag")
	assert.Equal(t, ExitUsageError, exitCode(err))

	_, err = execute(t, "bench", "-u", "http://127.0.0.1:1/", "-f", "a.txt", "-n", "many")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))
}

func TestBench_BadThresholdIsConfigError(t *testing.T) {
	file := writeFile(t, "a.txt", "payload")

	_, err := execute(t, "bench", "-u", "http://127.0.0.1:1/upload", "-f", file, "-n", "1",
		"--threshold", "p95>1s", "--no-progress")
	var cfgErr *uerrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "bench.thresholds", cfgErr.Field)
	assert.Equal(t, ExitConfigError, exitCode(err))
}

func TestHistory_RecordListClear(t *testing.T) {
	_, host, port := multipartServer(t)
	file := writeFile(t, "a.txt", "payload")

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, ".hitupload.json")
	cfg := &config.Config{HistoryPath: filepath.Join(dir, "history.db")}
	require.NoError(t, cfg.SaveConfig(cfgPath))

	_, err := execute(t, "upload", host, port, "/upload", file, "--config", cfgPath)
	require.NoError(t, err)

	out, err := execute(t, "history", "-o", "raw", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "/upload")
	assert.Contains(t, out, "\t200\t")

	out, err = execute(t, "history", "clear", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 entries")
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, config.Starter().SaveConfig(good))

	out, err := execute(t, "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "Valid: "+good)

	bad := writeFile(t, "bad.json", `{"output": "xml"}`)
	_, err = execute(t, "validate", bad)
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, exitCode(err))
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "hitupload version "+version)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{&uerrors.UsageError{Message: "x"}, ExitUsageError},
		{fmt.Errorf("load: %w", &uerrors.ConfigError{Field: "url"}), ExitConfigError},
		{uerrors.Wrap("dial", "localhost:1", errors.New("connection refused")), ExitNetworkError},
		{fmt.Errorf("%w: p95", uerrors.ErrThresholds), ExitUploadFailure},
		{uerrors.ErrNoFiles, ExitFileError},
		{&os.PathError{Op: "open", Path: "x", Err: os.ErrNotExist}, ExitFileError},
		{context.Canceled, ExitInterrupted},
		{errors.New("other"), ExitUploadFailure},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), "err=%v", tt.err)
	}
}

func TestPositionalConfig(t *testing.T) {
	cfg, err := positionalConfig([]string{"localhost", "8080", "upload", "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/upload", cfg.URL)
	assert.Equal(t, []string{"a.txt"}, cfg.Files)
	assert.Empty(t, cfg.HTTPVersion)

	cfg, err = positionalConfig([]string{"::1", "80", "/", "a.txt", "1.0"})
	require.NoError(t, err)
	assert.Equal(t, "http://[::1]/", cfg.URL)
	assert.Equal(t, "1.0", cfg.HTTPVersion)

	cfg, err = positionalConfig([]string{"example.com", "443", "files", "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/files", cfg.URL)

	// Anything but exactly 1.0 keeps HTTP/1.1.
	cfg, err = positionalConfig([]string{"h", "80", "/", "a.txt", "10"})
	require.NoError(t, err)
	assert.Empty(t, cfg.HTTPVersion)
}

func TestParseFieldAndHeader(t *testing.T) {
	f, err := parseField("comment=Larry=Moe")
	require.NoError(t, err)
	assert.Equal(t, config.Field{Name: "comment", Value: "Larry=Moe"}, f)

	_, err = parseField("=x")
	assert.Error(t, err)

	k, v, err := parseHeader("X-Trace: abc:def")
	require.NoError(t, err)
	assert.Equal(t, "X-Trace", k)
	assert.Equal(t, "abc:def", v)

	k, v, err = parseHeader("Accept=application/json")
	require.NoError(t, err)
	assert.Equal(t, "Accept", k)
	assert.Equal(t, "application/json", v)

	_, _, err = parseHeader("nocolon")
	assert.Error(t, err)
}

func TestVersionValue(t *testing.T) {
	var v uhttp.Version
	val := newVersionValue(&v, uhttp.HTTP11)
	assert.Equal(t, "1.1", val.String())

	require.NoError(t, val.Set("HTTP/1.0"))
	assert.Equal(t, uhttp.HTTP10, v)
	assert.Equal(t, "version", val.Type())

	assert.ErrorIs(t, val.Set("2"), uerrors.ErrUnsupportedHTTP)
}

func TestWatchFiles(t *testing.T) {
	path := writeFile(t, "watched.txt", "v1")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- watchFiles(ctx, []string{path}, "", func() { calls <- struct{}{} })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("v3"), 0644))

	select {
	case <-calls:
	case <-time.After(3 * time.Second):
		t.Fatal("watch callback not called")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watchFiles did not return after cancel")
	}
}

func TestUpload_WatchResolvesPlaceholders(t *testing.T) {
	ts, _, _ := multipartServer(t)
	file := writeFile(t, "a.txt", "x")
	envFile := writeFile(t, "watch.env", "dir="+filepath.Dir(file)+"\n")

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	out, err := executeContext(t, ctx, "upload", "-u", ts.URL, "-f", "{{dir}}/a.txt",
		"--env-file", envFile, "--watch", "--no-history")
	require.NoError(t, err)
	assert.Contains(t, out, "got a.txt")
}

func TestUpload_NotifySlack(t *testing.T) {
	ts, _, _ := multipartServer(t)
	file := writeFile(t, "a.txt", "x")

	posted := make(chan string, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r.Body)
		posted <- buf.String()
	}))
	defer hook.Close()

	_, err := execute(t, "upload", "-u", ts.URL, "-f", file, "--expect-status", "201", "--no-history",
		"--notify", "slack", "--slack-webhook", hook.URL)
	require.Error(t, err)

	select {
	case body := <-posted:
		assert.Contains(t, body, "Upload failed")
		assert.Contains(t, body, `"color":"danger"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification posted")
	}
}

func TestNotifierFlags(t *testing.T) {
	f := &requestFlags{notify: []string{"slack"}, notifyOn: "failure"}
	_, err := f.notifier()
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, exitCode(err))

	f = &requestFlags{notify: []string{"teams"}, notifyOn: "always", teamsWebhook: "http://example.com"}
	m, err := f.notifier()
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	f = &requestFlags{notify: []string{"pager"}}
	_, err = f.notifier()
	assert.Error(t, err)

	m, err = (&requestFlags{}).notifier()
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestImportCurl(t *testing.T) {
	out, err := execute(t, "import", "curl", "curl -0 -F comment=Larry -F files=@a.txt http://localhost:8080/upload")
	require.NoError(t, err)
	assert.Contains(t, out, "url: http://localhost:8080/upload")
	assert.Contains(t, out, "httpVersion: \"1.0\"")
	assert.Contains(t, out, "- a.txt")

	dir := t.TempDir()
	dest := filepath.Join(dir, "imported.json")
	_, err = execute(t, "import", "curl", "curl -F files=@a.txt http://localhost:8080/upload", "-o", dest)
	require.NoError(t, err)

	cfg, err := config.LoadConfig(dest)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, cfg.Files)

	_, err = execute(t, "import", "curl", "curl -F files=@a.txt http://localhost:8080/upload", "-o", dest)
	assert.Error(t, err, "refuses to overwrite without --force")
}

func TestImportOpenAPI(t *testing.T) {
	spec := writeFile(t, "spec.yaml", `openapi: 3.0.3
info: {title: t, version: "1"}
servers: [{url: "http://localhost:8080"}]
paths:
  /upload:
    post:
      operationId: upload
      requestBody:
        content:
          multipart/form-data:
            schema:
              type: object
              properties:
                comment: {type: string, example: Larry}
                doc: {type: string, format: binary}
      responses:
        "201": {description: created}
`)

	out, err := execute(t, "import", "openapi", spec)
	require.NoError(t, err)
	assert.Contains(t, out, "url: http://localhost:8080/upload")
	assert.Contains(t, out, "fileField: doc")
	assert.Contains(t, out, "value: Larry")

	out, err = execute(t, "import", "openapi", spec, "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "POST /upload")
}
