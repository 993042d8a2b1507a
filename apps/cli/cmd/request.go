package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/abdul-hamid-achik/hitupload/packages/core/config"
	"github.com/abdul-hamid-achik/hitupload/packages/core/env"
	uerrors "github.com/abdul-hamid-achik/hitupload/packages/core/errors"
	"github.com/abdul-hamid-achik/hitupload/packages/core/runner"
	"github.com/abdul-hamid-achik/hitupload/packages/history"
	"github.com/abdul-hamid-achik/hitupload/packages/http"
	"github.com/abdul-hamid-achik/hitupload/packages/tunnel"
)

// requestFlags are shared by upload and bench.
type requestFlags struct {
	url           string
	method        string
	version       http.Version
	wire          bool
	files         []string
	fields        []string
	fileField     string
	boundary      string
	checkBoundary bool
	detectType    bool
	baseDir       string
	headers       []string
	auth          string
	envFile       string
	timeout       time.Duration
	retries       int
	retryDelay    time.Duration
	insecure      bool
	proxy         string
	noFollow      bool

	expectStatus []int
	expectBody   string
	expect       []string
	schema       string
	extract      []string

	before  []string
	after   []string
	waitFor string

	ssh         string
	sshKey      string
	sshAgent    bool
	sshPassword bool
	sshStrict   bool
	knownHosts  string

	notify       []string
	notifyOn     string
	slackWebhook string
	slackChannel string
	teamsWebhook string
}

var reqFlags requestFlags

func addRequestFlags(fs *pflag.FlagSet, f *requestFlags) {
	// Target flags
	fs.StringVarP(&f.url, "url", "u", getEnvString("HITUPLOAD_URL", ""), "Upload URL, instead of host port target (env: HITUPLOAD_URL)")
	fs.StringVarP(&f.method, "method", "X", "", "HTTP method (default POST)")
	fs.Var(newVersionValue(&f.version, http.HTTP11), "http", "HTTP version: 1.0 or 1.1")
	fs.BoolVar(&f.wire, "wire", getEnvBool("HITUPLOAD_WIRE", false), "Send over a raw TCP connection even for HTTP/1.1 (env: HITUPLOAD_WIRE)")

	// Form flags
	fs.StringArrayVarP(&f.files, "file", "f", nil, "File to upload (repeatable)")
	fs.StringArrayVarP(&f.fields, "field", "F", nil, "Text field name=value, sent before the files (repeatable)")
	fs.StringVar(&f.fileField, "file-field", "", "Form field name for files (default \"files\")")
	fs.StringVar(&f.boundary, "boundary", "", "Multipart boundary (default: random)")
	fs.BoolVar(&f.checkBoundary, "check-boundary", false, "Fail if the boundary appears inside a part")
	fs.BoolVar(&f.detectType, "detect-type", false, "Sniff each file's Content-Type instead of application/octet-stream")
	fs.StringVar(&f.baseDir, "base-dir", "", "Directory relative file paths must stay inside")

	// Request flags
	fs.StringArrayVarP(&f.headers, "header", "H", nil, "Extra header \"Name: value\" (repeatable)")
	fs.StringVarP(&f.auth, "auth", "a", getEnvString("HITUPLOAD_AUTH", ""), "Auth: basic:user:pass, bearer:token, apikey:Header:value, digest:user:pass, aws:key:secret:region:service, jwt:secret[:subject], oauth2:id:secret:token-url (env: HITUPLOAD_AUTH)")
	fs.StringVar(&f.envFile, "env-file", getEnvString("HITUPLOAD_ENV_FILE", ""), "Path to .env file for {{variable}} placeholders (env: HITUPLOAD_ENV_FILE)")
	fs.DurationVar(&f.timeout, "timeout", getEnvDuration("HITUPLOAD_TIMEOUT", 0), "Request timeout (e.g., 30s, 1m) (env: HITUPLOAD_TIMEOUT)")
	fs.IntVar(&f.retries, "retries", getEnvInt("HITUPLOAD_RETRIES", 0), "Retries after a network error (env: HITUPLOAD_RETRIES)")
	fs.DurationVar(&f.retryDelay, "retry-delay", 0, "Delay between retries (default 1s)")
	fs.BoolVarP(&f.insecure, "insecure", "k", getEnvBool("HITUPLOAD_INSECURE", false), "Disable SSL certificate validation (env: HITUPLOAD_INSECURE)")
	fs.StringVar(&f.proxy, "proxy", getEnvString("HITUPLOAD_PROXY", ""), "Proxy URL for HTTP requests (env: HITUPLOAD_PROXY)")
	fs.BoolVar(&f.noFollow, "no-follow", false, "Do not follow redirects")

	// Expectation flags
	fs.IntSliceVar(&f.expectStatus, "expect-status", nil, "Accepted status codes (e.g., 200,201)")
	fs.StringVar(&f.expectBody, "expect-body", "", "Substring the response body must contain")
	fs.StringArrayVarP(&f.expect, "expect", "e", nil, "Expectation, e.g. \"body.id exists\" or path=value (repeatable)")
	fs.StringVar(&f.schema, "schema", "", "JSON schema file the response body must satisfy")
	fs.StringArrayVar(&f.extract, "extract", nil, "Capture name=body.path|header.Name|status|duration (repeatable)")

	// Hook flags
	fs.StringArrayVar(&f.before, "before", nil, "Command to run before uploading (repeatable)")
	fs.StringArrayVar(&f.after, "after", nil, "Command to run after uploading (repeatable)")
	fs.StringVar(&f.waitFor, "wait-for", "", "URL to poll until it answers 200 before uploading")

	// SSH flags
	fs.StringVar(&f.ssh, "ssh", getEnvString("HITUPLOAD_SSH", ""), "Reach the target through an SSH gateway [user@]host[:port] (env: HITUPLOAD_SSH)")
	fs.StringVar(&f.sshKey, "ssh-key", getEnvString("HITUPLOAD_SSH_KEY", ""), "Private key for the SSH gateway (env: HITUPLOAD_SSH_KEY)")
	fs.BoolVar(&f.sshAgent, "ssh-agent", false, "Authenticate to the SSH gateway with the running agent")
	fs.BoolVar(&f.sshPassword, "ssh-password", false, "Prompt for the SSH gateway password")
	fs.BoolVar(&f.sshStrict, "ssh-strict", false, "Verify the SSH gateway against known_hosts")
	fs.StringVar(&f.knownHosts, "known-hosts", "", "known_hosts file for --ssh-strict (default ~/.ssh/known_hosts)")

	// Notification flags
	fs.StringSliceVar(&f.notify, "notify", nil, "Send the outcome to slack, teams (comma-separated)")
	fs.StringVar(&f.notifyOn, "notify-on", getEnvString("HITUPLOAD_NOTIFY_ON", "failure"), "When to notify: always, failure, success, recovery (env: HITUPLOAD_NOTIFY_ON)")
	fs.StringVar(&f.slackWebhook, "slack-webhook", getEnvString("HITUPLOAD_SLACK_WEBHOOK", ""), "Slack incoming webhook URL (env: HITUPLOAD_SLACK_WEBHOOK)")
	fs.StringVar(&f.slackChannel, "slack-channel", getEnvString("HITUPLOAD_SLACK_CHANNEL", ""), "Slack channel override (env: HITUPLOAD_SLACK_CHANNEL)")
	fs.StringVar(&f.teamsWebhook, "teams-webhook", getEnvString("HITUPLOAD_TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: HITUPLOAD_TEAMS_WEBHOOK)")
}

// targetArgs validates the classic positional form
// "host port target file [1.0|1.1]" or no positional arguments at all.
func targetArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 || len(args) == 4 || len(args) == 5 {
		return nil
	}
	return &uerrors.UsageError{
		Message: fmt.Sprintf("%s takes either no arguments or <host> <port> <target> <file> [1.0|1.1], got %d", cmd.Name(), len(args)),
	}
}

// positionalConfig maps "host port target file [version]" onto a config.
// As in the classic example the version is 1.0 only when given exactly.
func positionalConfig(args []string) (*config.Config, error) {
	host, port, target, file := args[0], args[1], args[2], args[3]
	if host == "" || port == "" {
		return nil, &uerrors.UsageError{Message: "host and port must not be empty"}
	}

	cfg := &config.Config{
		URL:   http.BuildURL(host, port, target),
		Files: []string{file},
	}
	if len(args) == 5 && args[4] == "1.0" {
		cfg.HTTPVersion = http.HTTP10.Number()
	}
	return cfg, nil
}

// loadFileConfig reads --config or the first config file found in the
// working directory.
func loadFileConfig() (*config.Config, error) {
	if configFlag != "" {
		cfg, err := config.LoadConfig(configFlag)
		if err != nil {
			return nil, &uerrors.ConfigError{Field: "config", Value: configFlag, Message: err.Error()}
		}
		return cfg, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.FindAndLoadConfig(cwd)
	if err != nil {
		return nil, &uerrors.ConfigError{Field: "config", Message: err.Error()}
	}
	return cfg, nil
}

// flagConfig turns the flags the user actually set into a config layer.
func (f *requestFlags) flagConfig(fs *pflag.FlagSet) (*config.Config, error) {
	c := &config.Config{
		URL:        f.url,
		Method:     strings.ToUpper(f.method),
		FileField:  f.fileField,
		Files:      f.files,
		Boundary:   f.boundary,
		BaseDir:    f.baseDir,
		Auth:       f.auth,
		EnvFile:    f.envFile,
		Proxy:      f.proxy,
		Timeout:    int(f.timeout / time.Millisecond),
		Retries:    f.retries,
		RetryDelay: int(f.retryDelay / time.Millisecond),
		Extract:    f.extract,
		Before:     f.before,
		After:      f.after,
		Expect: config.Expect{
			Status: f.expectStatus,
			Body:   f.expectBody,
			JSON:   f.expect,
			Schema: f.schema,
		},
	}

	if fs.Changed("http") {
		c.HTTPVersion = f.version.Number()
	}
	if fs.Changed("wire") || f.wire {
		c.Wire = config.BoolPtr(f.wire)
	}
	if fs.Changed("check-boundary") {
		c.CheckBoundary = config.BoolPtr(f.checkBoundary)
	}
	if fs.Changed("detect-type") {
		c.DetectContentType = config.BoolPtr(f.detectType)
	}
	if fs.Changed("insecure") || f.insecure {
		c.ValidateSSL = config.BoolPtr(!f.insecure)
	}
	if fs.Changed("no-follow") {
		c.FollowRedirects = config.BoolPtr(!f.noFollow)
	}

	for _, raw := range f.fields {
		field, err := parseField(raw)
		if err != nil {
			return nil, &uerrors.UsageError{Message: err.Error()}
		}
		c.Fields = append(c.Fields, field)
	}

	if len(f.headers) > 0 {
		c.Headers = make(map[string]string, len(f.headers))
		for _, raw := range f.headers {
			k, v, err := parseHeader(raw)
			if err != nil {
				return nil, &uerrors.UsageError{Message: err.Error()}
			}
			c.Headers[k] = v
		}
	}

	if f.waitFor != "" {
		c.WaitFor = &config.WaitFor{URL: f.waitFor}
	}
	return c, nil
}

// buildConfig layers defaults, the config file, positional arguments and
// flags, in increasing precedence, and validates the result.
func buildConfig(cmd *cobra.Command, args []string, f *requestFlags) (*config.Config, error) {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return nil, err
	}
	cfg := config.Default().Merge(fileCfg)

	if len(args) > 0 {
		posCfg, err := positionalConfig(args)
		if err != nil {
			return nil, err
		}
		cfg = cfg.Merge(posCfg)
	}

	flagCfg, err := f.flagConfig(cmd.Flags())
	if err != nil {
		return nil, err
	}
	cfg = cfg.Merge(flagCfg)

	if cfg.URL == "" {
		return nil, &uerrors.UsageError{Message: "no upload target: give <host> <port> <target> <file>, --url or a url in the config file"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session holds what one upload or bench command needs and releases it.
type session struct {
	runner  *runner.Runner
	job     *runner.Job
	history *history.Store
	tunnel  *tunnel.Tunnel
}

func (s *session) Close() {
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			log.Warn().Err(err).Msg("closing history")
		}
	}
	if s.tunnel != nil {
		if err := s.tunnel.Close(); err != nil {
			log.Warn().Err(err).Msg("closing ssh tunnel")
		}
	}
}

// newSession turns a validated config into a runner and job. recordHistory
// is false for bench runs.
func newSession(ctx context.Context, cfg *config.Config, f *requestFlags, recordHistory bool) (*session, error) {
	job, err := runner.JobFromConfig(cfg)
	if err != nil {
		return nil, &uerrors.ConfigError{Field: "expect", Message: err.Error()}
	}

	vars, err := env.LoadVariables(cfg.EnvFile)
	if err != nil {
		return nil, &uerrors.ConfigError{Field: "envFile", Value: cfg.EnvFile, Message: err.Error()}
	}
	resolver := env.NewResolver()
	resolver.SetVariables(vars)

	s := &session{job: job}

	opts := []http.ClientOption{
		http.WithTimeout(cfg.TimeoutDuration()),
		http.WithFollowRedirects(cfg.GetFollowRedirects()),
		http.WithMaxRedirects(cfg.MaxRedirects),
		http.WithValidateSSL(cfg.GetValidateSSL()),
		http.WithWire(cfg.GetWire()),
		http.WithUserAgent("hitupload/" + version),
	}
	if cfg.Proxy != "" {
		opts = append(opts, http.WithProxy(cfg.Proxy))
	}

	if f.ssh != "" {
		tun, err := openTunnel(ctx, f)
		if err != nil {
			return nil, err
		}
		s.tunnel = tun
		opts = append(opts, http.WithDialer(tun.Dial))
	}

	runnerCfg := &runner.Config{
		Retries:       cfg.Retries,
		RetryDelay:    cfg.RetryDelayDuration(),
		ClientOptions: opts,
		Resolver:      resolver,
		Logger:        log,
	}

	if recordHistory && cfg.GetHistory() {
		path := cfg.HistoryPath
		if path == "" {
			path = history.DefaultPath()
		}
		store, err := history.Open(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("history disabled")
		} else {
			s.history = store
			runnerCfg.History = store
		}
	}

	s.runner = runner.NewRunner(runnerCfg)
	return s, nil
}

func openTunnel(ctx context.Context, f *requestFlags) (*tunnel.Tunnel, error) {
	tcfg, err := tunnel.ParseTarget(f.ssh)
	if err != nil {
		return nil, &uerrors.UsageError{Message: err.Error()}
	}
	tcfg.KeyPath = f.sshKey
	tcfg.UseAgent = f.sshAgent
	tcfg.PromptPass = f.sshPassword
	tcfg.StrictHostKey = f.sshStrict
	tcfg.KnownHosts = f.knownHosts

	tun := tunnel.New(tcfg, log)
	if err := tun.Connect(ctx); err != nil {
		return nil, err
	}
	log.Info().Str("gateway", tcfg.Addr()).Msg("ssh tunnel established")
	return tun, nil
}
