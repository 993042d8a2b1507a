package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/abdul-hamid-achik/hitupload/packages/core/config"
	"github.com/abdul-hamid-achik/hitupload/packages/http"
)

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// versionValue is a pflag.Value accepting 1.0, 1.1 and the HTTP/x.y forms.
type versionValue struct {
	version *http.Version
}

var _ pflag.Value = (*versionValue)(nil)

func newVersionValue(p *http.Version, def http.Version) *versionValue {
	*p = def
	return &versionValue{version: p}
}

func (v *versionValue) String() string {
	if v.version == nil {
		return http.HTTP11.Number()
	}
	return v.version.Number()
}

func (v *versionValue) Set(s string) error {
	parsed, err := http.ParseVersion(s)
	if err != nil {
		return err
	}
	*v.version = parsed
	return nil
}

func (v *versionValue) Type() string { return "version" }

// parseField reads "name=value".
func parseField(s string) (config.Field, error) {
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return config.Field{}, fmt.Errorf("invalid field %q: expected name=value", s)
	}
	return config.Field{Name: name, Value: value}, nil
}

// parseHeader reads "Name: value" or "Name=value".
func parseHeader(s string) (string, string, error) {
	sep := strings.IndexAny(s, ":=")
	if sep <= 0 {
		return "", "", fmt.Errorf("invalid header %q: expected Name: value", s)
	}
	return strings.TrimSpace(s[:sep]), strings.TrimSpace(s[sep+1:]), nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
