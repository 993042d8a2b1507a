package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	uerrors "github.com/abdul-hamid-achik/hitupload/packages/core/errors"
	"github.com/abdul-hamid-achik/hitupload/packages/form"
	"github.com/abdul-hamid-achik/hitupload/packages/http"
)

// Field is a text part sent before the files.
type Field struct {
	Name  string `json:"name" yaml:"name" validate:"required"`
	Value string `json:"value" yaml:"value"`
}

// Expect holds the response expectations checked after each upload.
type Expect struct {
	Status []int    `json:"status,omitempty" yaml:"status,omitempty"`
	Body   string   `json:"body,omitempty" yaml:"body,omitempty"`
	JSON   []string `json:"json,omitempty" yaml:"json,omitempty"` // "path=value"
	Schema string   `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// Bench configures repeated uploads.
type Bench struct {
	Count       int     `json:"count,omitempty" yaml:"count,omitempty" validate:"min=0"`
	Duration    string  `json:"duration,omitempty" yaml:"duration,omitempty"`
	Rate        float64 `json:"rate,omitempty" yaml:"rate,omitempty" validate:"min=0"`
	Concurrency int     `json:"concurrency,omitempty" yaml:"concurrency,omitempty" validate:"min=0"`
	Thresholds  string  `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// WaitFor polls a URL before uploading until it answers with Status.
type WaitFor struct {
	URL      string `json:"url" yaml:"url"`
	Status   int    `json:"status,omitempty" yaml:"status,omitempty"`
	Timeout  int    `json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"min=0"`   // milliseconds
	Interval int    `json:"interval,omitempty" yaml:"interval,omitempty" validate:"min=0"` // milliseconds
}

// Config represents the hitupload configuration
type Config struct {
	URL               string            `json:"url,omitempty" yaml:"url,omitempty"`
	Method            string            `json:"method,omitempty" yaml:"method,omitempty"`
	HTTPVersion       string            `json:"httpVersion,omitempty" yaml:"httpVersion,omitempty"`
	Wire              *bool             `json:"wire,omitempty" yaml:"wire,omitempty"`
	Boundary          string            `json:"boundary,omitempty" yaml:"boundary,omitempty"`
	CheckBoundary     *bool             `json:"checkBoundary,omitempty" yaml:"checkBoundary,omitempty"`
	FileField         string            `json:"fileField,omitempty" yaml:"fileField,omitempty" validate:"required"`
	Fields            []Field           `json:"fields,omitempty" yaml:"fields,omitempty" validate:"dive"`
	Files             []string          `json:"files,omitempty" yaml:"files,omitempty"`
	BaseDir           string            `json:"baseDir,omitempty" yaml:"baseDir,omitempty"`
	DetectContentType *bool             `json:"detectContentType,omitempty" yaml:"detectContentType,omitempty"`
	Timeout           int               `json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"min=0"` // milliseconds
	Retries           int               `json:"retries,omitempty" yaml:"retries,omitempty" validate:"min=0"`
	RetryDelay        int               `json:"retryDelay,omitempty" yaml:"retryDelay,omitempty" validate:"min=0"` // milliseconds
	FollowRedirects   *bool             `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects      int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty" validate:"min=0"`
	ValidateSSL       *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy             string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Headers           map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Auth              string            `json:"auth,omitempty" yaml:"auth,omitempty"`
	EnvFile           string            `json:"envFile,omitempty" yaml:"envFile,omitempty"`
	Expect            Expect            `json:"expect,omitempty" yaml:"expect,omitempty"`
	Extract           []string          `json:"extract,omitempty" yaml:"extract,omitempty"`
	Output            string            `json:"output,omitempty" yaml:"output,omitempty" validate:"oneof=raw console json"`
	NoColor           *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	History           *bool             `json:"history,omitempty" yaml:"history,omitempty"`
	HistoryPath       string            `json:"historyPath,omitempty" yaml:"historyPath,omitempty"`
	Before            []string          `json:"before,omitempty" yaml:"before,omitempty"`
	After             []string          `json:"after,omitempty" yaml:"after,omitempty"`
	WaitFor           *WaitFor          `json:"waitFor,omitempty" yaml:"waitFor,omitempty"`
	Bench             Bench             `json:"bench,omitempty" yaml:"bench,omitempty"`
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

func (c *Config) GetWire() bool              { return getBool(c.Wire, false) }
func (c *Config) GetCheckBoundary() bool     { return getBool(c.CheckBoundary, false) }
func (c *Config) GetDetectContentType() bool { return getBool(c.DetectContentType, false) }
func (c *Config) GetFollowRedirects() bool   { return getBool(c.FollowRedirects, true) }
func (c *Config) GetValidateSSL() bool       { return getBool(c.ValidateSSL, true) }
func (c *Config) GetNoColor() bool           { return getBool(c.NoColor, false) }
func (c *Config) GetHistory() bool           { return getBool(c.History, true) }

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// RetryDelayDuration returns RetryDelay as a time.Duration.
func (c *Config) RetryDelayDuration() time.Duration {
	return time.Duration(c.RetryDelay) * time.Millisecond
}

// ConfigFilenames contains the possible config file names, in lookup order
var ConfigFilenames = []string{
	".hitupload.json",
	".hitupload.yaml",
	".hitupload.yml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	return Default(), nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	mergeString := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	mergeString(&result.URL, other.URL)
	mergeString(&result.Method, other.Method)
	mergeString(&result.HTTPVersion, other.HTTPVersion)
	mergeString(&result.Boundary, other.Boundary)
	mergeString(&result.FileField, other.FileField)
	mergeString(&result.BaseDir, other.BaseDir)
	mergeString(&result.Proxy, other.Proxy)
	mergeString(&result.Auth, other.Auth)
	mergeString(&result.EnvFile, other.EnvFile)
	mergeString(&result.Output, other.Output)
	mergeString(&result.HistoryPath, other.HistoryPath)

	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.Retries > 0 {
		result.Retries = other.Retries
	}
	if other.RetryDelay > 0 {
		result.RetryDelay = other.RetryDelay
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}

	// Boolean flags - only override if explicitly set in other config
	for _, p := range []struct{ dst, src **bool }{
		{&result.Wire, &other.Wire},
		{&result.CheckBoundary, &other.CheckBoundary},
		{&result.DetectContentType, &other.DetectContentType},
		{&result.FollowRedirects, &other.FollowRedirects},
		{&result.ValidateSSL, &other.ValidateSSL},
		{&result.NoColor, &other.NoColor},
		{&result.History, &other.History},
	} {
		if *p.src != nil {
			*p.dst = *p.src
		}
	}

	// Fields and files replace rather than append so a command line
	// upload does not inherit the config file's parts.
	if len(other.Fields) > 0 {
		result.Fields = append([]Field(nil), other.Fields...)
	}
	if len(other.Files) > 0 {
		result.Files = append([]string(nil), other.Files...)
	}

	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(result.Headers)+len(other.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}

	if len(other.Expect.Status) > 0 {
		result.Expect.Status = other.Expect.Status
	}
	mergeString(&result.Expect.Body, other.Expect.Body)
	mergeString(&result.Expect.Schema, other.Expect.Schema)
	if len(other.Expect.JSON) > 0 {
		result.Expect.JSON = other.Expect.JSON
	}
	if len(other.Extract) > 0 {
		result.Extract = other.Extract
	}

	if len(other.Before) > 0 {
		result.Before = other.Before
	}
	if len(other.After) > 0 {
		result.After = other.After
	}
	if other.WaitFor != nil {
		w := *other.WaitFor
		result.WaitFor = &w
	}

	if other.Bench.Count > 0 {
		result.Bench.Count = other.Bench.Count
	}
	mergeString(&result.Bench.Duration, other.Bench.Duration)
	if other.Bench.Rate > 0 {
		result.Bench.Rate = other.Bench.Rate
	}
	if other.Bench.Concurrency > 0 {
		result.Bench.Concurrency = other.Bench.Concurrency
	}
	mergeString(&result.Bench.Thresholds, other.Bench.Thresholds)

	return &result
}

// Validate reports the first invalid setting as a *errors.ConfigError.
func (c *Config) Validate() error {
	if c.URL != "" {
		if err := http.ValidateURL(c.URL); err != nil {
			return &uerrors.ConfigError{Field: "url", Value: c.URL, Message: err.Error()}
		}
	}
	if _, err := http.ParseVersion(c.HTTPVersion); err != nil {
		return &uerrors.ConfigError{Field: "httpVersion", Value: c.HTTPVersion, Message: "unsupported version", Hint: "use 1.0 or 1.1"}
	}
	if c.Boundary != "" {
		if err := form.ValidateBoundary(c.Boundary); err != nil {
			return &uerrors.ConfigError{Field: "boundary", Value: c.Boundary, Message: err.Error()}
		}
	}
	if err := validateStruct(c); err != nil {
		return err
	}
	if c.Auth != "" {
		if _, err := http.ParseAuth(c.Auth); err != nil {
			return &uerrors.ConfigError{Field: "auth", Message: err.Error()}
		}
	}
	if c.WaitFor != nil {
		if err := http.ValidateURL(c.WaitFor.URL); err != nil {
			return &uerrors.ConfigError{Field: "waitFor.url", Value: c.WaitFor.URL, Message: err.Error()}
		}
	}
	if c.Bench.Duration != "" {
		if _, err := time.ParseDuration(c.Bench.Duration); err != nil {
			return &uerrors.ConfigError{Field: "bench.duration", Value: c.Bench.Duration, Message: "invalid duration", Hint: "e.g. 30s or 2m"}
		}
	}
	return nil
}

// Marshal encodes the configuration as YAML when path has a YAML extension
// and as indented JSON otherwise.
func (c *Config) Marshal(path string) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(c)
	}
	return json.MarshalIndent(c, "", "  ")
}

// SaveConfig writes the configuration to path in the format Marshal picks.
func (c *Config) SaveConfig(path string) error {
	data, err := c.Marshal(path)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
