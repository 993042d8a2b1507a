// Package logger builds the zerolog logger hitupload writes diagnostics to.
//
// Diagnostics go to stderr through a console writer; the response and
// reports stay on stdout.
package logger

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

const (
	FieldComponent = "component"
	FieldURL       = "url"
	FieldAttempt   = "attempt"
	FieldStatus    = "status"
	FieldDuration  = "duration"
)

// TimeFormat is the console timestamp layout.
const TimeFormat = "15:04:05"

var validLevels = []string{"trace", "debug", "info", "warn", "error"}

// Config contains logging configuration.
type Config struct {
	Level     string
	Verbosity int
	NoColor   bool
	Timestamp bool
}

// ParseLevel picks the log level. An explicit name wins; otherwise each -v
// lowers the threshold one step from warn.
func ParseLevel(name string, verbosity int) (zerolog.Level, error) {
	if name != "" {
		name = strings.ToLower(strings.TrimSpace(name))
		for _, l := range validLevels {
			if l == name {
				return zerolog.ParseLevel(name)
			}
		}
		return zerolog.NoLevel, fmt.Errorf("log level must be one of %v (got: %s)", validLevels, name)
	}

	switch {
	case verbosity <= 0:
		return zerolog.WarnLevel, nil
	case verbosity == 1:
		return zerolog.InfoLevel, nil
	case verbosity == 2:
		return zerolog.DebugLevel, nil
	}
	return zerolog.TraceLevel, nil
}

// New creates a console logger writing to w.
func New(w io.Writer, cfg Config) (zerolog.Logger, error) {
	level, err := ParseLevel(cfg.Level, cfg.Verbosity)
	if err != nil {
		return zerolog.Nop(), err
	}

	console := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    cfg.NoColor,
		TimeFormat: TimeFormat,
	}
	if !cfg.Timestamp {
		console.PartsExclude = []string{zerolog.TimestampFieldName}
	}

	zl := zerolog.New(console).Level(level)
	if cfg.Timestamp {
		zl = zl.With().Timestamp().Logger()
	}
	return zl, nil
}

// WithComponent returns a logger tagged with a component name.
func WithComponent(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str(FieldComponent, name).Logger()
}
