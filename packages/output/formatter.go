package output

import (
	"fmt"
	"io"

	"github.com/abdul-hamid-achik/hitupload/packages/core/runner"
	"github.com/abdul-hamid-achik/hitupload/packages/history"
)

const (
	FormatRaw     = "raw"
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Formats lists the accepted --output values.
var Formats = []string{FormatRaw, FormatConsole, FormatJSON}

// Formatter writes upload results and history listings.
type Formatter interface {
	FormatResult(result *runner.Result) error
	FormatHistory(entries []history.Entry) error
}

// ErrorFormatter is implemented by formatters that print errors inline
// with their results.
type ErrorFormatter interface {
	FormatError(err error)
}

// New returns the formatter for format writing to w.
func New(format string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch format {
	case "", FormatRaw:
		return NewRawFormatter(w), nil
	case FormatConsole:
		return NewConsoleFormatter(WithWriter(w), WithVerbose(verbose), WithNoColor(noColor)), nil
	case FormatJSON:
		return NewJSONFormatter(JSONWithWriter(w)), nil
	}
	return nil, fmt.Errorf("unknown output format %q (use raw, console or json)", format)
}

// formatBytes renders n with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
