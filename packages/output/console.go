package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/hitupload/packages/core/runner"
	"github.com/abdul-hamid-achik/hitupload/packages/history"
)

// maxBodyPreview bounds the body printed in verbose console output.
const maxBodyPreview = 2048

// formatValue formats a value for display, truncating or summarizing large values
func formatValue(v any, maxLen int) string {
	switch val := v.(type) {
	case nil:
		return "<missing>"
	case []any:
		return fmt.Sprintf("[array with %d items]", len(val))
	case map[string]any:
		return fmt.Sprintf("{object with %d keys}", len(val))
	}
	str := fmt.Sprintf("%v", v)
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.Result) error {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s %s %s\n", bold(result.Method), result.URL, cyan("("+result.Version.String()+")"))
	if len(result.Files) > 0 {
		fmt.Fprintf(f.writer, "  files: %s\n", strings.Join(result.Files, ", "))
	}

	resp := result.Response
	if resp == nil {
		fmt.Fprintf(f.writer, "  %s %s\n", red("x"), red(fmt.Sprintf("%v", result.Error)))
		if result.Attempts > 1 {
			fmt.Fprintf(f.writer, "    after %d attempts\n", result.Attempts)
		}
		fmt.Fprintln(f.writer)
		return nil
	}

	symbol := green("✓")
	status := green(resp.Status)
	if !result.Passed {
		symbol = red("✗")
	}
	if !resp.IsSuccess() {
		status = yellow(resp.Status)
	}
	fmt.Fprintf(f.writer, "  %s %s %s\n", symbol, status,
		cyan(fmt.Sprintf("(%dms, %s sent)", resp.Duration.Milliseconds(), formatBytes(resp.BytesSent))))
	if result.Attempts > 1 {
		fmt.Fprintf(f.writer, "    %s\n", yellow(fmt.Sprintf("succeeded on attempt %d", result.Attempts)))
	}

	for _, a := range result.Assertions {
		if a.Passed {
			if f.verbose {
				fmt.Fprintf(f.writer, "    %s %s %s %s\n", green("✓"), a.Subject, a.Operator, formatValue(a.Expected, 100))
			}
			continue
		}
		fmt.Fprintf(f.writer, "    %s %s %s\n", red("→"), a.Subject, a.Operator)
		fmt.Fprintf(f.writer, "      Expected: %s\n", formatValue(a.Expected, 100))
		fmt.Fprintf(f.writer, "      Actual:   %s\n", formatValue(a.Actual, 100))
		if a.Message != "" {
			fmt.Fprintf(f.writer, "      %s\n", a.Message)
		}
	}

	if len(result.Captures) > 0 {
		fmt.Fprintf(f.writer, "    Captures:\n")
		for _, name := range sortedKeys(result.Captures) {
			fmt.Fprintf(f.writer, "      %s = %s\n", name, formatValue(result.Captures[name], 100))
		}
	}
	for _, name := range result.Missing {
		fmt.Fprintf(f.writer, "    %s capture %s not found\n", yellow("!"), name)
	}

	if f.verbose {
		fmt.Fprintf(f.writer, "    Headers:\n")
		for _, k := range sortedKeys(resp.Headers) {
			fmt.Fprintf(f.writer, "      %s: %s\n", k, resp.Headers[k])
		}
		if body := resp.BodyString(); body != "" {
			if len(body) > maxBodyPreview {
				body = body[:maxBodyPreview] + "..."
			}
			fmt.Fprintf(f.writer, "    Body:\n      %s\n", strings.ReplaceAll(body, "\n", "\n      "))
		}
	}

	fmt.Fprintln(f.writer)
	return nil
}

func (f *ConsoleFormatter) FormatHistory(entries []history.Entry) error {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	if len(entries) == 0 {
		fmt.Fprintln(f.writer, "No uploads recorded.")
		return nil
	}

	fmt.Fprintf(f.writer, "%s\n", bold(fmt.Sprintf("%-5s %-19s %-6s %-8s %-10s %s", "ID", "TIME", "STATUS", "TIME(ms)", "SIZE", "URL")))
	for _, e := range entries {
		status := fmt.Sprintf("%-6d", e.Status)
		if e.Passed {
			status = green(status)
		} else {
			status = red(status)
		}
		fmt.Fprintf(f.writer, "%-5d %-19s %s %-8d %-10s %s\n",
			e.ID, e.Time.Format("2006-01-02 15:04:05"), status, e.Duration.Milliseconds(), formatBytes(e.Bytes), e.URL)
		if f.verbose && len(e.Files) > 0 {
			fmt.Fprintf(f.writer, "      files: %s\n", strings.Join(e.Files, ", "))
		}
		if e.Error != "" {
			fmt.Fprintf(f.writer, "      %s\n", red(e.Error))
		}
	}
	return nil
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
