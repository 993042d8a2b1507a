package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/hitupload/packages/core/runner"
	"github.com/abdul-hamid-achik/hitupload/packages/history"
)

// RawFormatter prints the response as received, followed by a newline.
type RawFormatter struct {
	writer io.Writer
}

func NewRawFormatter(w io.Writer) *RawFormatter {
	if w == nil {
		w = os.Stdout
	}
	return &RawFormatter{writer: w}
}

// FormatResult writes nothing when no response arrived; the error is
// reported on stderr by the caller.
func (f *RawFormatter) FormatResult(result *runner.Result) error {
	if result == nil || result.Response == nil {
		return nil
	}
	_, err := fmt.Fprintln(f.writer, result.Response.Dump())
	return err
}

// FormatHistory writes one tab-separated line per entry.
func (f *RawFormatter) FormatHistory(entries []history.Entry) error {
	for _, e := range entries {
		_, err := fmt.Fprintf(f.writer, "%d\t%s\t%s\t%s\t%d\t%d\t%dms\t%s\t%s\n",
			e.ID, e.Time.Format("2006-01-02T15:04:05"), e.Method, e.URL, e.Status, e.Bytes,
			e.Duration.Milliseconds(), strings.Join(e.Files, ","), e.Error)
		if err != nil {
			return err
		}
	}
	return nil
}
