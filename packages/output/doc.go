// Package output renders upload results and history for the terminal.
//
// Supported output formats:
//   - raw: the server's response exactly as received (status line,
//     headers, body)
//   - console: a coloured summary with expectations and captures
//   - json: machine-readable JSON
//
// Each formatter implements Formatter and is picked with New.
package output
