// Package capture extracts values from upload responses.
//
// A capture is written name=source, where source is one of:
//   - body or body.<gjson path>: the JSON body or a value inside it
//   - header.<Name>: a response header
//   - status: the status code
//   - duration: the round trip in milliseconds
//
// Captured values are printed with the result and fed back into the
// variable resolver, so a later upload (or bench iteration) can use
// {{name}}.
package capture
