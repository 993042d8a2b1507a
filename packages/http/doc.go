// Package http sends upload requests and collects their responses.
//
// Two transports are available behind the same Client:
//   - the standard library client, with timeouts, redirects, TLS and proxy
//     settings
//   - a wire transport that dials the server itself, writes the request line
//     with an explicit HTTP version (1.0 or 1.1), reads exactly one response
//     and shuts the connection down
//
// Request bodies come from a streaming multipart form (package form) or a
// raw byte slice. Basic, bearer, API key, digest and AWS Signature v4
// authentication are supported on both transports.
package http
