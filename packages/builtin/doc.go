// Package builtin provides the functions available inside {{...}}
// placeholders in URLs, headers and form field values.
//
// Available functions:
//   - uuid(): Generate a random UUID v4
//   - now(), date(layout): Current time, RFC 3339 or a Go layout
//   - timestamp(), timestampMs(): Current Unix time
//   - random(min, max), randomString(length): Random values
//   - base64(value), md5(value), sha256(value), urlEncode(value)
//   - fileSize(path), fileSha256(path), fileMD5(path): Facts about a file on disk
//   - basename(path), mimeType(path): File name and detected content type
//   - env(name): Environment variable value
//
// A call that fails (bad arguments, unreadable file) returns an error and
// the placeholder is left untouched.
package builtin
