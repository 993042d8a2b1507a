// Package form encodes multipart/form-data request bodies (RFC 7578).
//
// A Form is an ordered list of text fields and file parts separated by a
// boundary. Opening a Form yields a Body that streams the exact wire bytes
// and knows its length up front, so uploads of large files never need to be
// buffered in memory and can still carry a Content-Length header.
//
// Wire layout for each part:
//
//	--<boundary>\r\n
//	Content-Disposition: form-data; name="<name>"[; filename="<file>"]\r\n
//	[Content-Type: <type>\r\n]
//	\r\n
//	<content>\r\n
//
// followed by the closing delimiter "--<boundary>--\r\n".
package form
