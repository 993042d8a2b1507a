// Package assertions checks upload responses against expectations.
//
// An expectation is a one-line expression, as given to --expect:
//
//	status in [200, 201]
//	body.id exists
//	header Content-Type contains json
//	duration < 500
//	body schema ./upload-response.schema.json
//	body.files[0].name == "report.pdf"
//
// The shorthand path=value means body.path == value. JSON bodies are
// queried with gjson paths; array brackets are accepted.
package assertions
