// Package runner performs hitupload uploads.
//
// It provides functionality for:
//   - Turning a configuration into an upload Job
//   - Resolving {{...}} placeholders in the URL, fields, headers and paths
//   - Building the multipart form and checking the boundary
//   - Retrying network failures with a fixed delay
//   - Evaluating expectations and extracting captures
//   - Running before/after commands and waiting for a service
//   - Recording every attempt into the upload history
//
// Upload is the single-shot path used by the upload command. Prepare and
// Send split it for callers such as bench that repeat the same upload
// concurrently.
package runner
