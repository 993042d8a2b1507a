// Package env handles variables and {{...}} placeholder resolution for hitupload.
//
// It provides functionality for:
//   - Loading .env files
//   - Collecting HITUPLOAD_VAR_* variables from the process environment
//   - Variable interpolation using {{variable}} syntax
//   - Built-in function evaluation (uuid, fileSha256, timestamp, etc.)
//   - Resolving values captured from earlier responses
package env
