// Package cmd implements the hitupload CLI commands using Cobra.
//
// Available commands:
//   - upload: Send files as multipart/form-data and print the response
//   - bench: Repeat an upload and summarize latency and throughput
//   - history: List or clear recorded uploads
//   - serve: Run a local server that receives uploads
//   - validate: Check a config file without uploading
//   - init: Write a starter config
//   - version: Show hitupload version information
//
// Flags fall back to HITUPLOAD_* environment variables, and a config file
// found in the working directory fills in anything the command line leaves
// out.
package cmd
