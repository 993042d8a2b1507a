// Package config handles configuration loading and management for hitupload.
//
// It provides functionality for:
//   - Loading configuration from .hitupload.json, .hitupload.yaml or .hitupload.yml
//   - Default configuration values
//   - Merging file configuration with command line overrides
package config
