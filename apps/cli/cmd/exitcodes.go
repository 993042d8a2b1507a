package cmd

import (
	"context"
	"errors"
	"io/fs"

	uerrors "github.com/abdul-hamid-achik/hitupload/packages/core/errors"
	"github.com/abdul-hamid-achik/hitupload/packages/form"
)

// Exit codes for hitupload CLI
const (
	// ExitSuccess indicates the upload went through and met its expectations
	ExitSuccess = 0

	// ExitUploadFailure indicates failed expectations or bench thresholds
	ExitUploadFailure = 1

	// ExitFileError indicates a missing or unreadable file to upload
	ExitFileError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64

	// ExitInterrupted indicates the run was cancelled by a signal
	ExitInterrupted = 130
)

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		usageErr *uerrors.UsageError
		cfgErr   *uerrors.ConfigError
		netErr   *uerrors.NetworkError
	)
	switch {
	case errors.As(err, &usageErr):
		return ExitUsageError
	case errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, uerrors.ErrExpectation), errors.Is(err, uerrors.ErrThresholds):
		return ExitUploadFailure
	case errors.As(err, &netErr):
		return ExitNetworkError
	case errors.Is(err, uerrors.ErrNoFiles),
		errors.Is(err, form.ErrEmptyForm),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission):
		return ExitFileError
	}
	return ExitUploadFailure
}
