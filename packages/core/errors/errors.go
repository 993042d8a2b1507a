// Package errors provides the error types shared across hitupload.
//
// The structured types carry enough context (operation, address, field) for
// the CLI to pick an exit code and print a useful message.
package errors

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	ErrNoFiles         = errors.New("no files to upload")
	ErrExpectation     = errors.New("response did not meet expectations")
	ErrThresholds      = errors.New("bench thresholds failed")
	ErrUnsupportedHTTP = errors.New("unsupported HTTP version")
)

// NetworkError is a failure while talking to the server.
type NetworkError struct {
	Op        string // "dial", "write", "read", "shutdown"
	Addr      string
	Err       error
	Retryable bool
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ConfigError is an invalid configuration or flag value.
type ConfigError struct {
	Field   string
	Value   any
	Message string
	Hint    string
}

func (e *ConfigError) Error() string {
	msg := "config: " + e.Field
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// UsageError is a malformed command line.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return e.Message }

// Wrap creates a NetworkError, classifying retryability from err.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// IsNotConnected reports ENOTCONN, which a peer that already closed its end
// produces on shutdown and which callers ignore.
func IsNotConnected(err error) bool {
	return errors.Is(err, syscall.ENOTCONN)
}

func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary
	}
	return false
}

// As is [errors.As].
func As(err error, target any) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
