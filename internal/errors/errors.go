// Package errors provides standardized error codes for the awake host.
//
// Error codes follow the format {domain}.{error} where:
//   - domain: The subsystem that generated the error (power, coordinator, config, ipc)
//   - error: The specific error type within that domain
//
// These codes are stable and are returned to CLI clients over the control
// socket alongside a human-readable message.
package errors

import (
	"errors"
	"fmt"
)

// Error codes by domain.
const (
	// Power domain - OS stay-awake grant errors
	CodePowerAcquireFailed          = "power.acquire_failed"          // Grant could not be acquired
	CodePowerReleaseFailed          = "power.release_failed"          // Grant could not be released
	CodePowerUnsupportedEnvironment = "power.unsupported_environment" // No supported grant mechanism on this host

	// Coordinator domain - activation state machine errors
	CodeCoordinatorInvalidDuration = "coordinator.invalid_duration" // Negative session duration
	CodeCoordinatorClosed          = "coordinator.closed"           // Coordinator already shut down

	// Config domain - configuration file errors
	CodeConfigNotFound = "config.not_found" // Explicit config path does not exist
	CodeConfigInvalid  = "config.invalid"   // Config failed to parse or validate

	// IPC domain - control socket errors
	CodeIPCUnavailable    = "ipc.unavailable"     // Daemon socket not reachable
	CodeIPCRateLimited    = "ipc.rate_limited"    // Too many mutation requests
	CodeIPCInvalidRequest = "ipc.invalid_request" // Malformed request body or parameters

	// General domain - catch-all errors
	CodeUnknown  = "error.unknown"  // Unknown error
	CodeInternal = "error.internal" // Internal error
)

// CodedError wraps an error with a stable error code.
// This allows errors to carry both a code for programmatic handling
// and a message for human consumption.
type CodedError struct {
	Code    string // Stable error code (e.g., "power.acquire_failed")
	Message string // Human-readable error message
	Cause   error  // Underlying error (may be nil)
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CodedError) Unwrap() error {
	return e.Cause
}

// New creates a new CodedError with the given code and message.
func New(code, message string) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CodedError wrapping an existing error.
func Wrap(code, message string, cause error) *CodedError {
	return &CodedError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// GetCode extracts the error code from an error.
// If the error is a CodedError, returns its code.
// Falls back to CodeUnknown for unrecognized errors.
func GetCode(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}

	return CodeUnknown
}

// GetMessage extracts a human-readable message from an error.
// If the error is a CodedError, returns its message.
// Otherwise, returns the error's Error() string.
func GetMessage(err error) string {
	if err == nil {
		return ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}

	return err.Error()
}

// ToCodeAndMessage extracts both code and message from an error.
// This is the primary function for converting errors to IPC responses.
func ToCodeAndMessage(err error) (code, message string) {
	if err == nil {
		return "", ""
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code, coded.Message
	}

	return CodeUnknown, err.Error()
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// Common error constructors for frequently used error types.

// AcquireFailed creates a "power.acquire_failed" error.
// The cause carries the resource-level failure (exit status, D-Bus error).
func AcquireFailed(label string, cause error) *CodedError {
	return Wrap(CodePowerAcquireFailed, fmt.Sprintf("failed to acquire stay-awake grant for %s", label), cause)
}

// ReleaseFailed creates a "power.release_failed" error.
// Release failures are reported but never block a state transition.
func ReleaseFailed(cause error) *CodedError {
	return Wrap(CodePowerReleaseFailed, "failed to release stay-awake grant", cause)
}

// Unsupported creates a "power.unsupported_environment" error.
func Unsupported(message string, cause error) *CodedError {
	return Wrap(CodePowerUnsupportedEnvironment, message, cause)
}

// InvalidDuration creates a "coordinator.invalid_duration" error.
func InvalidDuration(seconds int64) *CodedError {
	return New(CodeCoordinatorInvalidDuration, fmt.Sprintf("session duration must not be negative (got %ds)", seconds))
}

// CoordinatorClosed creates a "coordinator.closed" error.
func CoordinatorClosed() *CodedError {
	return New(CodeCoordinatorClosed, "coordinator is shut down")
}

// ConfigInvalid creates a "config.invalid" error.
func ConfigInvalid(message string, cause error) *CodedError {
	return Wrap(CodeConfigInvalid, message, cause)
}

// InvalidRequest creates an "ipc.invalid_request" error.
func InvalidRequest(reason string) *CodedError {
	return New(CodeIPCInvalidRequest, reason)
}

// RateLimited creates an "ipc.rate_limited" error.
func RateLimited() *CodedError {
	return New(CodeIPCRateLimited, "too many requests, slow down")
}

// Internal creates an "error.internal" error.
func Internal(message string, cause error) *CodedError {
	return Wrap(CodeInternal, message, cause)
}

// nextActions maps failure codes to the follow-up a user can take.
// The CLI prints these under the error message.
var nextActions = map[string]string{
	CodePowerAcquireFailed:          "Retry the request; if it keeps failing check 'awake status' for the last resource error.",
	CodePowerReleaseFailed:          "The grant may linger until the daemon exits. Restart the daemon to force release.",
	CodePowerUnsupportedEnvironment: "Install caffeinate (macOS) or run under systemd-logind (Linux) to enable keep-awake.",
	CodeCoordinatorInvalidDuration:  "Pass a positive --duration, or omit it for an indefinite session.",
	CodeCoordinatorClosed:           "The daemon is shutting down. Start it again with 'awake daemon'.",
	CodeConfigNotFound:              "Create a config with 'awake config init' or omit --config to use defaults.",
	CodeConfigInvalid:               "Fix the reported field in the config file and send SIGHUP or restart the daemon.",
	CodeIPCUnavailable:              "Start the daemon with 'awake daemon' or pass --socket to point at a running one.",
	CodeIPCRateLimited:              "Wait a moment before sending another request.",
	CodeIPCInvalidRequest:           "Check the command arguments with --help.",
}

// GetNextAction returns a user-facing recovery hint for an error code.
// Returns an empty string when no specific action is known.
func GetNextAction(code string) string {
	return nextActions[code]
}
