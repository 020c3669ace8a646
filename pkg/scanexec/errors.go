package scanexec

import (
	"errors"
	"fmt"
)

// Sentinel errors for common CLI failures.
var (
	// ErrNoTargets indicates that no scan targets were supplied.
	ErrNoTargets = errors.New("no scan targets specified")

	// ErrUnsupportedProtocol indicates a protocol the command cannot use.
	ErrUnsupportedProtocol = errors.New("protocol not supported by this command")
)

// Error codes for scan failures used by CLI suggestion system.
const (
	errorCodeInvalidTarget     = "INVALID_TARGET"
	errorCodeNoTargets         = "NO_TARGETS"
	errorCodeInvalidOptions    = "INVALID_OPTIONS"
	errorCodeProberUnavailable = "PROBER_UNAVAILABLE"
	errorCodeStorageFailure    = "STORAGE_FAILURE"
	errorCodeScanFailure       = "SCAN_FAILURE"
)

// codedError wraps an error with an explicit error code.
type codedError struct {
	error
	code string
}

func (e *codedError) Error() string {
	return e.error.Error()
}

func (e *codedError) Unwrap() error {
	return e.error
}

func (e *codedError) Code() string {
	return e.code
}

// WithErrorCode wraps err with a specific CLI error code.
func WithErrorCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &codedError{error: err, code: code}
}

// ErrorCode resolves a scan error into a CLI error code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := coded.Code(); code != "" {
			return code
		}
	}

	switch {
	case errors.Is(err, ErrNoTargets):
		return errorCodeNoTargets
	case errors.Is(err, ErrUnsupportedProtocol):
		return errorCodeInvalidOptions
	}

	return errorCodeScanFailure
}

// isConfigError reports whether err was raised before probing because of the
// user's input.
func isConfigError(code string) bool {
	switch code {
	case errorCodeInvalidTarget,
		errorCodeNoTargets,
		errorCodeInvalidOptions:
		return true
	}
	return false
}

// ExitCode maps scan errors to CLI exit codes.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if isConfigError(ErrorCode(err)) {
		return 2
	}
	return 1
}

// HTTPStatus maps scan errors to HTTP status codes.
func HTTPStatus(err error) int {
	if err == nil {
		return 200
	}

	code := ErrorCode(err)
	switch {
	case isConfigError(code):
		return 400
	case code == errorCodeProberUnavailable, code == errorCodeStorageFailure:
		return 503
	default:
		return 500
	}
}

// Suggestions provides CLI hints for scan errors.
func Suggestions(err error) []string {
	if err == nil {
		return nil
	}

	switch ErrorCode(err) {
	case errorCodeInvalidTarget, errorCodeNoTargets:
		return []string{
			"Provide a target:           netscout host 192.168.1.0/24",
			"Use ranges or host names:   netscout host 10.0.0.1-20 example.com",
		}
	case errorCodeInvalidOptions:
		return []string{
			"Check timing flags:         --timeout, --waittime and --rate must not be negative",
			"Run help for options:       netscout <command> --help",
		}
	case errorCodeProberUnavailable:
		return []string{
			"Raw sockets need privileges: run as root or grant CAP_NET_RAW",
			"Unprivileged port scan:      netscout port <target> --type connect",
		}
	case errorCodeStorageFailure:
		return []string{
			"Check the workspace:        storage.workspace_dir or --workspace-dir",
			"Skip history:               add --no-persist",
		}
	default:
		return []string{
			"Retry with verbose logs:    netscout <command> <target> -vv",
			"Increase timeouts:          --timeout 5s --waittime 500ms",
		}
	}
}

// NewInvalidTargetError annotates an invalid target input with context.
func NewInvalidTargetError(input string, reason error) error {
	if input == "" {
		return WithErrorCode(ErrNoTargets, errorCodeNoTargets)
	}
	return WithErrorCode(fmt.Errorf("invalid target %q: %w", input, reason), errorCodeInvalidTarget)
}

// NewInvalidOptionsError annotates an option validation failure.
func NewInvalidOptionsError(err error) error {
	return WithErrorCode(err, errorCodeInvalidOptions)
}

// NewStorageError annotates a workspace or history failure.
func NewStorageError(err error) error {
	return WithErrorCode(err, errorCodeStorageFailure)
}
