package fingerprint

import (
	"errors"
	"fmt"
)

const (
	errorCodeInvalidQuery      = "FINGERPRINT_INVALID_QUERY"
	errorCodeCorpusUnavailable = "FINGERPRINT_CORPUS_UNAVAILABLE"
)

var (
	// ErrInvalidQuery indicates a lookup with unusable parameters.
	ErrInvalidQuery = errors.New("invalid fingerprint query")
	// ErrCorpusUnavailable indicates the reference corpus could not be read.
	ErrCorpusUnavailable = errors.New("reference corpus unavailable")
)

type errorCoder interface {
	error
	Code() string
}

type withCodeError struct {
	error
	code string
}

func (e *withCodeError) Code() string {
	return e.code
}

func (e *withCodeError) Unwrap() error {
	return e.error
}

// WithErrorCode annotates err with a fingerprint error code.
func WithErrorCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &withCodeError{error: err, code: code}
}

// NewInvalidQueryError formats an invalid query error.
func NewInvalidQueryError(reason string) error {
	return WithErrorCode(fmt.Errorf("%w: %s", ErrInvalidQuery, reason), errorCodeInvalidQuery)
}

// WrapCorpusError annotates a corpus read failure.
func WrapCorpusError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCorpusUnavailable) {
		return err
	}
	return WithErrorCode(fmt.Errorf("%w: %w", ErrCorpusUnavailable, err), errorCodeCorpusUnavailable)
}

// ErrorCode resolves an error to its fingerprint error code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var coded errorCoder
	if errors.As(err, &coded) {
		if code := coded.Code(); code != "" {
			return code
		}
	}

	switch {
	case errors.Is(err, ErrInvalidQuery):
		return errorCodeInvalidQuery
	default:
		return errorCodeCorpusUnavailable
	}
}

// ExitCode maps fingerprint errors to CLI exit codes.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, ErrInvalidQuery) {
		return 2
	}
	return 1
}

// Suggestions provides CLI hints for fingerprint errors.
func Suggestions(err error) []string {
	if err == nil {
		return nil
	}

	switch ErrorCode(err) {
	case errorCodeInvalidQuery:
		return []string{
			"Query by TCP signal:       netscout os --window 65535 --options MSS,NOP,WS",
			"Query by initial TTL:      netscout os --ttl 64",
		}
	case errorCodeCorpusUnavailable:
		return []string{
			"Check the corpus override: storage.corpus_path in the config file",
			"Remove the override to fall back to the embedded corpus",
		}
	default:
		return nil
	}
}
