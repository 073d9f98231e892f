package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies application errors.
type ErrorCode string

const (
	CodeNotConnected      ErrorCode = "NOT_CONNECTED"
	CodeRateLimited       ErrorCode = "RATE_LIMITED"
	CodeCredentialExpired ErrorCode = "CREDENTIAL_EXPIRED"
	CodeMalformed         ErrorCode = "MALFORMED"
	CodeTimeout           ErrorCode = "TIMEOUT"
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// AppError wraps an error with a classification code.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap enables errors.Is/errors.As on the cause chain.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotConnectedError reports a call made before client credentials exist.
func NewNotConnectedError(message string) *AppError {
	return &AppError{Code: CodeNotConnected, Message: message}
}

// NewRateLimitedError reports a request that kept getting 429 after retries.
func NewRateLimitedError(message string, cause error) *AppError {
	return &AppError{Code: CodeRateLimited, Message: message, Err: cause}
}

// NewCredentialExpiredError reports a 403 from the cloud API.
func NewCredentialExpiredError(message string) *AppError {
	return &AppError{Code: CodeCredentialExpired, Message: message}
}

// NewMalformedError reports unparsable external input.
func NewMalformedError(message string) *AppError {
	return &AppError{Code: CodeMalformed, Message: message}
}

// NewInternalError creates an internal error.
func NewInternalError(message string) *AppError {
	return &AppError{Code: CodeInternal, Message: message}
}

// NewInternalErrorWithCause creates an internal error wrapping a cause.
func NewInternalErrorWithCause(message string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: cause}
}

func hasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsNotConnected reports whether err is a NotConnected error.
func IsNotConnected(err error) bool { return hasCode(err, CodeNotConnected) }

// IsRateLimited reports whether err is a RateLimited error.
func IsRateLimited(err error) bool { return hasCode(err, CodeRateLimited) }

// IsCredentialExpired reports whether err is a CredentialExpired error.
func IsCredentialExpired(err error) bool { return hasCode(err, CodeCredentialExpired) }

// IsMalformed reports whether err is a Malformed error.
func IsMalformed(err error) bool { return hasCode(err, CodeMalformed) }
