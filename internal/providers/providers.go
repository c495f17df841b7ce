// Package providers defines the shared error model for third-party API
// adapters.
package providers

import "fmt"

// Code is the closed set of outcomes a provider call can fail with.
type Code string

const (
	CodeNotFound         Code = "NOT_FOUND"
	CodeTokenError       Code = "TOKEN_ERROR"
	CodeQuotaExceeded    Code = "QUOTA_EXCEEDED"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeInvalidRequest   Code = "INVALID_REQUEST"
	CodeInternalError    Code = "INTERNAL_ERROR"
)

// Error is a translated provider failure.
type Error struct {
	Provider string
	Code     Code
	Message  string
	cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Provider, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

// Unwrap exposes the underlying transport error.
func (e *Error) Unwrap() error { return e.cause }

// NewError creates a provider error.
func NewError(provider string, code Code, message string, cause error) *Error {
	return &Error{Provider: provider, Code: code, Message: message, cause: cause}
}

// NetworkError reports a transport-level failure, which always folds into
// INTERNAL_ERROR.
func NetworkError(provider string, cause error) *Error {
	return NewError(provider, CodeInternalError, "request failed", cause)
}

// quotaReasons are the provider reason strings that distinguish quota
// exhaustion from a plain permission failure on a 403.
var quotaReasons = map[string]bool{
	"quotaExceeded":             true,
	"rateLimitExceeded":         true,
	"userRateLimitExceeded":     true,
	"dailyLimitExceeded":        true,
	"RATELIMITED":               true,
	"rate_limited":              true,
}

// MapError translates an HTTP status and provider-specific reason into the
// local code set. It is a pure function; transport failures never reach it
// (they are NetworkError).
func MapError(status int, reason string) Code {
	switch status {
	case 400:
		return CodeInvalidRequest
	case 401:
		return CodeTokenError
	case 403:
		if quotaReasons[reason] {
			return CodeQuotaExceeded
		}
		return CodePermissionDenied
	case 404:
		return CodeNotFound
	case 429:
		return CodeQuotaExceeded
	default:
		return CodeInternalError
	}
}
