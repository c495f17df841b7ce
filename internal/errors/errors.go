// Package errors defines the service error taxonomy shared by every agent.
//
// Error codes form a small closed set; the HTTP status for a code is fixed
// by HTTPStatusForCode and never chosen ad hoc by handlers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code identifies an error category in the service taxonomy.
type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeDuplicate         Code = "DUPLICATE_RECORD"
	CodeActiveTaskExists  Code = "ACTIVE_TASK_EXISTS"
	CodeUnprocessable     Code = "UNPROCESSABLE_ENTITY"
	CodeDownstream        Code = "DOWNSTREAM_ERROR"
	CodeRateLimited       Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeInvalidToken      Code = "INVALID_TOKEN"
)

// ServiceError is the error shape surfaced across service boundaries.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	cause      error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ServiceError) Unwrap() error {
	return e.cause
}

// WithDetails attaches a detail field and returns the error for chaining.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPStatusForCode maps an error code to its HTTP status. DUPLICATE_*
// prefixed codes map to 409 even when not individually listed.
func HTTPStatusForCode(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeInvalidToken:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeActiveTaskExists:
		return http.StatusConflict
	case CodeUnprocessable:
		return http.StatusUnprocessableEntity
	case CodeDownstream:
		return http.StatusBadGateway
	case CodeRateLimited:
		return http.StatusTooManyRequests
	}
	if strings.HasPrefix(string(code), "DUPLICATE_") {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func newError(code Code, message string, cause error) *ServiceError {
	return &ServiceError{
		Code:       code,
		Message:    message,
		HTTPStatus: HTTPStatusForCode(code),
		cause:      cause,
	}
}

// Validation reports a request that failed schema or business validation.
func Validation(message string) *ServiceError {
	return newError(CodeValidation, message, nil)
}

// Unauthorized reports a missing or unacceptable credential.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "authentication required"
	}
	return newError(CodeUnauthorized, message, nil)
}

// InvalidToken reports a credential that was presented but failed validation.
func InvalidToken(cause error) *ServiceError {
	return newError(CodeInvalidToken, "invalid token", cause)
}

// Forbidden reports an authenticated caller without the required capability.
func Forbidden(message string) *ServiceError {
	return newError(CodeForbidden, message, nil)
}

// NotFound reports a missing record. Ownership mismatches are reported with
// this constructor as well, never with Forbidden, so record existence does
// not leak across users.
func NotFound(resource string) *ServiceError {
	return newError(CodeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// Duplicate reports a record that already exists for the dedup key.
func Duplicate(message string) *ServiceError {
	return newError(CodeDuplicate, message, nil)
}

// ActiveTaskExists reports a live task already covering the dedup key.
func ActiveTaskExists(existingID string) *ServiceError {
	return newError(CodeActiveTaskExists, "an active task already exists for this input", nil).
		WithDetails("existingTaskId", existingID)
}

// Unprocessable reports input that was well formed but semantically invalid.
func Unprocessable(message string) *ServiceError {
	return newError(CodeUnprocessable, message, nil)
}

// Downstream reports a repository or dependency failure.
func Downstream(message string, cause error) *ServiceError {
	return newError(CodeDownstream, message, cause)
}

// RateLimitExceeded reports that the caller exceeded the request budget.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return newError(CodeRateLimited, "rate limit exceeded", nil).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// QuotaExceeded reports that an upstream provider refused the call for
// quota reasons. The provider-level QUOTA_EXCEEDED code deliberately folds
// into CodeRateLimited here: the envelope taxonomy has one 429 code, and
// providers.ToServiceError routes provider quota failures through this
// constructor.
func QuotaExceeded(message string) *ServiceError {
	return newError(CodeRateLimited, message, nil)
}

// Internal reports an unexpected failure. The message shown to callers stays
// generic; the cause is for logs only.
func Internal(message string, cause error) *ServiceError {
	return newError(CodeInternal, message, cause)
}

// GetServiceError returns err as a *ServiceError if it is one, else nil.
func GetServiceError(err error) *ServiceError {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}
	return nil
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	if serviceErr := GetServiceError(err); serviceErr != nil {
		return serviceErr.Code == code
	}
	return false
}
