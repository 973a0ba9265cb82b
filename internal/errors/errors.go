// Package errors defines the service error taxonomy used across the API.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of service error in API responses.
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeDuplicateEmail     Code = "DUPLICATE_EMAIL"
	CodeDuplicateUsername  Code = "DUPLICATE_USERNAME"
	CodeNoToken            Code = "NO_TOKEN"
	CodeTokenExpired       Code = "TOKEN_EXPIRED"
	CodeInvalidToken       Code = "INVALID_TOKEN"
	CodeAccountNotFound    Code = "ACCOUNT_NOT_FOUND"
	CodeAccountDeactivated Code = "ACCOUNT_DEACTIVATED"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeInvalidOTP         Code = "INVALID_OTP"
	CodeAdminOnly          Code = "ADMIN_ONLY"
	CodeEditorOnly         Code = "EDITOR_ONLY"
	CodeNotFound           Code = "NOT_FOUND"
	CodeAccountLocked      Code = "ACCOUNT_LOCKED"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeInternal           Code = "INTERNAL"
)

// ServiceError carries an API error code, user-facing message, and HTTP status.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ServiceError) Unwrap() error { return e.cause }

// WithDetails attaches a detail entry and returns the error for chaining.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(code Code, message string, status int, cause error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, cause: cause}
}

// Validation reports invalid client input.
func Validation(message string) *ServiceError {
	return newError(CodeValidation, message, http.StatusBadRequest, nil)
}

// Duplicate reports a uniqueness violation on registration.
func Duplicate(code Code, message string) *ServiceError {
	return newError(code, message, http.StatusBadRequest, nil)
}

// Unauthorized reports a missing or unusable credential.
func Unauthorized(code Code, message string) *ServiceError {
	return newError(code, message, http.StatusUnauthorized, nil)
}

// Forbidden reports an authenticated caller with insufficient role.
func Forbidden(code Code, message string) *ServiceError {
	return newError(code, message, http.StatusForbidden, nil)
}

// NotFound reports a missing resource.
func NotFound(message string) *ServiceError {
	return newError(CodeNotFound, message, http.StatusNotFound, nil)
}

// Locked reports an account in its lockout window.
func Locked(message string) *ServiceError {
	return newError(CodeAccountLocked, message, http.StatusLocked, nil)
}

// RateLimited reports an exhausted request budget.
func RateLimited(message string) *ServiceError {
	return newError(CodeRateLimited, message, http.StatusTooManyRequests, nil)
}

// Internal reports an unexpected server-side failure.
func Internal(message string, cause error) *ServiceError {
	return newError(CodeInternal, message, http.StatusInternalServerError, cause)
}

// GetServiceError returns err as a *ServiceError when it is one, nil otherwise.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return nil
}
