package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypePrecondition   ErrorType = "precondition"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeInternal       ErrorType = "internal"
)

// PortalError represents a structured error in the portal
type PortalError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *PortalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *PortalError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string, details map[string]interface{}) *PortalError {
	return &PortalError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewAuthenticationError creates a new authentication error
func NewAuthenticationError(code, message string) *PortalError {
	return &PortalError{
		Type:    ErrorTypeAuthentication,
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *PortalError {
	return &PortalError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewPreconditionError reports an action attempted from a state that does not allow it
func NewPreconditionError(code, message string, details map[string]interface{}) *PortalError {
	return &PortalError{
		Type:    ErrorTypePrecondition,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewRateLimitError creates a new rate limit error
func NewRateLimitError(code, message string) *PortalError {
	return &PortalError{
		Type:    ErrorTypeRateLimit,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(code, message string, cause error) *PortalError {
	return &PortalError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsType reports whether err wraps a PortalError of the given type
func IsType(err error, t ErrorType) bool {
	var pe *PortalError
	if errors.As(err, &pe) {
		return pe.Type == t
	}
	return false
}

// HTTPStatus maps an error to the status code handlers respond with
func HTTPStatus(err error) int {
	var pe *PortalError
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError
	}
	switch pe.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypePrecondition:
		return http.StatusConflict
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// Common error codes
const (
	ErrCodeInvalidInput         = "INVALID_INPUT"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeInternalError        = "INTERNAL_ERROR"
	ErrCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	ErrCodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	ErrCodeInvalidStage         = "INVALID_STAGE"
	ErrCodePhotosMissing        = "PHOTOS_MISSING"
	ErrCodePaymentRequired      = "PAYMENT_REQUIRED"
	ErrCodeAlreadyDispatched    = "ALREADY_DISPATCHED"
	ErrCodeUnknownDose          = "UNKNOWN_DOSE"
	ErrCodeSessionExpired       = "SESSION_EXPIRED"
	ErrCodeStepMismatch         = "STEP_MISMATCH"
	ErrCodeNotEligible          = "NOT_ELIGIBLE"
)
