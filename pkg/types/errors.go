package types

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of registry errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeAuthorization ErrorType = "authorization"
	ErrorTypeConflict      ErrorType = "conflict"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeInternal      ErrorType = "internal"
)

// RegistryError represents a structured error in the MedVault registry.
// Every rejection is a well-defined business-rule violation detected before
// any state mutation; there is no fatal error class inside the core.
type RegistryError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *RegistryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *RegistryError) Unwrap() error {
	return e.Cause
}

// Precondition failure codes surfaced by the three contracts.
const (
	ErrCodeAlreadyRegistered   = "ALREADY_REGISTERED"
	ErrCodeDuplicateCredential = "DUPLICATE_CREDENTIAL"
	ErrCodeDuplicateHealthID   = "DUPLICATE_HEALTH_ID"
	ErrCodeDuplicateDoctorID   = "DUPLICATE_DOCTOR_ID"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeWrongRole           = "WRONG_ROLE"
	ErrCodeAlreadyVerified     = "ALREADY_VERIFIED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInvalidPatient      = "INVALID_PATIENT"
	ErrCodeInvalidTarget       = "INVALID_TARGET"
	ErrCodeAccessDenied        = "ACCESS_DENIED"
	ErrCodeInvalidRecordType   = "INVALID_RECORD_TYPE"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeAlreadyInitialized  = "ALREADY_INITIALIZED"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// NewConflictError creates an error for duplicate-key and re-registration failures
func NewConflictError(code, message string) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeConflict,
		Code:    code,
		Message: message,
	}
}

// NewAuthorizationError creates an error for caller-permission failures
func NewAuthorizationError(code, message string) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeAuthorization,
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError creates an error for missing identities, records and grants
func NewNotFoundError(code, message string) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates an error for malformed or out-of-enum input
func NewValidationError(code, message string) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewInternalError wraps a state-layer failure
func NewInternalError(message string, cause error) *RegistryError {
	return &RegistryError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeInternalError,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode extracts the registry error code from an error chain, or empty
// if the error did not originate in the registry core.
func ErrorCode(err error) string {
	var regErr *RegistryError
	if errors.As(err, &regErr) {
		return regErr.Code
	}
	return ""
}
