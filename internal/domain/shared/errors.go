package shared

import "errors"

// Error codes surfaced by the domain. Every coordinator failure carries exactly one of
// CodeValidation, CodeNotFound or CodeConflict.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates an error for malformed or missing input
func NewValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}

// NewNotFoundError creates an error for an absent entity or sub-entity
func NewNotFoundError(message string) *DomainError {
	return NewDomainError(CodeNotFound, message)
}

// NewConflictError creates an error for uniqueness violations and redundant transitions
func NewConflictError(message string) *DomainError {
	return NewDomainError(CodeConflict, message)
}

// Common domain errors
var (
	ErrNotFound     = NewNotFoundError("Resource not found")
	ErrConflict     = NewConflictError("Resource already exists")
	ErrInvalidInput = NewValidationError("Invalid input provided")
	ErrUnauthorized = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
)

// ErrorCode extracts the domain error code, or "" when err is not a DomainError
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsValidationError reports whether err is a validation failure
func IsValidationError(err error) bool {
	return ErrorCode(err) == CodeValidation
}

// IsNotFound reports whether err is a not-found failure
func IsNotFound(err error) bool {
	return ErrorCode(err) == CodeNotFound
}

// IsConflict reports whether err is a conflict failure
func IsConflict(err error) bool {
	return ErrorCode(err) == CodeConflict
}
