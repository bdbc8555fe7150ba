package models

import (
	"fmt"
)

// Error codes shared by services and handlers.
const (
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeConflictRetry       = "CONFLICT_RETRY"
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"
	CodeValidation          = "VALIDATION_ERROR"
	CodeInternal            = "INTERNAL_ERROR"
)

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so errors.Is(err, ErrNotFound)
// works regardless of message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrUnauthorized        = &AppError{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrForbidden           = &AppError{Code: CodeForbidden, Message: "forbidden"}
	ErrNotFound            = &AppError{Code: CodeNotFound, Message: "not found"}
	ErrConflictRetry       = &AppError{Code: CodeConflictRetry, Message: "conflicting update, retry"}
	ErrConstraintViolation = &AppError{Code: CodeConstraintViolation, Message: "constraint violation"}
	ErrValidation          = &AppError{Code: CodeValidation, Message: "invalid input"}
)

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func NewConflictError(err error) *AppError {
	return &AppError{
		Code:    CodeConflictRetry,
		Message: "conflicting update, retry",
		Err:     err,
	}
}

func NewConstraintError(message string, err error) *AppError {
	return &AppError{
		Code:    CodeConstraintViolation,
		Message: message,
		Err:     err,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}
