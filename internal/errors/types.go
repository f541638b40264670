package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// POSIX-style codes carried by normalized filesystem errors.
const (
	CodeNotFound         = "ENOENT"
	CodePermissionDenied = "EACCES"
	CodeExists           = "EEXIST"
	CodeIsDirectory      = "EISDIR"
	CodeNotDirectory     = "ENOTDIR"
)

// Common error codes.
const (
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodeBuildFailed      = "ERR_BUILD_FAILED"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeInternalError    = "ERR_INTERNAL"
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
)

// StasisError is a structured error type with context.
type StasisError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	FilePath string
}

// Error implements the error interface.
func (e *StasisError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		if result == "" {
			return e.Cause.Error()
		}
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *StasisError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *StasisError) Is(target error) bool {
	var t *StasisError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithPath adds file location information.
func (e *StasisError) WithPath(filePath string) *StasisError {
	e.FilePath = filePath

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *StasisError {
	return &StasisError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

// NewBuildError creates a build error.
func NewBuildError(code, message string, cause error) *StasisError {
	return &StasisError{
		Type:    ErrorTypeBuild,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrBuildFailed creates a build failure error.
func ErrBuildFailed(path string, cause error) *StasisError {
	return NewBuildError(ErrCodeBuildFailed, "build failed", cause).WithPath(path)
}

// IsBuildError checks if an error is build-related.
func IsBuildError(err error) bool {
	var se *StasisError
	if errors.As(err, &se) {
		return se.Type == ErrorTypeBuild
	}

	return false
}
