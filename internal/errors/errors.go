// Package errors defines the application error taxonomy.
//
// Every failure a cleanup firing can produce maps onto one ErrorCode, so
// callers can classify outcomes (logging tags, metrics, notifications)
// without string matching.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeConfig indicates invalid or unloadable configuration. Fatal at startup.
	ErrCodeConfig ErrorCode = "config"
	// ErrCodeConnection indicates the database was unreachable before any statement ran.
	ErrCodeConnection ErrorCode = "connection"
	// ErrCodeRender indicates a statement template failed to render.
	ErrCodeRender ErrorCode = "render"
	// ErrCodeValidation indicates a rendered statement was rejected by the safety gate.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeExecution indicates the statement failed after exhausting its retry budget.
	ErrCodeExecution ErrorCode = "execution"
	// ErrCodeTimeout indicates the firing's overall deadline expired mid-execution.
	ErrCodeTimeout ErrorCode = "timeout"
)

// AppError represents a structured application error with a code, message, and
// optional cause. It supports error wrapping and unwrapping for use with
// errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Config creates a new Config error.
func Config(message string) *AppError {
	return &AppError{Code: ErrCodeConfig, Message: message}
}

// Configf creates a new Config error with formatted message.
func Configf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeConfig, Message: fmt.Sprintf(format, args...)}
}

// Connection creates a new Connection error.
func Connection(message string) *AppError {
	return &AppError{Code: ErrCodeConnection, Message: message}
}

// Render creates a new Render error.
func Render(message string) *AppError {
	return &AppError{Code: ErrCodeRender, Message: message}
}

// Renderf creates a new Render error with formatted message.
func Renderf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeRender, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Execution creates a new Execution error.
func Execution(message string) *AppError {
	return &AppError{Code: ErrCodeExecution, Message: message}
}

// Executionf creates a new Execution error with formatted message.
func Executionf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeExecution, Message: fmt.Sprintf(format, args...)}
}

// Timeout creates a new Timeout error.
func Timeout(message string) *AppError {
	return &AppError{Code: ErrCodeTimeout, Message: message}
}

// Timeoutf creates a new Timeout error with formatted message.
func Timeoutf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeTimeout, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsConfig checks if an error is a Config error.
func IsConfig(err error) bool {
	return isCode(err, ErrCodeConfig)
}

// IsConnection checks if an error is a Connection error.
func IsConnection(err error) bool {
	return isCode(err, ErrCodeConnection)
}

// IsRender checks if an error is a Render error.
func IsRender(err error) bool {
	return isCode(err, ErrCodeRender)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsExecution checks if an error is an Execution error.
func IsExecution(err error) bool {
	return isCode(err, ErrCodeExecution)
}

// IsTimeout checks if an error is a Timeout error.
func IsTimeout(err error) bool {
	return isCode(err, ErrCodeTimeout)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
