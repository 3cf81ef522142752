package errors

import (
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsCode checks whether err carries the given code
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// GetCode returns the error code if it's an AppError, otherwise "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeInvalidModel   = "INVALID_MODEL"   // negative or non-finite expectation values
	CodeFitConvergence = "FIT_CONVERGENCE" // optimizer did not converge within its budget
	CodeCalibration    = "CALIBRATION"     // toy campaign failure rate exceeded the threshold
	CodeNoRootFound    = "NO_ROOT_FOUND"   // limit search bracket contains no sign change
	CodeConfigInvalid  = "CONFIG_INVALID"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeInternalError  = "INTERNAL_ERROR"
)

// Common error constructors

func InvalidModel(message string) *AppError {
	return New(CodeInvalidModel, message)
}

func FitConvergence(message string) *AppError {
	return New(CodeFitConvergence, message)
}

func Calibration(message string) *AppError {
	return New(CodeCalibration, message)
}

func NoRootFound(message string) *AppError {
	return New(CodeNoRootFound, message)
}

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}
