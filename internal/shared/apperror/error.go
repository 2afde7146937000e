package apperror

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code       string // Error code (e.g., INVALID_INPUT)
	Message    string // User-friendly message
	HTTPStatus int    // HTTP status code
	Err        error  // Wrapped original error (optional)
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

// Is matches two AppErrors by code and message so that a wrapped sentinel
// still satisfies errors.Is against the original sentinel.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        nil,
	}
}

// Wrap creates an AppError that wraps an existing error
func Wrap(err error, code, message string, httpStatus int) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or
// CodeInternalError when there is none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternalError
}
