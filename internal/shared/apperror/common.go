package apperror

import (
	"fmt"
	"net/http"
)

var (
	ErrNotFound = New(
		CodeNotFound,
		"Resource not found",
		http.StatusNotFound,
	)

	ErrForbidden = New(
		CodeForbidden,
		"You do not have permission to access this resource",
		http.StatusForbidden,
	)

	ErrInternal = New(
		CodeInternalError,
		"An unexpected error occurred",
		http.StatusInternalServerError,
	)

	ErrUnauthorized = New(
		CodeUnauthorized,
		"Authentication is required",
		http.StatusUnauthorized,
	)

	ErrInvalidInput = New(
		CodeInvalidInput,
		"The provided input is invalid",
		http.StatusBadRequest,
	)

	ErrStorageUnavailable = New(
		CodeStorageUnavailable,
		"Storage is temporarily unavailable, please retry",
		http.StatusServiceUnavailable,
	)
)

// StorageUnavailable wraps a store failure that is not a domain outcome.
// Callers may retry the operation.
func StorageUnavailable(err error) *AppError {
	return Wrap(err, ErrStorageUnavailable.Code, ErrStorageUnavailable.Message, ErrStorageUnavailable.HTTPStatus)
}

func RequiredField(field string) *AppError {
	return New(
		CodeInvalidInput,
		fmt.Sprintf("%s is required", field),
		http.StatusBadRequest,
	)
}

func InvalidField(field string) *AppError {
	return New(
		CodeInvalidInput,
		fmt.Sprintf("%s is invalid", field),
		http.StatusBadRequest,
	)
}
