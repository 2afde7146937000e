package usererrors

import (
	"go-leave/internal/shared/apperror"
	"net/http"
)

var (
	ErrUserNotFound = apperror.New(
		apperror.CodeNotFound,
		"User not found",
		http.StatusNotFound,
	)

	ErrUserAlreadyExists = apperror.New(
		apperror.CodeConflict,
		"User with the same username already exists",
		http.StatusConflict,
	)

	ErrInvalidRole = apperror.New(
		apperror.CodeInvalidInput,
		"Role must be one of ADMIN, MANAGER, EMPLOYEE",
		http.StatusBadRequest,
	)

	ErrCannotDeleteSelf = apperror.New(
		apperror.CodeInvalidState,
		"You cannot delete your own account",
		http.StatusBadRequest,
	)

	ErrContactUnavailable = apperror.New(
		apperror.CodeNotFound,
		"User has no contact address",
		http.StatusNotFound,
	)
)
