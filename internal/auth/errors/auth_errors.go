package autherrors

import (
	"net/http"

	"go-leave/internal/shared/apperror"
)

var (
	ErrInvalidCredentials = apperror.New(
		apperror.CodeUnauthorized,
		"invalid username or password",
		http.StatusUnauthorized,
	)
	ErrTokenNotFound = apperror.New(
		apperror.CodeUnauthorized,
		"token not found",
		http.StatusUnauthorized,
	)
	ErrInvalidToken = apperror.New(
		"INVALID_TOKEN",
		"invalid token",
		http.StatusUnauthorized,
	)
	ErrTokenExpired = apperror.New(
		"TOKEN_EXPIRED",
		"token has expired",
		http.StatusUnauthorized,
	)
	ErrTokenGenerationFailed = apperror.New(
		apperror.CodeInternalError,
		"failed to generate token",
		http.StatusInternalServerError,
	)
	ErrForbidden = apperror.ErrForbidden
)
