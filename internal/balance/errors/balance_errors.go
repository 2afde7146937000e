package balanceerrors

import (
	"net/http"

	"go-leave/internal/shared/apperror"
)

var (
	ErrBalanceNotFound = apperror.New(
		apperror.CodeNotFound,
		"leave balance not found",
		http.StatusNotFound,
	)
	ErrAlreadyInitialized = apperror.New(
		apperror.CodeConflict,
		"leave balances already initialized for this user",
		http.StatusConflict,
	)
	ErrInsufficientBalance = apperror.New(
		apperror.CodeInsufficientBalance,
		"insufficient leave balance",
		http.StatusUnprocessableEntity,
	)
	ErrUnknownLeaveType = apperror.New(
		apperror.CodeInvalidInput,
		"unknown leave type",
		http.StatusBadRequest,
	)
	ErrInvalidDays = apperror.New(
		apperror.CodeInvalidInput,
		"days must be a positive whole number",
		http.StatusBadRequest,
	)
)
