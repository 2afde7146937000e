package leaveerrors

import (
	"net/http"

	"go-leave/internal/shared/apperror"
)

var (
	ErrInvalidDateFormat = apperror.New(
		apperror.CodeInvalidInput,
		"invalid date format, expected YYYY-MM-DD",
		http.StatusBadRequest,
	)
	ErrInvalidDateRange = apperror.New(
		apperror.CodeInvalidInput,
		"start_date must be before or equal end_date",
		http.StatusBadRequest,
	)
	ErrReasonTooLong = apperror.New(
		apperror.CodeInvalidInput,
		"reason is too long",
		http.StatusBadRequest,
	)
	ErrUnknownLeaveType = apperror.New(
		apperror.CodeInvalidInput,
		"unknown leave type",
		http.StatusBadRequest,
	)
	ErrLeaveNotFound = apperror.New(
		apperror.CodeNotFound,
		"leave not found",
		http.StatusNotFound,
	)
	ErrLeaveAlreadyDecided = apperror.New(
		apperror.CodeConflict,
		"leave has already been decided",
		http.StatusConflict,
	)
	ErrLeaveModified = apperror.New(
		apperror.CodeConflict,
		"leave was modified concurrently, reload and retry",
		http.StatusConflict,
	)
	ErrLeaveNotCancellable = apperror.New(
		apperror.CodeConflict,
		"only pending leaves can be cancelled",
		http.StatusConflict,
	)
	ErrSelfDecision = apperror.New(
		apperror.CodeForbidden,
		"you cannot decide your own leave",
		http.StatusForbidden,
	)
	ErrNotLeaveOwner = apperror.New(
		apperror.CodeForbidden,
		"leave belongs to another user",
		http.StatusForbidden,
	)
)
