package balance

import (
	"errors"

	balanceerrors "go-leave/internal/balance/errors"
	"go-leave/internal/shared/apperror"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return balanceerrors.ErrBalanceNotFound
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return balanceerrors.ErrAlreadyInitialized
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505" && pgErr.ConstraintName == "uq_leave_balances_user_type":
			return balanceerrors.ErrAlreadyInitialized
		case pgErr.Code == "23514" && pgErr.ConstraintName == "chk_leave_balances_non_negative":
			return balanceerrors.ErrInsufficientBalance
		}
	}

	return apperror.StorageUnavailable(err)
}
