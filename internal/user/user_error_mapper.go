package user

import (
	"errors"

	"go-leave/internal/shared/apperror"
	usererrors "go-leave/internal/user/errors"

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
		return usererrors.ErrUserNotFound
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return usererrors.ErrUserAlreadyExists
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return usererrors.ErrUserAlreadyExists
	}

	return apperror.StorageUnavailable(err)
}
