package leave

import (
	"errors"

	leaveerrors "go-leave/internal/leave/errors"
	"go-leave/internal/shared/apperror"

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
		return leaveerrors.ErrLeaveNotFound
	}

	return apperror.StorageUnavailable(err)
}
