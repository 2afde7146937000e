package balance

import (
	"context"
	"database/sql"
	"errors"

	balanceerrors "go-leave/internal/balance/errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ledger is the write side of the balances used by the leave engine. Bind it
// to the engine's transaction with WithTx so that a balance change commits or
// rolls back together with the leave record.
type Ledger interface {
	WithTx(tx *sql.Tx) Ledger
	Reserve(ctx context.Context, userID, leaveType string, days int) error
	Release(ctx context.Context, userID, leaveType string, days int) error
	Available(ctx context.Context, userID, leaveType string) (int, error)
}

type ledger struct {
	repo   Repository
	logger *zap.Logger
}

func NewLedger(repo Repository, logger ...*zap.Logger) Ledger {
	l := zap.L().Named("balance.ledger")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("balance.ledger")
	}
	return &ledger{repo: repo, logger: l}
}

func (l *ledger) WithTx(tx *sql.Tx) Ledger {
	return &ledger{repo: l.repo.WithTx(tx), logger: l.logger}
}

func (l *ledger) Reserve(ctx context.Context, userID, leaveType string, days int) error {
	if days <= 0 {
		return balanceerrors.ErrInvalidDays
	}

	ok, err := l.repo.Deduct(ctx, userID, leaveType, days)
	if err != nil {
		l.logger.Error("reserve balance failed",
			zap.String("user_id", userID),
			zap.String("leave_type", leaveType),
			zap.Error(err),
		)
		return mapRepositoryError(err)
	}
	if !ok {
		l.logger.Warn("reserve balance refused",
			zap.String("user_id", userID),
			zap.String("leave_type", leaveType),
			zap.Int("days", days),
		)
		return balanceerrors.ErrInsufficientBalance
	}

	l.logger.Debug("balance reserved",
		zap.String("user_id", userID),
		zap.String("leave_type", leaveType),
		zap.Int("days", days),
	)
	return nil
}

func (l *ledger) Release(ctx context.Context, userID, leaveType string, days int) error {
	if days <= 0 {
		return balanceerrors.ErrInvalidDays
	}

	ok, err := l.repo.Credit(ctx, userID, leaveType, days)
	if err != nil {
		l.logger.Error("release balance failed",
			zap.String("user_id", userID),
			zap.String("leave_type", leaveType),
			zap.Error(err),
		)
		return mapRepositoryError(err)
	}
	if !ok {
		l.logger.Warn("release balance row missing",
			zap.String("user_id", userID),
			zap.String("leave_type", leaveType),
		)
		return balanceerrors.ErrBalanceNotFound
	}

	l.logger.Debug("balance released",
		zap.String("user_id", userID),
		zap.String("leave_type", leaveType),
		zap.Int("days", days),
	)
	return nil
}

// Available reports the remaining days; a user without a row has none.
func (l *ledger) Available(ctx context.Context, userID, leaveType string) (int, error) {
	b, err := l.repo.FindByUserAndType(ctx, userID, leaveType)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, mapRepositoryError(err)
	}
	return b.Balance, nil
}
