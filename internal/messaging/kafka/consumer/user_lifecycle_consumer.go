package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go-leave/internal/balance"
	balanceerrors "go-leave/internal/balance/errors"
	"go-leave/internal/events"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

type BalanceInitializer interface {
	Initialize(ctx context.Context, userID string) ([]balance.BalanceResponse, error)
}

// ConsumeUserLifecycle grants the default entitlements to every new user.
// Users that already have balances are treated as done.
func ConsumeUserLifecycle(
	ctx context.Context,
	reader MessageReader,
	balances BalanceInitializer,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.user_lifecycle")
	log.Info("user lifecycle consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("user lifecycle consumer stopped")
				return
			}
			log.Error("fetch user lifecycle message failed", zap.Error(err))
			continue
		}

		var event events.UserCreatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error("decode user_created event failed", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}
		if event.EventType != events.UserCreated {
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		_, err = balances.Initialize(ctx, event.UserID)
		if err != nil {
			if isAlreadyInitialized(err) {
				log.Warn("balances already initialized for event, skipping", zap.String("user_id", event.UserID))
				_ = reader.CommitMessages(ctx, msg)
				continue
			}

			log.Error("initialize balances failed",
				zap.String("user_id", event.UserID),
				zap.Error(err),
			)
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit user lifecycle message failed", zap.Error(err))
			continue
		}

		log.Info("balances initialized from user_created event", zap.String("user_id", event.UserID))
	}
}

func isAlreadyInitialized(err error) bool {
	if errors.Is(err, balanceerrors.ErrAlreadyInitialized) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "uq_leave_balances_user_type"
	}

	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate key value") && strings.Contains(errMsg, "uq_leave_balances_user_type")
}
