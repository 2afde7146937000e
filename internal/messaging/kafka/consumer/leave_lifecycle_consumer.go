package consumer

import (
	"context"
	"encoding/json"

	"go-leave/internal/events"

	"go.uber.org/zap"
)

type LeaveDispatcher interface {
	Dispatch(ctx context.Context, event events.LeaveLifecycleEvent) error
}

// ConsumeLeaveLifecycle hands every leave lifecycle event to the dispatcher.
// A message whose delivery failed is left uncommitted.
func ConsumeLeaveLifecycle(
	ctx context.Context,
	reader MessageReader,
	dispatcher LeaveDispatcher,
	logger *zap.Logger,
) {
	log := logger.Named("kafka.consumer.leave_lifecycle")
	log.Info("leave lifecycle consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("leave lifecycle consumer stopped")
				return
			}
			log.Error("fetch leave lifecycle message failed", zap.Error(err))
			continue
		}

		var event events.LeaveLifecycleEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error("decode leave lifecycle event failed", zap.Error(err))
			_ = reader.CommitMessages(ctx, msg)
			continue
		}

		if err := dispatcher.Dispatch(ctx, event); err != nil {
			log.Error("dispatch leave notification failed",
				zap.String("leave_id", event.LeaveID),
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)
			continue
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit leave lifecycle message failed", zap.Error(err))
			continue
		}

		log.Info("leave lifecycle event handled",
			zap.String("leave_id", event.LeaveID),
			zap.String("event_type", event.EventType),
		)
	}
}
