package producer

import (
	"context"
	"time"

	"go-leave/internal/messaging/kafka"

	"go.uber.org/zap"
)

const batchSize = 50

// ProcessOutboxEvents relays pending outbox rows until ctx is done. Each
// round drains the backlog batch by batch before waiting for the next tick.
func ProcessOutboxEvents(
	ctx context.Context,
	repo kafka.OutboxRepository,
	writer MessageWriter,
	logger *zap.Logger,
	pollInterval time.Duration,
) {
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}

	log := logger.Named("kafka.producer.worker")
	log.Info("outbox relay started", zap.Duration("poll_interval", pollInterval))

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		drain(ctx, repo, writer, log)

		select {
		case <-ctx.Done():
			log.Info("outbox relay stopped")
			return
		case <-ticker.C:
		}
	}
}

func drain(ctx context.Context, repo kafka.OutboxRepository, writer MessageWriter, log *zap.Logger) {
	for ctx.Err() == nil {
		fetched, err := processPendingEvents(ctx, repo, writer, log)
		if err != nil {
			log.Error("relay outbox batch failed", zap.Error(err))
			return
		}
		if fetched < batchSize {
			return
		}
	}
}

// processPendingEvents publishes one batch and reports how many rows it read.
// A row that cannot be published is marked failed and retried later with
// backoff; the rest of the batch still goes out.
func processPendingEvents(
	ctx context.Context,
	repo kafka.OutboxRepository,
	writer MessageWriter,
	log *zap.Logger,
) (int, error) {
	pending, err := repo.ListPending(ctx, batchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	log.Debug("relaying outbox batch", zap.Int("count", len(pending)))

	var sent int
	for _, event := range pending {
		fields := []zap.Field{
			zap.String("outbox_id", event.ID),
			zap.String("event_type", event.EventType),
			zap.String("aggregate_id", event.AggregateID),
		}

		if err := publishEvent(ctx, writer, event); err != nil {
			log.Warn("publish outbox event failed", append(fields, zap.Int("retry_count", event.RetryCount), zap.Error(err))...)
			if markErr := repo.MarkFailed(ctx, event, err.Error()); markErr != nil {
				log.Error("mark outbox event failed", append(fields, zap.Error(markErr))...)
			}
			continue
		}

		if err := repo.MarkSent(ctx, event.ID); err != nil {
			// Left pending, so the event is published again on the next round.
			log.Error("mark outbox event sent", append(fields, zap.Error(err))...)
			continue
		}
		sent++
	}

	log.Info("outbox batch relayed", zap.Int("sent", sent), zap.Int("failed", len(pending)-sent))
	return len(pending), nil
}
