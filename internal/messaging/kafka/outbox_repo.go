package kafka

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-leave/internal/shared/contextutil"

	"github.com/google/uuid"
)

const (
	OutboxStatusPending = "pending"
	OutboxStatusSent    = "sent"
	OutboxStatusFailed  = "failed"
)

const (
	maxErrorMessageLength = 500
	maxBackoffSteps       = 10
	backoffStep           = 15 * time.Second
)

type OutboxEvent struct {
	ID            string
	RequestID     string
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	Payload       []byte
	Status        string
	RetryCount    int
	NextRetryAt   *time.Time
}

// OutboxRecord is the table definition used by AutoMigrate. The repository
// itself talks plain SQL so the same statements run on postgres and sqlite.
type OutboxRecord struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	RequestID     string `gorm:"size:64;not null;default:''"`
	AggregateType string `gorm:"size:50;not null"`
	AggregateID   string `gorm:"size:64;not null;index:idx_outbox_aggregate"`
	EventType     string `gorm:"size:50;not null"`
	Topic         string `gorm:"size:100;not null"`
	Payload       []byte `gorm:"not null"`
	Status        string `gorm:"size:20;not null;default:'pending';index:idx_outbox_status_created"`
	RetryCount    int    `gorm:"not null;default:0"`
	ErrorMessage  *string
	NextRetryAt   *time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time `gorm:"index:idx_outbox_status_created"`
	UpdatedAt     time.Time
}

func (OutboxRecord) TableName() string {
	return "outbox_events"
}

//go:generate mockgen -source=outbox_repo.go -destination=mock/outbox_repo_mock.go -package=mock

type OutboxRepository interface {
	WithTx(tx *sql.Tx) OutboxRepository
	Create(ctx context.Context, event OutboxEvent) error
	ListPending(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, event OutboxEvent, reason string) error
}

type outboxRepository struct {
	db  *sql.DB
	tx  *sql.Tx
	now func() time.Time
}

func NewOutboxRepository(db *sql.DB) OutboxRepository {
	return &outboxRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *outboxRepository) WithTx(tx *sql.Tx) OutboxRepository {
	return &outboxRepository{db: r.db, tx: tx, now: r.now}
}

func (r *outboxRepository) Create(ctx context.Context, event OutboxEvent) error {
	if err := ValidateOutboxEvent(event); err != nil {
		return err
	}

	query := `
INSERT INTO outbox_events (
	id, request_id, aggregate_type, aggregate_id, event_type, topic, payload, status, retry_count, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`
	now := r.now()
	_, err := r.execer().ExecContext(
		ctx, query,
		event.ID, event.RequestID, event.AggregateType,
		event.AggregateID, event.EventType, event.Topic, event.Payload, event.Status,
		0, now, now,
	)
	return err
}

func (r *outboxRepository) ListPending(ctx context.Context, limit int) ([]OutboxEvent, error) {
	query := `
SELECT
	id,
	request_id,
	aggregate_type,
	aggregate_id,
	event_type,
	topic,
	payload,
	status,
	retry_count,
	next_retry_at
FROM outbox_events
WHERE status IN ($1, $2)
	AND (next_retry_at IS NULL OR next_retry_at <= $3)
ORDER BY created_at ASC
LIMIT $4
`

	rows, err := r.db.QueryContext(ctx, query, OutboxStatusPending, OutboxStatusFailed, r.now(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]OutboxEvent, 0, limit)
	for rows.Next() {
		var (
			e           OutboxEvent
			nextRetryAt sql.NullTime
		)
		if err := rows.Scan(
			&e.ID,
			&e.RequestID,
			&e.AggregateType,
			&e.AggregateID,
			&e.EventType,
			&e.Topic,
			&e.Payload,
			&e.Status,
			&e.RetryCount,
			&nextRetryAt,
		); err != nil {
			return nil, err
		}
		if nextRetryAt.Valid {
			t := nextRetryAt.Time
			e.NextRetryAt = &t
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id string) error {
	query := `
UPDATE outbox_events
SET
	status = $1,
	processed_at = $2,
	error_message = NULL,
	updated_at = $3
WHERE id = $4
`
	now := r.now()
	_, err := r.db.ExecContext(ctx, query, OutboxStatusSent, now, now, id)
	return err
}

// MarkFailed schedules the next attempt with a linear backoff capped at
// maxBackoffSteps * backoffStep.
func (r *outboxRepository) MarkFailed(ctx context.Context, event OutboxEvent, reason string) error {
	query := `
UPDATE outbox_events
SET
	status = $1,
	retry_count = retry_count + 1,
	error_message = $2,
	next_retry_at = $3,
	updated_at = $4
WHERE id = $5
`
	now := r.now()
	_, err := r.db.ExecContext(ctx, query,
		OutboxStatusFailed,
		truncate(reason, maxErrorMessageLength),
		now.Add(RetryBackoff(event.RetryCount)),
		now,
		event.ID,
	)
	return err
}

func (r *outboxRepository) execer() interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
} {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// RetryBackoff returns the delay before attempt retryCount+1.
func RetryBackoff(retryCount int) time.Duration {
	steps := retryCount + 1
	if steps > maxBackoffSteps {
		steps = maxBackoffSteps
	}
	return time.Duration(steps) * backoffStep
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// NewOutboxEvent marshals payload and stamps the request id found in ctx.
func NewOutboxEvent(ctx context.Context, aggregateType, aggregateID, eventType, topic string, payload any) (OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return OutboxEvent{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return OutboxEvent{
		ID:            uuid.NewString(),
		RequestID:     contextutil.GetRequestID(ctx),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Topic:         topic,
		Payload:       body,
		Status:        OutboxStatusPending,
	}, nil
}

func ValidateOutboxEvent(event OutboxEvent) error {
	if event.ID == "" {
		return errors.New("outbox id is required")
	}
	if event.Topic == "" {
		return errors.New("outbox topic is required")
	}
	if len(event.Payload) == 0 {
		return errors.New("outbox payload is required")
	}
	switch event.Status {
	case OutboxStatusPending, OutboxStatusSent, OutboxStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid outbox status: %s", event.Status)
	}
}
