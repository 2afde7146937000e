package notification

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type BreakerSettings struct {
	Name                string
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

type breakerNotifier struct {
	next    Notifier
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerNotifier stops calling next for OpenTimeout once it failed
// ConsecutiveFailures times in a row; calls made while open fail fast with
// gobreaker.ErrOpenState.
func NewBreakerNotifier(next Notifier, settings BreakerSettings, logger ...*zap.Logger) Notifier {
	l := zap.L().Named("notification.breaker")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("notification.breaker")
	}
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}
	if settings.Name == "" {
		settings.Name = "notifier"
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("notifier breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &breakerNotifier{next: next, breaker: cb}
}

func (b *breakerNotifier) Notify(ctx context.Context, address, subject, body string) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.next.Notify(ctx, address, subject, body)
	})
	return err
}
