package lock

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go-leave/internal/shared/apperror"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrLockBusy = apperror.New(
	apperror.CodeConflict,
	"resource is being modified by another request, please retry",
	http.StatusConflict,
)

type Release func(ctx context.Context) error

type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

type noopLocker struct{}

func NewNoopLocker() Locker {
	return noopLocker{}
}

func (noopLocker) Acquire(ctx context.Context, key string) (Release, error) {
	return func(context.Context) error { return nil }, nil
}

type Options struct {
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		Expiry:     10 * time.Second,
		Tries:      20,
		RetryDelay: 50 * time.Millisecond,
	}
}

type redisLocker struct {
	rs     *redsync.Redsync
	opts   Options
	logger *zap.Logger
}

func NewRedisLocker(rdb redis.UniversalClient, opts Options, logger ...*zap.Logger) Locker {
	l := zap.L().Named("lock.redis")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("lock.redis")
	}
	if opts.Expiry <= 0 {
		opts.Expiry = DefaultOptions().Expiry
	}
	if opts.Tries <= 0 {
		opts.Tries = 1
	}
	return &redisLocker{
		rs:     redsync.New(goredis.NewPool(rdb)),
		opts:   opts,
		logger: l,
	}
}

func (l *redisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	mutex := l.rs.NewMutex(
		"lock:"+key,
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !isContended(err) {
			l.logger.Error("lock backend unavailable", zap.String("key", key), zap.Error(err))
			return nil, apperror.StorageUnavailable(err)
		}
		l.logger.Warn("lock acquire failed", zap.String("key", key), zap.Error(err))
		return nil, apperror.Wrap(err, ErrLockBusy.Code, ErrLockBusy.Message, ErrLockBusy.HTTPStatus)
	}

	return func(ctx context.Context) error {
		ok, err := mutex.UnlockContext(ctx)
		if err != nil {
			l.logger.Error("lock release failed", zap.String("key", key), zap.Error(err))
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		if !ok {
			l.logger.Warn("lock was not held or already expired", zap.String("key", key))
		}
		return nil
	}, nil
}

// isContended reports whether err means another holder has the lock, as
// opposed to Redis being unreachable.
func isContended(err error) bool {
	var taken *redsync.ErrTaken
	var nodeTaken *redsync.ErrNodeTaken
	var redisErr *redsync.RedisError
	switch {
	case errors.As(err, &taken), errors.Is(err, redsync.ErrFailed):
		return true
	case errors.As(err, &redisErr):
		return false
	default:
		return errors.As(err, &nodeTaken)
	}
}
