package contextutil

import (
	"context"

	"go.uber.org/zap"
)

type key int

const (
	requestIDKey key = iota
	userIDKey
	roleKey
	loggerKey
)

func stringValue(ctx context.Context, k key) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(k).(string)
	return v
}

func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey, rid)
}

func GetRequestID(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, userIDKey, uid)
}

func GetUserID(ctx context.Context) string { return stringValue(ctx, userIDKey) }

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

func GetRole(ctx context.Context) string { return stringValue(ctx, roleKey) }

func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// GetLogger prefers the request logger, then fallback, then a nop logger.
func GetLogger(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	if fallback != nil {
		return fallback
	}
	return zap.NewNop()
}

// Metadata is the caller identity travelling with a request; the outbox and
// audit log copy it into what they persist.
type Metadata struct {
	RequestID string
	UserID    string
	Role      string
}

func ExtractMetadata(ctx context.Context) Metadata {
	return Metadata{
		RequestID: GetRequestID(ctx),
		UserID:    GetUserID(ctx),
		Role:      GetRole(ctx),
	}
}
