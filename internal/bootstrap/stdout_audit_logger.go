package bootstrap

import (
	"context"
	"time"

	"go-leave/internal/shared/contextutil"

	"go.uber.org/zap"
)

// StdoutAuditLogger writes audit entries through zap under the "audit" name,
// tagged with the request metadata carried by ctx.
type StdoutAuditLogger struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewStdoutAuditLogger(logger ...*zap.Logger) *StdoutAuditLogger {
	l := zap.L()
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &StdoutAuditLogger{logger: l.Named("audit"), now: time.Now}
}

func (l *StdoutAuditLogger) Log(ctx context.Context, entry AuditLog) {
	md := contextutil.ExtractMetadata(ctx)
	fields := []zap.Field{
		zap.String("timestamp", l.now().UTC().Format(time.RFC3339)),
		zap.String("action", entry.Action),
		zap.Any("meta", entry.Meta),
	}
	if md.RequestID != "" {
		fields = append(fields, zap.String("request_id", md.RequestID))
	}
	if md.UserID != "" {
		fields = append(fields, zap.String("user_id", md.UserID), zap.String("role", md.Role))
	}
	l.logger.Info(entry.Message, fields...)
}
