package logger

import (
	"context"

	"go.uber.org/zap"
)

type loggerKey struct{}

var nop = zap.NewNop()

// ContextWithLogger returns a copy of ctx carrying l.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the request-scoped logger, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return nop
	}
	l, _ := ctx.Value(loggerKey{}).(*zap.Logger)
	if l == nil {
		return nop
	}
	return l
}

// WithFields attaches fields to the logger already stored in ctx.
// Handlers use it to tag later log lines with the operation and batch size.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	l, ok := ctx.Value(loggerKey{}).(*zap.Logger)
	if !ok || l == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, l.With(fields...))
}
