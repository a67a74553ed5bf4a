package logging

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request logger, or the zap global when none is set.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return zap.L()
	}
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.L()
}

// C is shorthand for FromContext.
func C(ctx context.Context) *zap.Logger { return FromContext(ctx) }
