package log

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// IntoContext stores the logger in the context so deeply nested handlers can
// log with the attributes attached by their caller.
func IntoContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored by IntoContext, or the default logger
// when the context carries none.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}

	return slog.Default()
}
