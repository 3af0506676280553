package logging

import (
	"context"
	"log/slog"
)

type ctxLogger struct{}

// WithContext stores log on ctx for handlers further down the request
// or socket session.
func WithContext(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxLogger{}, log)
}

// FromContext returns the logger stored on ctx, or the process default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxLogger{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// With derives a logger carrying attrs from the one on ctx and stores it
// back, so every later log line in that scope is tagged.
func With(ctx context.Context, attrs ...slog.Attr) context.Context {
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return WithContext(ctx, FromContext(ctx).With(args...))
}
