package middleware

import (
	"dmchat/pkg/logging"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// RequestLogger injects a request-scoped logger into the request context
// and logs the outcome once the handler returns.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		// child logger with request details
		attrs := []any{
			logging.RequestID(requestID),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.String("remote_addr", c.ClientIP()),
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			attrs = append(attrs, logging.TraceID(sc.TraceID().String()), logging.SpanID(sc.SpanID().String()))
		}
		reqLog := log.With(attrs...)

		// inject this new logger into the context
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), reqLog))

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}
		reqLog.Log(c.Request.Context(), level, "http - request - completed",
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
