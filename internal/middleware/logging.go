package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// Logging emits one "http request" line per request after the chain has run.
// Routes listed in probes (health checks, metric scrapes) are logged at debug
// while they succeed. Any 5xx is logged at error and any 4xx at warn.
func Logging(logger *slog.Logger, probes ...string) gin.HandlerFunc {
	quiet := make(map[string]struct{}, len(probes))
	for _, p := range probes {
		quiet[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		ctx := c.Request.Context()
		status := c.Writer.Status()
		route := c.FullPath()

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Int("bytes", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
		}
		if actor, ok := ActorFromContext(c); ok {
			attrs = append(attrs, slog.Int64("user_id", actor.ID))
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			attrs = append(attrs,
				slog.String("trace_id", sc.TraceID().String()),
				slog.String("span_id", sc.SpanID().String()),
			)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		_, probe := quiet[route]
		logger.LogAttrs(ctx, requestLevel(status, probe), "http request", attrs...)
	}
}

func requestLevel(status int, probe bool) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case probe:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
