package api

import (
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// loggingMiddleware logs HTTP requests with a level based on the status code.
func (s *Server) loggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	next(ctx)

	attrs := []slog.Attr{
		slog.String("method", ctx.Method()),
		slog.String("path", ctx.URL().Path),
		slog.String("remote_addr", ctx.RemoteAddr()),
		slog.Int("status", ctx.Status()),
		slog.Duration("duration", time.Since(start)),
	}

	level := slog.LevelDebug
	switch status := ctx.Status(); {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx.Context(), level, "HTTP request completed", attrs...)
}
