package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/csmith/slogflags"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func initLogging() {
	_ = slogflags.Logger(
		slogflags.WithOldLogLevel(slog.LevelDebug),
		slogflags.WithSetDefault(true),
	)
}

// requestLogger logs each request that passes through the router. It relies on chi's RequestID middleware
// having run first.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(wrapped, r)

		status := wrapped.Status()
		if status == 0 {
			status = http.StatusOK
		}

		slog.Debug("HTTP request",
			"request_id", chimw.GetReqID(r.Context()),
			"method", r.Method,
			"host", r.Host,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		)
	})
}
