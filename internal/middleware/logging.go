package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// traceWriter captures the status code and body size a handler produced.
type traceWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (t *traceWriter) WriteHeader(code int) {
	t.status = code
	t.ResponseWriter.WriteHeader(code)
}

func (t *traceWriter) Write(p []byte) (int, error) {
	n, err := t.ResponseWriter.Write(p)
	t.bytes += n
	return n, err
}

// RequestLogger logs one line per request. Server faults log at error,
// client mistakes at warn, everything else at info.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			tw := &traceWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(tw, r)

			level := slog.LevelInfo
			switch {
			case tw.status >= 500:
				level = slog.LevelError
			case tw.status >= 400:
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", tw.status,
				"bytes", tw.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
				"client", RealIP(r),
			)
		})
	}
}
