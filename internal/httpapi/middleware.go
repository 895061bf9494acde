package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder wraps http.ResponseWriter to capture the status code a
// handler actually wrote, defaulting to 200 if WriteHeader is never
// called explicitly (mirroring net/http's own behavior).
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LoggingMiddleware wraps next so every request is logged once it
// completes, at info for 2xx/3xx, warn for 4xx, or error for 5xx, with
// the method, path, status, and duration.
func LoggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		durationMs := time.Since(start).Milliseconds()
		msg := fmt.Sprintf("%s %s %d %dms", r.Method, r.URL.Path, rec.status, durationMs)

		switch {
		case rec.status >= 500:
			logger.Error(msg)
		case rec.status >= 400:
			logger.Warn(msg)
		default:
			logger.Info(msg)
		}
	})
}
