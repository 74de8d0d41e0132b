package logging

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Response headers set by the policy endpoint and picked up in the access log
const (
	InvocationIDHeader = "X-Invocation-ID"
	OutcomeHeader      = "X-Policy-Outcome"
)

// quietPaths are polled by orchestrators and scrapers
var quietPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

var accessWriterPool = sync.Pool{
	New: func() any {
		return &accessWriter{status: http.StatusOK}
	},
}

// LoggingMiddleware writes one access line per admin request. Policy calls
// carry the invocation id and outcome so the line joins the tool's own log
// records; 4xx lines are warnings and 5xx lines are errors.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, quiet := quietPaths[r.URL.Path]; quiet {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			aw := accessWriterPool.Get().(*accessWriter)
			aw.reset(w)
			defer func() {
				aw.ResponseWriter = nil
				accessWriterPool.Put(aw)
			}()

			next.ServeHTTP(aw, r)

			logger.Log(r.Context(), levelForStatus(aw.status), "HTTP request", accessAttrs(r, aw, time.Since(start))...)
		})
	}
}

func accessAttrs(r *http.Request, aw *accessWriter, elapsed time.Duration) []any {
	requestID, ok := r.Context().Value(middleware.RequestIDKey).(string)
	if !ok || requestID == "" {
		requestID = "unknown"
	}

	attrs := []any{
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		attrs = append(attrs, "route", rctx.RoutePattern())
	}
	if r.URL.RawQuery != "" {
		attrs = append(attrs, "query", r.URL.RawQuery)
	}
	if id := aw.Header().Get(InvocationIDHeader); id != "" {
		attrs = append(attrs, "invocation_id", id)
	}
	if outcome := aw.Header().Get(OutcomeHeader); outcome != "" {
		attrs = append(attrs, "outcome", outcome)
	}
	return append(attrs,
		"remote_addr", r.RemoteAddr,
		"status_code", aw.status,
		"bytes_written", aw.written,
		"duration_ms", elapsed.Milliseconds(),
	)
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

type accessWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *accessWriter) reset(rw http.ResponseWriter) {
	w.ResponseWriter = rw
	w.status = http.StatusOK
	w.written = 0
}

func (w *accessWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *accessWriter) Write(data []byte) (int, error) {
	n, err := w.ResponseWriter.Write(data)
	w.written += n
	return n, err
}
