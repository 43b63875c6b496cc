package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lorrc/issue-relay/internal/infrastructure/logging"
)

// RequestLogger logs one line per request once the handler returns. A
// websocket upgrade returns after the hijack, so its line marks the start
// of the stream rather than its end.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logging.LogRequest(r.Context(), logger, logging.RequestInfo{
				Method:       r.Method,
				Path:         r.URL.Path,
				StatusCode:   responseStatus(ww, r),
				Duration:     time.Since(start),
				BytesWritten: int64(ww.BytesWritten()),
				ClientIP:     getClientIP(r),
				UserAgent:    r.UserAgent(),
			})
		})
	}
}

// responseStatus fills in what the wrapper cannot see. A hijacked upgrade
// writes its 101 straight to the connection, and a handler that wrote
// nothing at all implicitly answered 200.
func responseStatus(ww chimw.WrapResponseWriter, r *http.Request) int {
	if status := ww.Status(); status != 0 {
		return status
	}
	if isWebSocketUpgrade(r) {
		return http.StatusSwitchingProtocols
	}
	return http.StatusOK
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// RecoveryLogger turns a handler panic into a logged stack trace and a JSON
// 500. http.ErrAbortHandler is re-raised so net/http can drop the
// connection as intended.
func RecoveryLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				scoped := logging.LoggerFromContext(r.Context(), logger).With("method", r.Method, "path", r.URL.Path)
				logging.LogPanic(scoped, rec)

				if isWebSocketUpgrade(r) {
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"Server error","code":"INTERNAL_ERROR"}`))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
