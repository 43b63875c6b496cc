package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/lorrc/issue-relay/internal/infrastructure/logging"
)

const (
	// RequestIDHeader is the HTTP header name for request IDs
	RequestIDHeader = "X-Request-ID"

	// GitLabEventUUIDHeader identifies one webhook delivery. Redeliveries of
	// the same event reuse it, which makes it a good correlation id.
	GitLabEventUUIDHeader = "X-Gitlab-Event-UUID"

	maxRequestIDLength = 128
)

// RequestID ensures each request carries an id. A caller-supplied
// X-Request-ID wins, then GitLab's delivery UUID, then a fresh UUID. The id
// is echoed in the response and stored for request-scoped loggers.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := sanitizeRequestID(r.Header.Get(RequestIDHeader))
		if requestID == "" {
			requestID = sanitizeRequestID(r.Header.Get(GitLabEventUUIDHeader))
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := logging.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sanitizeRequestID drops ids that are too long or contain anything but
// printable ASCII, so a client cannot forge log lines through the header.
func sanitizeRequestID(id string) string {
	if len(id) > maxRequestIDLength {
		return ""
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return ""
		}
	}
	return id
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	return logging.GetRequestID(ctx)
}
