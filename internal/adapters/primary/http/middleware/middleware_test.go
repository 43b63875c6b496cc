package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/issue-relay/internal/infrastructure/logging"
)

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	t.Run("generates when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		require.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("propagates inbound header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(RequestIDHeader, "abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "abc", seen)
		assert.Equal(t, "abc", logging.GetRequestID(logging.WithRequestID(req.Context(), seen)))
	})

	t.Run("falls back to gitlab delivery uuid", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/webhook/gitlab", nil)
		req.Header.Set(GitLabEventUUIDHeader, "13792a34-cac6-4fda-95a8-c58e00a3954e")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "13792a34-cac6-4fda-95a8-c58e00a3954e", seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("replaces unsafe inbound id", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(RequestIDHeader, "bad id\nlevel=ERROR")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.NotContains(t, seen, " ")
		assert.Len(t, seen, 36)
	})
}

func TestRequestLogger_IncludesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{Level: "info", Format: "json", Output: &buf, ServiceName: "test"})

	handler := RequestID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest("GET", "/api/issues", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-42"`)
	assert.Contains(t, out, `"status_code":418`)
	assert.Contains(t, out, `"path":"/api/issues"`)
}

func TestRequestLogger_Status(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		upgrade bool
		want    string
	}{
		{"implicit ok", func(w http.ResponseWriter, r *http.Request) {}, false, `"status_code":200`},
		{"body without header", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("hi")) }, false, `"bytes_written":2`},
		{"hijacked upgrade", func(w http.ResponseWriter, r *http.Request) {}, true, `"msg":"websocket upgraded"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			req := httptest.NewRequest("GET", "/ws", nil)
			if tc.upgrade {
				req.Header.Set("Upgrade", "websocket")
			}
			RequestLogger(logger)(tc.handler).ServeHTTP(httptest.NewRecorder(), req)

			assert.Contains(t, buf.String(), tc.want)
		})
	}
}

func TestRecoveryLogger_ReraisesAbort(t *testing.T) {
	handler := RecoveryLogger(logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	})
}

func TestRecoveryLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RecoveryLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/webhook/gitlab", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "kaboom")
	assert.Contains(t, buf.String(), "stack_trace")
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         2,
		CleanupInterval:   time.Minute,
		TTL:               time.Minute,
	})
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{200, 200, 429}, codes)

	// A different client has its own budget.
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_RefillAndSweep(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		CleanupInterval:   time.Hour,
		TTL:               3 * time.Minute,
		Clock:             clk,
	})
	defer rl.Stop()

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))

	clk.Advance(time.Second)
	assert.True(t, rl.Allow("10.0.0.1"), "bucket refills on the injected clock")

	clk.Advance(2 * time.Minute)
	assert.True(t, rl.Allow("10.0.0.2"))
	assert.Equal(t, 0, rl.Sweep())

	clk.Advance(2 * time.Minute)
	assert.Equal(t, 1, rl.Sweep(), "only the idle visitor is forgotten")
	assert.Equal(t, 1, rl.Len())
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", getClientIP(req))
}

func TestWebhookRateLimiterConfig(t *testing.T) {
	cfg := WebhookRateLimiterConfig(50, 100)

	assert.Equal(t, 50.0, cfg.RequestsPerSecond)
	assert.Equal(t, 100, cfg.BurstSize)
	assert.Equal(t, DefaultRateLimiterConfig().TTL, cfg.TTL)
}
