package logging

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

type contextKey string

const (
	RequestIDKey    contextKey = "request_id"
	ConnectionIDKey contextKey = "connection_id"
)

// Config selects the level, encoding and destination of a logger. Service
// and environment, when set, are stamped on every record.
type Config struct {
	Level       string // debug, info, warn, error
	Format      string // json, text
	Output      io.Writer
	AddSource   bool
	ServiceName string
	Environment string
}

// ParseLevel maps a configured level name to a slog level. Unknown names
// fall back to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates the structured logger shared by the relay and the
// viewer. The relay writes JSON to stdout; the viewer writes text to stderr
// so log lines never land inside the rendered board.
func NewLogger(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       ParseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: rfc3339Time,
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var base slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		base = slog.NewTextHandler(output, opts)
	} else {
		base = slog.NewJSONHandler(output, opts)
	}

	var static []slog.Attr
	if cfg.ServiceName != "" {
		static = append(static, slog.String("service", cfg.ServiceName))
	}
	if cfg.Environment != "" {
		static = append(static, slog.String("environment", cfg.Environment))
	}
	if len(static) > 0 {
		base = base.WithAttrs(static)
	}

	return slog.New(contextHandler{base})
}

func rfc3339Time(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && len(groups) == 0 {
		return slog.String(a.Key, a.Value.Time().Format(time.RFC3339Nano))
	}
	return a
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// contextHandler copies the request and connection ids out of the context
// passed to the *Context logging methods.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(contextAttrs(ctx)...)
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

func contextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}
	if connID, ok := ctx.Value(ConnectionIDKey).(string); ok && connID != "" {
		attrs = append(attrs, slog.String("connection_id", connID))
	}
	return attrs
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithConnectionID adds a websocket connection ID to the context
func WithConnectionID(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, ConnectionIDKey, connID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// LoggerFromContext returns logger with the context's request and
// connection ids attached. Use it where the record is not emitted with a
// *Context method, e.g. when the logger is handed to another component.
func LoggerFromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	attrs := contextAttrs(ctx)
	if len(attrs) == 0 {
		return logger
	}
	args := make([]any, 0, len(attrs))
	for _, a := range attrs {
		args = append(args, a)
	}
	return logger.With(args...)
}

// LogPanic logs a recovered panic value with the goroutine's stack.
func LogPanic(logger *slog.Logger, panicValue any) {
	logger.Error("panic recovered",
		"panic", panicValue,
		"stack_trace", string(debug.Stack()),
	)
}

// RequestInfo describes one finished HTTP exchange.
type RequestInfo struct {
	Method       string
	Path         string
	StatusCode   int
	Duration     time.Duration
	BytesWritten int64
	ClientIP     string
	UserAgent    string
}

// LogRequest logs a finished request at a level derived from its status.
// Websocket upgrades are reported separately since the connection outlives
// the request.
func LogRequest(ctx context.Context, logger *slog.Logger, info RequestInfo) {
	attrs := []any{
		"method", info.Method,
		"path", info.Path,
		"status_code", info.StatusCode,
		"duration_ms", info.Duration.Milliseconds(),
		"bytes_written", info.BytesWritten,
		"client_ip", info.ClientIP,
		"user_agent", info.UserAgent,
	}

	switch {
	case info.StatusCode == http.StatusSwitchingProtocols:
		logger.InfoContext(ctx, "websocket upgraded", attrs...)
	case info.StatusCode >= 500:
		logger.ErrorContext(ctx, "http request", attrs...)
	case info.StatusCode >= 400:
		logger.WarnContext(ctx, "http request", attrs...)
	default:
		logger.InfoContext(ctx, "http request", attrs...)
	}
}
