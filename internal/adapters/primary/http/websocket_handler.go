package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	wsAdapter "github.com/lorrc/issue-relay/internal/adapters/primary/websocket"
	"github.com/lorrc/issue-relay/internal/config"
	"github.com/lorrc/issue-relay/internal/infrastructure/logging"
)

// WebSocketHandler attaches viewers to the live event stream.
type WebSocketHandler struct {
	hub      *wsAdapter.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *wsAdapter.Hub,
	cfg *config.Config,
	logger *slog.Logger,
) *WebSocketHandler {
	handler := &WebSocketHandler{
		hub:    hub,
		logger: logger.With("handler", "websocket"),
	}

	handler.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		CheckOrigin:     handler.originChecker(cfg.IsDevelopment(), cfg.WebSocket.AllowedOrigins),
	}

	return handler
}

// originChecker allows non-browser clients (no Origin header), everything in
// development, and otherwise only the configured origins.
func (h *WebSocketHandler) originChecker(development bool, allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if development {
			return true
		}
		if originAllowed(origin, allowed) {
			return true
		}

		h.logger.Warn("websocket connection rejected due to origin",
			"origin", origin,
			"remote_addr", r.RemoteAddr,
		)
		return false
	}
}

// originAllowed matches an Origin header against allow-list entries. An
// entry is "*", a host ("board.example.com"), a wildcard subdomain
// ("*.example.com") or a full origin ("https://board.example.com").
func originAllowed(origin string, allowed []string) bool {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	host := strings.ToLower(parsed.Host)
	full := strings.ToLower(parsed.Scheme + "://" + parsed.Host)

	for _, entry := range allowed {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "*":
			return true
		case strings.Contains(entry, "://"):
			if entry == full {
				return true
			}
		case strings.HasPrefix(entry, "*."):
			if strings.HasSuffix(host, entry[1:]) || host == entry[2:] {
				return true
			}
		case host == entry:
			return true
		}
	}
	return false
}

// ServeHTTP upgrades the request and attaches the connection to the hub.
// Viewers are anonymous; the stream only carries what the tracker already
// exposes to them.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.LoggerFromContext(r.Context(), h.logger).Warn("failed to upgrade websocket connection", "error", err)
		return
	}

	client := wsAdapter.NewClient(h.hub, conn, h.logger)
	h.hub.Register(client)

	ctx := logging.WithConnectionID(r.Context(), client.ID())
	logging.LoggerFromContext(ctx, h.logger).Info("websocket connection established",
		"remote_addr", r.RemoteAddr,
		"connections", h.hub.ConnectionCount(),
	)

	go client.WritePump()
	go client.ReadPump()
}
