package websocket

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"github.com/lorrc/issue-relay/internal/core/ports"
)

// DefaultHeartbeatInterval is how long a connection has to answer a probe.
const DefaultHeartbeatInterval = 30 * time.Second

// Hub owns the connection registry, runs the heartbeat loop and fans events
// out to every live connection.
type Hub struct {
	registry Registry
	clock    clock.Clock
	interval time.Duration
	logger   *slog.Logger
}

// Ensure Hub implements the EventBroadcaster interface.
var _ ports.EventBroadcaster = (*Hub)(nil)

// HubConfig holds the hub's collaborators
type HubConfig struct {
	Registry          Registry
	Clock             clock.Clock
	HeartbeatInterval time.Duration
	Logger            *slog.Logger
}

// NewHub creates a new hub. Missing collaborators fall back to an in-memory
// registry, the wall clock and DefaultHeartbeatInterval.
func NewHub(cfg HubConfig) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewConnectionRegistry(logger)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	interval := cfg.HeartbeatInterval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}

	return &Hub{
		registry: registry,
		clock:    clk,
		interval: interval,
		logger:   logger.With("component", "websocket_hub"),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(conn Conn) {
	h.registry.Register(conn)
}

// Unregister removes a connection from the hub.
func (h *Hub) Unregister(conn Conn) {
	h.registry.Unregister(conn)
}

// Acknowledge records a pong from conn.
func (h *Hub) Acknowledge(conn Conn) {
	h.registry.Acknowledge(conn)
}

// Broadcast delivers the identical payload to every open connection. A
// failing connection is logged and skipped; it never stops delivery to the
// others.
func (h *Hub) Broadcast(payload []byte) error {
	delivered, failed := 0, 0

	h.registry.ForEachLive(func(conn Conn) {
		if err := conn.Send(payload); err != nil {
			failed++
			h.logger.Warn("failed to deliver event",
				"connection_id", conn.ID(),
				"error", err,
			)
			if errors.Is(err, ErrSendBufferFull) {
				h.registry.Unregister(conn)
				_ = conn.Terminate()
			}
			return
		}
		delivered++
	})

	h.logger.Debug("broadcast event",
		"bytes", len(payload),
		"delivered", delivered,
		"failed", failed,
	)
	return nil
}

// Run drives the heartbeat until ctx is cancelled, then terminates every
// remaining connection. This MUST be run as a goroutine.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("heartbeat started", "interval", h.interval.String())

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.logger.Info("heartbeat stopped")
			return
		case <-h.clock.After(h.interval):
			if evicted := h.registry.Sweep(); evicted > 0 {
				h.logger.Info("evicted unresponsive connections",
					"evicted", evicted,
					"remaining", h.registry.Len(),
				)
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.registry.ForEachLive(func(conn Conn) {
		h.registry.Unregister(conn)
		_ = conn.Terminate()
	})
}

// ConnectionCount returns the number of registered connections
func (h *Hub) ConnectionCount() int {
	return h.registry.Len()
}
