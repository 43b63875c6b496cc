package websocket

import (
	"log/slog"
	"sync"
)

// Conn is a live duplex connection as seen by the registry. Implementations
// must be safe for concurrent use.
type Conn interface {
	ID() string
	IsOpen() bool
	// Send queues one serialized event for delivery.
	Send(payload []byte) error
	// Ping sends a transport-level liveness probe.
	Ping() error
	// Terminate forcibly closes the connection.
	Terminate() error
}

// Registry tracks live connections and evicts the ones that stop answering
// heartbeats.
type Registry interface {
	Register(conn Conn)
	Unregister(conn Conn)
	// Acknowledge records a heartbeat answer from conn.
	Acknowledge(conn Conn)
	// ForEachLive calls fn for every registered connection that is open.
	// fn runs outside the registry lock and may call Unregister.
	ForEachLive(fn func(conn Conn))
	// Sweep runs one heartbeat round and returns how many connections
	// were evicted.
	Sweep() int
	Len() int
}

type registryEntry struct {
	conn  Conn
	alive bool
}

// ConnectionRegistry is the in-memory Registry used by the hub.
type ConnectionRegistry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
	logger  *slog.Logger
}

var _ Registry = (*ConnectionRegistry)(nil)

// NewConnectionRegistry creates an empty registry
func NewConnectionRegistry(logger *slog.Logger) *ConnectionRegistry {
	return &ConnectionRegistry{
		entries: make(map[string]*registryEntry),
		logger:  logger.With("component", "connection_registry"),
	}
}

// Register adds a connection with its liveness flag set.
func (r *ConnectionRegistry) Register(conn Conn) {
	r.mu.Lock()
	r.entries[conn.ID()] = &registryEntry{conn: conn, alive: true}
	total := len(r.entries)
	r.mu.Unlock()

	r.logger.Info("connection registered",
		"connection_id", conn.ID(),
		"total_connections", total,
	)
}

// Unregister removes a connection. Unknown connections are ignored.
func (r *ConnectionRegistry) Unregister(conn Conn) {
	r.mu.Lock()
	_, ok := r.entries[conn.ID()]
	delete(r.entries, conn.ID())
	total := len(r.entries)
	r.mu.Unlock()

	if ok {
		r.logger.Info("connection unregistered",
			"connection_id", conn.ID(),
			"total_connections", total,
		)
	}
}

// Acknowledge sets the liveness flag of a registered connection.
func (r *ConnectionRegistry) Acknowledge(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[conn.ID()]; ok {
		e.alive = true
	}
}

// ForEachLive iterates over a copy of the open connections.
func (r *ConnectionRegistry) ForEachLive(fn func(conn Conn)) {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.entries))
	for _, e := range r.entries {
		if e.conn.IsOpen() {
			conns = append(conns, e.conn)
		}
	}
	r.mu.Unlock()

	for _, conn := range conns {
		fn(conn)
	}
}

// Sweep terminates connections that did not acknowledge the previous
// probe, then clears the flag on the rest and probes them again.
func (r *ConnectionRegistry) Sweep() int {
	r.mu.Lock()
	var dead, probe []Conn
	for id, e := range r.entries {
		if !e.alive {
			dead = append(dead, e.conn)
			delete(r.entries, id)
			continue
		}
		e.alive = false
		probe = append(probe, e.conn)
	}
	r.mu.Unlock()

	for _, conn := range dead {
		r.logger.Warn("terminating unresponsive connection", "connection_id", conn.ID())
		if err := conn.Terminate(); err != nil {
			r.logger.Debug("terminate failed", "connection_id", conn.ID(), "error", err)
		}
	}

	for _, conn := range probe {
		// A failed probe leaves the flag cleared; the next sweep evicts.
		if err := conn.Ping(); err != nil {
			r.logger.Debug("heartbeat probe failed", "connection_id", conn.ID(), "error", err)
		}
	}

	return len(dead)
}

// Len returns the number of registered connections.
func (r *ConnectionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
