package websocket

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message or control frame to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer. Viewers never send data
	// frames, so this only bounds misbehaving clients.
	maxMessageSize = 1024

	// Outbound queue depth per connection.
	sendBufferSize = 256
)

var (
	// ErrConnectionClosed is returned when sending to a terminated connection.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned when a slow peer cannot keep up.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound payloads.
	send chan []byte

	// done is closed exactly once by Terminate.
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once

	logger *slog.Logger
}

var _ Conn = (*Client)(nil)

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, logger *slog.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger.With("connection_id", id),
	}
}

// ID returns the connection's unique identifier.
func (c *Client) ID() string {
	return c.id
}

// IsOpen reports whether the connection has not been terminated.
func (c *Client) IsOpen() bool {
	return !c.closed.Load()
}

// Send queues a payload for the write pump without blocking.
func (c *Client) Send(payload []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Ping writes a websocket ping control frame. Safe to call concurrently
// with the write pump.
func (c *Client) Ping() error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Terminate closes the underlying connection and stops both pumps.
func (c *Client) Terminate() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// ReadPump reads from the websocket connection so control frames are
// processed. Pongs mark the connection alive. This method runs in its own
// goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.Terminate()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.hub.Acknowledge(c)
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		c.logger.Debug("ignoring inbound message", "bytes", len(message))
	}
}

// WritePump pumps payloads from the send queue to the websocket connection.
// This method runs in its own goroutine.
func (c *Client) WritePump() {
	defer func() {
		_ = c.Terminate()
	}()

	for {
		select {
		case <-c.done:
			return

		case payload := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("failed to write message", "error", err)
				return
			}
		}
	}
}
