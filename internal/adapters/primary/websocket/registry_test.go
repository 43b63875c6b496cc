package websocket

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory Conn for exercising the registry and hub
// without sockets.
type fakeConn struct {
	id string

	mu         sync.Mutex
	open       bool
	sent       [][]byte
	pings      int
	terminated bool
	sendErr    error
	onSend     func()
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.NewString(), open: true}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	hook := c.onSend
	if !c.open {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	if c.sendErr != nil {
		err := c.sendErr
		c.mu.Unlock()
		return err
	}
	c.sent = append(c.sent, payload)
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (c *fakeConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return ErrConnectionClosed
	}
	c.pings++
	return nil
}

func (c *fakeConn) Terminate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.terminated = true
	return nil
}

func (c *fakeConn) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func (c *fakeConn) Pings() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

func (c *fakeConn) Terminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminated
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConnectionRegistry_RegisterUnregister(t *testing.T) {
	reg := NewConnectionRegistry(testLogger())
	a, b := newFakeConn(), newFakeConn()

	reg.Register(a)
	reg.Register(b)
	assert.Equal(t, 2, reg.Len())

	reg.Unregister(a)
	assert.Equal(t, 1, reg.Len())

	// Unregistering twice is harmless.
	reg.Unregister(a)
	assert.Equal(t, 1, reg.Len())
}

func TestConnectionRegistry_ForEachLiveSkipsClosed(t *testing.T) {
	reg := NewConnectionRegistry(testLogger())
	open, closed := newFakeConn(), newFakeConn()
	require.NoError(t, closed.Terminate())

	reg.Register(open)
	reg.Register(closed)

	var seen []string
	reg.ForEachLive(func(conn Conn) { seen = append(seen, conn.ID()) })

	assert.Equal(t, []string{open.ID()}, seen)
}

func TestConnectionRegistry_ForEachLiveAllowsReentrantUnregister(t *testing.T) {
	reg := NewConnectionRegistry(testLogger())
	conns := []*fakeConn{newFakeConn(), newFakeConn(), newFakeConn()}
	for _, c := range conns {
		reg.Register(c)
	}

	visited := 0
	reg.ForEachLive(func(conn Conn) {
		visited++
		reg.Unregister(conn)
	})

	assert.Equal(t, 3, visited)
	assert.Equal(t, 0, reg.Len())
}

func TestConnectionRegistry_Sweep(t *testing.T) {
	t.Run("first sweep probes a fresh connection", func(t *testing.T) {
		reg := NewConnectionRegistry(testLogger())
		conn := newFakeConn()
		reg.Register(conn)

		evicted := reg.Sweep()

		assert.Equal(t, 0, evicted)
		assert.Equal(t, 1, conn.Pings())
		assert.False(t, conn.Terminated())
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("silent connection is terminated one interval after the probe", func(t *testing.T) {
		reg := NewConnectionRegistry(testLogger())
		conn := newFakeConn()
		reg.Register(conn)

		reg.Sweep()
		require.False(t, conn.Terminated(), "must not be terminated before a full interval of silence")

		evicted := reg.Sweep()

		assert.Equal(t, 1, evicted)
		assert.True(t, conn.Terminated())
		assert.Equal(t, 0, reg.Len())
	})

	t.Run("acknowledged connection survives", func(t *testing.T) {
		reg := NewConnectionRegistry(testLogger())
		conn := newFakeConn()
		reg.Register(conn)

		for i := 0; i < 5; i++ {
			reg.Sweep()
			reg.Acknowledge(conn)
		}

		assert.False(t, conn.Terminated())
		assert.Equal(t, 5, conn.Pings())
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("failed probe leads to eviction on the next sweep", func(t *testing.T) {
		reg := NewConnectionRegistry(testLogger())
		conn := newFakeConn()
		reg.Register(conn)
		conn.mu.Lock()
		conn.open = false
		conn.mu.Unlock()

		reg.Sweep()
		assert.Equal(t, 1, reg.Sweep())
	})

	t.Run("acknowledge of unknown connection is ignored", func(t *testing.T) {
		reg := NewConnectionRegistry(testLogger())
		reg.Acknowledge(newFakeConn())
		assert.Equal(t, 0, reg.Len())
	})
}

func TestConnectionRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewConnectionRegistry(testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := newFakeConn()
			reg.Register(conn)
			reg.Acknowledge(conn)
			reg.Sweep()
			reg.ForEachLive(func(Conn) {})
			reg.Unregister(conn)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, reg.Len())
}

var errBoom = errors.New("boom")
