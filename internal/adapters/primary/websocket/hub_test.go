package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(reg Registry, clk *testclock.Clock) *Hub {
	cfg := HubConfig{Registry: reg, HeartbeatInterval: 30 * time.Second, Logger: testLogger()}
	if clk != nil {
		cfg.Clock = clk
	}
	return NewHub(cfg)
}

func TestHub_BroadcastDeliversIdenticalBytes(t *testing.T) {
	reg := NewConnectionRegistry(testLogger())
	hub := newTestHub(reg, nil)

	conns := []*fakeConn{newFakeConn(), newFakeConn(), newFakeConn(), newFakeConn()}
	for _, c := range conns {
		hub.Register(c)
	}

	payload := []byte(`{"object_kind":"issue","object_attributes":{"id":1,"action":"close","state":"closed"}}`)
	require.NoError(t, hub.Broadcast(payload))

	for _, c := range conns {
		sent := c.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, payload, sent[0])
	}
}

func TestHub_BroadcastIsolatesFailingConnection(t *testing.T) {
	reg := NewConnectionRegistry(testLogger())
	hub := newTestHub(reg, nil)

	healthy := []*fakeConn{newFakeConn(), newFakeConn(), newFakeConn()}
	for _, c := range healthy {
		hub.Register(c)
	}
	broken := newFakeConn()
	broken.sendErr = errBoom
	hub.Register(broken)

	require.NoError(t, hub.Broadcast([]byte(`{}`)))

	for _, c := range healthy {
		assert.Len(t, c.Sent(), 1)
	}
	assert.Empty(t, broken.Sent())
}

func TestHub_BroadcastSurvivesConnectionClosingMidBroadcast(t *testing.T) {
	reg := NewConnectionRegistry(testLogger())
	hub := newTestHub(reg, nil)

	victim := newFakeConn()
	others := []*fakeConn{newFakeConn(), newFakeConn(), newFakeConn()}
	for _, c := range others {
		c.onSend = func() {
			_ = victim.Terminate()
			hub.Unregister(victim)
		}
		hub.Register(c)
	}
	hub.Register(victim)

	require.NoError(t, hub.Broadcast([]byte(`{"n":1}`)))

	for _, c := range others {
		assert.Len(t, c.Sent(), 1)
	}
	assert.Equal(t, 3, hub.ConnectionCount())
}

func TestHub_BroadcastEvictsSlowConsumer(t *testing.T) {
	reg := NewConnectionRegistry(testLogger())
	hub := newTestHub(reg, nil)

	slow := newFakeConn()
	slow.sendErr = ErrSendBufferFull
	hub.Register(slow)
	hub.Register(newFakeConn())

	require.NoError(t, hub.Broadcast([]byte(`{}`)))

	assert.True(t, slow.Terminated())
	assert.Equal(t, 1, hub.ConnectionCount())
}

func TestHub_RunEvictsAfterOneSilentInterval(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	reg := NewConnectionRegistry(testLogger())
	hub := newTestHub(reg, clk)

	silent := newFakeConn()
	responsive := newFakeConn()
	hub.Register(silent)
	hub.Register(responsive)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	// First tick: both are probed.
	require.NoError(t, clk.WaitAdvance(30*time.Second, time.Second, 1))
	require.Eventually(t, func() bool { return silent.Pings() == 1 && responsive.Pings() == 1 },
		time.Second, 5*time.Millisecond)
	hub.Acknowledge(responsive)

	// Just short of the next tick nothing is terminated.
	require.NoError(t, clk.WaitAdvance(29*time.Second, time.Second, 1))
	assert.False(t, silent.Terminated())

	// Completing the interval evicts only the silent connection.
	require.NoError(t, clk.WaitAdvance(time.Second, time.Second, 1))
	require.Eventually(t, silent.Terminated, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return responsive.Pings() == 2 }, time.Second, 5*time.Millisecond)
	assert.False(t, responsive.Terminated())
	assert.Equal(t, 1, hub.ConnectionCount())

	cancel()
	<-done
	assert.True(t, responsive.Terminated(), "shutdown terminates remaining connections")
}

func TestHub_WebsocketFanOut(t *testing.T) {
	hub := newTestHub(NewConnectionRegistry(testLogger()), nil)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, testLogger())
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	first, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer first.Close()
	second, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer second.Close()
	third, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.ConnectionCount() == 3 }, 2*time.Second, 10*time.Millisecond)

	payload := []byte(`{"object_kind":"note","object_attributes":{"note":"hello","noteable_id":1}}`)
	require.NoError(t, hub.Broadcast(payload))

	for _, conn := range []*websocket.Conn{first, second, third} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		msgType, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, msgType)
		assert.Equal(t, payload, data)
	}

	// A peer that goes away is dropped from the registry.
	require.NoError(t, third.Close())
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Broadcast([]byte(`{"n":2}`)))
	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, `{"n":2}`, string(data))
	}
}
