package realtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestServerJoinReceiveLeave(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ws := NewServer(hub, zap.NewNop(), time.Second)
	srv := httptest.NewServer(ws)
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(Frame{Type: FrameJoin, Topic: "store:acme"}))
	f := read(t, conn)
	assert.Equal(t, FrameJoined, f.Type)
	assert.Equal(t, "store:acme", f.Topic)
	assert.Equal(t, 1, hub.Subscribers(StoreTopic("acme")))

	require.NoError(t, hub.Deliver(context.Background(), msg(StoreTopic("acme"), "order.created")))
	f = read(t, conn)
	assert.Equal(t, FrameEvent, f.Type)
	assert.Equal(t, "order.created", f.Event)
	require.NotNil(t, f.At)

	require.NoError(t, conn.WriteJSON(Frame{Type: FramePing}))
	assert.Equal(t, FramePong, read(t, conn).Type)

	require.NoError(t, conn.WriteJSON(Frame{Type: FrameLeave, Topic: "store:acme"}))
	assert.Equal(t, FrameLeft, read(t, conn).Type)
	assert.Zero(t, hub.Subscribers(StoreTopic("acme")))
}

func TestServerRejectsBadFrames(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(NewServer(hub, zap.NewNop(), time.Second))
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(Frame{Type: FrameJoin, Topic: "kitchen-acme"}))
	f := read(t, conn)
	assert.Equal(t, FrameError, f.Type)
	assert.NotEmpty(t, f.Message)

	require.NoError(t, conn.WriteJSON(Frame{Type: "shout"}))
	assert.Equal(t, FrameError, read(t, conn).Type)
}

func TestServerCloseAllDropsMembership(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ws := NewServer(hub, zap.NewNop(), time.Second)
	srv := httptest.NewServer(ws)
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(Frame{Type: FrameJoin, Topic: "admin:acme"}))
	read(t, conn)
	assert.Equal(t, 1, ws.Connections())

	ws.CloseAll()
	assert.Eventually(t, func() bool {
		return ws.Connections() == 0 && hub.Subscribers(AdminTopic("acme")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServerDropsSilentConnection(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ws := NewServer(hub, zap.NewNop(), 50*time.Millisecond)
	srv := httptest.NewServer(ws)
	defer srv.Close()

	conn := dial(t, srv)
	require.NoError(t, conn.WriteJSON(Frame{Type: FrameJoin, Topic: "store:acme"}))
	assert.Equal(t, FrameJoined, read(t, conn).Type)

	// Nothing more is sent: the server gives up after two heartbeats.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	start := time.Now()
	var f Frame
	err := conn.ReadJSON(&f)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Eventually(t, func() bool { return ws.Connections() == 0 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, hub.Subscribers(StoreTopic("acme")))
}

func TestServerKeepsPingingConnection(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ws := NewServer(hub, zap.NewNop(), 50*time.Millisecond)
	srv := httptest.NewServer(ws)
	defer srv.Close()

	conn := dial(t, srv)
	for i := 0; i < 8; i++ {
		require.NoError(t, conn.WriteJSON(Frame{Type: FramePing}))
		assert.Equal(t, FramePong, read(t, conn).Type)
		time.Sleep(30 * time.Millisecond)
	}
	assert.Equal(t, 1, ws.Connections())
}
