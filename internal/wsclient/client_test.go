package wsclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/realtime"
)

type testServer struct {
	hub    *realtime.Hub
	ws     *realtime.Server
	srv    *httptest.Server
	reject atomic.Bool
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{hub: realtime.NewHub(zap.NewNop())}
	ts.ws = realtime.NewServer(ts.hub, zap.NewNop(), time.Second)
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ts.reject.Load() {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		ts.ws.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *testServer) url() string { return "ws" + strings.TrimPrefix(ts.srv.URL, "http") }

func (ts *testServer) publish(t *testing.T, topic realtime.Topic, event string) {
	t.Helper()
	require.NoError(t, ts.hub.Deliver(context.Background(), realtime.Message{
		Topic: topic, Event: event, Payload: []byte(`{}`), At: time.Now().UTC(),
	}))
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) last() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.states) == 0 {
		return Disconnected
	}
	return l.states[len(l.states)-1]
}

func newClient(t *testing.T, url string, onState func(State)) *Client {
	t.Helper()
	c := New(Config{
		URL:       url,
		Backoff:   Backoff{Base: 20 * time.Millisecond, Multiplier: 2, Max: 100 * time.Millisecond},
		Heartbeat: 200 * time.Millisecond,
		OnState:   onState,
	}, zaptest.NewLogger(t))
	return c
}

func nextEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		require.True(t, ok, "events closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}
	return Event{}
}

func TestClientReceivesJoinedTopic(t *testing.T) {
	ts := newTestServer(t)
	states := &stateLog{}
	c := newClient(t, ts.url(), states.record)
	c.Join(realtime.StoreTopic("acme"))
	c.Start(context.Background())
	defer c.Close()

	require.Eventually(t, func() bool { return ts.hub.Subscribers(realtime.StoreTopic("acme")) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, Connected, c.State())

	ts.publish(t, realtime.StoreTopic("acme"), "order.created")
	ev := nextEvent(t, c)
	assert.Equal(t, realtime.StoreTopic("acme"), ev.Topic)
	assert.Equal(t, "order.created", ev.Name)
	assert.False(t, ev.At.IsZero())

	c.Leave(realtime.StoreTopic("acme"))
	require.Eventually(t, func() bool { return ts.hub.Subscribers(realtime.StoreTopic("acme")) == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestClientReconnectReplaysTopics(t *testing.T) {
	ts := newTestServer(t)
	store := realtime.StoreTopic("acme")

	var fetches atomic.Int32
	poller := NewPoller(time.Hour, func(context.Context) error {
		fetches.Add(1)
		return nil
	}, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-poller.Done()
	}()
	poller.Start(ctx)

	states := &stateLog{}
	flaky := newClient(t, ts.url(), func(s State) {
		states.record(s)
		poller.SetConnected(s == Connected)
	})
	flaky.Join(store)
	flaky.Start(ctx)
	defer flaky.Close()

	peer := newClient(t, ts.url(), nil)
	peer.Join(store)
	peer.Start(ctx)
	defer peer.Close()

	require.Eventually(t, func() bool { return ts.hub.Subscribers(store) == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return fetches.Load() == 1 }, time.Second, 5*time.Millisecond)

	// drop every connection and keep the flaky client out while an order
	// is created
	ts.reject.Store(true)
	ts.ws.CloseAll()
	require.Eventually(t, func() bool { return ts.hub.Subscribers(store) == 0 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return states.last() != Connected }, 2*time.Second, 5*time.Millisecond)

	ts.publish(t, store, "order.created")
	ts.reject.Store(false)

	require.Eventually(t, func() bool { return ts.hub.Subscribers(store) == 2 }, 3*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return fetches.Load() == 2 }, time.Second, 5*time.Millisecond)

	ts.publish(t, store, "order.status.changed")
	assert.Equal(t, "order.status.changed", nextEvent(t, flaky).Name)
	assert.Equal(t, "order.status.changed", nextEvent(t, peer).Name)
	assert.Empty(t, flaky.Events())
	assert.Empty(t, peer.Events())
}

func TestClientJoinWhileDisconnected(t *testing.T) {
	ts := newTestServer(t)
	ts.reject.Store(true)

	c := newClient(t, ts.url(), nil)
	c.Start(context.Background())
	defer c.Close()

	c.Join(realtime.OrderTopic("o-1"))
	c.Join(realtime.AdminTopic("acme"))
	c.Leave(realtime.AdminTopic("acme"))
	assert.NotEqual(t, Connected, c.State())

	ts.reject.Store(false)
	require.Eventually(t, func() bool { return ts.hub.Subscribers(realtime.OrderTopic("o-1")) == 1 }, 3*time.Second, 5*time.Millisecond)

	// frames are handled in order, so once this join lands the leave has too
	c.Join(realtime.StoreTopic("acme"))
	require.Eventually(t, func() bool { return ts.hub.Subscribers(realtime.StoreTopic("acme")) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, ts.hub.Subscribers(realtime.AdminTopic("acme")))
}

func TestClientCloseStopsReconnecting(t *testing.T) {
	ts := newTestServer(t)
	ts.reject.Store(true)

	c := newClient(t, ts.url(), nil)
	c.Start(context.Background())
	c.Close()

	_, open := <-c.Events()
	assert.False(t, open)
	assert.Equal(t, Disconnected, c.State())
}

func TestClientJoinsBeforeStartDoNotBlock(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t, ts.url(), nil)

	const orders = 40
	joined := make(chan struct{})
	go func() {
		defer close(joined)
		for i := 0; i < orders; i++ {
			c.Join(realtime.OrderTopic(fmt.Sprintf("o-%d", i)))
		}
		c.Join(realtime.StoreTopic("acme"))
	}()
	select {
	case <-joined:
	case <-time.After(time.Second):
		t.Fatal("Join before Start blocked")
	}

	c.Start(context.Background())
	defer c.Close()
	require.Eventually(t, func() bool { return ts.hub.Subscribers(realtime.StoreTopic("acme")) == 1 }, 2*time.Second, 5*time.Millisecond)
	for i := 0; i < orders; i++ {
		assert.Equal(t, 1, ts.hub.Subscribers(realtime.OrderTopic(fmt.Sprintf("o-%d", i))))
	}
}

func TestClientCloseWithoutStart(t *testing.T) {
	c := newClient(t, "ws://127.0.0.1:1/ws", nil)
	c.Join(realtime.StoreTopic("acme"))

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close without Start blocked")
	}
}

// silentServer accepts websocket connections and never writes to them.
func silentServer(t *testing.T, conns *atomic.Int32) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conns.Add(1)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientReconnectsWhenServerGoesSilent(t *testing.T) {
	var conns atomic.Int32
	srv := silentServer(t, &conns)
	states := &stateLog{}
	c := New(Config{
		URL:         "ws" + strings.TrimPrefix(srv.URL, "http"),
		Backoff:     Backoff{Base: 10 * time.Millisecond, Multiplier: 2, Max: 20 * time.Millisecond},
		Heartbeat:   30 * time.Millisecond,
		PongTimeout: 30 * time.Millisecond,
		OnState:     states.record,
	}, zaptest.NewLogger(t))
	c.Join(realtime.StoreTopic("acme"))
	c.Start(context.Background())
	defer c.Close()

	want := []State{Connected, Disconnected, Connecting, Connected}
	require.Eventually(t, func() bool {
		states.mu.Lock()
		defer states.mu.Unlock()
		return hasSequence(states.states, want)
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, conns.Load(), int32(2))
}

func hasSequence(got, want []State) bool {
	for i := 0; i+len(want) <= len(got); i++ {
		match := true
		for j := range want {
			if got[i+j] != want[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
