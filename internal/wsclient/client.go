// Package wsclient keeps one realtime connection per process alive. A single
// goroutine owns the connection and its state; the rest of the program talks
// to it through Join/Leave, the Events channel and the OnState callback.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/realtime"
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

var errHeartbeatTimeout = errors.New("heartbeat timeout")

type Config struct {
	URL         string
	Backoff     Backoff
	Heartbeat   time.Duration // ping interval
	PongTimeout time.Duration // extra silence tolerated after a missed ping
	Dialer      *websocket.Dialer
	EventBuffer int

	// OnState is called from the connection goroutine on every change.
	OnState func(State)
}

type Event struct {
	Topic   realtime.Topic
	Name    string
	Payload json.RawMessage
	At      time.Time
}

type command struct {
	join  bool
	topic realtime.Topic
}

type Client struct {
	cfg    Config
	log    *zap.Logger
	cmds   chan command
	events chan Event
	state  atomic.Int32
	done   chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc // nil until Start
	pending []command          // Join/Leave before Start
}

func New(cfg Config, log *zap.Logger) *Client {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 25 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = cfg.Heartbeat
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}
	return &Client{
		cfg:    cfg,
		log:    log,
		cmds:   make(chan command, 16),
		events: make(chan Event, cfg.EventBuffer),
		done:   make(chan struct{}),
	}
}

// Start launches the connection goroutine. Topics joined before Start are
// subscribed on the first connection. Calling Start again has no effect.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	pending := c.pending
	c.pending = nil
	go c.run(ctx, pending)
}

// Close stops reconnecting, cancels any pending backoff and waits for the
// connection goroutine to exit. It returns at once if Start was never called.
func (c *Client) Close() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-c.done
}

// Events is closed after the client stops.
func (c *Client) Events() <-chan Event { return c.events }

func (c *Client) State() State { return State(c.state.Load()) }

// Join subscribes to t now and after every reconnect.
func (c *Client) Join(t realtime.Topic) { c.send(command{join: true, topic: t}) }

func (c *Client) Leave(t realtime.Topic) { c.send(command{join: false, topic: t}) }

func (c *Client) send(cmd command) {
	c.mu.Lock()
	if c.cancel == nil {
		c.pending = append(c.pending, cmd)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	select {
	case c.cmds <- cmd:
	case <-c.done:
	}
}

func (c *Client) setState(s State) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	if c.cfg.OnState != nil {
		c.cfg.OnState(s)
	}
}

type topicSet struct {
	order []realtime.Topic
	set   map[realtime.Topic]struct{}
}

func (ts *topicSet) apply(cmd command) bool {
	_, had := ts.set[cmd.topic]
	if cmd.join == had {
		return false
	}
	if cmd.join {
		ts.set[cmd.topic] = struct{}{}
		ts.order = append(ts.order, cmd.topic)
		return true
	}
	delete(ts.set, cmd.topic)
	for i, t := range ts.order {
		if t == cmd.topic {
			ts.order = append(ts.order[:i], ts.order[i+1:]...)
			break
		}
	}
	return true
}

func (c *Client) run(ctx context.Context, pending []command) {
	defer close(c.done)
	defer close(c.events)
	defer c.setState(Disconnected)

	topics := &topicSet{set: map[realtime.Topic]struct{}{}}
	for _, cmd := range pending {
		topics.apply(cmd)
	}
	attempt := 0
	for {
		c.setState(Connecting)
		conn, _, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, nil)
		if err == nil {
			attempt = 0
			c.setState(Connected)
			err = c.session(ctx, conn, topics)
			_ = conn.Close()
		}
		c.setState(Disconnected)
		if ctx.Err() != nil {
			return
		}

		delay := c.cfg.Backoff.Delay(attempt)
		attempt++
		c.log.Info("realtime connection unavailable, retrying",
			zap.Error(err), zap.Duration("delay", delay), zap.Int("attempt", attempt))
		if !c.wait(ctx, delay, topics) {
			return
		}
	}
}

// wait sleeps for d while still recording Join/Leave calls. It returns false
// when ctx ends first.
func (c *Client) wait(ctx context.Context, d time.Duration, topics *topicSet) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case cmd := <-c.cmds:
			topics.apply(cmd)
		}
	}
}

func (c *Client) session(ctx context.Context, conn *websocket.Conn, topics *topicSet) error {
	in := make(chan realtime.Frame)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		for {
			var f realtime.Frame
			if err := conn.ReadJSON(&f); err != nil {
				readErr <- err
				return
			}
			select {
			case in <- f:
			case <-stop:
				return
			}
		}
	}()

	write := func(f realtime.Frame) error {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.Heartbeat))
		return conn.WriteJSON(f)
	}

	for _, t := range topics.order {
		if err := write(realtime.Frame{Type: realtime.FrameJoin, Topic: t.String()}); err != nil {
			return err
		}
	}

	hb := time.NewTicker(c.cfg.Heartbeat)
	defer hb.Stop()
	lastSeen := time.Now()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return ctx.Err()

		case cmd := <-c.cmds:
			if !topics.apply(cmd) {
				continue
			}
			typ := realtime.FrameLeave
			if cmd.join {
				typ = realtime.FrameJoin
			}
			if err := write(realtime.Frame{Type: typ, Topic: cmd.topic.String()}); err != nil {
				return err
			}

		case <-hb.C:
			if time.Since(lastSeen) > c.cfg.Heartbeat+c.cfg.PongTimeout {
				return errHeartbeatTimeout
			}
			if err := write(realtime.Frame{Type: realtime.FramePing}); err != nil {
				return err
			}

		case f := <-in:
			lastSeen = time.Now()
			c.handle(f)

		case err := <-readErr:
			return err
		}
	}
}

func (c *Client) handle(f realtime.Frame) {
	switch f.Type {
	case realtime.FrameEvent:
		t, err := realtime.ParseTopic(f.Topic)
		if err != nil {
			c.log.Warn("event on unknown topic", zap.String("topic", f.Topic))
			return
		}
		ev := Event{Topic: t, Name: f.Event, Payload: f.Payload}
		if f.At != nil {
			ev.At = *f.At
		}
		select {
		case c.events <- ev:
		default:
			c.log.Warn("event buffer full, event dropped", zap.String("event", f.Event))
		}
	case realtime.FrameError:
		c.log.Warn("server rejected frame", zap.String("message", f.Message))
	}
}
