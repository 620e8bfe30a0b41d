package realtime

import (
	"context"
	"encoding/json"
	"time"
)

// Message is one published event on one topic.
type Message struct {
	Topic   Topic           `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	At      time.Time       `json:"at"`
	Origin  string          `json:"origin,omitempty"` // instance that published it
}

// Publisher is what domain code sees. Publish never blocks on delivery and
// never fails the caller.
type Publisher interface {
	Publish(topic Topic, event string, payload any)
}

// Sink receives every dispatched message. Errors are logged by the
// dispatcher and otherwise ignored.
type Sink interface {
	Deliver(ctx context.Context, m Message) error
}

// Frame is the websocket wire unit in both directions.
type Frame struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      *time.Time      `json:"at,omitempty"`
	Message string          `json:"message,omitempty"`
}

const (
	FrameJoin   = "join"
	FrameLeave  = "leave"
	FramePing   = "ping"
	FramePong   = "pong"
	FrameJoined = "joined"
	FrameLeft   = "left"
	FrameEvent  = "event"
	FrameError  = "error"
)

func eventFrame(m Message) Frame {
	at := m.At
	return Frame{Type: FrameEvent, Topic: m.Topic.String(), Event: m.Event, Payload: m.Payload, At: &at}
}
