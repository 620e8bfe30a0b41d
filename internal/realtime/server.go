package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 4096
)

// Server upgrades HTTP requests to websocket connections and binds each one
// to a hub subscriber. A connection that sends nothing, not even a ping, for
// two heartbeat intervals is dropped.
type Server struct {
	hub       *Hub
	log       *zap.Logger
	heartbeat time.Duration
	sendBuf   int
	upgrader  websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewServer(hub *Hub, log *zap.Logger, heartbeat time.Duration) *Server {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &Server{
		hub:       hub,
		log:       log,
		heartbeat: heartbeat,
		sendBuf:   256,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: map[*websocket.Conn]struct{}{},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	sub := s.hub.Register(s.sendBuf)
	s.track(conn, true)
	s.log.Debug("realtime client connected", zap.String("subscriber", sub.ID), zap.String("remote", r.RemoteAddr))

	go s.writeLoop(conn, sub)
	s.readLoop(conn, sub)

	s.hub.Unregister(sub)
	s.track(conn, false)
	s.log.Debug("realtime client disconnected", zap.String("subscriber", sub.ID))
}

func (s *Server) readLoop(conn *websocket.Conn, sub *Subscriber) {
	conn.SetReadLimit(maxFrameSize)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(2 * s.heartbeat))
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		switch f.Type {
		case FramePing:
			s.hub.Enqueue(sub, Frame{Type: FramePong})
		case FrameJoin, FrameLeave:
			t, err := ParseTopic(f.Topic)
			if err != nil {
				s.hub.Enqueue(sub, Frame{Type: FrameError, Message: err.Error()})
				continue
			}
			if f.Type == FrameJoin {
				s.hub.Join(sub, t)
				s.hub.Enqueue(sub, Frame{Type: FrameJoined, Topic: t.String()})
			} else {
				s.hub.Leave(sub, t)
				s.hub.Enqueue(sub, Frame{Type: FrameLeft, Topic: t.String()})
			}
		default:
			s.hub.Enqueue(sub, Frame{Type: FrameError, Message: "unknown frame type " + f.Type})
		}
	}
}

// writeLoop is the only writer on conn.
func (s *Server) writeLoop(conn *websocket.Conn, sub *Subscriber) {
	defer conn.Close()
	for f := range sub.Frames() {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(f); err != nil {
			return
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (s *Server) track(conn *websocket.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// CloseAll drops every live connection. Clients see an abnormal close and
// start reconnecting.
func (s *Server) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
