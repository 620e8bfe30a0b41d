package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Subscriber is one connection's view of the hub. Frames for it are queued
// on a bounded channel drained by a single writer.
type Subscriber struct {
	ID     string
	send   chan Frame
	topics map[Topic]struct{}
	closed bool
}

func (s *Subscriber) Frames() <-chan Frame { return s.send }

// Hub maps topics to subscribers. Membership lives only in memory and is
// dropped on Unregister.
type Hub struct {
	mu     sync.RWMutex
	topics map[Topic]map[*Subscriber]struct{}
	log    *zap.Logger
}

var _ Sink = (*Hub)(nil)

func NewHub(log *zap.Logger) *Hub {
	return &Hub{topics: map[Topic]map[*Subscriber]struct{}{}, log: log}
}

func (h *Hub) Register(buf int) *Subscriber {
	if buf <= 0 {
		buf = 64
	}
	return &Subscriber{ID: uuid.NewString(), send: make(chan Frame, buf), topics: map[Topic]struct{}{}}
}

func (h *Hub) Join(s *Subscriber, t Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	subs := h.topics[t]
	if subs == nil {
		subs = map[*Subscriber]struct{}{}
		h.topics[t] = subs
	}
	subs[s] = struct{}{}
	s.topics[t] = struct{}{}
}

func (h *Hub) Leave(s *Subscriber, t Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leave(s, t)
}

func (h *Hub) leave(s *Subscriber, t Topic) {
	delete(s.topics, t)
	if subs := h.topics[t]; subs != nil {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.topics, t)
		}
	}
}

// Unregister removes s from every topic and closes its frame channel.
func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	for t := range s.topics {
		h.leave(s, t)
	}
	s.closed = true
	close(s.send)
}

// Enqueue queues a frame for one subscriber without blocking. It reports
// false when the queue is full or the subscriber is gone.
func (h *Hub) Enqueue(s *Subscriber, f Frame) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.enqueue(s, f)
}

func (h *Hub) enqueue(s *Subscriber, f Frame) bool {
	if s.closed {
		return false
	}
	select {
	case s.send <- f:
		return true
	default:
		return false
	}
}

// Deliver fans m out to the current subscribers of m.Topic. A subscriber
// whose queue is full misses the event.
func (h *Hub) Deliver(_ context.Context, m Message) error {
	f := eventFrame(m)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.topics[m.Topic] {
		if !h.enqueue(s, f) {
			h.log.Warn("subscriber queue full, event dropped",
				zap.String("subscriber", s.ID),
				zap.String("topic", m.Topic.String()),
				zap.String("event", m.Event),
			)
		}
	}
	return nil
}

func (h *Hub) Subscribers(t Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[t])
}
