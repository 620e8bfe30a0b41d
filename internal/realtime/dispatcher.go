package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Dispatcher is the Publisher used by domain code. Publish only enqueues.
// Every sink has its own bounded queue drained by its own goroutine, so a
// slow relay or mirror never holds up websocket delivery. Each sink sees
// messages in publish order.
type Dispatcher struct {
	origin  string
	lanes   []*lane
	closeCh chan struct{}
	log     *zap.Logger
	now     func() time.Time
}

type lane struct {
	sink  Sink
	name  string
	queue chan Message
}

var _ Publisher = (*Dispatcher)(nil)

func NewDispatcher(origin string, buf int, log *zap.Logger, sinks ...Sink) *Dispatcher {
	if buf <= 0 {
		buf = 1024
	}
	d := &Dispatcher{
		origin:  origin,
		closeCh: make(chan struct{}),
		log:     log,
		now:     time.Now,
	}
	for _, s := range sinks {
		d.lanes = append(d.lanes, &lane{sink: s, name: fmt.Sprintf("%T", s), queue: make(chan Message, buf)})
	}
	return d
}

func (d *Dispatcher) Publish(topic Topic, event string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		d.log.Error("encode event payload", zap.String("event", event), zap.Error(err))
		return
	}
	m := Message{Topic: topic, Event: event, Payload: b, At: d.now().UTC(), Origin: d.origin}
	for _, l := range d.lanes {
		select {
		case l.queue <- m:
		default:
			d.log.Warn("sink queue full, event dropped",
				zap.String("sink", l.name), zap.String("topic", topic.String()), zap.String("event", event))
		}
	}
}

// Start runs one delivery loop per sink until ctx ends; each then flushes
// what is already queued.
func (d *Dispatcher) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, l := range d.lanes {
		wg.Add(1)
		go func(l *lane) {
			defer wg.Done()
			d.run(ctx, l)
		}(l)
	}
	go func() {
		wg.Wait()
		close(d.closeCh)
	}()
}

func (d *Dispatcher) WaitClosed() { <-d.closeCh }

func (d *Dispatcher) run(ctx context.Context, l *lane) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case m := <-l.queue:
					d.deliver(l, m)
				default:
					return
				}
			}
		case m := <-l.queue:
			d.deliver(l, m)
		}
	}
}

func (d *Dispatcher) deliver(l *lane, m Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.sink.Deliver(ctx, m); err != nil {
		d.log.Warn("sink delivery failed",
			zap.String("sink", l.name),
			zap.String("topic", m.Topic.String()),
			zap.String("event", m.Event),
			zap.Error(err),
		)
	}
}
