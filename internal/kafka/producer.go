package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	log     *zap.Logger
}

func NewProducer(brokers []string, topic string, buf int, log *zap.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		log:     log,
	}
}

// Start writes queued messages until ctx ends, then flushes the queue and
// closes the writer.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		defer func() { _ = p.w.Close() }()
		for {
			select {
			case <-ctx.Done():
				for {
					select {
					case m := <-p.inbox:
						p.write(m)
					default:
						return
					}
				}
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.log.Warn("kafka write failed", zap.String("topic", p.w.Topic), zap.ByteString("key", m.Key), zap.Error(err))
	}
}

// Publish queues a message. It never blocks; a full queue drops the message
// and reports false.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) bool {
	select {
	case p.inbox <- kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}:
		return true
	default:
		p.log.Warn("kafka producer queue full, message dropped", zap.String("topic", p.w.Topic))
		return false
	}
}

// WaitClosed blocks until the writer goroutine has flushed and exited.
func (p *Producer) WaitClosed() { <-p.closeCh }
