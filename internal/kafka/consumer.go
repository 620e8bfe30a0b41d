package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler returns nil only when the message is processed and its offset may
// be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// reader is the part of *kafka.Reader the consumer uses.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r         reader
	workers   int
	log       *zap.Logger
	retryBase time.Duration
	retryMax  time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, log: log, retryBase: 200 * time.Millisecond, retryMax: 10 * time.Second}
}

// Start fetches messages and hands them to a worker pool until ctx ends.
// Messages with the same key go to the same worker so per-order ordering
// survives the fan-out. A worker never moves past a failed message:
// committing a later offset would commit the failed one too.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if !c.handle(ctx, h, m) {
					return
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					c.log.Warn("commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
				}
			}
		}(jobs[i])
	}
	stop := func() {
		for _, j := range jobs {
			close(j)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[worker(m.Key, c.workers)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

// handle runs h on m until it succeeds, backing off between attempts. It
// returns false when ctx ends first, leaving m uncommitted.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) bool {
	delay := c.retryBase
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.log.Warn("handler failed, retrying",
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
		if delay *= 2; delay > c.retryMax {
			delay = c.retryMax
		}
	}
}

func worker(key []byte, n int) int {
	var h uint32 = 2166136261
	for _, b := range key {
		h ^= uint32(b)
		h *= 16777619
	}
	return int(h % uint32(n))
}
