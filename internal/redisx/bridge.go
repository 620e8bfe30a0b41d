package redisx

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/realtime"
)

// Bridge relays realtime messages between API instances over Redis pub/sub.
// As a sink it publishes local messages; Run delivers messages from other
// instances to the local sink. Messages carrying this instance's origin are
// skipped because they were already delivered locally.
type Bridge struct {
	RDB    *redis.Client
	Origin string
	Local  realtime.Sink
	Log    *zap.Logger
}

func (b *Bridge) Deliver(ctx context.Context, m realtime.Message) error {
	if m.Origin != b.Origin {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return b.RDB.Publish(ctx, ChannelRealtime, raw).Err()
}

func (b *Bridge) Run(ctx context.Context) {
	sub := b.RDB.Subscribe(ctx, ChannelRealtime)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var m realtime.Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				b.Log.Warn("bad relay message", zap.Error(err))
				continue
			}
			if m.Origin == b.Origin {
				continue
			}
			_ = b.Local.Deliver(ctx, m)
		}
	}
}
