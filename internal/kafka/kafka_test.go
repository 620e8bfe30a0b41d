package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/realtime"
)

func TestEventSinkWrapsMessage(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "orders.events", 4, zaptest.NewLogger(t))
	sink := &EventSink{Producer: p, Service: "order-api"}
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, sink.Deliver(context.Background(), realtime.Message{
		Topic: realtime.StoreTopic("acme"), Event: "order.created", Payload: []byte(`{"orderId":"o-1"}`), At: at,
	}))

	require.Len(t, p.inbox, 1)
	m := <-p.inbox
	assert.Equal(t, "store:acme", string(m.Key))

	env, err := UnmarshalEnvelope(m.Value)
	require.NoError(t, err)
	assert.Equal(t, "order.created", env.EventType)
	assert.Equal(t, "order-api", env.Producer)
	assert.True(t, at.Equal(env.OccurredAt))
	assert.NotEmpty(t, env.EventID)

	type created struct {
		OrderID string `json:"orderId"`
	}
	c, err := UnwrapPayload[created](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "o-1", c.OrderID)

	headers := map[string]string{}
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "order.created", headers["x-event-type"])
	assert.Equal(t, "store:acme", headers["x-topic"])
}

func TestProducerPublishDropsWhenFull(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "orders.events", 1, zaptest.NewLogger(t))
	assert.True(t, p.Publish([]byte("k"), []byte("v1")))
	assert.False(t, p.Publish([]byte("k"), []byte("v2")))
}

func TestWorkerIsStablePerKey(t *testing.T) {
	for _, key := range []string{"order:o-1", "order:o-2", "store:acme", ""} {
		w := worker([]byte(key), 4)
		assert.GreaterOrEqual(t, w, 0)
		assert.Less(t, w, 4)
		assert.Equal(t, w, worker([]byte(key), 4))
	}
	assert.Zero(t, worker([]byte("anything"), 1))
}

func TestUnmarshalEnvelopeRejectsGarbage(t *testing.T) {
	_, err := UnmarshalEnvelope([]byte("{"))
	assert.Error(t, err)
}
