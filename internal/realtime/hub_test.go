package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func msg(t Topic, event string) Message {
	return Message{Topic: t, Event: event, Payload: []byte(`{}`), At: time.Unix(0, 0).UTC()}
}

func TestHubDeliversOnlyToJoinedTopics(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	kitchen := h.Register(4)
	customer := h.Register(4)
	h.Join(kitchen, StoreTopic("acme"))
	h.Join(customer, OrderTopic("o-1"))

	require.NoError(t, h.Deliver(context.Background(), msg(StoreTopic("acme"), "order.created")))
	require.NoError(t, h.Deliver(context.Background(), msg(AdminTopic("acme"), "stats.updated")))

	require.Len(t, kitchen.Frames(), 1)
	f := <-kitchen.Frames()
	assert.Equal(t, FrameEvent, f.Type)
	assert.Equal(t, "store:acme", f.Topic)
	assert.Equal(t, "order.created", f.Event)
	assert.Empty(t, customer.Frames())
}

func TestHubLeaveAndUnregister(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	s := h.Register(4)
	h.Join(s, StoreTopic("acme"))
	h.Join(s, AdminTopic("acme"))
	assert.Equal(t, 1, h.Subscribers(StoreTopic("acme")))

	h.Leave(s, StoreTopic("acme"))
	assert.Zero(t, h.Subscribers(StoreTopic("acme")))

	h.Unregister(s)
	assert.Zero(t, h.Subscribers(AdminTopic("acme")))
	_, open := <-s.Frames()
	assert.False(t, open)

	// no-ops once gone
	h.Unregister(s)
	h.Join(s, StoreTopic("acme"))
	assert.Zero(t, h.Subscribers(StoreTopic("acme")))
	assert.False(t, h.Enqueue(s, Frame{Type: FramePong}))
}

func TestHubFullQueueDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	slow := h.Register(1)
	fast := h.Register(8)
	h.Join(slow, StoreTopic("acme"))
	h.Join(fast, StoreTopic("acme"))

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Deliver(context.Background(), msg(StoreTopic("acme"), "order.created")))
	}
	assert.Len(t, slow.Frames(), 1)
	assert.Len(t, fast.Frames(), 3)
}
