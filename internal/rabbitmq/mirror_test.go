package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/realtime"
)

func TestRoutingKey(t *testing.T) {
	tests := []struct {
		topic realtime.Topic
		event string
		want  string
	}{
		{realtime.StoreTopic("acme"), "order.created", "store.acme.order.created"},
		{realtime.AdminTopic("acme"), "stats.updated", "admin.acme.stats.updated"},
		{realtime.OrderTopic("o-1"), "payment.failed", "order.o-1.payment.failed"},
		{realtime.StoreTopic("acme.blr"), "order.created", "store.acme_blr.order.created"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoutingKey(realtime.Message{Topic: tt.topic, Event: tt.event}))
	}
}
