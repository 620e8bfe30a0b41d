package rabbitmq

import (
	"context"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/realtime"
)

const Exchange = "orders_topic"

// Mirror publishes realtime messages to a topic exchange so notification
// workers can bind to e.g. "store.acme.order.*" or "#.payment.failed".
type Mirror struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

func Dial(url string) (*Mirror, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	m, err := NewMirror(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return m, nil
}

func NewMirror(conn *amqp.Connection) (*Mirror, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(
		Exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &Mirror{conn: conn, channel: ch}, nil
}

// RoutingKey is <family>.<key>.<event>, with dots in the key replaced so the
// key stays one word.
func RoutingKey(m realtime.Message) string {
	key := strings.ReplaceAll(m.Topic.Key(), ".", "_")
	return string(m.Topic.Family()) + "." + key + "." + m.Event
}

func (m *Mirror) Deliver(ctx context.Context, msg realtime.Message) error {
	return m.channel.PublishWithContext(ctx,
		Exchange,
		RoutingKey(msg),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Transient,
			Timestamp:    msg.At,
			Type:         msg.Event,
			Body:         msg.Payload,
		},
	)
}

func (m *Mirror) Close() error {
	_ = m.channel.Close()
	return m.conn.Close()
}
