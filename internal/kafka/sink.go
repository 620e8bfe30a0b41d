package kafka

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/realtime"
)

// EventSink mirrors realtime messages onto the order event stream, keyed by
// topic so every message of one order or store lands on one partition.
type EventSink struct {
	Producer *Producer
	Service  string
}

func (s *EventSink) Deliver(_ context.Context, m realtime.Message) error {
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     m.Event,
		EventVersion:  1,
		OccurredAt:    m.At,
		Producer:      s.Service,
		CorrelationID: m.Topic.String(),
		Payload:       m.Payload,
	}
	s.Producer.Publish([]byte(m.Topic.String()), MustMarshal(env),
		kafka.Header{Key: "x-event-type", Value: []byte(m.Event)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
		kafka.Header{Key: "x-topic", Value: []byte(m.Topic.String())},
	)
	return nil
}
