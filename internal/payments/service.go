package payments

import (
	"context"
	"errors"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/kafka"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/orders"
)

// Gateway events, already verified upstream.
const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
)

type GatewayPayload struct {
	OrderID   string `json:"order_id"`
	Reference string `json:"reference,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type Updater interface {
	UpdatePayment(ctx context.Context, orderID string, ps orders.PaymentStatus) (orders.Order, error)
}

// Deduper is satisfied by *redisx.Dedup.
type Deduper interface {
	FirstSeen(ctx context.Context, id string) bool
	Forget(ctx context.Context, id string)
}

type Service struct {
	Orders Updater
	Dedup  Deduper // optional
	Log    *zap.Logger
}

// HandleGatewayEvent is installed as the consumer handler. Business
// rejections are logged and committed since redelivery cannot change them;
// storage failures are returned so the offset stays uncommitted.
func (s *Service) HandleGatewayEvent(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		s.Log.Warn("dropping undecodable payment event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	var ps orders.PaymentStatus
	switch env.EventType {
	case EventPaymentCompleted:
		ps = orders.PaymentCompleted
	case EventPaymentFailed:
		ps = orders.PaymentFailed
	default:
		return nil
	}

	if s.Dedup != nil && !s.Dedup.FirstSeen(ctx, env.EventID) {
		return nil
	}

	p, err := kafkax.UnwrapPayload[GatewayPayload](env.Payload)
	if err != nil || p.OrderID == "" {
		s.Log.Warn("dropping payment event without order", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	o, err := s.Orders.UpdatePayment(ctx, p.OrderID, ps)
	switch {
	case err == nil:
		s.Log.Info("payment applied",
			zap.String("order_id", o.ID),
			zap.String("payment_status", string(o.PaymentStatus)),
			zap.String("reference", p.Reference),
		)
		return nil
	case errors.Is(err, orders.ErrTransactionAborted):
		if s.Dedup != nil {
			s.Dedup.Forget(ctx, env.EventID)
		}
		return err
	default:
		s.Log.Warn("payment event rejected",
			zap.String("order_id", p.OrderID),
			zap.String("event", env.EventType),
			zap.Error(err),
		)
		return nil
	}
}
