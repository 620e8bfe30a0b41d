package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated            = "order.created"
	EventOrderUpdated            = "order.updated"
	EventOrderStatusChanged      = "order.status.changed"
	EventPaymentCompleted        = "payment.completed"
	EventPaymentFailed           = "payment.failed"
	EventStatsUpdated            = "stats.updated"
	EventMenuAvailabilityChanged = "menu.availability.changed"
	EventMenuItemAdded           = "menu.item.added"
	EventMenuItemUpdated         = "menu.item.updated"
	EventMenuItemDeleted         = "menu.item.deleted"
	EventCategoryAdded           = "category.added"
	EventCategoryUpdated         = "category.updated"
	EventCategoryDeleted         = "category.deleted"
	EventCouponAdded             = "coupon.added"
	EventCouponUpdated           = "coupon.updated"
	EventCouponDeleted           = "coupon.deleted"
)

// ---- payloads ----

type OrderCreatedPayload struct {
	OrderID      string          `json:"orderId"`
	OrderNumber  string          `json:"orderNumber"`
	Status       Status          `json:"status"`
	Total        decimal.Decimal `json:"total"`
	CustomerName string          `json:"customerName"`
	Timestamp    time.Time       `json:"timestamp"`
}

type StatusChangedPayload struct {
	OrderID       string     `json:"orderId"`
	OrderNumber   string     `json:"orderNumber"`
	OldStatus     Status     `json:"oldStatus"`
	Status        Status     `json:"status"`
	EstimatedTime int        `json:"estimatedTime"`
	DeliveredAt   *time.Time `json:"deliveredAt"`
	Timestamp     time.Time  `json:"timestamp"`
}

type OrderUpdatedPayload struct {
	OrderID       string        `json:"orderId"`
	OrderNumber   string        `json:"orderNumber"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Timestamp     time.Time     `json:"timestamp"`
}

type PaymentPayload struct {
	OrderID       string          `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	Amount        decimal.Decimal `json:"amount"`
	Timestamp     time.Time       `json:"timestamp"`
}

type StatsPayload struct {
	Stats
	Timestamp time.Time `json:"timestamp"`
}
