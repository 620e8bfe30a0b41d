package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
	PaymentCard           PaymentMethod = "CARD"
	PaymentUPI            PaymentMethod = "UPI"
	PaymentWallet         PaymentMethod = "WALLET"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCashOnDelivery, PaymentCard, PaymentUPI, PaymentWallet:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// InitialPaymentStatus: every method waits for confirmation, cash is confirmed
// at the door and the rest by the gateway.
func InitialPaymentStatus(m PaymentMethod) PaymentStatus {
	return PaymentPending
}

type Store struct {
	ID     string
	Slug   string
	Name   string
	Active bool
}

type Customer struct {
	ID      string
	Name    string
	Phone   string
	Email   string
	Address string
}

type MenuItem struct {
	ID        string
	StoreID   string
	Name      string
	Price     decimal.Decimal
	Available bool
	Inventory *InventoryRecord // nil = unmetered
}

type InventoryRecord struct {
	MenuItemID       string
	Quantity         decimal.Decimal
	Unit             string
	ReorderThreshold decimal.Decimal
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

type Coupon struct {
	ID             string
	StoreID        string
	Code           string
	Type           DiscountType
	Value          decimal.Decimal
	MinOrderAmount decimal.NullDecimal
	MaxDiscount    decimal.NullDecimal
	UsageLimit     *int
	UsedCount      int
	Active         bool
	ValidFrom      time.Time // zero = no lower bound
	ValidUntil     time.Time // zero = no upper bound
}

type Order struct {
	ID               string          `json:"id"`
	Number           string          `json:"orderNumber"`
	StoreID          string          `json:"storeId"`
	StoreSlug        string          `json:"storeSlug"`
	CustomerID       string          `json:"customerId"`
	CustomerName     string          `json:"customerName"`
	CustomerPhone    string          `json:"customerPhone"`
	CouponID         string          `json:"couponId,omitempty"`
	Status           Status          `json:"status"`
	PaymentMethod    PaymentMethod   `json:"paymentMethod"`
	PaymentStatus    PaymentStatus   `json:"paymentStatus"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Tax              decimal.Decimal `json:"tax"`
	Discount         decimal.Decimal `json:"discount"`
	Total            decimal.Decimal `json:"total"`
	Notes            string          `json:"notes,omitempty"`
	EstimatedMinutes int             `json:"estimatedTime"`
	DeliveredAt      *time.Time      `json:"deliveredAt"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	Version          int64           `json:"version"` // bumped by every committed change
	Items            []OrderItem     `json:"items,omitempty"`
}

// OrderItem is frozen at creation; UnitPrice is the price charged, not the
// current menu price.
type OrderItem struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"orderId"`
	MenuItemID string          `json:"menuItemId"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Notes      string          `json:"notes,omitempty"`
}

// Stats is the aggregate pushed to admin dashboards.
type Stats struct {
	StoreID  string          `json:"storeId"`
	Since    time.Time       `json:"since"`
	Orders   int             `json:"orders"`
	Revenue  decimal.Decimal `json:"revenue"`
	ByStatus map[Status]int  `json:"byStatus"`
}
