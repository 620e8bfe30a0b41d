package orders

import (
	"context"
	"fmt"
	"time"
)

// Repository is the transactional store behind the service. Lookups return
// ErrNotFound when absent.
type Repository interface {
	CouponFinder
	StoreBySlug(ctx context.Context, slug string) (Store, error)
	MenuItems(ctx context.Context, storeID string, ids []string) (map[string]MenuItem, error)
	Order(ctx context.Context, id string) (Order, error)
	StoreOrders(ctx context.Context, storeID string, since time.Time, limit int) ([]Order, error)
	StoreStats(ctx context.Context, storeID string, since time.Time) (Stats, error)

	// InTx runs fn in one unit of work. A non-nil return rolls everything back.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	StockDecrementer
	UpsertCustomer(ctx context.Context, c Customer) (Customer, error)
	NextOrderNumber(ctx context.Context, at time.Time) (string, error)
	InsertOrder(ctx context.Context, o Order) error

	// IncrementCouponUsage fails with ErrInvalidCoupon if the coupon is
	// inactive or its usage limit is already reached.
	IncrementCouponUsage(ctx context.Context, couponID string) error

	// LockOrder loads an order and holds it until the transaction ends.
	LockOrder(ctx context.Context, id string) (Order, error)

	// SaveOrderState persists status, payment status, estimated time,
	// delivered-at and updated-at.
	SaveOrderState(ctx context.Context, o Order) error
}

// FormatOrderNumber renders ORD-YYYYMMDD-NNNNNN.
func FormatOrderNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("ORD-%s-%06d", at.UTC().Format("20060102"), seq%1000000)
}
