package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CouponFinder interface {
	CouponByCode(ctx context.Context, storeID, code string) (Coupon, error)
}

// Redemption is a validated coupon and the discount it grants. Usage is not
// counted until the order transaction increments it.
type Redemption struct {
	Coupon   Coupon
	Discount decimal.Decimal
}

// Guard validates discount codes and computes their discount.
type Guard struct {
	coupons CouponFinder
	now     func() time.Time
}

func NewGuard(coupons CouponFinder, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{coupons: coupons, now: now}
}

func (g *Guard) Redeem(ctx context.Context, code, storeID string, subtotal decimal.Decimal) (Redemption, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	c, err := g.coupons.CouponByCode(ctx, storeID, code)
	if errors.Is(err, ErrNotFound) {
		return Redemption{}, fmt.Errorf("%w: code %s does not exist", ErrInvalidCoupon, code)
	}
	if err != nil {
		return Redemption{}, abort(err)
	}
	d, err := Evaluate(c, subtotal, g.now())
	if err != nil {
		return Redemption{}, err
	}
	return Redemption{Coupon: c, Discount: d}, nil
}

// Evaluate runs the redemption checks in order: active, validity window,
// usage cap, minimum order. It returns the discount for subtotal.
func Evaluate(c Coupon, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !c.Active {
		return decimal.Zero, fmt.Errorf("%w: code %s is not active", ErrInvalidCoupon, c.Code)
	}
	if !c.ValidFrom.IsZero() && now.Before(c.ValidFrom) {
		return decimal.Zero, fmt.Errorf("%w: code %s is not valid yet", ErrInvalidCoupon, c.Code)
	}
	if !c.ValidUntil.IsZero() && !now.Before(c.ValidUntil) {
		return decimal.Zero, fmt.Errorf("%w: code %s has expired", ErrInvalidCoupon, c.Code)
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return decimal.Zero, fmt.Errorf("%w: code %s usage limit reached", ErrInvalidCoupon, c.Code)
	}
	if c.MinOrderAmount.Valid && subtotal.LessThan(c.MinOrderAmount.Decimal) {
		return decimal.Zero, fmt.Errorf("%w: minimum order for %s is %s", ErrInvalidCoupon, c.Code, c.MinOrderAmount.Decimal.StringFixed(2))
	}

	var d decimal.Decimal
	switch c.Type {
	case DiscountPercentage:
		d = subtotal.Mul(c.Value).Div(decimal.NewFromInt(100))
		if c.MaxDiscount.Valid && d.GreaterThan(c.MaxDiscount.Decimal) {
			d = c.MaxDiscount.Decimal
		}
	case DiscountFixed:
		d = c.Value
	default:
		return decimal.Zero, fmt.Errorf("%w: code %s has unknown type %q", ErrInvalidCoupon, c.Code, c.Type)
	}
	if d.GreaterThan(subtotal) {
		d = subtotal
	}
	return money(d), nil
}
