package orders

import "github.com/shopspring/decimal"

// DefaultTaxRate is used when no rate is configured.
var DefaultTaxRate = decimal.RequireFromString("0.05")

type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

func money(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// ComputeTotals clamps the discount to the subtotal so total never drops
// below the tax amount.
func ComputeTotals(subtotal, taxRate, discount decimal.Decimal) Totals {
	subtotal = money(subtotal)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	discount = money(discount)
	tax := money(subtotal.Mul(taxRate))
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Discount: discount,
		Total:    subtotal.Add(tax).Sub(discount),
	}
}
