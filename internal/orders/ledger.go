package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// StockDecrementer is the slice of Tx the ledger needs. DecrementStock must be
// a single conditional write: it fails with ErrInsufficientStock and changes
// nothing when the result would be negative, and succeeds without effect when
// the item has no inventory record.
type StockDecrementer interface {
	DecrementStock(ctx context.Context, menuItemID string, qty decimal.Decimal) error
}

type Ledger struct{}

func (Ledger) Reserve(ctx context.Context, tx StockDecrementer, item MenuItem, qty int) error {
	err := tx.DecrementStock(ctx, item.ID, decimal.NewFromInt(int64(qty)))
	if errors.Is(err, ErrInsufficientStock) {
		return fmt.Errorf("%w for %s", ErrInsufficientStock, item.Name)
	}
	return err
}

// ReserveAll takes need (quantity per menu item id) in ascending id order,
// one decrement per item, so concurrent orders lock inventory rows in the
// same sequence.
func (l Ledger) ReserveAll(ctx context.Context, tx StockDecrementer, menu map[string]MenuItem, need map[string]int) error {
	ids := make([]string, 0, len(need))
	for id := range need {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := l.Reserve(ctx, tx, menu[id], need[id]); err != nil {
			return err
		}
	}
	return nil
}

// Shortfall reports whether the current record cannot cover need. Used for
// the early check; the reservation itself is re-verified by Reserve.
func (Ledger) Shortfall(item MenuItem, need int) bool {
	if item.Inventory == nil {
		return false
	}
	return item.Inventory.Quantity.LessThan(decimal.NewFromInt(int64(need)))
}
