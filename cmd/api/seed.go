package main

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/memstore"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/orders"
)

func seedDemo(s *memstore.Store) *memstore.Store {
	st := s.AddStore(orders.Store{Slug: "acme", Name: "Acme Pizza", Active: true})
	s.AddMenuItem(orders.MenuItem{
		ID: "margherita", StoreID: st.ID, Name: "Margherita", Price: decimal.NewFromInt(100), Available: true,
		Inventory: &orders.InventoryRecord{Quantity: decimal.NewFromInt(20), Unit: "pcs", ReorderThreshold: decimal.NewFromInt(5)},
	})
	s.AddMenuItem(orders.MenuItem{
		ID: "garlic-bread", StoreID: st.ID, Name: "Garlic Bread", Price: decimal.NewFromInt(50), Available: true,
	})
	s.AddMenuItem(orders.MenuItem{
		ID: "tiramisu", StoreID: st.ID, Name: "Tiramisu", Price: decimal.NewFromInt(80), Available: true,
		Inventory: &orders.InventoryRecord{Quantity: decimal.NewFromInt(2), Unit: "pcs"},
	})
	limit := 100
	s.AddCoupon(orders.Coupon{
		StoreID: st.ID, Code: "SAVE10", Type: orders.DiscountPercentage, Value: decimal.NewFromInt(10),
		MinOrderAmount: decimal.NewNullDecimal(decimal.NewFromInt(100)), UsageLimit: &limit, Active: true,
		ValidFrom: time.Now().Add(-time.Hour), ValidUntil: time.Now().AddDate(0, 1, 0),
	})
	return s
}
