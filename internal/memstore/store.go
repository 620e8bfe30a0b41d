// Package memstore is an in-memory orders.Repository. Transactions are
// serialized by one lock and roll back by restoring a snapshot, so it gives
// the same all-or-nothing guarantees as the PostgreSQL repository for a
// single process.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/orders"
)

type state struct {
	stores    map[string]orders.Store // by id
	menu      map[string]orders.MenuItem
	inventory map[string]orders.InventoryRecord // by menu item id
	coupons   map[string]orders.Coupon
	customers map[string]orders.Customer // by phone
	orders    map[string]orders.Order
	seq       int64
}

func (s *state) clone() *state {
	c := &state{
		stores:    make(map[string]orders.Store, len(s.stores)),
		menu:      make(map[string]orders.MenuItem, len(s.menu)),
		inventory: make(map[string]orders.InventoryRecord, len(s.inventory)),
		coupons:   make(map[string]orders.Coupon, len(s.coupons)),
		customers: make(map[string]orders.Customer, len(s.customers)),
		orders:    make(map[string]orders.Order, len(s.orders)),
		seq:       s.seq,
	}
	for k, v := range s.stores {
		c.stores[k] = v
	}
	for k, v := range s.menu {
		c.menu[k] = v
	}
	for k, v := range s.inventory {
		c.inventory[k] = v
	}
	for k, v := range s.coupons {
		c.coupons[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	return c
}

type Store struct {
	mu sync.RWMutex
	st *state
}

var _ orders.Repository = (*Store)(nil)

func New() *Store {
	return &Store{st: &state{
		stores:    map[string]orders.Store{},
		menu:      map[string]orders.MenuItem{},
		inventory: map[string]orders.InventoryRecord{},
		coupons:   map[string]orders.Coupon{},
		customers: map[string]orders.Customer{},
		orders:    map[string]orders.Order{},
	}}
}

// ---- seeding ----

func (s *Store) AddStore(st orders.Store) orders.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	s.st.stores[st.ID] = st
	return st
}

// AddMenuItem stores the item; a non-nil Inventory creates its record.
func (s *Store) AddMenuItem(it orders.MenuItem) orders.MenuItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.Inventory != nil {
		rec := *it.Inventory
		rec.MenuItemID = it.ID
		s.st.inventory[it.ID] = rec
	}
	it.Inventory = nil
	s.st.menu[it.ID] = it
	return it
}

func (s *Store) AddCoupon(c orders.Coupon) orders.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Code = strings.ToUpper(c.Code)
	s.st.coupons[c.ID] = c
	return c
}

// Inventory returns the current record for a menu item.
func (s *Store) Inventory(menuItemID string) (orders.InventoryRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.st.inventory[menuItemID]
	return r, ok
}

func (s *Store) Coupon(id string) (orders.Coupon, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.st.coupons[id]
	return c, ok
}

// OrderCount counts persisted orders, items excluded.
func (s *Store) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.orders)
}

func (s *Store) CustomerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.customers)
}

// ---- reads ----

func (s *Store) StoreBySlug(_ context.Context, slug string) (orders.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.st.stores {
		if st.Slug == slug {
			return st, nil
		}
	}
	return orders.Store{}, fmt.Errorf("%w: store %s", orders.ErrNotFound, slug)
}

func (s *Store) MenuItems(_ context.Context, storeID string, ids []string) (map[string]orders.MenuItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]orders.MenuItem, len(ids))
	for _, id := range ids {
		it, ok := s.st.menu[id]
		if !ok || it.StoreID != storeID {
			continue
		}
		if rec, ok := s.st.inventory[id]; ok {
			it.Inventory = &rec
		}
		out[id] = it
	}
	return out, nil
}

func (s *Store) CouponByCode(_ context.Context, storeID, code string) (orders.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.st.coupons {
		if c.StoreID == storeID && c.Code == strings.ToUpper(code) {
			return c, nil
		}
	}
	return orders.Coupon{}, fmt.Errorf("%w: coupon %s", orders.ErrNotFound, code)
}

func (s *Store) Order(_ context.Context, id string) (orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.order(id)
}

func (st *state) order(id string) (orders.Order, error) {
	o, ok := st.orders[id]
	if !ok {
		return orders.Order{}, fmt.Errorf("%w: order %s", orders.ErrNotFound, id)
	}
	o.Items = append([]orders.OrderItem(nil), o.Items...)
	return o, nil
}

func (s *Store) StoreOrders(_ context.Context, storeID string, since time.Time, limit int) ([]orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []orders.Order
	for _, o := range s.st.orders {
		if o.StoreID == storeID && !o.CreatedAt.Before(since) {
			o.Items = append([]orders.OrderItem(nil), o.Items...)
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) StoreStats(_ context.Context, storeID string, since time.Time) (orders.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := orders.Stats{StoreID: storeID, Since: since, Revenue: decimal.Zero, ByStatus: map[orders.Status]int{}}
	for _, o := range s.st.orders {
		if o.StoreID != storeID || o.CreatedAt.Before(since) {
			continue
		}
		st.Orders++
		st.ByStatus[o.Status]++
		if o.Status != orders.StatusCancelled {
			st.Revenue = st.Revenue.Add(o.Total)
		}
	}
	return st, nil
}

// ---- transactions ----

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(ctx, &tx{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

type tx struct{ st *state }

func (t *tx) UpsertCustomer(_ context.Context, c orders.Customer) (orders.Customer, error) {
	if cur, ok := t.st.customers[c.Phone]; ok {
		cur.Name = c.Name
		if c.Email != "" {
			cur.Email = c.Email
		}
		if c.Address != "" {
			cur.Address = c.Address
		}
		t.st.customers[c.Phone] = cur
		return cur, nil
	}
	c.ID = uuid.NewString()
	t.st.customers[c.Phone] = c
	return c, nil
}

func (t *tx) NextOrderNumber(_ context.Context, at time.Time) (string, error) {
	t.st.seq++
	return orders.FormatOrderNumber(at, t.st.seq), nil
}

func (t *tx) InsertOrder(_ context.Context, o orders.Order) error {
	if _, ok := t.st.orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	o.Items = append([]orders.OrderItem(nil), o.Items...)
	t.st.orders[o.ID] = o
	return nil
}

func (t *tx) DecrementStock(_ context.Context, menuItemID string, qty decimal.Decimal) error {
	rec, ok := t.st.inventory[menuItemID]
	if !ok {
		return nil
	}
	if rec.Quantity.LessThan(qty) {
		return orders.ErrInsufficientStock
	}
	rec.Quantity = rec.Quantity.Sub(qty)
	t.st.inventory[menuItemID] = rec
	return nil
}

func (t *tx) IncrementCouponUsage(_ context.Context, couponID string) error {
	c, ok := t.st.coupons[couponID]
	if !ok || !c.Active || (c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit) {
		return orders.ErrInvalidCoupon
	}
	c.UsedCount++
	t.st.coupons[couponID] = c
	return nil
}

func (t *tx) LockOrder(_ context.Context, id string) (orders.Order, error) {
	return t.st.order(id)
}

func (t *tx) SaveOrderState(_ context.Context, o orders.Order) error {
	cur, ok := t.st.orders[o.ID]
	if !ok {
		return fmt.Errorf("%w: order %s", orders.ErrNotFound, o.ID)
	}
	cur.Status = o.Status
	cur.PaymentStatus = o.PaymentStatus
	cur.EstimatedMinutes = o.EstimatedMinutes
	cur.DeliveredAt = o.DeliveredAt
	cur.UpdatedAt = o.UpdatedAt
	cur.Version = o.Version
	t.st.orders[o.ID] = cur
	return nil
}
