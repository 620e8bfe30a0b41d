package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/realtime"
)

// ViewCache holds read copies of orders. Put must ignore an order whose
// Version is not newer than the cached one, so a slow reader cannot
// overwrite a fresher copy.
type ViewCache interface {
	Get(ctx context.Context, orderID string) (Order, bool)
	Put(ctx context.Context, o Order) error
	Invalidate(ctx context.Context, orderID string) error
}

type Options struct {
	TaxRate                 *decimal.Decimal // nil means DefaultTaxRate
	DefaultEstimatedMinutes int
	Now                     func() time.Time
	Cache                   ViewCache // optional
}

// Service coordinates order creation, status transitions and payment
// updates, and publishes the resulting events after commit.
type Service struct {
	repo    Repository
	guard   *Guard
	ledger  Ledger
	pub     realtime.Publisher
	log     *zap.Logger
	opts    Options
	taxRate decimal.Decimal

	statsMu sync.Mutex
	stats   map[string]bool // store id -> another pass requested while running
	statsWG sync.WaitGroup
}

func NewService(repo Repository, pub realtime.Publisher, log *zap.Logger, opts Options) *Service {
	taxRate := DefaultTaxRate
	if opts.TaxRate != nil {
		taxRate = *opts.TaxRate
	}
	if opts.DefaultEstimatedMinutes <= 0 {
		opts.DefaultEstimatedMinutes = 30
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:    repo,
		guard:   NewGuard(repo, opts.Now),
		pub:     pub,
		log:     log,
		opts:    opts,
		taxRate: taxRate,
		stats:   map[string]bool{},
	}
}

type CustomerInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type LineInput struct {
	MenuItemID string `json:"menuItemId"`
	Quantity   int    `json:"quantity"`
	Notes      string `json:"notes,omitempty"`
}

type CreateOrderInput struct {
	StoreSlug     string        `json:"storeSlug"`
	Customer      CustomerInput `json:"customer"`
	Items         []LineInput   `json:"items"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	CouponCode    string        `json:"couponCode,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

func (in CreateOrderInput) validate() error {
	switch {
	case strings.TrimSpace(in.StoreSlug) == "":
		return fmt.Errorf("%w: storeSlug is required", ErrValidation)
	case strings.TrimSpace(in.Customer.Name) == "":
		return fmt.Errorf("%w: customer name is required", ErrValidation)
	case strings.TrimSpace(in.Customer.Phone) == "":
		return fmt.Errorf("%w: customer phone is required", ErrValidation)
	case len(in.Items) == 0:
		return fmt.Errorf("%w: at least one item is required", ErrValidation)
	case !in.PaymentMethod.Valid():
		return fmt.Errorf("%w: unsupported payment method %q", ErrValidation, in.PaymentMethod)
	}
	for _, l := range in.Items {
		if strings.TrimSpace(l.MenuItemID) == "" {
			return fmt.Errorf("%w: menuItemId is required", ErrValidation)
		}
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for item %s must be positive", ErrValidation, l.MenuItemID)
		}
	}
	return nil
}

// CreateOrder validates the cart against current menu, stock and coupon
// state, then persists the order, its items, the stock decrements and the
// coupon usage in one transaction. Nothing is written when it fails.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (Order, error) {
	if err := in.validate(); err != nil {
		return Order{}, err
	}

	store, err := s.repo.StoreBySlug(ctx, strings.TrimSpace(in.StoreSlug))
	if errors.Is(err, ErrNotFound) || (err == nil && !store.Active) {
		return Order{}, fmt.Errorf("%w: store %s", ErrNotFound, in.StoreSlug)
	}
	if err != nil {
		return Order{}, abort(err)
	}

	ids := make([]string, 0, len(in.Items))
	for _, l := range in.Items {
		ids = append(ids, l.MenuItemID)
	}
	menu, err := s.repo.MenuItems(ctx, store.ID, ids)
	if err != nil {
		return Order{}, abort(err)
	}

	now := s.opts.Now()
	o := Order{
		ID:               uuid.NewString(),
		StoreID:          store.ID,
		StoreSlug:        store.Slug,
		CustomerName:     strings.TrimSpace(in.Customer.Name),
		CustomerPhone:    strings.TrimSpace(in.Customer.Phone),
		Status:           StatusPending,
		PaymentMethod:    in.PaymentMethod,
		PaymentStatus:    InitialPaymentStatus(in.PaymentMethod),
		Notes:            in.Notes,
		EstimatedMinutes: s.opts.DefaultEstimatedMinutes,
		CreatedAt:        now,
		UpdatedAt:        now,
		Version:          1,
	}

	need := make(map[string]int, len(in.Items))
	subtotal := decimal.Zero
	for _, l := range in.Items {
		item, ok := menu[l.MenuItemID]
		if !ok {
			return Order{}, fmt.Errorf("%w: %w: menu item %s", ErrInvalidItem, ErrNotFound, l.MenuItemID)
		}
		if !item.Available {
			return Order{}, fmt.Errorf("%w: %s is not available", ErrInvalidItem, item.Name)
		}
		need[item.ID] += l.Quantity
		if s.ledger.Shortfall(item, need[item.ID]) {
			return Order{}, fmt.Errorf("%w for %s", ErrInsufficientStock, item.Name)
		}
		subtotal = subtotal.Add(item.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		o.Items = append(o.Items, OrderItem{
			ID:         uuid.NewString(),
			OrderID:    o.ID,
			MenuItemID: item.ID,
			Name:       item.Name,
			Quantity:   l.Quantity,
			UnitPrice:  item.Price,
			Notes:      l.Notes,
		})
	}

	var red *Redemption
	if code := strings.TrimSpace(in.CouponCode); code != "" {
		r, err := s.guard.Redeem(ctx, code, store.ID, subtotal)
		if err != nil {
			return Order{}, err
		}
		red = &r
		o.CouponID = r.Coupon.ID
	}

	discount := decimal.Zero
	if red != nil {
		discount = red.Discount
	}
	t := ComputeTotals(subtotal, s.taxRate, discount)
	o.Subtotal, o.Tax, o.Discount, o.Total = t.Subtotal, t.Tax, t.Discount, t.Total

	err = s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		c, err := tx.UpsertCustomer(ctx, Customer{
			Name:    o.CustomerName,
			Phone:   o.CustomerPhone,
			Email:   in.Customer.Email,
			Address: in.Customer.Address,
		})
		if err != nil {
			return err
		}
		o.CustomerID = c.ID
		if o.Number, err = tx.NextOrderNumber(ctx, now); err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}
		if err := s.ledger.ReserveAll(ctx, tx, menu, need); err != nil {
			return err
		}
		if red != nil {
			if err := tx.IncrementCouponUsage(ctx, red.Coupon.ID); err != nil {
				if errors.Is(err, ErrInvalidCoupon) {
					return fmt.Errorf("%w: code %s usage limit reached", ErrInvalidCoupon, red.Coupon.Code)
				}
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warn("create order rolled back", zap.String("store", store.Slug), zap.Error(err))
		return Order{}, abort(err)
	}

	s.log.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.Number),
		zap.String("store", store.Slug),
		zap.String("total", o.Total.StringFixed(2)),
	)
	s.pub.Publish(realtime.StoreTopic(store.Slug), EventOrderCreated, OrderCreatedPayload{
		OrderID:      o.ID,
		OrderNumber:  o.Number,
		Status:       o.Status,
		Total:        o.Total,
		CustomerName: o.CustomerName,
		Timestamp:    now,
	})
	s.cacheView(ctx, o)
	s.refreshStats(o.StoreID, o.StoreSlug)
	return o, nil
}

// TransitionStatus moves an order to status. Orders in a terminal state are
// left untouched and ErrInvalidTransition is returned. DeliveredAt is set
// only when moving to DELIVERED.
func (s *Service) TransitionStatus(ctx context.Context, orderID string, status Status, estimatedMinutes *int) (Order, error) {
	if !status.Valid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if estimatedMinutes != nil && *estimatedMinutes < 0 {
		return Order{}, fmt.Errorf("%w: estimatedTime must not be negative", ErrValidation)
	}

	var o Order
	var prev Status
	err := s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		cur, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(cur.Status, status) {
			return fmt.Errorf("%w: order %s is already %s", ErrInvalidTransition, cur.Number, cur.Status)
		}
		now := s.opts.Now()
		prev = cur.Status
		cur.Status = status
		if estimatedMinutes != nil {
			cur.EstimatedMinutes = *estimatedMinutes
		}
		if status == StatusDelivered {
			cur.DeliveredAt = &now
		} else {
			cur.DeliveredAt = nil
		}
		cur.UpdatedAt = now
		cur.Version++
		o = cur
		return tx.SaveOrderState(ctx, cur)
	})
	if err != nil {
		return Order{}, abort(err)
	}

	s.log.Info("order status changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(prev)),
		zap.String("to", string(o.Status)),
	)
	p := StatusChangedPayload{
		OrderID:       o.ID,
		OrderNumber:   o.Number,
		OldStatus:     prev,
		Status:        o.Status,
		EstimatedTime: o.EstimatedMinutes,
		DeliveredAt:   o.DeliveredAt,
		Timestamp:     o.UpdatedAt,
	}
	s.pub.Publish(realtime.OrderTopic(o.ID), EventOrderStatusChanged, p)
	s.pub.Publish(realtime.StoreTopic(o.StoreSlug), EventOrderStatusChanged, p)
	s.cacheView(ctx, o)
	s.refreshStats(o.StoreID, o.StoreSlug)
	return o, nil
}

// UpdatePayment records a payment outcome. A completed payment confirms a
// pending order. Only completed payments can be refunded.
func (s *Service) UpdatePayment(ctx context.Context, orderID string, ps PaymentStatus) (Order, error) {
	if !ps.Valid() {
		return Order{}, fmt.Errorf("%w: unknown payment status %q", ErrValidation, ps)
	}

	var o Order
	err := s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		cur, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if ps == PaymentRefunded && cur.PaymentStatus != PaymentCompleted {
			return fmt.Errorf("%w: payment for %s is %s, not refundable", ErrInvalidTransition, cur.Number, cur.PaymentStatus)
		}
		cur.PaymentStatus = ps
		if ps == PaymentCompleted && cur.Status == StatusPending {
			cur.Status = StatusConfirmed
		}
		cur.UpdatedAt = s.opts.Now()
		cur.Version++
		o = cur
		return tx.SaveOrderState(ctx, cur)
	})
	if err != nil {
		return Order{}, abort(err)
	}

	s.log.Info("payment updated",
		zap.String("order_id", o.ID),
		zap.String("payment_status", string(o.PaymentStatus)),
		zap.String("status", string(o.Status)),
	)
	topics := []realtime.Topic{realtime.OrderTopic(o.ID), realtime.StoreTopic(o.StoreSlug)}
	var event string
	switch ps {
	case PaymentCompleted:
		event = EventPaymentCompleted
	case PaymentFailed:
		event = EventPaymentFailed
	}
	for _, t := range topics {
		if event != "" {
			s.pub.Publish(t, event, PaymentPayload{
				OrderID:       o.ID,
				OrderNumber:   o.Number,
				PaymentStatus: o.PaymentStatus,
				Amount:        o.Total,
				Timestamp:     o.UpdatedAt,
			})
		}
		s.pub.Publish(t, EventOrderUpdated, OrderUpdatedPayload{
			OrderID:       o.ID,
			OrderNumber:   o.Number,
			Status:        o.Status,
			PaymentStatus: o.PaymentStatus,
			Timestamp:     o.UpdatedAt,
		})
	}
	s.cacheView(ctx, o)
	s.refreshStats(o.StoreID, o.StoreSlug)
	return o, nil
}

// Order serves from the view cache when one is configured and falls back
// to the repository, filling the cache on the way out.
func (s *Service) Order(ctx context.Context, id string) (Order, error) {
	if s.opts.Cache != nil {
		if o, ok := s.opts.Cache.Get(ctx, id); ok {
			return o, nil
		}
	}
	o, err := s.repo.Order(ctx, id)
	if err != nil {
		return Order{}, abort(err)
	}
	if s.opts.Cache != nil {
		if err := s.opts.Cache.Put(ctx, o); err != nil {
			s.log.Debug("order cache fill failed", zap.String("order_id", id), zap.Error(err))
		}
	}
	return o, nil
}

// cacheView writes the committed order through to the view cache. When
// that fails the entry is dropped so readers go back to the repository.
func (s *Service) cacheView(ctx context.Context, o Order) {
	if s.opts.Cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.opts.Cache.Put(ctx, o); err != nil {
		s.log.Warn("order cache refresh failed", zap.String("order_id", o.ID), zap.Error(err))
		if err := s.opts.Cache.Invalidate(ctx, o.ID); err != nil {
			s.log.Error("order cache invalidate failed", zap.String("order_id", o.ID), zap.Error(err))
		}
	}
}

func (s *Service) StoreOrders(ctx context.Context, slug string, since time.Time, limit int) ([]Order, error) {
	store, err := s.repo.StoreBySlug(ctx, slug)
	if err != nil {
		return nil, abort(err)
	}
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	out, err := s.repo.StoreOrders(ctx, store.ID, since, limit)
	return out, abort(err)
}

// refreshStats schedules an admin stats snapshot off the request path. At
// most one snapshot per store runs at a time; changes committed while it
// runs trigger one more pass.
func (s *Service) refreshStats(storeID, slug string) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	if _, running := s.stats[storeID]; running {
		s.stats[storeID] = true
		return
	}
	s.stats[storeID] = false
	s.statsWG.Add(1)
	go func() {
		defer s.statsWG.Done()
		for {
			s.publishStats(storeID, slug)
			s.statsMu.Lock()
			again := s.stats[storeID]
			if !again {
				delete(s.stats, storeID)
			} else {
				s.stats[storeID] = false
			}
			s.statsMu.Unlock()
			if !again {
				return
			}
		}
	}()
}

// Wait blocks until pending stats snapshots have been published.
func (s *Service) Wait() { s.statsWG.Wait() }

// publishStats pushes today's aggregate to the admin feed. Failures only
// cost the dashboard an update.
func (s *Service) publishStats(storeID, slug string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	now := s.opts.Now()
	st, err := s.repo.StoreStats(ctx, storeID, StartOfDay(now))
	if err != nil {
		s.log.Warn("stats snapshot failed", zap.String("store", slug), zap.Error(err))
		return
	}
	s.pub.Publish(realtime.AdminTopic(slug), EventStatsUpdated, StatsPayload{Stats: st, Timestamp: now})
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
