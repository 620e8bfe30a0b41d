package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/orders"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements orders.Repository on PostgreSQL. Stock and coupon
// guards are single conditional UPDATEs, so READ COMMITTED is enough: a
// concurrent writer on the same row blocks until we commit and then
// re-evaluates the WHERE clause against the new row.
type Repository struct{ DB *pgxpool.Pool }

var _ orders.Repository = (*Repository)(nil)

const orderSelect = `
	SELECT o.id, o.order_number, o.store_id, s.slug, o.customer_id, c.name, c.phone,
	       COALESCE(o.coupon_id, ''), o.status, o.payment_method, o.payment_status,
	       o.subtotal, o.tax, o.discount, o.total, o.notes, o.estimated_minutes,
	       o.delivered_at, o.created_at, o.updated_at, o.version
	FROM orders o
	JOIN stores s ON s.id = o.store_id
	JOIN customers c ON c.id = o.customer_id`

func scanOrder(row pgx.Row) (orders.Order, error) {
	var o orders.Order
	err := row.Scan(&o.ID, &o.Number, &o.StoreID, &o.StoreSlug, &o.CustomerID, &o.CustomerName, &o.CustomerPhone,
		&o.CouponID, &o.Status, &o.PaymentMethod, &o.PaymentStatus,
		&o.Subtotal, &o.Tax, &o.Discount, &o.Total, &o.Notes, &o.EstimatedMinutes,
		&o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt, &o.Version)
	return o, err
}

func notFound(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", orders.ErrNotFound, what, id)
	}
	return err
}

func (r *Repository) StoreBySlug(ctx context.Context, slug string) (orders.Store, error) {
	var s orders.Store
	err := r.DB.QueryRow(ctx, `SELECT id, slug, name, active FROM stores WHERE slug=$1`, slug).
		Scan(&s.ID, &s.Slug, &s.Name, &s.Active)
	return s, notFound(err, "store", slug)
}

func (r *Repository) MenuItems(ctx context.Context, storeID string, ids []string) (map[string]orders.MenuItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT m.id, m.store_id, m.name, m.price, m.available,
		       i.quantity, COALESCE(i.unit, ''), i.reorder_threshold
		FROM menu_items m
		LEFT JOIN inventory i ON i.menu_item_id = m.id
		WHERE m.store_id = $1 AND m.id = ANY($2)`, storeID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]orders.MenuItem, len(ids))
	for rows.Next() {
		var (
			it       orders.MenuItem
			qty, thr decimal.NullDecimal
			unit     string
		)
		if err := rows.Scan(&it.ID, &it.StoreID, &it.Name, &it.Price, &it.Available, &qty, &unit, &thr); err != nil {
			return nil, err
		}
		if qty.Valid {
			it.Inventory = &orders.InventoryRecord{
				MenuItemID:       it.ID,
				Quantity:         qty.Decimal,
				Unit:             unit,
				ReorderThreshold: thr.Decimal,
			}
		}
		out[it.ID] = it
	}
	return out, rows.Err()
}

func (r *Repository) CouponByCode(ctx context.Context, storeID, code string) (orders.Coupon, error) {
	var (
		c          orders.Coupon
		limit      *int
		from, till *time.Time
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id, store_id, code, discount_type, value, min_order_amount, max_discount,
		       usage_limit, used_count, active, valid_from, valid_until
		FROM coupons WHERE store_id=$1 AND upper(code)=upper($2)`, storeID, code).
		Scan(&c.ID, &c.StoreID, &c.Code, &c.Type, &c.Value, &c.MinOrderAmount, &c.MaxDiscount,
			&limit, &c.UsedCount, &c.Active, &from, &till)
	if err != nil {
		return orders.Coupon{}, notFound(err, "coupon", code)
	}
	c.UsageLimit = limit
	if from != nil {
		c.ValidFrom = *from
	}
	if till != nil {
		c.ValidUntil = *till
	}
	return c, nil
}

func (r *Repository) Order(ctx context.Context, id string) (orders.Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, orderSelect+` WHERE o.id=$1`, id))
	if err != nil {
		return orders.Order{}, notFound(err, "order", id)
	}
	items, err := loadItems(ctx, r.DB, []string{o.ID})
	if err != nil {
		return orders.Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *Repository) StoreOrders(ctx context.Context, storeID string, since time.Time, limit int) ([]orders.Order, error) {
	rows, err := r.DB.Query(ctx, orderSelect+`
		WHERE o.store_id=$1 AND o.created_at >= $2
		ORDER BY o.created_at DESC, o.order_number DESC
		LIMIT $3`, storeID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Order
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}
	items, err := loadItems(ctx, r.DB, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func loadItems(ctx context.Context, q querier, orderIDs []string) (map[string][]orders.OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, menu_item_id, name, quantity, unit_price, notes
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]orders.OrderItem{}
	for rows.Next() {
		var it orders.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.Quantity, &it.UnitPrice, &it.Notes); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func (r *Repository) StoreStats(ctx context.Context, storeID string, since time.Time) (orders.Stats, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total), 0)
		FROM orders WHERE store_id=$1 AND created_at >= $2
		GROUP BY status`, storeID, since)
	if err != nil {
		return orders.Stats{}, err
	}
	defer rows.Close()

	st := orders.Stats{StoreID: storeID, Since: since, Revenue: decimal.Zero, ByStatus: map[orders.Status]int{}}
	for rows.Next() {
		var (
			status orders.Status
			n      int
			sum    decimal.Decimal
		)
		if err := rows.Scan(&status, &n, &sum); err != nil {
			return orders.Stats{}, err
		}
		st.Orders += n
		st.ByStatus[status] = n
		if status != orders.StatusCancelled {
			st.Revenue = st.Revenue.Add(sum)
		}
	}
	return st, rows.Err()
}

func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type txRepo struct{ tx pgx.Tx }

func (t *txRepo) UpsertCustomer(ctx context.Context, c orders.Customer) (orders.Customer, error) {
	var out orders.Customer
	err := t.tx.QueryRow(ctx, `
		INSERT INTO customers(id, name, phone, email, address)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (phone) DO UPDATE SET
			name = EXCLUDED.name,
			email = COALESCE(NULLIF(EXCLUDED.email, ''), customers.email),
			address = COALESCE(NULLIF(EXCLUDED.address, ''), customers.address),
			updated_at = now()
		RETURNING id, name, phone, email, address`,
		uuid.NewString(), c.Name, c.Phone, c.Email, c.Address,
	).Scan(&out.ID, &out.Name, &out.Phone, &out.Email, &out.Address)
	return out, err
}

func (t *txRepo) NextOrderNumber(ctx context.Context, at time.Time) (string, error) {
	var seq int64
	if err := t.tx.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return "", err
	}
	return orders.FormatOrderNumber(at, seq), nil
}

func (t *txRepo) InsertOrder(ctx context.Context, o orders.Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders(id, order_number, store_id, customer_id, coupon_id, status,
		                   payment_method, payment_status, subtotal, tax, discount, total,
		                   notes, estimated_minutes, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		o.ID, o.Number, o.StoreID, o.CustomerID, o.CouponID, o.Status,
		o.PaymentMethod, o.PaymentStatus, o.Subtotal, o.Tax, o.Discount, o.Total,
		o.Notes, o.EstimatedMinutes, o.CreatedAt, o.UpdatedAt, o.Version,
	)
	if err != nil {
		return err
	}

	for i, it := range o.Items {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, position, menu_item_id, name, quantity, unit_price, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			it.ID, o.ID, i, it.MenuItemID, it.Name, it.Quantity, it.UnitPrice, it.Notes,
		); err != nil {
			return err
		}
	}
	return nil
}

// DecrementStock is one conditional UPDATE; zero affected rows means either
// no record (unmetered) or not enough stock.
func (t *txRepo) DecrementStock(ctx context.Context, menuItemID string, qty decimal.Decimal) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE inventory SET quantity = quantity - $2, updated_at = now()
		WHERE menu_item_id = $1 AND quantity >= $2`, menuItemID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var metered bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM inventory WHERE menu_item_id=$1)`, menuItemID).Scan(&metered); err != nil {
		return err
	}
	if metered {
		return orders.ErrInsufficientStock
	}
	return nil
}

func (t *txRepo) IncrementCouponUsage(ctx context.Context, couponID string) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE coupons SET used_count = used_count + 1
		WHERE id = $1 AND active AND (usage_limit IS NULL OR used_count < usage_limit)`, couponID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return orders.ErrInvalidCoupon
	}
	return nil
}

func (t *txRepo) LockOrder(ctx context.Context, id string) (orders.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, orderSelect+` WHERE o.id=$1 FOR UPDATE OF o`, id))
	if err != nil {
		return orders.Order{}, notFound(err, "order", id)
	}
	return o, nil
}

func (t *txRepo) SaveOrderState(ctx context.Context, o orders.Order) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders SET status=$2, payment_status=$3, estimated_minutes=$4,
		                  delivered_at=$5, updated_at=$6, version=$7
		WHERE id=$1`,
		o.ID, o.Status, o.PaymentStatus, o.EstimatedMinutes, o.DeliveredAt, o.UpdatedAt, o.Version)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: order %s", orders.ErrNotFound, o.ID)
	}
	return nil
}
