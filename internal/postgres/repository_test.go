package postgres

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/orders"
	"github.com/sushmaasaini1979-jpg/siddhi-frontend-sub000/internal/realtime"
)

type nopPublisher struct{}

func (nopPublisher) Publish(realtime.Topic, string, any) {}

type seed struct {
	slug    string
	storeID string
	itemID  string
	coupon  string
}

// testDB connects to POSTGRES_TEST_DSN, migrates and seeds one store with a
// single-unit item and a single-use coupon.
func testDB(t *testing.T) (*pgxpool.Pool, seed) {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	db, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, Migrate(ctx, db))

	s := seed{slug: "t-" + uuid.NewString()[:8], storeID: uuid.NewString(), itemID: uuid.NewString(), coupon: uuid.NewString()}
	_, err = db.Exec(ctx, `INSERT INTO stores (id, slug, name) VALUES ($1, $2, 'Test')`, s.storeID, s.slug)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `INSERT INTO menu_items (id, store_id, name, price) VALUES ($1, $2, 'Truffle Pizza', 300)`, s.itemID, s.storeID)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `INSERT INTO inventory (menu_item_id, quantity) VALUES ($1, 1)`, s.itemID)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `INSERT INTO coupons (id, store_id, code, discount_type, value, usage_limit)
		VALUES ($1, $2, 'ONCE', 'FIXED', 20, 1)`, s.coupon, s.storeID)
	require.NoError(t, err)
	return db, s
}

func quantity(t *testing.T, db *pgxpool.Pool, itemID string) decimal.Decimal {
	t.Helper()
	var q decimal.Decimal
	require.NoError(t, db.QueryRow(context.Background(), `SELECT quantity FROM inventory WHERE menu_item_id=$1`, itemID).Scan(&q))
	return q
}

func input(s seed, phone, coupon string) orders.CreateOrderInput {
	return orders.CreateOrderInput{
		StoreSlug:     s.slug,
		Customer:      orders.CustomerInput{Name: "Asha", Phone: phone},
		Items:         []orders.LineInput{{MenuItemID: s.itemID, Quantity: 1}},
		PaymentMethod: orders.PaymentUPI,
		CouponCode:    coupon,
	}
}

func TestCreateOrderLastUnitRace(t *testing.T) {
	db, s := testDB(t)
	svc := orders.NewService(&Repository{DB: db}, nopPublisher{}, zaptest.NewLogger(t), orders.Options{})
	t.Cleanup(svc.Wait)

	const buyers = 5
	errs := make([]error, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateOrder(context.Background(), input(s, uuid.NewString(), ""))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, orders.ErrInsufficientStock)
	}
	assert.Equal(t, 1, ok)
	assert.True(t, quantity(t, db, s.itemID).IsZero())

	var n int
	require.NoError(t, db.QueryRow(context.Background(), `SELECT count(*) FROM orders WHERE store_id=$1`, s.storeID).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestCreateOrderRollsBackCouponAndStock(t *testing.T) {
	db, s := testDB(t)
	repo := &Repository{DB: db}
	svc := orders.NewService(repo, nopPublisher{}, zaptest.NewLogger(t), orders.Options{})
	t.Cleanup(svc.Wait)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, input(s, uuid.NewString(), "once"))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(20).Equal(o.Discount))
	assert.True(t, decimal.RequireFromString("295").Equal(o.Total))

	// put stock back so only the coupon can fail
	_, err = db.Exec(ctx, `UPDATE inventory SET quantity = 1 WHERE menu_item_id=$1`, s.itemID)
	require.NoError(t, err)
	phone := uuid.NewString()
	_, err = svc.CreateOrder(ctx, input(s, phone, "ONCE"))
	require.ErrorIs(t, err, orders.ErrInvalidCoupon)
	assert.True(t, decimal.NewFromInt(1).Equal(quantity(t, db, s.itemID)))

	var customers int
	require.NoError(t, db.QueryRow(ctx, `SELECT count(*) FROM customers WHERE phone=$1`, phone).Scan(&customers))
	assert.Zero(t, customers)

	got, err := repo.Order(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Number, got.Number)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Truffle Pizza", got.Items[0].Name)
}

func TestTransitionAndPaymentPersist(t *testing.T) {
	db, s := testDB(t)
	repo := &Repository{DB: db}
	svc := orders.NewService(repo, nopPublisher{}, zaptest.NewLogger(t), orders.Options{})
	t.Cleanup(svc.Wait)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, input(s, uuid.NewString(), ""))
	require.NoError(t, err)

	_, err = svc.UpdatePayment(ctx, o.ID, orders.PaymentCompleted)
	require.NoError(t, err)
	_, err = svc.TransitionStatus(ctx, o.ID, orders.StatusDelivered, nil)
	require.NoError(t, err)
	_, err = svc.TransitionStatus(ctx, o.ID, orders.StatusCancelled, nil)
	require.ErrorIs(t, err, orders.ErrInvalidTransition)

	got, err := repo.Order(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivered, got.Status)
	assert.Equal(t, orders.PaymentCompleted, got.PaymentStatus)
	assert.NotNil(t, got.DeliveredAt)
	assert.Equal(t, int64(3), got.Version)

	st, err := repo.StoreStats(ctx, s.storeID, orders.StartOfDay(got.CreatedAt))
	require.NoError(t, err)
	assert.Equal(t, 1, st.Orders)
	assert.Equal(t, 1, st.ByStatus[orders.StatusDelivered])

	_, err = repo.Order(ctx, uuid.NewString())
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestCreateOrderOppositeLineOrderDoesNotDeadlock(t *testing.T) {
	db, s := testDB(t)
	ctx := context.Background()
	other := uuid.NewString()
	_, err := db.Exec(ctx, `INSERT INTO menu_items (id, store_id, name, price) VALUES ($1, $2, 'Cold Coffee', 120)`, other, s.storeID)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `INSERT INTO inventory (menu_item_id, quantity) VALUES ($1, 100)`, other)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `UPDATE inventory SET quantity = 100 WHERE menu_item_id=$1`, s.itemID)
	require.NoError(t, err)

	svc := orders.NewService(&Repository{DB: db}, nopPublisher{}, zaptest.NewLogger(t), orders.Options{})
	t.Cleanup(svc.Wait)

	const buyers = 20
	errs := make([]error, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := input(s, uuid.NewString(), "")
			lines := []orders.LineInput{{MenuItemID: s.itemID, Quantity: 1}, {MenuItemID: other, Quantity: 1}}
			if i%2 == 1 {
				lines[0], lines[1] = lines[1], lines[0]
			}
			in.Items = lines
			_, errs[i] = svc.CreateOrder(ctx, in)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.True(t, decimal.NewFromInt(100-buyers).Equal(quantity(t, db, s.itemID)))
	assert.True(t, decimal.NewFromInt(100-buyers).Equal(quantity(t, db, other)))
}
