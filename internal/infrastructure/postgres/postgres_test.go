package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPool connects to ORDERS_TEST_DATABASE_URL or skips.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("ORDERS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ORDERS_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := newPool(ctx, dsn, 8)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))
	return pool
}

func seedProduct(t *testing.T, repo *InventoryRepository, stock int) string {
	t.Helper()
	id := "p-" + uuid.NewString()
	p, err := dominv.NewProduct(id, "Mug", decimal.RequireFromString("12.50"), stock)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), p))
	return id
}

func newGuestOrder(t *testing.T, productID string) *domain.Order {
	t.Helper()
	item, err := domain.NewItem(productID, "Mug", decimal.RequireFromString("12.50"), 2)
	require.NoError(t, err)
	pricing, err := domain.NewPricing(decimal.RequireFromString("25.00"), decimal.Zero, decimal.RequireFromString("5"), []string{"WELCOME"})
	require.NoError(t, err)
	o, err := domain.New(domain.Draft{
		ID:            uuid.NewString(),
		Code:          "ORD-TEST-" + uuid.NewString(),
		Buyer:         domain.GuestBuyer(domain.Contact{Name: "Asha", Email: "asha@example.com", Phone: "9000000000"}),
		Items:         []domain.Item{item},
		Address:       domain.Address{Street: "1 Main", City: "Pune", State: "MH", Zipcode: "411001", Country: "IN"},
		PaymentMethod: domain.MethodPhonePe,
		Pricing:       pricing,
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)
	return o
}

func TestInventoryReserveNeverOversells(t *testing.T) {
	pool := testPool(t)
	repo := NewInventoryRepository(pool)
	id := seedProduct(t, repo, 5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	reserved, short := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Reserve(context.Background(), id, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				reserved++
			case errors.Is(err, dominv.ErrInsufficientStock):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, reserved)
	assert.Equal(t, 15, short)
	p, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)

	_, err = repo.Reserve(context.Background(), "missing-"+id, 1)
	assert.ErrorIs(t, err, dominv.ErrNotFound)
}

func TestTransactorRollbackUndoesReservation(t *testing.T) {
	pool := testPool(t)
	repo := NewInventoryRepository(pool)
	tx := NewTransactor(pool)
	id := seedProduct(t, repo, 3)

	boom := errors.New("boom")
	err := tx.WithinTx(context.Background(), func(ctx context.Context) error {
		_, rerr := repo.Reserve(ctx, id, 2)
		require.NoError(t, rerr)
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)
}

func TestOrderRepositoryRoundTripAndCAS(t *testing.T) {
	pool := testPool(t)
	inv := NewInventoryRepository(pool)
	orders := NewOrderRepository(pool)
	ctx := context.Background()

	o := newGuestOrder(t, seedProduct(t, inv, 10))
	o.PaymentIntentID = "intent_" + o.ID
	require.NoError(t, orders.Insert(ctx, o))
	assert.Equal(t, int64(1), o.Version)

	got, err := orders.GetByIntent(ctx, o.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, o.Code, got.Code)
	assert.True(t, got.Pricing.FinalTotal.Equal(decimal.RequireFromString("30")))
	assert.Equal(t, []string{"WELCOME"}, got.Pricing.AppliedCoupons)
	assert.Equal(t, "asha@example.com", got.Buyer.Contact().Email)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Subtotal.Equal(decimal.RequireFromString("25")))

	stale := got.Clone()
	require.NoError(t, got.ConfirmPayment("pay_1", time.Now()))
	require.NoError(t, orders.Update(ctx, got))

	require.NoError(t, stale.Expire(time.Now()))
	assert.ErrorIs(t, orders.Update(ctx, stale), domain.ErrConflict)

	dup := newGuestOrder(t, got.Items[0].ProductID)
	dup.Code = o.Code
	assert.ErrorIs(t, orders.Insert(ctx, dup), domain.ErrConflict)

	found, err := orders.FindByContact(ctx, "asha@example.com", "9000000000", o.Code)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, domain.PaymentPaid, found[0].PaymentStatus)
}

func TestInsertConflictKeepsOuterTransactionUsable(t *testing.T) {
	pool := testPool(t)
	inv := NewInventoryRepository(pool)
	orders := NewOrderRepository(pool)
	tx := NewTransactor(pool)

	first := newGuestOrder(t, seedProduct(t, inv, 10))
	require.NoError(t, orders.Insert(context.Background(), first))

	second := newGuestOrder(t, first.Items[0].ProductID)
	err := tx.WithinTx(context.Background(), func(ctx context.Context) error {
		second.Code, second.ID = first.Code, uuid.NewString()
		require.ErrorIs(t, orders.Insert(ctx, second), domain.ErrConflict)
		second.Code = "ORD-TEST-" + uuid.NewString()
		return orders.Insert(ctx, second)
	})
	require.NoError(t, err)

	_, err = orders.Get(context.Background(), second.ID)
	assert.NoError(t, err)
}

func TestSequencerIsMonotonic(t *testing.T) {
	pool := testPool(t)
	seq := NewCodeSequencer(pool)
	a, err := seq.Next(context.Background())
	require.NoError(t, err)
	b, err := seq.Next(context.Background())
	require.NoError(t, err)
	assert.Greater(t, b, a)
}
