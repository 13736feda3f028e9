package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	appinventory "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/inventory"
	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/payment"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const secret = "whsec_test"

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

type failingGateway struct{ err error }

func (g failingGateway) CreateIntent(context.Context, dompayment.IntentRequest) (dompayment.Intent, error) {
	return dompayment.Intent{}, g.err
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, domoutbox.Event) error { return errors.New("bus closed") }

type brokenSequencer struct{}

func (brokenSequencer) Next(context.Context) (int64, error) { return 0, errors.New("sequence unavailable") }

type fixture struct {
	inv     *memory.InventoryRepository
	orders  *memory.OrderRepository
	buyers  *memory.BuyerDirectory
	queue   *memory.ExpiryQueue
	events  *recordingPublisher
	deps    Deps
	tel     observability.Observability
	now     time.Time
	create  *CreateOrderUseCase
	confirm *ConfirmPaymentUseCase
	expire  *ExpireOrderUseCase
	fulfill *UpdateFulfillmentUseCase
	queries *QueryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		inv:    memory.NewInventoryRepository(),
		orders: memory.NewOrderRepository(),
		buyers: memory.NewBuyerDirectory(),
		queue:  memory.NewExpiryQueue(),
		events: &recordingPublisher{},
		now:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	for _, p := range []struct {
		id    string
		price string
		stock int
		image string
	}{
		{"lamp", "40.00", 5, "lamp.jpg"},
		{"mug", "12.50", 1, ""},
	} {
		product, err := dominv.NewProduct(p.id, p.id, decimal.RequireFromString(p.price), p.stock)
		require.NoError(t, err)
		product.Image = p.image
		require.NoError(t, f.inv.Save(ctx, product))
	}
	require.NoError(t, f.buyers.Put(ctx, "u1", domain.Contact{Name: "Asha", Email: "asha@example.com", Phone: "111"}))

	f.deps = Deps{
		Orders:        f.orders,
		Reserver:      appinventory.NewReserveItemsUseCase(f.inv, nil, nil),
		Restorer:      appinventory.NewRestoreItemsUseCase(f.inv, nil, nil),
		Gateway:       payment.NewSandbox(secret, 1),
		Sequencer:     memory.NewCodeSequencer(f.orders),
		Buyers:        f.buyers,
		Expiry:        f.queue,
		IDs:           id.NewUUIDGenerator(),
		Publisher:     f.events,
		Clock:         func() time.Time { return f.now },
		Currency:      "INR",
		SigningSecret: secret,
	}
	f.rebuild()
	return f
}

func (f *fixture) rebuild() {
	f.create = NewCreateOrderUseCase(f.deps, f.tel)
	f.confirm = NewConfirmPaymentUseCase(f.deps, f.tel)
	f.expire = NewExpireOrderUseCase(f.deps, f.tel)
	f.fulfill = NewUpdateFulfillmentUseCase(f.deps, f.tel)
	f.queries = NewQueryService(f.orders, f.inv, nil)
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.inv.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func cart(method string, lines ...CartLine) Checkout {
	total := decimal.Zero
	prices := map[string]decimal.Decimal{"lamp": decimal.RequireFromString("40"), "mug": decimal.RequireFromString("12.5")}
	for _, l := range lines {
		total = total.Add(prices[l.ProductID].Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return Checkout{
		Items:           lines,
		Address:         &domain.Address{Street: "1 Rd", City: "Pune", State: "MH", Zipcode: "411001", Country: "IN"},
		PaymentMethod:   method,
		Guest:           &domain.Contact{Name: "Ravi", Email: "ravi@example.com", Phone: "222"},
		TotalPrice:      total,
		ShippingCharges: decimal.RequireFromString("10"),
	}
}

func TestCreateDirectOrderReservesAndSchedulesExpiry(t *testing.T) {
	f := newFixture(t)

	res, err := f.create.Execute(context.Background(), CreateOrderInput{Checkout: cart("phonepe", CartLine{"lamp", 2})})
	require.NoError(t, err)

	assert.Nil(t, res.Intent)
	assert.Equal(t, domain.StatusPending, res.Status)
	assert.Equal(t, domain.PaymentPending, res.PaymentStatus)
	assert.Equal(t, f.now.Add(domain.ExpiryWindow), res.ExpiresAt)
	assert.Equal(t, "ORD-20240501-1", res.OrderCode)
	assert.True(t, res.Summary.FinalTotal.Equal(decimal.RequireFromString("90")))
	assert.Equal(t, 3, f.stock(t, "lamp"))
	assert.Equal(t, 1, f.queue.Len())
	assert.Equal(t, []string{domain.EventCreated}, f.events.names())

	stored, err := f.orders.Get(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "lamp", stored.Items[0].Name)
	assert.False(t, stored.Buyer.Registered)
}

func TestCreateGatewayOrderOpensIntentForFinalTotal(t *testing.T) {
	f := newFixture(t)
	c := cart("razorpay", CartLine{"lamp", 1}, CartLine{"mug", 1})
	c.DiscountAmount = decimal.RequireFromString("2.5")

	res, err := f.create.Execute(context.Background(), CreateOrderInput{Checkout: c})
	require.NoError(t, err)
	require.NotNil(t, res.Intent)
	assert.Equal(t, int64(6000), res.Intent.Amount)
	assert.Equal(t, "INR", res.Intent.Currency)
	assert.Equal(t, "receipt_"+res.OrderCode, res.Intent.Receipt)

	stored, err := f.orders.GetByIntent(context.Background(), res.Intent.ID)
	require.NoError(t, err)
	assert.Equal(t, res.OrderID, stored.ID)
}

func TestCreateFreezesRegisteredBuyerContact(t *testing.T) {
	f := newFixture(t)
	c := cart("phonepe", CartLine{"lamp", 1})
	c.UserID = "u1"

	res, err := f.create.Execute(context.Background(), CreateOrderInput{Checkout: c})
	require.NoError(t, err)
	stored, err := f.orders.Get(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.True(t, stored.Buyer.Registered)
	assert.Equal(t, "asha@example.com", stored.Buyer.Contact().Email)

	c.UserID = "ghost"
	res, err = f.create.Execute(context.Background(), CreateOrderInput{Checkout: c})
	require.NoError(t, err, "unknown accounts fall back to guest details")
	stored, err = f.orders.Get(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.False(t, stored.Buyer.Registered)

	c.Guest = nil
	_, err = f.create.Execute(context.Background(), CreateOrderInput{Checkout: c})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateRejectsInvalidCheckoutsBeforeReserving(t *testing.T) {
	f := newFixture(t)
	cases := map[string]func(*Checkout){
		"empty cart":     func(c *Checkout) { c.Items = nil },
		"no address":     func(c *Checkout) { c.Address = nil },
		"partial addr":   func(c *Checkout) { c.Address = &domain.Address{City: "Pune"} },
		"no method":      func(c *Checkout) { c.PaymentMethod = " " },
		"unknown method": func(c *Checkout) { c.PaymentMethod = "cod" },
		"zero qty":       func(c *Checkout) { c.Items[0].Quantity = 0 },
		"negative price": func(c *Checkout) { c.TotalPrice = decimal.NewFromInt(-1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := cart("phonepe", CartLine{"lamp", 1})
			mutate(&c)
			_, err := f.create.Execute(context.Background(), CreateOrderInput{Checkout: c})
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, 5, f.stock(t, "lamp"))
		})
	}
}

func TestCreateCompensatesWhenLaterLineIsShort(t *testing.T) {
	f := newFixture(t)

	_, err := f.create.Execute(context.Background(), CreateOrderInput{
		Checkout: cart("phonepe", CartLine{"lamp", 2}, CartLine{"mug", 3}),
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 5, f.stock(t, "lamp"))
	assert.Equal(t, 1, f.stock(t, "mug"))

	all, err := f.orders.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Zero(t, f.queue.Len())
}

func TestCreateUnknownProductIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.create.Execute(context.Background(), CreateOrderInput{Checkout: cart("phonepe", CartLine{"desk", 1})})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateReleasesStockWhenGatewayFails(t *testing.T) {
	f := newFixture(t)
	f.deps.Gateway = failingGateway{err: errors.New("503 from gateway")}
	f.rebuild()

	_, err := f.create.Execute(context.Background(), CreateOrderInput{Checkout: cart("razorpay", CartLine{"lamp", 2})})
	assert.ErrorIs(t, err, ErrGateway)
	assert.Equal(t, 5, f.stock(t, "lamp"))

	all, err := f.orders.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.events.names())
}

func TestCreateContinuesFromLatestCodeWhenSequencerFails(t *testing.T) {
	f := newFixture(t)
	f.deps.Sequencer = brokenSequencer{}
	f.rebuild()

	first, err := f.create.Execute(context.Background(), CreateOrderInput{Checkout: cart("phonepe", CartLine{"lamp", 1})})
	require.NoError(t, err)
	second, err := f.create.Execute(context.Background(), CreateOrderInput{Checkout: cart("phonepe", CartLine{"lamp", 1})})
	require.NoError(t, err)

	assert.Equal(t, "ORD-20240501-1", first.OrderCode)
	assert.Equal(t, "ORD-20240501-2", second.OrderCode)
	assert.Equal(t, 3, f.stock(t, "lamp"))
}

func TestConcurrentCreatesNeverOversell(t *testing.T) {
	f := newFixture(t)
	var wg sync.WaitGroup
	var mu sync.Mutex
	okCount := 0
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.create.Execute(context.Background(), CreateOrderInput{Checkout: cart("phonepe", CartLine{"lamp", 1})})
			if err == nil {
				mu.Lock()
				okCount++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientStock)
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, okCount)
	assert.Equal(t, 0, f.stock(t, "lamp"))
}

func (f *fixture) gatewayOrder(t *testing.T) (*CreateOrderResult, Checkout) {
	t.Helper()
	c := cart("razorpay", CartLine{"lamp", 1})
	res, err := f.create.Execute(context.Background(), CreateOrderInput{Checkout: c})
	require.NoError(t, err)
	return res, c
}

func proof(c Checkout, intentID, paymentID string) ConfirmPaymentInput {
	return ConfirmPaymentInput{
		Checkout:  c,
		IntentID:  intentID,
		PaymentID: paymentID,
		Signature: dompayment.Sign(secret, intentID, paymentID),
	}
}

func TestConfirmPaymentMarksOrderPaidOnce(t *testing.T) {
	f := newFixture(t)
	created, c := f.gatewayOrder(t)

	res, err := f.confirm.Execute(context.Background(), proof(c, created.Intent.ID, "pay_1"))
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, created.OrderCode, res.OrderCode)

	again, err := f.confirm.Execute(context.Background(), proof(c, created.Intent.ID, "pay_1"))
	require.NoError(t, err)
	assert.True(t, again.Replayed)

	_, err = f.confirm.Execute(context.Background(), proof(c, created.Intent.ID, "pay_2"))
	assert.ErrorIs(t, err, ErrOrderNotPending)

	stored, err := f.orders.Get(context.Background(), created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, domain.StatusProcessing, stored.Status)
	assert.Equal(t, "pay_1", stored.TransactionID)
	assert.Equal(t, 4, f.stock(t, "lamp"), "confirmation never reserves again")
	assert.Equal(t, []string{domain.EventCreated, domain.EventConfirmed}, f.events.names())
}

func TestConfirmPaymentRejectsBadSignatureWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	created, c := f.gatewayOrder(t)

	in := proof(c, created.Intent.ID, "pay_1")
	in.Signature = dompayment.Sign("other-secret", created.Intent.ID, "pay_1")
	_, err := f.confirm.Execute(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	stored, err := f.orders.Get(context.Background(), created.OrderID)
	require.NoError(t, err)
	assert.True(t, stored.AwaitingPayment())
}

func TestConfirmPaymentCrossChecksAmount(t *testing.T) {
	f := newFixture(t)
	created, c := f.gatewayOrder(t)

	c.ShippingCharges = decimal.Zero
	_, err := f.confirm.Execute(context.Background(), proof(c, created.Intent.ID, "pay_1"))
	assert.ErrorIs(t, err, ErrValidation)

	// Proofs without a cart carry no totals and are applied as is.
	_, err = f.confirm.Execute(context.Background(), proof(Checkout{}, created.Intent.ID, "pay_1"))
	require.NoError(t, err)
}

func TestConfirmPaymentAfterExpiryIsRejected(t *testing.T) {
	f := newFixture(t)
	created, c := f.gatewayOrder(t)

	f.now = created.ExpiresAt.Add(time.Second)
	exp, err := f.expire.Execute(context.Background(), ExpireOrderInput{OrderID: created.OrderID})
	require.NoError(t, err)
	require.True(t, exp.Expired)

	_, err = f.confirm.Execute(context.Background(), proof(c, created.Intent.ID, "pay_1"))
	assert.ErrorIs(t, err, ErrOrderNotPending)
	assert.Equal(t, 5, f.stock(t, "lamp"))
}

func TestConfirmPaymentWithoutPendingOrderCreatesPaidOrder(t *testing.T) {
	f := newFixture(t)
	c := cart("razorpay", CartLine{"lamp", 2})

	res, err := f.confirm.Execute(context.Background(), proof(c, "order_external_1", "pay_9"))
	require.NoError(t, err)

	stored, err := f.orders.GetByIntent(context.Background(), "order_external_1")
	require.NoError(t, err)
	assert.Equal(t, res.OrderID, stored.ID)
	assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)
	assert.True(t, stored.ExpiresAt.IsZero())
	assert.Equal(t, 3, f.stock(t, "lamp"))

	again, err := f.confirm.Execute(context.Background(), proof(c, "order_external_1", "pay_9"))
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, 3, f.stock(t, "lamp"))

	_, err = f.confirm.Execute(context.Background(), proof(Checkout{}, "order_external_2", "pay_10"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestExpireCancelsOnceAndRestoresStockOnce(t *testing.T) {
	f := newFixture(t)
	created, err := f.create.Execute(context.Background(), CreateOrderInput{Checkout: cart("phonepe", CartLine{"lamp", 3})})
	require.NoError(t, err)
	require.Equal(t, 2, f.stock(t, "lamp"))

	res, err := f.expire.Execute(context.Background(), ExpireOrderInput{OrderID: created.OrderID})
	require.NoError(t, err)
	assert.False(t, res.Expired, "not due yet")

	f.now = created.ExpiresAt
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := f.expire.Execute(context.Background(), ExpireOrderInput{OrderID: created.OrderID})
			if assert.NoError(t, err) && r.Expired {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 5, f.stock(t, "lamp"))
	stored, err := f.orders.Get(context.Background(), created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, stored.Status)
	assert.Equal(t, domain.PaymentFailed, stored.PaymentStatus)
}

func TestConfirmAndExpireRaceHasOneWinner(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture(t)
		created, c := f.gatewayOrder(t)
		f.now = created.ExpiresAt.Add(time.Second)

		var (
			wg         sync.WaitGroup
			confirmErr error
			expired    *ExpireOrderResult
			expireErr  error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, confirmErr = f.confirm.Execute(context.Background(), proof(c, created.Intent.ID, "pay_1"))
		}()
		go func() {
			defer wg.Done()
			expired, expireErr = f.expire.Execute(context.Background(), ExpireOrderInput{OrderID: created.OrderID})
		}()
		wg.Wait()

		require.NoError(t, expireErr)
		stored, err := f.orders.Get(context.Background(), created.OrderID)
		require.NoError(t, err)

		if expired.Expired {
			assert.ErrorIs(t, confirmErr, ErrOrderNotPending)
			assert.Equal(t, domain.StatusCanceled, stored.Status)
			assert.Equal(t, 5, f.stock(t, "lamp"))
		} else {
			assert.NoError(t, confirmErr)
			assert.Equal(t, domain.PaymentPaid, stored.PaymentStatus)
			assert.Equal(t, 4, f.stock(t, "lamp"))
		}
	}
}

func TestExpireLeavesPaidOrdersAlone(t *testing.T) {
	f := newFixture(t)
	created, c := f.gatewayOrder(t)
	_, err := f.confirm.Execute(context.Background(), proof(c, created.Intent.ID, "pay_1"))
	require.NoError(t, err)

	f.now = created.ExpiresAt.Add(time.Hour)
	res, err := f.expire.Execute(context.Background(), ExpireOrderInput{OrderID: created.OrderID})
	require.NoError(t, err)
	assert.False(t, res.Expired)
	assert.Equal(t, domain.StatusProcessing, res.Status)
	assert.Equal(t, 4, f.stock(t, "lamp"))

	_, err = f.expire.Execute(context.Background(), ExpireOrderInput{OrderID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPublishFailuresAreLoggedWithOrderContext(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zapcore.InfoLevel)
	f.tel = infraobs.New(nil, zaplogger.Wrap(zap.New(core)), nil, nil)
	f.deps.Publisher = failingPublisher{}
	f.rebuild()

	created, c := f.gatewayOrder(t)
	_, err := f.confirm.Execute(context.Background(), proof(c, created.Intent.ID, "pay_1"))
	require.NoError(t, err)
	_, err = f.fulfill.Execute(context.Background(), UpdateFulfillmentInput{OrderID: created.OrderID, Status: "Shipped"})
	require.NoError(t, err)

	direct, err := f.create.Execute(context.Background(), CreateOrderInput{Checkout: cart("phonepe", CartLine{"lamp", 1})})
	require.NoError(t, err)
	f.now = direct.ExpiresAt
	res, err := f.expire.Execute(context.Background(), ExpireOrderInput{OrderID: direct.OrderID})
	require.NoError(t, err)
	require.True(t, res.Expired)

	failures := logs.FilterMessage("use_case_done").FilterFieldKey("event_publish_error").All()
	require.Len(t, failures, 5)
	for _, e := range failures {
		fields := e.ContextMap()
		assert.Equal(t, "bus closed", fields["event_publish_error"])
		assert.Contains(t, []any{created.OrderID, direct.OrderID}, fields["order_id"])
	}
}

func TestUpdateFulfillment(t *testing.T) {
	f := newFixture(t)
	created, c := f.gatewayOrder(t)

	_, err := f.fulfill.Execute(context.Background(), UpdateFulfillmentInput{OrderID: created.OrderID, Status: "Shipped"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.confirm.Execute(context.Background(), proof(c, created.Intent.ID, "pay_1"))
	require.NoError(t, err)

	_, err = f.fulfill.Execute(context.Background(), UpdateFulfillmentInput{OrderID: created.OrderID, Status: "Canceled"})
	assert.ErrorIs(t, err, ErrValidation)

	o, err := f.fulfill.Execute(context.Background(), UpdateFulfillmentInput{
		OrderID: created.OrderID, Status: "Shipped", Courier: "BlueDart", TrackingID: "TRK1",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, o.Status)
	assert.Equal(t, "TRK1", o.TrackingID)

	_, err = f.fulfill.Execute(context.Background(), UpdateFulfillmentInput{OrderID: created.OrderID, Status: "Processing"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.fulfill.Execute(context.Background(), UpdateFulfillmentInput{OrderID: "missing", Status: "Shipped"})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Contains(t, f.events.names(), domain.EventFulfillmentUpdated)
}

func TestQueries(t *testing.T) {
	f := newFixture(t)
	c := cart("phonepe", CartLine{"lamp", 1}, CartLine{"mug", 1})
	c.UserID = "u1"
	created, err := f.create.Execute(context.Background(), CreateOrderInput{Checkout: c})
	require.NoError(t, err)

	mine, err := f.queries.MyOrders(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, mine.Orders, 1)
	assert.Equal(t, "lamp.jpg", mine.Images["lamp"])
	assert.Equal(t, FallbackImage, mine.Images["mug"])

	_, err = f.queries.MyOrders(context.Background(), "u2")
	assert.ErrorIs(t, err, ErrNotFound)

	tracked, err := f.queries.TrackOrders(context.Background(), TrackOrdersInput{Email: "asha@example.com", Phone: "111"})
	require.NoError(t, err)
	assert.Len(t, tracked, 1)

	_, err = f.queries.TrackOrders(context.Background(), TrackOrdersInput{
		Email: "asha@example.com", Phone: "111", OrderCode: "ORD-20240501-99",
	})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.queries.TrackOrders(context.Background(), TrackOrdersInput{Email: "asha@example.com"})
	assert.ErrorIs(t, err, ErrValidation)

	byCode, err := f.queries.GetOrderByCode(context.Background(), created.OrderCode)
	require.NoError(t, err)
	assert.Equal(t, created.OrderID, byCode.ID)

	_, err = f.queries.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
