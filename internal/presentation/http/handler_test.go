package httppresentation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appinventory "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/inventory"
	apporder "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/order"
	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	testSecret   = "whsec_test"
	testOperator = "ops-token"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type server struct {
	router http.Handler
	inv    *memory.InventoryRepository
	orders *memory.OrderRepository
}

func newServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()
	inv := memory.NewInventoryRepository()
	p, err := dominv.NewProduct("p1", "Desk Lamp", decimal.NewFromInt(40), 5)
	require.NoError(t, err)
	p.Image = "lamp.jpg"
	require.NoError(t, inv.Save(ctx, p))

	orders := memory.NewOrderRepository()
	buyers := memory.NewBuyerDirectory()
	require.NoError(t, buyers.Put(ctx, "u1", domain.Contact{Name: "Asha", Email: "asha@example.com", Phone: "9000000001"}))

	deps := apporder.Deps{
		Orders:        orders,
		Reserver:      appinventory.NewReserveItemsUseCase(inv, nil, nil),
		Restorer:      appinventory.NewRestoreItemsUseCase(inv, nil, nil),
		Gateway:       payment.NewSandbox(testSecret, 1),
		Sequencer:     memory.NewCodeSequencer(orders),
		Buyers:        buyers,
		Expiry:        memory.NewExpiryQueue(),
		IDs:           id.NewUUIDGenerator(),
		Clock:         func() time.Time { return time.Now().UTC() },
		Currency:      "INR",
		SigningSecret: testSecret,
	}
	h := NewHandler(Services{
		Create:  apporder.NewCreateOrderUseCase(deps, nil),
		Confirm: apporder.NewConfirmPaymentUseCase(deps, nil),
		Fulfill: apporder.NewUpdateFulfillmentUseCase(deps, nil),
		Queries: apporder.NewQueryService(orders, inv, nil),
	}, Options{OperatorToken: testOperator, GatewayKey: "rzp_test_key"}, nil)

	return &server{router: h.Router(), inv: inv, orders: orders}
}

func (s *server) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *server) stock(t *testing.T) int {
	p, err := s.inv.Get(context.Background(), "p1")
	require.NoError(t, err)
	return p.Stock
}

func checkout(method string, qty int) map[string]any {
	return map[string]any{
		"cartItems": []map[string]any{{"productId": "p1", "quantity": qty}},
		"shippingAddress": map[string]string{
			"street": "12 MG Road", "city": "Pune", "state": "MH", "zipcode": "411001", "country": "IN",
		},
		"paymentMethod":   method,
		"userInfo":        map[string]string{"name": "Ravi", "email": "ravi@example.com", "phone": "9000000002"},
		"totalPrice":      40 * qty,
		"discountAmount":  0,
		"shippingCharges": 0,
		"appliedCoupons":  []string{},
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateOrderDirectPaymentReservesStock(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/orders/create-order", checkout("phonepe", 2), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[directOrderResponse](t, rec)
	assert.Equal(t, "Order created successfully", resp.Message)
	assert.Regexp(t, `^ORD-\d{8}-\d+$`, resp.OrderID)
	assert.False(t, resp.ExpiresAt.IsZero())
	assert.Equal(t, 3, s.stock(t))
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestCreateOrderGatewayReturnsIntent(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/api/orders/create-order", checkout("razorpay", 1), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[gatewayOrderResponse](t, rec)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.RazorpayOrderID)
	assert.Equal(t, int64(4000), resp.Amount)
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, "rzp_test_key", resp.Key)
	assert.Equal(t, json.Number("40.00"), resp.OrderDetails.FinalTotal)
	assert.Equal(t, 4, s.stock(t))
}

func TestCreateOrderRejectsBadInput(t *testing.T) {
	s := newServer(t)

	empty := checkout("phonepe", 1)
	empty["cartItems"] = []map[string]any{}
	rec := s.do(t, http.MethodPost, "/api/orders/create-order", empty, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/orders/create-order", checkout("cash", 1), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/orders/create-order", checkout("phonepe", 6), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 5, s.stock(t))
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	s := newServer(t)
	created := decode[gatewayOrderResponse](t, s.do(t, http.MethodPost, "/api/orders/create-order", checkout("razorpay", 1), nil))

	body := checkout("razorpay", 1)
	body["razorpayOrderId"] = created.RazorpayOrderID
	body["razorpayPaymentId"] = "pay_001"
	body["razorpaySignature"] = dompayment.Sign(testSecret, created.RazorpayOrderID, "pay_001")

	rec := s.do(t, http.MethodPost, "/api/orders/confirm-payment", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[messageResponse](t, rec)

	rec = s.do(t, http.MethodPost, "/api/orders/confirm-payment", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, first.OrderID, decode[messageResponse](t, rec).OrderID)

	o, err := s.orders.GetByCode(context.Background(), first.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, domain.StatusProcessing, o.Status)
	assert.Equal(t, 4, s.stock(t))
}

func TestConfirmPaymentRejectsForgedSignature(t *testing.T) {
	s := newServer(t)
	created := decode[gatewayOrderResponse](t, s.do(t, http.MethodPost, "/api/orders/create-order", checkout("razorpay", 1), nil))

	body := checkout("razorpay", 1)
	body["razorpayOrderId"] = created.RazorpayOrderID
	body["razorpayPaymentId"] = "pay_001"
	body["razorpaySignature"] = dompayment.Sign("wrong", created.RazorpayOrderID, "pay_001")

	rec := s.do(t, http.MethodPost, "/api/orders/confirm-payment", body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	o, err := s.orders.GetByIntent(context.Background(), created.RazorpayOrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, o.PaymentStatus)
}

func TestTrackOrderMatchesContactAndCode(t *testing.T) {
	s := newServer(t)
	created := decode[directOrderResponse](t, s.do(t, http.MethodPost, "/api/orders/create-order", checkout("phonepe", 1), nil))
	s.do(t, http.MethodPost, "/api/orders/create-order", checkout("phonepe", 1), nil)

	rec := s.do(t, http.MethodPost, "/api/orders/track-order", map[string]string{
		"email": "ravi@example.com", "phone": "9000000002",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ordersResponse](t, rec).Orders, 2)

	rec = s.do(t, http.MethodPost, "/api/orders/track-order", map[string]string{
		"email": "ravi@example.com", "phone": "9000000002", "orderId": created.OrderID,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[ordersResponse](t, rec).Orders
	require.Len(t, got, 1)
	assert.Equal(t, created.OrderID, got[0].OrderID)
	assert.Equal(t, notAvailable, got[0].TrackingID)
	raw := decode[map[string][]map[string]any](t, rec)["orders"]
	require.Len(t, raw, 1)
	assert.NotContains(t, raw[0], "_id")
	assert.NotContains(t, raw[0], "paymentIntentId")

	rec = s.do(t, http.MethodPost, "/api/orders/track-order", map[string]string{"email": "ravi@example.com"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/orders/track-order", map[string]string{
		"email": "nobody@example.com", "phone": "1",
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMyOrdersRequiresUserAndAttachesImages(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/api/orders/my-orders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/orders/my-orders", nil, map[string]string{headerUserID: "u1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/orders/create-order", checkout("phonepe", 1), map[string]string{headerUserID: "u1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/orders/my-orders", nil, map[string]string{headerUserID: "u1"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[ordersResponse](t, rec).Orders
	require.Len(t, got, 1)
	assert.Equal(t, "asha@example.com", got[0].Email)
	require.Len(t, got[0].OrderItems, 1)
	assert.Equal(t, "lamp.jpg", got[0].OrderItems[0].Image)
	assert.NotContains(t, decode[map[string][]map[string]any](t, rec)["orders"][0], "_id")
}

func TestDashboardRequiresOperatorToken(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/api/dashboard/all-orders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/dashboard/all-orders", nil, map[string]string{headerOperatorToken: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/dashboard/all-orders", nil, map[string]string{headerOperatorToken: testOperator})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]operatorOrderDTO](t, rec))
}

func TestDashboardFulfillmentMovesForwardOnly(t *testing.T) {
	s := newServer(t)
	ops := map[string]string{headerOperatorToken: testOperator}
	created := decode[gatewayOrderResponse](t, s.do(t, http.MethodPost, "/api/orders/create-order", checkout("razorpay", 1), nil))

	o, err := s.orders.GetByIntent(context.Background(), created.RazorpayOrderID)
	require.NoError(t, err)

	rec := s.do(t, http.MethodPatch, "/api/dashboard/order/"+o.ID+"/status", map[string]string{"status": "Shipped"}, ops)
	assert.Equal(t, http.StatusConflict, rec.Code, "unpaid orders cannot ship")

	body := checkout("razorpay", 1)
	body["razorpayOrderId"] = created.RazorpayOrderID
	body["razorpayPaymentId"] = "pay_002"
	body["razorpaySignature"] = dompayment.Sign(testSecret, created.RazorpayOrderID, "pay_002")
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/orders/confirm-payment", body, nil).Code)

	rec = s.do(t, http.MethodPatch, "/api/dashboard/order/"+o.ID+"/status", map[string]string{
		"status": "Shipped", "trackingId": "TRK1", "courierPartner": "BlueDart",
	}, ops)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[updateStatusResponse](t, rec)
	assert.Equal(t, "Shipped", updated.Order.OrderStatus)
	assert.Equal(t, "TRK1", updated.Order.TrackingID)

	rec = s.do(t, http.MethodPatch, "/api/dashboard/order/"+o.ID+"/status", map[string]string{"status": "Processing"}, ops)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/dashboard/order/"+o.ID+"/status", map[string]string{"status": "Lost"}, ops)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/dashboard/order-by-orderid/"+o.Code, nil, ops)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BlueDart", decode[operatorOrderDTO](t, rec).CourierPartner)

	rec = s.do(t, http.MethodGet, "/api/dashboard/order/missing", nil, ops)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
