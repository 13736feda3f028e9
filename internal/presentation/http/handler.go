package httppresentation

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application"
	apporder "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/order"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability/logctx"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	componentHTTPHandler = "http_server"
	headerUserID         = "X-User-ID"
	headerOperatorToken  = "X-Operator-Token"
	maxBodyBytes         = 1 << 20
)

type (
	CreateOrder       = application.UseCase[apporder.CreateOrderInput, *apporder.CreateOrderResult]
	ConfirmPayment    = application.UseCase[apporder.ConfirmPaymentInput, *apporder.ConfirmPaymentResult]
	UpdateFulfillment = application.UseCase[apporder.UpdateFulfillmentInput, *domain.Order]
)

// Queries is the read side served to buyers and operators.
type Queries interface {
	TrackOrders(ctx context.Context, in apporder.TrackOrdersInput) ([]*domain.Order, error)
	MyOrders(ctx context.Context, userID string) (*apporder.MyOrdersResult, error)
	ListOrders(ctx context.Context) ([]*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	GetOrderByCode(ctx context.Context, code string) (*domain.Order, error)
}

type Services struct {
	Create  CreateOrder
	Confirm ConfirmPayment
	Fulfill UpdateFulfillment
	Queries Queries
}

type Options struct {
	// OperatorToken guards the dashboard routes. Empty disables them.
	OperatorToken string
	// GatewayKey is the public checkout key echoed to buyers on gateway orders.
	GatewayKey string
}

type Handler struct {
	svc  Services
	opts Options
	log  observability.Logger

	tracer   trace.Tracer
	requests observability.Counter   // http_requests_total{method,route,status}
	latency  observability.Histogram // http_request_duration_seconds{method,route,status}
}

func NewHandler(svc Services, opts Options, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return &Handler{
		svc:      svc,
		opts:     opts,
		log:      tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tracer:   otel.Tracer("minishop.http"),
		requests: m.Counter(observability.MHTTPRequests),
		latency:  m.Histogram(observability.MHTTPRequestDuration),
	}
}

// Router wires every route behind trace → request logger → access log → metrics.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.withTrace, h.withRequestLogger, h.withAccessLog, h.withHTTPMetrics)

	r.Get("/health", h.handleHealth)

	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/create-order", h.handleCreateOrder)
		r.Post("/confirm-payment", h.handleConfirmPayment)
		r.Post("/track-order", h.handleTrackOrder)
		r.Get("/my-orders", h.handleMyOrders)
	})

	r.Route("/api/dashboard", func(r chi.Router) {
		r.Use(h.requireOperator)
		r.Get("/all-orders", h.handleAllOrders)
		r.Get("/order/{id}", h.handleGetOrder)
		r.Get("/order-by-orderid/{orderId}", h.handleGetOrderByCode)
		r.Patch("/order/{id}/status", h.handleUpdateStatus)
	})

	return r
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.svc.Create.Execute(r.Context(), apporder.CreateOrderInput{
		Checkout: req.toCheckout(r.Header.Get(headerUserID)),
	})
	if err != nil {
		h.writeUseCaseError(w, r, err, http.StatusConflict)
		return
	}

	if result.Intent != nil {
		writeJSON(w, http.StatusOK, gatewayOrderResponse{
			Success:         true,
			RazorpayOrderID: result.Intent.ID,
			Amount:          result.Intent.Amount,
			Currency:        result.Intent.Currency,
			Key:             h.opts.GatewayKey,
			ExpiresAt:       result.ExpiresAt,
			OrderDetails:    toDetails(result.Summary),
		})
		return
	}
	writeJSON(w, http.StatusCreated, directOrderResponse{
		Message:   "Order created successfully",
		OrderID:   result.OrderCode,
		ExpiresAt: result.ExpiresAt,
	})
}

func (h *Handler) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.svc.Confirm.Execute(r.Context(), apporder.ConfirmPaymentInput{
		Checkout:  req.toCheckout(r.Header.Get(headerUserID)),
		IntentID:  req.RazorpayOrderID,
		PaymentID: req.RazorpayPaymentID,
		Signature: req.RazorpaySignature,
	})
	if err != nil {
		h.writeUseCaseError(w, r, err, http.StatusBadRequest)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, messageResponse{Message: "Order confirmed", OrderID: result.OrderCode})
}

func (h *Handler) handleTrackOrder(w http.ResponseWriter, r *http.Request) {
	var req trackOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	orders, err := h.svc.Queries.TrackOrders(r.Context(), apporder.TrackOrdersInput{
		Email:     req.Email,
		Phone:     req.Phone,
		OrderCode: req.OrderID,
	})
	if err != nil {
		h.writeUseCaseError(w, r, err, http.StatusConflict)
		return
	}

	out := ordersResponse{Orders: make([]buyerOrderDTO, 0, len(orders))}
	for _, o := range orders {
		out.Orders = append(out.Orders, toBuyerOrder(o, nil))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleMyOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(headerUserID)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}

	result, err := h.svc.Queries.MyOrders(r.Context(), userID)
	if err != nil {
		h.writeUseCaseError(w, r, err, http.StatusConflict)
		return
	}

	out := ordersResponse{Orders: make([]buyerOrderDTO, 0, len(result.Orders))}
	for _, o := range result.Orders {
		out.Orders = append(out.Orders, toBuyerOrder(o, result.Images))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.Queries.ListOrders(r.Context())
	if err != nil {
		h.writeUseCaseError(w, r, err, http.StatusConflict)
		return
	}
	out := make([]operatorOrderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOperatorOrder(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Queries.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeUseCaseError(w, r, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, toOperatorOrder(o))
}

func (h *Handler) handleGetOrderByCode(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Queries.GetOrderByCode(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		h.writeUseCaseError(w, r, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, toOperatorOrder(o))
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	o, err := h.svc.Fulfill.Execute(r.Context(), apporder.UpdateFulfillmentInput{
		OrderID:    chi.URLParam(r, "id"),
		Status:     req.Status,
		Courier:    req.CourierPartner,
		TrackingID: req.TrackingID,
	})
	if err != nil {
		h.writeUseCaseError(w, r, err, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, updateStatusResponse{Message: "Order updated successfully", Order: toOperatorOrder(o)})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// requireOperator admits requests carrying the configured operator token.
func (h *Handler) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(headerOperatorToken)
		if h.opts.OperatorToken == "" || token == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(h.opts.OperatorToken)) != 1 {
			writeError(w, http.StatusUnauthorized, errors.New("operator token required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, messageResponse{Message: err.Error()})
}

// writeUseCaseError maps the application error taxonomy onto HTTP statuses.
// stockStatus differs per route: confirm-payment reports a stock shortfall as a bad request.
func (h *Handler) writeUseCaseError(w http.ResponseWriter, r *http.Request, err error, stockStatus int) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apporder.ErrValidation), errors.Is(err, apporder.ErrInvalidSignature):
		status = http.StatusBadRequest
	case errors.Is(err, apporder.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apporder.ErrInsufficientStock):
		status = stockStatus
	case errors.Is(err, apporder.ErrOrderNotPending), errors.Is(err, apporder.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, apporder.ErrGateway):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		logctx.FromOr(r.Context(), h.log).Error("http_request_failed",
			observability.F("route", routePattern(r)),
			observability.F("error", err.Error()),
		)
		writeError(w, status, errors.New(http.StatusText(status)))
		return
	}
	writeError(w, status, err)
}
