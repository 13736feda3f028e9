package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	appinventory "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/inventory"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application/instrument"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	dompayment "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	orderService          = "order-service"
	useCaseOrderCreate    = "order.create"
	gatewayPeer           = "payment_gateway"
	gatewayEndpointIntent = "create_intent"
)

// Deps are the collaborators shared by the order use cases. Nil optional fields fall back to no-ops.
type Deps struct {
	Orders    domain.Repository
	Tx        domain.Transactor
	Reserver  StockReserver
	Restorer  StockRestorer
	Gateway   dompayment.Gateway
	Sequencer domain.CodeSequencer
	Buyers    BuyerDirectory
	Expiry    ExpiryQueue
	IDs       IDGenerator
	Publisher domoutbox.Publisher
	Clock     Clock
	// Currency is sent with every payment intent.
	Currency string
	// SigningSecret verifies gateway payment proofs.
	SigningSecret string
}

func (d Deps) withDefaults() Deps {
	if d.Tx == nil {
		d.Tx = directTx{}
	}
	if d.Clock == nil {
		d.Clock = systemClock
	}
	if d.Currency == "" {
		d.Currency = "INR"
	}
	return d
}

type directTx struct{}

func (directTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type CreateOrderInput struct {
	Checkout
}

// OrderSummary echoes the stored money breakdown back to the buyer.
type OrderSummary struct {
	OrderCode       string
	TotalPrice      decimal.Decimal
	DiscountAmount  decimal.Decimal
	ShippingCharges decimal.Decimal
	FinalTotal      decimal.Decimal
	AppliedCoupons  []string
}

type CreateOrderResult struct {
	OrderID       string
	OrderCode     string
	Status        domain.Status
	PaymentStatus domain.PaymentStatus
	ExpiresAt     time.Time
	// Intent is set only for gateway-mediated payment methods.
	Intent  *dompayment.Intent
	Summary OrderSummary
}

// CreateOrderUseCase turns a cart into a Pending/Pending order holding reserved stock.
// Both payment paths reserve, persist and schedule expiry the same way; gateway methods also open a payment intent.
type CreateOrderUseCase struct {
	deps Deps
	kit  instrument.Kit
}

func NewCreateOrderUseCase(deps Deps, tel observability.Observability) *CreateOrderUseCase {
	return &CreateOrderUseCase{
		deps: deps.withDefaults(),
		kit:  instrument.New(tel, orderService),
	}
}

func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *CreateOrderResult, err error) {
	ctx, run := uc.kit.Start(ctx, useCaseOrderCreate, "CreateOrder",
		attribute.String("order.payment_method", cmd.PaymentMethod),
		attribute.Int("cart.lines", len(cmd.Items)),
	)
	var created *domain.Order
	defer func() {
		if created != nil {
			run.With(
				observability.F("order_id", created.ID),
				observability.F("order_code", created.Code),
				observability.F("payment_method", string(created.PaymentMethod)),
			)
		}
		if err != nil {
			run.Fail(statusFor(err))
		}
		run.End(err)
	}()

	v, err := cmd.validate()
	if err != nil {
		return nil, err
	}
	buyer, err := resolveBuyer(ctx, uc.deps.Buyers, cmd.Checkout)
	if err != nil {
		return nil, err
	}

	now := uc.deps.Clock()
	orderID := uc.deps.IDs.NewID()
	var intent *dompayment.Intent

	err = uc.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		res, rerr := uc.deps.Reserver.Execute(ctx, appinventory.ReserveItemsInput{Reference: orderID, Lines: v.lines})
		if rerr != nil {
			return classify(rerr)
		}
		persisted := false
		defer func() {
			if !persisted {
				release(ctx, uc.deps.Restorer, orderID, linesFromReservations(res.Reservations), run.Logger())
			}
		}()

		items, ierr := itemsFromReservations(res.Reservations)
		if ierr != nil {
			return classify(ierr)
		}

		code, cerr := allocateCode(ctx, uc.deps.Sequencer, uc.deps.Orders, now)
		if cerr != nil {
			run.Logger().Warn("order_code_fallback",
				observability.F("order_id", orderID),
				observability.F("order_code", code),
				observability.F("error", cerr.Error()),
			)
		}

		o, berr := domain.New(domain.Draft{
			ID:            orderID,
			Code:          code,
			Buyer:         buyer,
			Items:         items,
			Address:       v.address,
			PaymentMethod: v.method,
			Pricing:       v.pricing,
			CreatedAt:     now,
		})
		if berr != nil {
			return classify(berr)
		}

		if o.PaymentMethod.GatewayMediated() {
			in, gerr := uc.createIntent(ctx, o)
			if gerr != nil {
				return gerr
			}
			o.PaymentIntentID = in.ID
			intent = &in
		}

		if ierr := uc.insert(ctx, o); ierr != nil {
			return ierr
		}
		persisted = true
		created = o
		return nil
	})
	if err != nil {
		created = nil
		return nil, classify(err)
	}

	// The store sweep reconciles from ExpiresAt if scheduling fails, so this is not fatal.
	if serr := uc.scheduleExpiry(ctx, created); serr != nil {
		run.Status("EXPIRY_SCHEDULE_FAILED")
		run.Logger().Warn("expiry_schedule_failed",
			observability.F("order_id", created.ID),
			observability.F("error", serr.Error()),
		)
	}

	if pubErr := uc.kit.Publish(ctx, uc.deps.Publisher, domain.NewCreatedEvent(created)); pubErr != nil {
		run.With(observability.F("event_publish_error", pubErr.Error()))
	}

	run.SetAttributes(attribute.String("order.status", string(created.Status)))
	run.Event("order.created", attribute.String("order.id", created.ID))

	return &CreateOrderResult{
		OrderID:       created.ID,
		OrderCode:     created.Code,
		Status:        created.Status,
		PaymentStatus: created.PaymentStatus,
		ExpiresAt:     created.ExpiresAt,
		Intent:        intent,
		Summary:       summaryOf(created),
	}, nil
}

func (uc *CreateOrderUseCase) createIntent(ctx context.Context, o *domain.Order) (dompayment.Intent, error) {
	if uc.deps.Gateway == nil {
		return dompayment.Intent{}, fmt.Errorf("%w: no gateway configured", ErrGateway)
	}
	amount := domain.MinorUnits(o.Pricing.FinalTotal)
	start := time.Now()
	in, err := uc.deps.Gateway.CreateIntent(ctx, dompayment.IntentRequest{
		Amount:   amount,
		Currency: uc.deps.Currency,
		Receipt:  "receipt_" + o.Code,
	})
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	uc.kit.External(gatewayPeer, gatewayEndpointIntent, outcome, start)
	if err != nil {
		return dompayment.Intent{}, fmt.Errorf("%w: %w", ErrGateway, err)
	}
	if in.ID == "" || in.Amount != amount {
		return dompayment.Intent{}, fmt.Errorf("%w: intent %q billed %d, expected %d", ErrGateway, in.ID, in.Amount, amount)
	}
	return in, nil
}

// insert retries once with a fresh code when the human readable code collides.
func (uc *CreateOrderUseCase) insert(ctx context.Context, o *domain.Order) error {
	err := uc.deps.Orders.Insert(ctx, o)
	if errors.Is(err, domain.ErrConflict) {
		if code, _ := allocateCode(ctx, uc.deps.Sequencer, uc.deps.Orders, o.CreatedAt); code != o.Code {
			o.Code = code
			err = uc.deps.Orders.Insert(ctx, o)
		}
	}
	if err != nil {
		return fmt.Errorf("%w: insert order: %w", ErrPersistence, err)
	}
	return nil
}

func (uc *CreateOrderUseCase) scheduleExpiry(ctx context.Context, o *domain.Order) error {
	if uc.deps.Expiry == nil {
		return nil
	}
	return uc.deps.Expiry.Schedule(ctx, o.ID, o.ExpiresAt)
}

// release returns reserved stock, ignoring caller cancellation. Failures are logged with order context.
func release(ctx context.Context, restorer StockRestorer, reference string, lines []appinventory.Line, logger observability.Logger) {
	if restorer == nil || len(lines) == 0 {
		return
	}
	if _, err := restorer.Execute(context.WithoutCancel(ctx), appinventory.RestoreItemsInput{
		Reference: reference,
		Lines:     lines,
	}); err != nil {
		logger.Error("stock_compensation_failed",
			observability.F("order_id", reference),
			observability.F("lines", len(lines)),
			observability.F("error", err.Error()),
		)
	}
}

func summaryOf(o *domain.Order) OrderSummary {
	return OrderSummary{
		OrderCode:       o.Code,
		TotalPrice:      o.Pricing.TotalPrice,
		DiscountAmount:  o.Pricing.Discount,
		ShippingCharges: o.Pricing.Shipping,
		FinalTotal:      o.Pricing.FinalTotal,
		AppliedCoupons:  append([]string(nil), o.Pricing.AppliedCoupons...),
	}
}
