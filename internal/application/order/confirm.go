package order

import (
	"context"
	"errors"
	"fmt"

	appinventory "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/inventory"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application/instrument"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseOrderConfirm = "order.confirm_payment"
	maxCASAttempts      = 3
)

type ConfirmPaymentInput struct {
	Checkout
	IntentID  string
	PaymentID string
	Signature string
}

type ConfirmPaymentResult struct {
	OrderID   string
	OrderCode string
	// Replayed is true when the same proof had already been applied.
	Replayed bool
}

// ConfirmPaymentUseCase applies a gateway-signed proof of payment.
// The signature is checked before anything is read or written.
type ConfirmPaymentUseCase struct {
	deps Deps
	kit  instrument.Kit
}

func NewConfirmPaymentUseCase(deps Deps, tel observability.Observability) *ConfirmPaymentUseCase {
	return &ConfirmPaymentUseCase{
		deps: deps.withDefaults(),
		kit:  instrument.New(tel, orderService),
	}
}

func (uc *ConfirmPaymentUseCase) Execute(ctx context.Context, cmd ConfirmPaymentInput) (_ *ConfirmPaymentResult, err error) {
	ctx, run := uc.kit.Start(ctx, useCaseOrderConfirm, "ConfirmPayment",
		attribute.String("payment.intent_id", cmd.IntentID),
		attribute.String("payment.id", cmd.PaymentID),
	)
	var result *ConfirmPaymentResult
	defer func() {
		run.With(
			observability.F("intent_id", cmd.IntentID),
			observability.F("payment_id", cmd.PaymentID),
		)
		if result != nil {
			run.With(
				observability.F("order_id", result.OrderID),
				observability.F("order_code", result.OrderCode),
			)
			if result.Replayed {
				run.Status("IDEMPOTENT_REPLAY")
			}
		}
		if err != nil {
			run.Fail(statusFor(err))
		}
		run.End(err)
	}()

	proof := dompayment.Proof{IntentID: cmd.IntentID, PaymentID: cmd.PaymentID, Signature: cmd.Signature}
	if !dompayment.VerifySignature(uc.deps.SigningSecret, proof) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, dompayment.ErrInvalidSignature)
	}

	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		o, gerr := uc.deps.Orders.GetByIntent(ctx, cmd.IntentID)
		switch {
		case errors.Is(gerr, domain.ErrNotFound):
			result, err = uc.createPaid(ctx, cmd, run)
			if errors.Is(err, domain.ErrConflict) {
				// A concurrent confirmation persisted the same intent first.
				continue
			}
			return result, err
		case gerr != nil:
			return nil, classify(gerr)
		}

		result, err = uc.markPaid(ctx, o, cmd, run)
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		return result, err
	}
	return nil, fmt.Errorf("%w: confirmation kept racing with concurrent updates", ErrPersistence)
}

func (uc *ConfirmPaymentUseCase) markPaid(ctx context.Context, o *domain.Order, cmd ConfirmPaymentInput, run *instrument.Run) (*ConfirmPaymentResult, error) {
	if o.PaymentStatus == domain.PaymentPaid {
		if o.TransactionID == cmd.PaymentID {
			return &ConfirmPaymentResult{OrderID: o.ID, OrderCode: o.Code, Replayed: true}, nil
		}
		return nil, fmt.Errorf("%w: intent already settled by another payment", ErrOrderNotPending)
	}
	if !o.AwaitingPayment() {
		return nil, fmt.Errorf("%w: order %s is %s/%s", ErrOrderNotPending, o.Code, o.Status, o.PaymentStatus)
	}
	if err := crossCheckAmount(cmd.Checkout, o); err != nil {
		return nil, err
	}

	if err := o.ConfirmPayment(cmd.PaymentID, uc.deps.Clock()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOrderNotPending, err)
	}
	if err := uc.deps.Orders.Update(ctx, o); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, classify(err)
	}

	if pubErr := uc.kit.Publish(ctx, uc.deps.Publisher, domain.NewConfirmedEvent(o)); pubErr != nil {
		run.With(observability.F("event_publish_error", pubErr.Error()))
	}
	return &ConfirmPaymentResult{OrderID: o.ID, OrderCode: o.Code}, nil
}

// crossCheckAmount rejects a proof whose recomputed final total differs from what the intent billed.
// A checkout without items carries no price summary and is not compared.
func crossCheckAmount(c Checkout, o *domain.Order) error {
	if len(c.Items) == 0 {
		return nil
	}
	p, err := domain.NewPricing(c.TotalPrice, c.DiscountAmount, c.ShippingCharges, c.AppliedCoupons)
	if err != nil {
		return newValidation(err.Error())
	}
	if billed, claimed := domain.MinorUnits(o.Pricing.FinalTotal), domain.MinorUnits(p.FinalTotal); billed != claimed {
		return newValidation(fmt.Sprintf("final total %d does not match billed amount %d", claimed, billed))
	}
	return nil
}

// createPaid handles intents this service has no order for: reserve the cart and persist it as paid.
func (uc *ConfirmPaymentUseCase) createPaid(ctx context.Context, cmd ConfirmPaymentInput, run *instrument.Run) (*ConfirmPaymentResult, error) {
	v, err := cmd.validate()
	if err != nil {
		return nil, err
	}
	buyer, err := resolveBuyer(ctx, uc.deps.Buyers, cmd.Checkout)
	if err != nil {
		return nil, err
	}
	run.Logger().Info("confirm_without_pending_order",
		observability.F("intent_id", cmd.IntentID),
	)

	now := uc.deps.Clock()
	orderID := uc.deps.IDs.NewID()
	var created *domain.Order

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
		o.PaymentIntentID = cmd.IntentID
		if terr := o.ConfirmPayment(cmd.PaymentID, now); terr != nil {
			return classify(terr)
		}
		if ierr := uc.deps.Orders.Insert(ctx, o); ierr != nil {
			if errors.Is(ierr, domain.ErrConflict) {
				return ierr
			}
			return fmt.Errorf("%w: insert order: %w", ErrPersistence, ierr)
		}
		persisted = true
		created = o
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, classify(err)
	}

	if pubErr := uc.kit.Publish(ctx, uc.deps.Publisher, domain.NewConfirmedEvent(created)); pubErr != nil {
		run.With(observability.F("event_publish_error", pubErr.Error()))
	}
	return &ConfirmPaymentResult{OrderID: created.ID, OrderCode: created.Code}, nil
}
