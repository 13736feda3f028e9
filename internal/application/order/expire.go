package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application/instrument"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseOrderExpire = "order.expire"

type ExpireOrderInput struct {
	OrderID string
}

type ExpireOrderResult struct {
	// Expired is false when the order had already left Pending/Pending or is not yet due.
	Expired bool
	Status  domain.Status
}

// ExpireOrderUseCase cancels an unpaid order once its window has passed and hands its stock back.
// Stock is restored only by the caller that wins the Pending -> Canceled write, so repeated runs restore at most once.
type ExpireOrderUseCase struct {
	deps     Deps
	kit      instrument.Kit
	outcomes observability.Counter // orders_expired_total{outcome}
}

func NewExpireOrderUseCase(deps Deps, tel observability.Observability) *ExpireOrderUseCase {
	kit := instrument.New(tel, orderService)
	return &ExpireOrderUseCase{
		deps:     deps.withDefaults(),
		kit:      kit,
		outcomes: kit.Counter(observability.MOrdersExpired),
	}
}

func (uc *ExpireOrderUseCase) Execute(ctx context.Context, cmd ExpireOrderInput) (_ *ExpireOrderResult, err error) {
	ctx, run := uc.kit.Start(ctx, useCaseOrderExpire, "ExpireOrder",
		attribute.String("order.id", cmd.OrderID),
	)
	result := &ExpireOrderResult{}
	defer func() {
		outcome := "noop"
		switch {
		case err != nil:
			outcome = "error"
			run.Fail(statusFor(err))
		case result.Expired:
			outcome = "canceled"
		default:
			run.Status("NOOP")
		}
		uc.outcomes.Add(1, observability.L("outcome", outcome))
		run.With(
			observability.F("order_id", cmd.OrderID),
			observability.F("expired", result.Expired),
		)
		run.End(err)
	}()

	if cmd.OrderID == "" {
		return nil, newValidation("order id is required")
	}

	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		var canceled *domain.Order
		txErr := uc.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
			o, gerr := uc.deps.Orders.Get(ctx, cmd.OrderID)
			if gerr != nil {
				return classify(gerr)
			}
			result.Status = o.Status
			now := uc.deps.Clock()
			if !o.Expired(now) {
				return nil
			}
			if xerr := o.Expire(now); xerr != nil {
				return nil
			}
			if uerr := uc.deps.Orders.Update(ctx, o); uerr != nil {
				return uerr
			}
			// Won the transition; the stock goes back in the same unit of work when the store is transactional.
			if _, rerr := uc.deps.Restorer.Execute(ctx, restoreInput(o)); rerr != nil {
				return fmt.Errorf("%w: restore stock: %w", ErrPersistence, rerr)
			}
			canceled = o
			return nil
		})
		if errors.Is(txErr, domain.ErrConflict) {
			continue
		}
		if txErr != nil {
			return result, classify(txErr)
		}
		if canceled != nil {
			result.Expired = true
			result.Status = canceled.Status
			run.Event("order.expired", attribute.String("order.code", canceled.Code))
			if pubErr := uc.kit.Publish(ctx, uc.deps.Publisher, domain.NewExpiredEvent(canceled)); pubErr != nil {
				run.With(observability.F("event_publish_error", pubErr.Error()))
			}
		}
		return result, nil
	}
	return result, fmt.Errorf("%w: expiry kept racing with concurrent updates", ErrPersistence)
}
