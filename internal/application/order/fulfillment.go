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

const useCaseFulfillment = "order.update_fulfillment"

type UpdateFulfillmentInput struct {
	OrderID    string
	Status     string
	Courier    string
	TrackingID string
}

// UpdateFulfillmentUseCase applies operator status/tracking updates to paid orders.
type UpdateFulfillmentUseCase struct {
	deps Deps
	kit  instrument.Kit
}

func NewUpdateFulfillmentUseCase(deps Deps, tel observability.Observability) *UpdateFulfillmentUseCase {
	return &UpdateFulfillmentUseCase{
		deps: deps.withDefaults(),
		kit:  instrument.New(tel, orderService),
	}
}

func (uc *UpdateFulfillmentUseCase) Execute(ctx context.Context, cmd UpdateFulfillmentInput) (_ *domain.Order, err error) {
	ctx, run := uc.kit.Start(ctx, useCaseFulfillment, "UpdateFulfillment",
		attribute.String("order.id", cmd.OrderID),
		attribute.String("order.next_status", cmd.Status),
	)
	defer func() {
		run.With(
			observability.F("order_id", cmd.OrderID),
			observability.F("next_status", cmd.Status),
		)
		if err != nil {
			run.Fail(statusFor(err))
		}
		run.End(err)
	}()

	if cmd.OrderID == "" {
		return nil, newValidation("order id is required")
	}
	next := domain.Status(cmd.Status)
	switch next {
	case domain.StatusProcessing, domain.StatusShipped, domain.StatusDelivered:
	default:
		return nil, newValidation(fmt.Sprintf("status %q cannot be set by an operator", cmd.Status))
	}

	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		o, gerr := uc.deps.Orders.Get(ctx, cmd.OrderID)
		if errors.Is(gerr, domain.ErrNotFound) {
			return nil, ErrNotFound
		}
		if gerr != nil {
			return nil, classify(gerr)
		}
		if aerr := o.AdvanceFulfillment(next, cmd.Courier, cmd.TrackingID, uc.deps.Clock()); aerr != nil {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
		}
		uerr := uc.deps.Orders.Update(ctx, o)
		if errors.Is(uerr, domain.ErrConflict) {
			continue
		}
		if uerr != nil {
			return nil, classify(uerr)
		}
		if pubErr := uc.kit.Publish(ctx, uc.deps.Publisher, domain.NewFulfillmentEvent(o)); pubErr != nil {
			run.With(observability.F("event_publish_error", pubErr.Error()))
		}
		return o, nil
	}
	return nil, fmt.Errorf("%w: fulfillment update kept racing with concurrent updates", ErrPersistence)
}
