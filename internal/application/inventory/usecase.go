package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/application/instrument"
	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	inventoryService   = "inventory-service"
	useCaseReserve     = "inventory.reserve"
	useCaseRestore     = "inventory.restore"
	reserveSpanName    = "ReserveItems"
	restoreSpanName    = "RestoreItems"
	outcomeReserved    = "reserved"
	outcomeRolledBack  = "rolled_back"
	outcomeCompFailure = "compensation_failed"
)

// Line is one cart line to take from, or hand back to, the ledger.
type Line struct {
	ProductID string
	Quantity  int
}

type ReserveItemsInput struct {
	// Reference ties the reservation to an order in logs and events.
	Reference string
	Lines     []Line
}

type ReserveItemsResult struct {
	Reservations []dominv.Reservation
}

// ReserveItemsUseCase reserves a whole cart or nothing.
// When line k fails, lines 1..k-1 are restored in reverse order before the error is returned.
type ReserveItemsUseCase struct {
	ledger    dominv.Ledger
	publisher domoutbox.Publisher
	kit       instrument.Kit
	outcomes  observability.Counter // stock_reservations_total{outcome}
}

func NewReserveItemsUseCase(ledger dominv.Ledger, publisher domoutbox.Publisher, tel observability.Observability) *ReserveItemsUseCase {
	kit := instrument.New(tel, inventoryService)
	return &ReserveItemsUseCase{
		ledger:    ledger,
		publisher: publisher,
		kit:       kit,
		outcomes:  kit.Counter(observability.MStockReservations),
	}
}

func (uc *ReserveItemsUseCase) Execute(ctx context.Context, cmd ReserveItemsInput) (_ *ReserveItemsResult, err error) {
	ctx, run := uc.kit.Start(ctx, useCaseReserve, reserveSpanName,
		attribute.String("order.id", cmd.Reference),
		attribute.Int("cart.lines", len(cmd.Lines)),
	)
	run.With(
		observability.F("order_id", cmd.Reference),
		observability.F("lines", len(cmd.Lines)),
	)
	defer func() { run.End(err) }()

	if len(cmd.Lines) == 0 {
		run.Fail("NO_LINES")
		return nil, dominv.ErrInvalidQuantity
	}
	for _, l := range cmd.Lines {
		if l.ProductID == "" || l.Quantity <= 0 {
			run.Fail("LINE_INVALID")
			return nil, dominv.ErrInvalidQuantity
		}
	}

	reserved := make([]dominv.Reservation, 0, len(cmd.Lines))
	for _, l := range cmd.Lines {
		res, rerr := uc.ledger.Reserve(ctx, l.ProductID, l.Quantity)
		if rerr == nil {
			reserved = append(reserved, res)
			continue
		}

		reason := failureReasonFromError(rerr)
		run.Fail("RESERVE_FAILED")
		run.With(
			observability.F("product_id", l.ProductID),
			observability.F("quantity", l.Quantity),
			observability.F("failure_reason", reason),
		)

		outcome := outcomeRolledBack
		if compErr := uc.release(ctx, cmd.Reference, reserved); compErr != nil {
			outcome = outcomeCompFailure
			run.With(observability.F("compensation_error", compErr.Error()))
		}
		uc.outcomes.Add(1, observability.L("outcome", outcome))

		if pubErr := uc.kit.Publish(ctx, uc.publisher,
			dominv.NewReservationFailedEvent(cmd.Reference, l.ProductID, l.Quantity, reason)); pubErr != nil {
			run.With(observability.F("failure_event_error", pubErr.Error()))
		}
		return nil, fmt.Errorf("inventory: reserve %s: %w", l.ProductID, rerr)
	}

	uc.outcomes.Add(1, observability.L("outcome", outcomeReserved))
	run.Event("inventory.reserved", attribute.String("order.id", cmd.Reference))
	if pubErr := uc.kit.Publish(ctx, uc.publisher, dominv.NewStockReservedEvent(cmd.Reference, len(reserved))); pubErr != nil {
		run.Status("EVENT_PUBLISH_FAILED")
		run.With(observability.F("reservation_event_error", pubErr.Error()))
	}

	return &ReserveItemsResult{Reservations: reserved}, nil
}

// release hands back reservations newest first. It ignores caller cancellation.
func (uc *ReserveItemsUseCase) release(ctx context.Context, reference string, reserved []dominv.Reservation) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for i := len(reserved) - 1; i >= 0; i-- {
		r := reserved[i]
		if err := uc.ledger.Restore(ctx, r.ProductID, r.Quantity); err != nil {
			errs = append(errs, fmt.Errorf("restore %s x%d for %s: %w", r.ProductID, r.Quantity, reference, err))
		}
	}
	return errors.Join(errs...)
}

type RestoreItemsInput struct {
	Reference string
	Lines     []Line
}

type RestoreItemsResult struct {
	Restored int
	Skipped  int
}

// RestoreItemsUseCase returns stock for every line. Products that no longer exist are skipped.
type RestoreItemsUseCase struct {
	ledger    dominv.Ledger
	publisher domoutbox.Publisher
	kit       instrument.Kit
}

func NewRestoreItemsUseCase(ledger dominv.Ledger, publisher domoutbox.Publisher, tel observability.Observability) *RestoreItemsUseCase {
	return &RestoreItemsUseCase{
		ledger:    ledger,
		publisher: publisher,
		kit:       instrument.New(tel, inventoryService),
	}
}

func (uc *RestoreItemsUseCase) Execute(ctx context.Context, cmd RestoreItemsInput) (_ *RestoreItemsResult, err error) {
	ctx, run := uc.kit.Start(ctx, useCaseRestore, restoreSpanName,
		attribute.String("order.id", cmd.Reference),
		attribute.Int("cart.lines", len(cmd.Lines)),
	)
	result := &RestoreItemsResult{}
	defer func() {
		run.With(
			observability.F("order_id", cmd.Reference),
			observability.F("restored", result.Restored),
			observability.F("skipped", result.Skipped),
		)
		run.End(err)
	}()

	var errs []error
	for _, l := range cmd.Lines {
		rerr := uc.ledger.Restore(ctx, l.ProductID, l.Quantity)
		switch {
		case rerr == nil:
			result.Restored++
		case errors.Is(rerr, dominv.ErrNotFound):
			result.Skipped++
			run.Logger().Warn("restore_skipped_missing_product",
				observability.F("order_id", cmd.Reference),
				observability.F("product_id", l.ProductID),
				observability.F("quantity", l.Quantity),
			)
		default:
			errs = append(errs, fmt.Errorf("restore %s: %w", l.ProductID, rerr))
		}
	}
	if err = errors.Join(errs...); err != nil {
		run.Fail("RESTORE_FAILED")
		return result, fmt.Errorf("inventory: %w", err)
	}

	if pubErr := uc.kit.Publish(ctx, uc.publisher, dominv.NewStockRestoredEvent(cmd.Reference, result.Restored)); pubErr != nil {
		run.Status("EVENT_PUBLISH_FAILED")
	}
	return result, nil
}

func failureReasonFromError(err error) string {
	switch {
	case errors.Is(err, dominv.ErrNotFound):
		return dominv.FailureReasonNotFound
	case errors.Is(err, dominv.ErrInsufficientStock):
		return dominv.FailureReasonInsufficientStock
	default:
		return dominv.FailureReasonPersistenceError
	}
}
