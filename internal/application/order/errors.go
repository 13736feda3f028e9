package order

import (
	"errors"
	"fmt"

	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/payment"
)

var (
	ErrValidation        = errors.New("order: validation failed")
	ErrEmptyCart         = fmt.Errorf("%w: cart is empty", ErrValidation)
	ErrNotFound          = errors.New("order: not found")
	ErrInsufficientStock = errors.New("order: insufficient stock")
	ErrInvalidSignature  = errors.New("order: invalid payment signature")
	ErrGateway           = errors.New("order: payment gateway failure")
	ErrPersistence       = errors.New("order: persistence failure")
	ErrOrderNotPending   = errors.New("order: order is no longer awaiting payment")
	ErrInvalidTransition = errors.New("order: status transition not allowed")
	ErrConflict          = domain.ErrConflict
)

func newValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// classify maps collaborator errors onto the use case taxonomy. Already classified errors pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrGateway), errors.Is(err, ErrPersistence),
		errors.Is(err, ErrOrderNotPending), errors.Is(err, ErrInvalidTransition):
		return err
	case errors.Is(err, dominv.ErrNotFound), errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, dominv.ErrInsufficientStock):
		return fmt.Errorf("%w: %w", ErrInsufficientStock, err)
	case errors.Is(err, dominv.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrTotalMismatch),
		errors.Is(err, domain.ErrNoItems),
		errors.Is(err, domain.ErrInvalidBuyer),
		errors.Is(err, domain.ErrInvalidAddress),
		errors.Is(err, domain.ErrInvalidPaymentMethod):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	case errors.Is(err, dompayment.ErrInvalidSignature):
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	case errors.Is(err, dompayment.ErrGateway):
		return fmt.Errorf("%w: %w", ErrGateway, err)
	default:
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
}

// statusFor is the low-cardinality status text recorded on the span and log line.
func statusFor(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_FAILED"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, ErrInvalidSignature):
		return "SIGNATURE_MISMATCH"
	case errors.Is(err, ErrGateway):
		return "GATEWAY_FAILED"
	case errors.Is(err, ErrOrderNotPending):
		return "ORDER_NOT_PENDING"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	default:
		return "PERSISTENCE_FAILED"
	}
}
